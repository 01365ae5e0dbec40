package multiplex

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"arbengine/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMergesPreservingPerVenueOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(0, 0, discardLogger())

	a := make(chan types.CanonicalEvent)
	b := make(chan types.CanonicalEvent)
	m.Add(ctx, "venueA", a)
	m.Add(ctx, "venueB", b)

	go func() {
		a <- types.HeartbeatEvent{VenueID: "venueA", At: time.Unix(1, 0)}
		a <- types.HeartbeatEvent{VenueID: "venueA", At: time.Unix(2, 0)}
		close(a)
	}()
	go func() {
		b <- types.HeartbeatEvent{VenueID: "venueB", At: time.Unix(3, 0)}
		close(b)
	}()

	go m.Wait()

	var fromA []time.Time
	var fromB []time.Time
	timeout := time.After(2 * time.Second)
	count := 0
	for count < 3 {
		select {
		case ev, ok := <-m.Out():
			if !ok {
				t.Fatal("output closed before all events received")
			}
			hb := ev.(types.HeartbeatEvent)
			if hb.Venue() == "venueA" {
				fromA = append(fromA, hb.At)
			} else {
				fromB = append(fromB, hb.At)
			}
			count++
		case <-timeout:
			t.Fatal("timed out waiting for merged events")
		}
	}

	if len(fromA) != 2 || !fromA[0].Before(fromA[1]) {
		t.Errorf("venueA events out of order: %v", fromA)
	}
	if len(fromB) != 1 {
		t.Errorf("expected 1 event from venueB, got %d", len(fromB))
	}
}

func TestBlockOnPushNeverDrops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(0, 0, discardLogger())
	in := make(chan types.CanonicalEvent)
	m.Add(ctx, "venue", in)

	const n = 20
	go func() {
		for i := 0; i < n; i++ {
			in <- types.HeartbeatEvent{VenueID: "venue", At: time.Unix(int64(i), 0)}
		}
		close(in)
	}()

	received := 0
	for received < n {
		select {
		case _, ok := <-m.Out():
			if !ok {
				t.Fatalf("output closed early after %d events, want %d", received, n)
			}
			received++
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d/%d events", received, n)
		}
	}
}
