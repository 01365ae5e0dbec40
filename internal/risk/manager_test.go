package risk

import (
	"io"
	"log/slog"
	"testing"

	"arbengine/internal/venue"
	"arbengine/pkg/decimal"
)

func newTestManager(maxResidue string) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(decimal.MustParse(maxResidue), logger)
}

func TestVenueStartsHealthy(t *testing.T) {
	t.Parallel()
	m := newTestManager("0")
	if !m.IsHealthy("coinbase") {
		t.Error("expected a venue with no reported errors to be healthy")
	}
}

func TestProtocolErrorHaltsVenue(t *testing.T) {
	t.Parallel()
	m := newTestManager("0")

	halted := m.ReportError("kraken", &venue.ProtocolError{Body: "malformed frame"})
	if !halted {
		t.Fatal("expected ReportError to report the venue as halted")
	}
	if m.IsHealthy("kraken") {
		t.Error("expected venue to be unhealthy after a protocol error")
	}

	select {
	case sig := <-m.KillCh():
		if sig.Venue != "kraken" || sig.Fatal {
			t.Errorf("unexpected kill signal: %+v", sig)
		}
	default:
		t.Fatal("expected a kill signal to be emitted")
	}
}

func TestAuthenticationErrorIsFatalAndUnrecoverable(t *testing.T) {
	t.Parallel()
	m := newTestManager("0")

	m.ReportError("coinbase", &venue.AuthenticationError{Body: "bad key"})
	<-m.KillCh()

	if err := m.Reenable("coinbase"); err == nil {
		t.Fatal("expected Reenable to refuse clearing a FatalAuth venue")
	}
}

func TestTransportErrorDoesNotHaltVenue(t *testing.T) {
	t.Parallel()
	m := newTestManager("0")

	halted := m.ReportError("coinbase", &venue.TransportError{Err: io.EOF})
	if halted {
		t.Error("transport errors should not halt the venue")
	}
	if !m.IsHealthy("coinbase") {
		t.Error("expected venue to remain healthy after a transport error")
	}
}

func TestUnhedgedResidueHaltsOverLimit(t *testing.T) {
	t.Parallel()
	m := newTestManager("0.01")

	if exceeded := m.RecordUnhedged("kraken", decimal.MustParse("0.005")); exceeded {
		t.Error("should not exceed limit yet")
	}
	if !m.IsHealthy("kraken") {
		t.Error("venue should still be healthy under the residue limit")
	}

	if exceeded := m.RecordUnhedged("kraken", decimal.MustParse("0.006")); !exceeded {
		t.Error("expected residue to exceed the configured limit")
	}
	if m.IsHealthy("kraken") {
		t.Error("expected venue to be disabled after exceeding residue limit")
	}
}

func TestReenableClearsDisabledVenue(t *testing.T) {
	t.Parallel()
	m := newTestManager("0")
	m.ReportError("kraken", &venue.ProtocolError{Body: "x"})
	<-m.KillCh()

	if err := m.Reenable("kraken"); err != nil {
		t.Fatalf("Reenable: %v", err)
	}
	if !m.IsHealthy("kraken") {
		t.Error("expected venue healthy after Reenable")
	}
}
