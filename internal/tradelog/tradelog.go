// Package tradelog appends one line per completed arbitrage cycle to a
// crash-safe log file. Adapted from the teacher's store.Store, which
// persists whole-file JSON snapshots via write-tmp-then-rename; here the log
// is append-only rather than whole-file, so the atomicity guarantee instead
// comes from opening in O_APPEND and fsyncing after every line, which is the
// equivalent crash-safety property for a file that only ever grows.
package tradelog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"arbengine/internal/strategy"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// Entry is one completed (or liquidated-partial) arbitrage cycle.
type Entry struct {
	At          time.Time
	Shape       strategy.Shape
	MakerVenue  types.VenueID
	MakerSide   types.Side
	TakerVenue  types.VenueID
	TakerSide   types.Side
	MakerTotal  decimal.Decimal // notional on the maker leg
	TakerTotal  decimal.Decimal // notional on the taker leg
	Profit      decimal.Decimal
}

// Log is a single append-only trade log file.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if necessary) the log file at path for appending.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	return &Log{file: f}, nil
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Append writes one line and fsyncs before returning, so a crash
// immediately after Append returns never loses the entry.
func (l *Log) Append(e Entry) error {
	line := formatLine(e)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("write trade log entry: %w", err)
	}
	return l.file.Sync()
}

func formatLine(e Entry) string {
	return fmt.Sprintf(
		"%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
		e.At.UTC().Format(time.RFC3339Nano),
		e.Shape,
		e.MakerVenue, e.MakerSide,
		e.TakerVenue, e.TakerSide,
		e.MakerTotal.String(),
		e.TakerTotal.String(),
		e.Profit.String(),
	)
}
