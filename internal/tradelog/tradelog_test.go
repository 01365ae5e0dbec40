package tradelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arbengine/internal/strategy"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

func TestAppendWritesLineWithoutScientificNotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	entry := Entry{
		At:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Shape:      strategy.S1,
		MakerVenue: "coinbase",
		MakerSide:  types.Buy,
		TakerVenue: "kraken",
		TakerSide:  types.Sell,
		MakerTotal: decimal.MustParse("0.00001234"),
		TakerTotal: decimal.MustParse("100000000"),
		Profit:     decimal.MustParse("1.5"),
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	line := string(data)

	if strings.Contains(line, "e+") || strings.Contains(line, "E+") {
		t.Errorf("expected no scientific notation, got: %s", line)
	}
	if !strings.Contains(line, "S1") || !strings.Contains(line, "coinbase") || !strings.Contains(line, "kraken") {
		t.Errorf("missing expected fields: %s", line)
	}
}

func TestAppendIsCrashSafeAcrossMultipleLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := log.Append(Entry{At: time.Now(), Shape: strategy.S1, Profit: decimal.MustParse("1")}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}
