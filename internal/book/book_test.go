package book

import (
	"testing"

	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

func mkPair() types.Pair { return types.Pair{Base: "BTC", Quote: "USD"} }

func TestBestBidLessThanBestAsk(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("coinbase", mkPair(), 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("1")}},
		[]types.BookLevel{{Price: decimal.MustParse("101"), Quantity: decimal.MustParse("1")}},
	)

	bid, ok := b.BestBid()
	if !ok {
		t.Fatal("expected a best bid")
	}
	ask, ok := b.BestAsk()
	if !ok {
		t.Fatal("expected a best ask")
	}
	if !bid.Price.LessThan(ask.Price) {
		t.Errorf("best bid %s should be less than best ask %s", bid.Price, ask.Price)
	}
}

func TestApplyUpdateGapDetected(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("coinbase", mkPair(), 5, nil, nil)
	err := b.ApplyUpdate(7, types.Buy, decimal.MustParse("100"), decimal.MustParse("1"))
	if err == nil {
		t.Fatal("expected ErrGap for non-contiguous sequence")
	}
	var gapErr *ErrGap
	if !isGap(err, &gapErr) {
		t.Fatalf("expected *ErrGap, got %T: %v", err, err)
	}
}

func isGap(err error, target **ErrGap) bool {
	if g, ok := err.(*ErrGap); ok {
		*target = g
		return true
	}
	return false
}

func TestApplyUpdateReplacesLevel(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("kraken", mkPair(), 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("2")}},
		nil,
	)

	if err := b.ApplyUpdate(2, types.Buy, decimal.MustParse("100"), decimal.MustParse("5")); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	bid, ok := b.BestBid()
	if !ok {
		t.Fatal("expected a best bid")
	}
	if !bid.Quantity.Equal(decimal.MustParse("5")) {
		t.Errorf("quantity = %s, want 5", bid.Quantity)
	}
}

func TestApplyUpdateZeroQuantityRemovesLevel(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("kraken", mkPair(), 1,
		[]types.BookLevel{
			{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("2")},
			{Price: decimal.MustParse("99"), Quantity: decimal.MustParse("1")},
		},
		nil,
	)

	if err := b.ApplyUpdate(2, types.Buy, decimal.MustParse("100"), decimal.Zero); err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	bid, ok := b.BestBid()
	if !ok {
		t.Fatal("expected a remaining best bid")
	}
	if !bid.Price.Equal(decimal.MustParse("99")) {
		t.Errorf("best bid = %s, want 99 (100 should have been removed)", bid.Price)
	}
}

func TestEmptyBookHasNoBestLevels(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("kraken", mkPair(), 0, nil, nil)
	if _, ok := b.BestBid(); ok {
		t.Error("expected no best bid on empty book")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("expected no best ask on empty book")
	}
}

func TestDepthOrdering(t *testing.T) {
	t.Parallel()

	b := NewFromSnapshot("coinbase", mkPair(), 1,
		[]types.BookLevel{
			{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("1")},
			{Price: decimal.MustParse("102"), Quantity: decimal.MustParse("1")},
			{Price: decimal.MustParse("101"), Quantity: decimal.MustParse("1")},
		},
		nil,
	)

	depth := b.Depth(types.Buy, 3)
	if len(depth) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(depth))
	}
	if !depth[0].Price.Equal(decimal.MustParse("102")) {
		t.Errorf("top bid depth = %s, want 102 (descending)", depth[0].Price)
	}
}
