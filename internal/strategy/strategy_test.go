package strategy

import (
	"testing"

	"arbengine/internal/book"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

func product(venue types.VenueID, priceScale, qtyScale int32) types.ProductInfo {
	return types.ProductInfo{
		Venue:         venue,
		PriceScale:    priceScale,
		QuantityScale: qtyScale,
		MinNotional:   decimal.MustParse("1"),
		MakerFeeRate:  decimal.MustParse("0.001"),
		TakerFeeRate:  decimal.MustParse("0.002"),
	}
}

// ampleBalances returns balances large enough to never bind as the limiting
// factor, for tests that exercise depth/profit logic rather than the
// balance cap itself.
func ampleBalances() (base, quote decimal.Decimal) {
	return decimal.MustParse("1000000"), decimal.MustParse("1000000")
}

func TestS1SelectedWhenArbitrageExists(t *testing.T) {
	t.Parallel()

	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("10")}},
		nil,
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("110"), Quantity: decimal.MustParse("10")}},
		nil,
	)

	base, quote := ampleBalances()
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA: product("A", 2, 4),
		ProductB: product("B", 2, 4),
		AvailBaseA: base, AvailQuoteA: quote,
		AvailBaseB: base, AvailQuoteB: quote,
	})

	best, ok := Select(quotes)
	if !ok {
		t.Fatal("expected a profitable quote")
	}
	if best.Shape != S1 {
		t.Errorf("shape = %s, want S1 (buy cheap on A, sell rich on B)", best.Shape)
	}
	if !best.Profit.IsPositive() {
		t.Errorf("profit = %s, want positive", best.Profit)
	}
}

func TestNoArbitrageYieldsNoSelection(t *testing.T) {
	t.Parallel()

	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("10")}},
		[]types.BookLevel{{Price: decimal.MustParse("100.5"), Quantity: decimal.MustParse("10")}},
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("10")}},
		[]types.BookLevel{{Price: decimal.MustParse("100.5"), Quantity: decimal.MustParse("10")}},
	)

	base, quote := ampleBalances()
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA: product("A", 2, 4),
		ProductB: product("B", 2, 4),
		AvailBaseA: base, AvailQuoteA: quote,
		AvailBaseB: base, AvailQuoteB: quote,
	})

	if _, ok := Select(quotes); ok {
		t.Error("expected no profitable quote when books are tight and identical")
	}
}

// TestBelowMinNotionalForcesNegativeProfit covers a fill well under the bare
// MinNotional: the quote is still reported (never hidden), but its profit is
// forced negative so Select never picks it.
func TestBelowMinNotionalForcesNegativeProfit(t *testing.T) {
	t.Parallel()

	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("0.001")}},
		nil,
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("110"), Quantity: decimal.MustParse("0.001")}},
		nil,
	)

	base, quote := ampleBalances()
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA: product("A", 2, 4),
		ProductB: product("B", 2, 4),
		AvailBaseA: base, AvailQuoteA: quote,
		AvailBaseB: base, AvailQuoteB: quote,
	})

	var s1 Quote
	found := false
	for _, q := range quotes {
		if q.Shape == S1 {
			s1, found = q, true
		}
	}
	if !found {
		t.Fatal("expected S1 to still be reported even though its notional is too small")
	}
	if !s1.Profit.IsNegative() {
		t.Errorf("profit = %s, want forced negative below min notional", s1.Profit)
	}
	if _, ok := Select(quotes); ok {
		t.Error("a below-min-notional quote must never be selected")
	}
}

// TestBelowHeadroomNotionalForcesNegativeProfit covers a fill that clears the
// bare MinNotional (1) but not the 1.06x headroom venues actually require —
// the boundary the bare-minimum check alone misses.
func TestBelowHeadroomNotionalForcesNegativeProfit(t *testing.T) {
	t.Parallel()

	// qty 0.1 at price 100/110 clears MinNotional=1 on A (10) comfortably,
	// but on B: 0.1 * 110 = 11, and MinNotional*1.06 = 1.06 — still clears.
	// Pick quantities so the computed quote notional lands strictly between
	// MinNotional and MinNotional*1.06 on one leg.
	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("0.0103")}},
		nil,
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("110"), Quantity: decimal.MustParse("10")}},
		nil,
	)

	base, quote := ampleBalances()
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA: product("A", 2, 4),
		ProductB: product("B", 2, 4),
		AvailBaseA: base, AvailQuoteA: quote,
		AvailBaseB: base, AvailQuoteB: quote,
	})

	var s1 Quote
	found := false
	for _, q := range quotes {
		if q.Shape == S1 {
			s1, found = q, true
		}
	}
	if !found {
		t.Fatal("expected S1 to still be reported in the notional headroom band")
	}

	notional := s1.Quantity.Mul(decimal.MustParse("100"))
	if notional.LessThan(decimal.MustParse("1")) || !notional.LessThan(decimal.MustParse("1.06")) {
		t.Fatalf("test setup: maker notional %s not in the 1-1.06 headroom band", notional)
	}
	if !s1.Profit.IsNegative() {
		t.Errorf("profit = %s, want forced negative inside the min-notional headroom band", s1.Profit)
	}
	if _, ok := Select(quotes); ok {
		t.Error("a headroom-band quote must never be selected")
	}
}

func TestAvailableBalanceCapsQuantity(t *testing.T) {
	t.Parallel()

	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("10")}},
		nil,
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("110"), Quantity: decimal.MustParse("10")}},
		nil,
	)

	// S1 buys on A, so it is capped by A's quote balance: only enough USD to
	// buy 2 BTC at the maker price, well below the 10 BTC the books offer.
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA:    product("A", 2, 4),
		ProductB:    product("B", 2, 4),
		AvailBaseA:  decimal.MustParse("1000000"),
		AvailQuoteA: decimal.MustParse("200.02"), // ~2 BTC at 100.01
		AvailBaseB:  decimal.MustParse("1000000"),
		AvailQuoteB: decimal.MustParse("1000000"),
	})

	var s1 Quote
	found := false
	for _, q := range quotes {
		if q.Shape == S1 {
			s1, found = q, true
		}
	}
	if !found {
		t.Fatal("expected S1 to still be quoted, just at a smaller quantity")
	}
	if s1.Quantity.GreaterThan(decimal.MustParse("2")) {
		t.Errorf("quantity = %s, want capped to available quote balance (~2)", s1.Quantity)
	}

	// Zero quote balance on A starves S1 of any quantity at all.
	quotes = Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA:    product("A", 2, 4),
		ProductB:    product("B", 2, 4),
		AvailBaseA:  decimal.MustParse("1000000"),
		AvailQuoteA: decimal.Zero,
		AvailBaseB:  decimal.MustParse("1000000"),
		AvailQuoteB: decimal.MustParse("1000000"),
	})
	for _, q := range quotes {
		if q.Shape == S1 {
			t.Error("S1 should be omitted when the maker venue has no funds to buy with")
		}
	}
}

// TestQuantityFlooredToCoarserVenueScale covers mismatched per-venue lot
// sizes: the maker venue's tick is coarser (2 decimals) than the taker
// venue's (4 decimals), so the final quantity must floor to the coarser of
// the two, not whichever venue happens to be named "taker" in the call.
func TestQuantityFlooredToCoarserVenueScale(t *testing.T) {
	t.Parallel()

	bookA := book.NewFromSnapshot("A", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("100"), Quantity: decimal.MustParse("1.2399")}},
		nil,
	)
	bookB := book.NewFromSnapshot("B", types.Pair{Base: "BTC", Quote: "USD"}, 1,
		[]types.BookLevel{{Price: decimal.MustParse("110"), Quantity: decimal.MustParse("10")}},
		nil,
	)

	base, quote := ampleBalances()
	quotes := Evaluate(Input{
		VenueA: "A", VenueB: "B",
		BookA: bookA, BookB: bookB,
		ProductA: product("A", 2, 2), // coarse 2-decimal lot size
		ProductB: product("B", 2, 4), // fine 4-decimal lot size
		AvailBaseA: base, AvailQuoteA: quote,
		AvailBaseB: base, AvailQuoteB: quote,
	})

	var s1 Quote
	found := false
	for _, q := range quotes {
		if q.Shape == S1 {
			s1, found = q, true
		}
	}
	if !found {
		t.Fatal("expected S1 to be quoted")
	}
	want := decimal.MustParse("1.23")
	if !s1.Quantity.Equal(want) {
		t.Errorf("quantity = %s, want %s floored to the coarser (A's 2-decimal) lot size", s1.Quantity, want)
	}
}

func TestS5S6RequireStrictlyGreaterProfitThanMakerShapes(t *testing.T) {
	t.Parallel()

	quotes := []Quote{
		{Shape: S1, Profit: decimal.MustParse("5")},
		{Shape: S5, Profit: decimal.MustParse("5")},
	}
	best, ok := Select(quotes)
	if !ok {
		t.Fatal("expected a selection")
	}
	if best.Shape != S1 {
		t.Errorf("tie should prefer maker/taker shape, got %s", best.Shape)
	}

	quotes = []Quote{
		{Shape: S1, Profit: decimal.MustParse("5")},
		{Shape: S5, Profit: decimal.MustParse("6")},
	}
	best, ok = Select(quotes)
	if !ok {
		t.Fatal("expected a selection")
	}
	if best.Shape != S5 {
		t.Errorf("strictly better taker/taker shape should win, got %s", best.Shape)
	}
}
