// Package strategy evaluates the six maker/taker and taker/taker shapes
// available on an ordered venue pair and selects the most profitable one on
// every book update, the way original_source/algo/cross.py's handle_data
// loop does — but as a single parameterized evaluator instead of six copies
// of near-identical logic, since the only real difference between shapes is
// which venue is the maker, which side it trades, and which venue absorbs
// the immediate taker leg.
package strategy

import (
	"arbengine/internal/book"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// Shape identifies one of the six arbitrage structures evaluated on every
// update. S1-S4 rest an order on one venue and hedge immediately on the
// other; S5-S6 take liquidity on both venues back to back.
type Shape int

const (
	// S1: maker buy on A at its best-bid+tick, hedge with an immediate sell
	// on B.
	S1 Shape = iota + 1
	// S2: maker buy on B, hedge with an immediate sell on A.
	S2
	// S3: maker sell on A at its best-ask-tick, hedge with an immediate buy
	// on B.
	S3
	// S4: maker sell on B, hedge with an immediate buy on A.
	S4
	// S5: take liquidity on A (buy), then take liquidity on B (sell).
	S5
	// S6: take liquidity on B (buy), then take liquidity on A (sell).
	S6
)

func (s Shape) String() string {
	names := map[Shape]string{S1: "S1", S2: "S2", S3: "S3", S4: "S4", S5: "S5", S6: "S6"}
	if n, ok := names[s]; ok {
		return n
	}
	return "unknown"
}

// IsMakerTaker reports whether the shape rests an order (S1-S4) rather than
// taking on both legs (S5-S6).
func (s Shape) IsMakerTaker() bool { return s == S1 || s == S2 || s == S3 || s == S4 }

// Quote is one shape's fully-priced candidate, ready for the engine to act
// on if selected.
type Quote struct {
	Shape Shape

	MakerVenue types.VenueID
	MakerSide  types.Side
	MakerPrice decimal.Decimal

	TakerVenue types.VenueID
	TakerSide  types.Side
	TakerPrice decimal.Decimal

	Quantity decimal.Decimal
	Spread   decimal.Decimal // taker-favorable price minus maker price, signed per shape
	Profit   decimal.Decimal // expected profit over Quantity, net of both legs' fees
}

// Input bundles everything Evaluate needs for one venue pair. VenueA and
// VenueB are ordered only for naming; the evaluator itself is symmetric.
// AvailBaseA/AvailQuoteA/AvailBaseB/AvailQuoteB are the engine's current
// available (unreserved) wallet balances on each venue, used to cap
// quantity per spec.md §4.4's `min(available_balance_on_side, ...)` rule —
// unlike MaxQuantity, a zero balance here really does mean zero, not
// "uncapped."
type Input struct {
	VenueA, VenueB types.VenueID
	BookA, BookB   *book.Book
	ProductA       types.ProductInfo
	ProductB       types.ProductInfo
	MaxQuantity    decimal.Decimal // caller-imposed ceiling; zero means no ceiling

	AvailBaseA, AvailQuoteA decimal.Decimal
	AvailBaseB, AvailQuoteB decimal.Decimal
}

// affordableQty converts a quote-asset balance into the base quantity it can
// buy at price, floored to scale. Used to cap a buy-side maker/taker leg by
// the funds actually available to spend.
func affordableQty(quoteAvail, price decimal.Decimal, scale int32) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return quoteAvail.DivRound(price, scale, decimal.Floor)
}

// tick returns one price increment at scale decimal places, e.g. tick(2) =
// 0.01.
func tick(scale int32) decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(decimal.NewFromInt(pow10(scale)), scale, decimal.Floor)
}

func pow10(scale int32) int64 {
	v := int64(1)
	for i := int32(0); i < scale; i++ {
		v *= 10
	}
	return v
}

// Evaluate computes all six shapes' quotes for the given input. A shape is
// omitted from the result only if either leg's book lacks a best level or
// the sized quantity floors to zero; a quantity whose notional falls short
// of a venue's minimum (plus its 1.06x headroom) is still returned, with its
// profit forced negative so Select never picks it.
func Evaluate(in Input) []Quote {
	bestBidA, hasBidA := in.BookA.BestBid()
	bestAskA, hasAskA := in.BookA.BestAsk()
	bestBidB, hasBidB := in.BookB.BestBid()
	bestAskB, hasAskB := in.BookB.BestAsk()

	var quotes []Quote

	// S1: maker buy on A (inside best bid), taker sell on B (hits best bid B).
	if hasBidA && hasBidB {
		makerPrice := bestBidA.Price.Add(tick(in.ProductA.PriceScale))
		balCap := affordableQty(in.AvailQuoteA, makerPrice, in.ProductA.QuantityScale)
		if q, ok := makerTakerQuote(S1, in.VenueA, in.VenueB, types.Buy,
			makerPrice, bestBidA.Quantity,
			bestBidB.Price, bestBidB.Quantity,
			in.ProductA, in.ProductB, in.MaxQuantity, balCap); ok {
			quotes = append(quotes, q)
		}
	}
	// S2: maker buy on B, taker sell on A.
	if hasBidB && hasBidA {
		makerPrice := bestBidB.Price.Add(tick(in.ProductB.PriceScale))
		balCap := affordableQty(in.AvailQuoteB, makerPrice, in.ProductB.QuantityScale)
		if q, ok := makerTakerQuote(S2, in.VenueB, in.VenueA, types.Buy,
			makerPrice, bestBidB.Quantity,
			bestBidA.Price, bestBidA.Quantity,
			in.ProductB, in.ProductA, in.MaxQuantity, balCap); ok {
			quotes = append(quotes, q)
		}
	}
	// S3: maker sell on A, taker buy on B.
	if hasAskA && hasAskB {
		if q, ok := makerTakerQuote(S3, in.VenueA, in.VenueB, types.Sell,
			bestAskA.Price.Sub(tick(in.ProductA.PriceScale)), bestAskA.Quantity,
			bestAskB.Price, bestAskB.Quantity,
			in.ProductA, in.ProductB, in.MaxQuantity, in.AvailBaseA); ok {
			quotes = append(quotes, q)
		}
	}
	// S4: maker sell on B, taker buy on A.
	if hasAskB && hasAskA {
		if q, ok := makerTakerQuote(S4, in.VenueB, in.VenueA, types.Sell,
			bestAskB.Price.Sub(tick(in.ProductB.PriceScale)), bestAskB.Quantity,
			bestAskA.Price, bestAskA.Quantity,
			in.ProductB, in.ProductA, in.MaxQuantity, in.AvailBaseB); ok {
			quotes = append(quotes, q)
		}
	}
	// S5: take on A (buy at ask A), take on B (sell at bid B).
	if hasAskA && hasBidB {
		buyCap := affordableQty(in.AvailQuoteA, bestAskA.Price, in.ProductA.QuantityScale)
		sellCap := in.AvailBaseB
		if q, ok := takerTakerQuote(S5, in.VenueA, in.VenueB,
			bestAskA.Price, bestAskA.Quantity,
			bestBidB.Price, bestBidB.Quantity,
			in.ProductA, in.ProductB, in.MaxQuantity, buyCap, sellCap); ok {
			quotes = append(quotes, q)
		}
	}
	// S6: take on B (buy at ask B), take on A (sell at bid A).
	if hasAskB && hasBidA {
		buyCap := affordableQty(in.AvailQuoteB, bestAskB.Price, in.ProductB.QuantityScale)
		sellCap := in.AvailBaseA
		if q, ok := takerTakerQuote(S6, in.VenueB, in.VenueA,
			bestAskB.Price, bestAskB.Quantity,
			bestBidA.Price, bestBidA.Quantity,
			in.ProductB, in.ProductA, in.MaxQuantity, buyCap, sellCap); ok {
			quotes = append(quotes, q)
		}
	}

	return quotes
}

func makerTakerQuote(
	shape Shape,
	makerVenue, takerVenue types.VenueID,
	makerSide types.Side,
	makerPrice, makerDepth decimal.Decimal,
	takerPrice, takerDepth decimal.Decimal,
	makerProduct, takerProduct types.ProductInfo,
	maxQty, balanceCap decimal.Decimal,
) (Quote, bool) {
	qty := makerDepth.Min(takerDepth).Min(balanceCap)
	if !maxQty.IsZero() {
		qty = qty.Min(maxQty)
	}
	scale := makerProduct.QuantityScale
	if takerProduct.QuantityScale < scale {
		scale = takerProduct.QuantityScale
	}
	qty = qty.Round(scale, decimal.Floor)
	if qty.IsZero() {
		return Quote{}, false
	}

	notional := qty.Mul(makerPrice)

	var spread decimal.Decimal
	if makerSide == types.Buy {
		// we buy low on the maker venue, sell high on the taker venue
		spread = takerPrice.Sub(makerPrice)
	} else {
		// we sell high on the maker venue, buy low on the taker venue
		spread = makerPrice.Sub(takerPrice)
	}

	grossProfit := spread.Mul(qty)
	makerFee := notional.Mul(makerProduct.MakerFeeRate)
	takerFee := qty.Mul(takerPrice).Mul(takerProduct.TakerFeeRate)
	profit := grossProfit.Sub(makerFee).Sub(takerFee)

	// A fill this size clears the bare minimum notional on one or both
	// venues but not the headroom they actually require (venues reject
	// orders that round down near the boundary) — don't hide the quote,
	// force its profit negative so Select never picks it.
	makerHeadroom := makerProduct.MinNotional.Mul(decimal.MustParse("1.06"))
	takerHeadroom := takerProduct.MinNotional.Mul(decimal.MustParse("1.06"))
	if notional.LessThan(makerHeadroom) || qty.Mul(takerPrice).LessThan(takerHeadroom) {
		profit = profit.Abs().Neg()
	}

	return Quote{
		Shape:      shape,
		MakerVenue: makerVenue,
		MakerSide:  makerSide,
		MakerPrice: makerPrice,
		TakerVenue: takerVenue,
		TakerSide:  makerSide.Opposite(),
		TakerPrice: takerPrice,
		Quantity:   qty,
		Spread:     spread,
		Profit:     profit,
	}, true
}

func takerTakerQuote(
	shape Shape,
	buyVenue, sellVenue types.VenueID,
	buyPrice, buyDepth decimal.Decimal,
	sellPrice, sellDepth decimal.Decimal,
	buyProduct, sellProduct types.ProductInfo,
	maxQty, buyBalanceCap, sellBalanceCap decimal.Decimal,
) (Quote, bool) {
	qty := buyDepth.Min(sellDepth).Min(buyBalanceCap).Min(sellBalanceCap)
	if !maxQty.IsZero() {
		qty = qty.Min(maxQty)
	}
	scale := buyProduct.QuantityScale
	if sellProduct.QuantityScale < scale {
		scale = sellProduct.QuantityScale
	}
	qty = qty.Round(scale, decimal.Floor)
	if qty.IsZero() {
		return Quote{}, false
	}

	spread := sellPrice.Sub(buyPrice)
	grossProfit := spread.Mul(qty)
	buyFee := qty.Mul(buyPrice).Mul(buyProduct.TakerFeeRate)
	sellFee := qty.Mul(sellPrice).Mul(sellProduct.TakerFeeRate)
	profit := grossProfit.Sub(buyFee).Sub(sellFee)

	buyHeadroom := buyProduct.MinNotional.Mul(decimal.MustParse("1.06"))
	sellHeadroom := sellProduct.MinNotional.Mul(decimal.MustParse("1.06"))
	if qty.Mul(buyPrice).LessThan(buyHeadroom) || qty.Mul(sellPrice).LessThan(sellHeadroom) {
		profit = profit.Abs().Neg()
	}

	return Quote{
		Shape:      shape,
		MakerVenue: buyVenue, // no resting leg; "maker" fields name the first (buy) leg for S5/S6
		MakerSide:  types.Buy,
		MakerPrice: buyPrice,
		TakerVenue: sellVenue,
		TakerSide:  types.Sell,
		TakerPrice: sellPrice,
		Quantity:   qty,
		Spread:     spread,
		Profit:     profit,
	}, true
}

// Select picks the most profitable positive-profit quote. On a tie (equal
// Profit), S1-S4 are preferred over S5-S6 since a resting order costs
// nothing while waiting, whereas a taker/taker shape pays both legs'
// exchange spread immediately — S5/S6 must be strictly more profitable to
// win, never just tied.
func Select(quotes []Quote) (Quote, bool) {
	var best Quote
	found := false

	for _, q := range quotes {
		if !q.Profit.IsPositive() {
			continue
		}
		if !found {
			best, found = q, true
			continue
		}
		if q.Profit.GreaterThan(best.Profit) {
			best = q
			continue
		}
		if q.Profit.Equal(best.Profit) && q.Shape.IsMakerTaker() && !best.Shape.IsMakerTaker() {
			best = q
		}
	}
	return best, found
}
