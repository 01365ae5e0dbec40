// Package types defines the vocabulary shared across every layer of the
// engine — venue identifiers, order lifecycle, product metadata, and the
// canonical event stream venue adapters translate their wire formats into.
// It depends on nothing but pkg/decimal, so any layer can import it.
package types

import (
	"time"

	"arbengine/pkg/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// VenueID names one of the venues configured for a run, e.g. "coinbase",
// "kraken". Stable for the lifetime of a process.
type VenueID string

// Pair is a base/quote asset pair, e.g. {Base: "BTC", Quote: "USD"}.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string { return p.Base + "-" + p.Quote }

// Side is the direction of an order or a book level.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes resting (maker) from immediate (taker) orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderFlag modifies order matching behavior.
type OrderFlag string

const (
	FlagPostOnly OrderFlag = "post_only" // reject rather than cross the book
	FlagIOC      OrderFlag = "ioc"       // fill what's available immediately, cancel the rest
	FlagFOK      OrderFlag = "fok"       // fill completely and immediately, or cancel entirely
)

// OrderState is a position in an order's lifecycle. See DoneReason for the
// terminal state's cause.
type OrderState string

const (
	OrderPendingAck OrderState = "pending_ack" // submitted, venue has not acknowledged yet
	OrderOpen       OrderState = "open"        // resting on the venue's book
	OrderCancelling OrderState = "cancelling"  // cancel requested, awaiting terminal event
	OrderDone       OrderState = "done"        // terminal — see DoneReason
)

// DoneReason explains why an order reached OrderDone.
type DoneReason string

const (
	DoneFilled    DoneReason = "filled"
	DoneCancelled DoneReason = "cancelled"
	DoneKilled    DoneReason = "killed"   // risk halt forced the cancel
	DoneRejected  DoneReason = "rejected" // never acknowledged, e.g. PostOnlyRejected
)

// ————————————————————————————————————————————————————————————————————————
// Product metadata
// ————————————————————————————————————————————————————————————————————————

// ProductInfo describes a venue's trading rules for one pair: tick/lot
// precision, minimum order notional, and current maker/taker fees.
type ProductInfo struct {
	Venue          VenueID
	Pair           Pair
	PriceScale     int32 // decimal places a price is rounded to (tick size)
	QuantityScale  int32 // decimal places a quantity is rounded to (lot size)
	MinNotional    decimal.Decimal
	MakerFeeRate   decimal.Decimal // e.g. 0.001 = 10 bps
	TakerFeeRate   decimal.Decimal
}

// Wallet is one asset's balance on one venue.
type Wallet struct {
	Venue     VenueID
	Asset     string
	Available decimal.Decimal // free to trade
	Reserved  decimal.Decimal // committed to open orders
}

// Total is Available plus Reserved.
func (w Wallet) Total() decimal.Decimal { return w.Available.Add(w.Reserved) }

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// BookLevel is a single price/quantity level of an order book.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// OrderRequest is what the strategy layer asks a venue adapter to place.
type OrderRequest struct {
	Venue     VenueID
	Pair      Pair
	Side      Side
	Type      OrderType
	Flags     []OrderFlag
	Price     decimal.Decimal // ignored for OrderTypeMarket
	Quantity  decimal.Decimal
	ClientID  string // engine-assigned idempotency key
}

// Order is the engine's local record of an order's lifecycle.
type Order struct {
	Venue      VenueID
	Pair       Pair
	Side       Side
	Type       OrderType
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Filled     decimal.Decimal
	State      OrderState
	DoneReason DoneReason
	ClientID   string
	VenueOrderID string
	SubmittedAt time.Time
}

// Remaining is Quantity minus Filled.
func (o Order) Remaining() decimal.Decimal { return o.Quantity.Sub(o.Filled) }

// ————————————————————————————————————————————————————————————————————————
// Canonical event stream
// ————————————————————————————————————————————————————————————————————————

// CanonicalEvent is the tagged union every venue adapter translates its wire
// messages into. The engine only ever sees these eight variants, never a
// venue-specific payload.
type CanonicalEvent interface {
	canonicalEvent()
	Venue() VenueID
}

// OrderBookSnapshot replaces a venue's local book wholesale — sent on
// initial subscription and after any sequence gap is detected.
type OrderBookSnapshotEvent struct {
	VenueID  VenueID
	Pair     Pair
	Sequence uint64
	Bids     []BookLevel
	Asks     []BookLevel
	At       time.Time
}

func (e OrderBookSnapshotEvent) canonicalEvent() {}
func (e OrderBookSnapshotEvent) Venue() VenueID  { return e.VenueID }

// OrderBookUpdate applies incremental level changes. Quantity of zero means
// the level is removed.
type OrderBookUpdateEvent struct {
	VenueID  VenueID
	Pair     Pair
	Sequence uint64
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	At       time.Time
}

func (e OrderBookUpdateEvent) canonicalEvent() {}
func (e OrderBookUpdateEvent) Venue() VenueID  { return e.VenueID }

// OrderReceived acknowledges that the venue has accepted an order (moves it
// PendingAck -> Open is NOT implied; a venue may reject after receiving).
type OrderReceivedEvent struct {
	VenueID      VenueID
	ClientID     string
	VenueOrderID string
	At           time.Time
}

func (e OrderReceivedEvent) canonicalEvent() {}
func (e OrderReceivedEvent) Venue() VenueID  { return e.VenueID }

// OrderOpenEvent confirms an order is resting on the venue's book.
type OrderOpenEvent struct {
	VenueID      VenueID
	ClientID     string
	VenueOrderID string
	At           time.Time
}

func (e OrderOpenEvent) canonicalEvent() {}
func (e OrderOpenEvent) Venue() VenueID  { return e.VenueID }

// OrderMatchEvent reports a fill against one of our orders.
type OrderMatchEvent struct {
	VenueID      VenueID
	ClientID     string
	VenueOrderID string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	At           time.Time
}

func (e OrderMatchEvent) canonicalEvent() {}
func (e OrderMatchEvent) Venue() VenueID  { return e.VenueID }

// OrderDoneEvent is terminal: the order will never change state again.
type OrderDoneEvent struct {
	VenueID      VenueID
	ClientID     string
	VenueOrderID string
	Reason       DoneReason
	Remaining    decimal.Decimal
	At           time.Time
}

func (e OrderDoneEvent) canonicalEvent() {}
func (e OrderDoneEvent) Venue() VenueID  { return e.VenueID }

// HeartbeatEvent signals the feed is alive with no book/order activity.
type HeartbeatEvent struct {
	VenueID VenueID
	At      time.Time
}

func (e HeartbeatEvent) canonicalEvent() {}
func (e HeartbeatEvent) Venue() VenueID  { return e.VenueID }

// SubscriptionsEvent confirms which channels a venue's feed is subscribed
// to, emitted once after connect and again after any resubscribe.
type SubscriptionsEvent struct {
	VenueID  VenueID
	Channels []string
	At       time.Time
}

func (e SubscriptionsEvent) canonicalEvent() {}
func (e SubscriptionsEvent) Venue() VenueID  { return e.VenueID }
