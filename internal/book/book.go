// Package book implements the local order book the engine reconstructs from
// a venue's snapshot + incremental update stream.
//
// The underlying structure is a lazy binary heap per side plus an occupancy
// map keyed by price: updates push a new heap entry without touching any
// existing entry for that price, and the occupancy map is the source of
// truth for a price's current quantity. Peeking the top of the heap pops and
// discards any entry whose quantity no longer matches the occupancy map
// (either stale or a tombstone for a removed level) until a live entry
// surfaces. This avoids an O(log n) heap-internal search on every update at
// the cost of amortized extra pops on read, and mirrors how an exchange's
// own book changes far more often by cancel/replace than by removal.
package book

import (
	"container/heap"
	"fmt"

	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// ErrGap is returned by ApplyUpdate when the update's sequence number is not
// exactly one greater than the book's current sequence. The caller must
// discard the book and resubscribe for a fresh snapshot.
type ErrGap struct {
	Have uint64
	Want uint64
}

func (e *ErrGap) Error() string {
	return fmt.Sprintf("sequence gap: have %d, next update is %d", e.Have, e.Want)
}

type entry struct {
	price decimal.Decimal
	qty   decimal.Decimal
	seq   uint64 // insertion order; not consulted by the heap ordering
}

// bidHeap is a max-heap on price (best bid = highest price first).
type bidHeap []entry

func (h bidHeap) Len() int            { return len(h) }
func (h bidHeap) Less(i, j int) bool  { return h[i].price.GreaterThan(h[j].price) }
func (h bidHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bidHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *bidHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// askHeap is a min-heap on price (best ask = lowest price first).
type askHeap []entry

func (h askHeap) Len() int            { return len(h) }
func (h askHeap) Less(i, j int) bool  { return h[i].price.LessThan(h[j].price) }
func (h askHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *askHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *askHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Book is one venue's reconstructed order book for one pair.
type Book struct {
	Venue types.VenueID
	Pair  types.Pair

	sequence uint64

	bids    bidHeap
	asks    askHeap
	bidQty  map[string]decimal.Decimal // canonical price string -> live quantity
	askQty  map[string]decimal.Decimal
	nextSeq uint64 // entry insertion counter, unrelated to venue Sequence
}

// NewFromSnapshot builds a Book from a venue's full snapshot.
func NewFromSnapshot(venue types.VenueID, pair types.Pair, sequence uint64, bids, asks []types.BookLevel) *Book {
	b := &Book{
		Venue:    venue,
		Pair:     pair,
		sequence: sequence,
		bidQty:   make(map[string]decimal.Decimal, len(bids)),
		askQty:   make(map[string]decimal.Decimal, len(asks)),
	}
	for _, lvl := range bids {
		b.setLevel(types.Buy, lvl.Price, lvl.Quantity)
	}
	for _, lvl := range asks {
		b.setLevel(types.Sell, lvl.Price, lvl.Quantity)
	}
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	return b
}

// Sequence returns the book's last-applied sequence number.
func (b *Book) Sequence() uint64 { return b.sequence }

// ApplyUpdate applies one incremental level change. seq must be exactly
// b.Sequence()+1; otherwise ErrGap is returned and the caller must discard
// the book.
func (b *Book) ApplyUpdate(seq uint64, side types.Side, price, quantity decimal.Decimal) error {
	if seq != b.sequence+1 {
		return &ErrGap{Have: b.sequence, Want: b.sequence + 1}
	}
	b.setLevel(side, price, quantity)
	b.sequence = seq
	return nil
}

func (b *Book) setLevel(side types.Side, price, quantity decimal.Decimal) {
	key := price.String()
	e := entry{price: price, qty: quantity, seq: b.nextSeq}
	b.nextSeq++

	if side == types.Buy {
		if quantity.IsZero() {
			delete(b.bidQty, key)
		} else {
			b.bidQty[key] = quantity
		}
		heap.Push(&b.bids, e)
		return
	}
	if quantity.IsZero() {
		delete(b.askQty, key)
	} else {
		b.askQty[key] = quantity
	}
	heap.Push(&b.asks, e)
}

// BestBid returns the highest live bid level, discarding stale heap entries
// as it goes. ok is false if the book has no bids.
func (b *Book) BestBid() (lvl types.BookLevel, ok bool) {
	for b.bids.Len() > 0 {
		top := b.bids[0]
		live, exists := b.bidQty[top.price.String()]
		if exists && live.Equal(top.qty) {
			return types.BookLevel{Price: top.price, Quantity: live}, true
		}
		heap.Pop(&b.bids)
	}
	return types.BookLevel{}, false
}

// BestAsk returns the lowest live ask level, discarding stale heap entries
// as it goes. ok is false if the book has no asks.
func (b *Book) BestAsk() (lvl types.BookLevel, ok bool) {
	for b.asks.Len() > 0 {
		top := b.asks[0]
		live, exists := b.askQty[top.price.String()]
		if exists && live.Equal(top.qty) {
			return types.BookLevel{Price: top.price, Quantity: live}, true
		}
		heap.Pop(&b.asks)
	}
	return types.BookLevel{}, false
}

// Depth returns up to n live levels on the given side, best price first,
// read from the occupancy map without touching the heap.
func (b *Book) Depth(side types.Side, n int) []types.BookLevel {
	qtyMap := b.bidQty
	if side == types.Sell {
		qtyMap = b.askQty
	}
	levels := make([]types.BookLevel, 0, len(qtyMap))
	for priceStr, qty := range qtyMap {
		price, err := decimal.Parse(priceStr)
		if err != nil {
			continue
		}
		levels = append(levels, types.BookLevel{Price: price, Quantity: qty})
	}
	sortLevels(levels, side)
	if len(levels) > n {
		levels = levels[:n]
	}
	return levels
}

func sortLevels(levels []types.BookLevel, side types.Side) {
	// simple insertion sort: depth requests are small (a handful of levels)
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0; j-- {
			better := levels[j].Price.GreaterThan(levels[j-1].Price)
			if side == types.Sell {
				better = levels[j].Price.LessThan(levels[j-1].Price)
			}
			if !better {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
}
