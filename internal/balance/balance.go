// Package balance tracks per-venue, per-asset wallets and the reservation
// lifecycle an order goes through: submitting an order reserves funds
// without touching Available until a fill is actually observed, matching
// the rule that neither a cancel nor a match is assumed until the venue
// sends a terminal event. Generalized from the teacher's single-market
// Inventory (weighted-average cost basis across one token) into a
// multi-venue, multi-asset ledger, since this engine tracks wallets on two
// independent venues rather than two outcome tokens of one market.
package balance

import (
	"fmt"
	"sync"

	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

type key struct {
	venue types.VenueID
	asset string
}

// Ledger is the engine's view of every venue wallet it cares about.
type Ledger struct {
	mu       sync.Mutex
	wallets  map[key]*types.Wallet
	unhedged map[key]decimal.Decimal // residual exposure left over from partial fills too small to hedge
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		wallets:  make(map[key]*types.Wallet),
		unhedged: make(map[key]decimal.Decimal),
	}
}

// Seed sets a venue/asset's starting balance, typically from GetWallet at
// startup.
func (l *Ledger) Seed(w types.Wallet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{w.Venue, w.Asset}
	cp := w
	l.wallets[k] = &cp
}

// Wallet returns a snapshot of one venue/asset's balance.
func (l *Ledger) Wallet(venue types.VenueID, asset string) (types.Wallet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[key{venue, asset}]
	if !ok {
		return types.Wallet{}, false
	}
	return *w, true
}

// Reserve moves amount from Available to Reserved ahead of submitting an
// order. Returns an error if Available is insufficient.
func (l *Ledger) Reserve(venue types.VenueID, asset string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[key{venue, asset}]
	if !ok {
		return fmt.Errorf("balance: no wallet for %s/%s", venue, asset)
	}
	if w.Available.LessThan(amount) {
		return fmt.Errorf("balance: insufficient %s/%s: have %s, need %s", venue, asset, w.Available, amount)
	}
	w.Available = w.Available.Sub(amount)
	w.Reserved = w.Reserved.Add(amount)
	return nil
}

// Release moves amount back from Reserved to Available — called when an
// order's terminal OrderDoneEvent reports unfilled remaining quantity.
func (l *Ledger) Release(venue types.VenueID, asset string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[key{venue, asset}]
	if !ok {
		return
	}
	w.Reserved = w.Reserved.Sub(amount)
	w.Available = w.Available.Add(amount)
}

// SettleMatch applies a fill: the given asset/amount leaves Reserved
// permanently (the trade executed), and the received asset/amount is
// credited to Available on the same venue. The engine uses it only for
// maker-leg fills, the one kind of leg that went through Reserve; every
// other leg settles through SettleTakerFill.
func (l *Ledger) SettleMatch(venue types.VenueID, spentAsset string, spentAmount decimal.Decimal, receivedAsset string, receivedAmount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w, ok := l.wallets[key{venue, spentAsset}]; ok {
		w.Reserved = w.Reserved.Sub(spentAmount)
	}
	recvKey := key{venue, receivedAsset}
	w, ok := l.wallets[recvKey]
	if !ok {
		w = &types.Wallet{Venue: venue, Asset: receivedAsset}
		l.wallets[recvKey] = w
	}
	w.Available = w.Available.Add(receivedAmount)
}

// SettleTakerFill applies a fill for a leg that never went through Reserve
// (a taker leg, or a liquidate leg submitted as a plain limit order without
// a reservation): the spent asset debits Available directly since there is nothing
// reserved to release, and the received asset credits Available exactly as
// SettleMatch does.
func (l *Ledger) SettleTakerFill(venue types.VenueID, spentAsset string, spentAmount decimal.Decimal, receivedAsset string, receivedAmount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	spendKey := key{venue, spentAsset}
	w, ok := l.wallets[spendKey]
	if !ok {
		w = &types.Wallet{Venue: venue, Asset: spentAsset}
		l.wallets[spendKey] = w
	}
	w.Available = w.Available.Sub(spentAmount)

	recvKey := key{venue, receivedAsset}
	rw, ok := l.wallets[recvKey]
	if !ok {
		rw = &types.Wallet{Venue: venue, Asset: receivedAsset}
		l.wallets[recvKey] = rw
	}
	rw.Available = rw.Available.Add(receivedAmount)
}

// RecordUnhedged adds to the running unhedged-residue tracker for a
// venue/asset — used when a maker fill is too small to clear the taker
// venue's minimum notional and must be carried or liquidated separately.
func (l *Ledger) RecordUnhedged(venue types.VenueID, asset string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{venue, asset}
	l.unhedged[k] = l.unhedged[k].Add(amount)
}

// UnhedgedResidue returns the current tracked residue for a venue/asset.
func (l *Ledger) UnhedgedResidue(venue types.VenueID, asset string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unhedged[key{venue, asset}]
}

// ClearUnhedged zeroes the residue after it has been liquidated or folded
// into a subsequent hedge.
func (l *Ledger) ClearUnhedged(venue types.VenueID, asset string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.unhedged, key{venue, asset})
}
