package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// fakeAdapter is a venue.Adapter test double. Connect is a no-op; tests push
// canonical events directly onto Events() to drive the engine's state
// machine, and inspect LimitOrder/MarketOrder/Cancel calls to assert on the
// commands the engine issued.
type fakeAdapter struct {
	id      types.VenueID
	events  chan types.CanonicalEvent
	product types.ProductInfo
	wallets map[string]types.Wallet

	mu           sync.Mutex
	limitCalls   []types.OrderRequest
	marketCalls  []types.OrderRequest
	cancelCalls  []string
	limitErr     error
	marketErr    error
	cancelErr    error
	nextOrderNum int
	connectCalls int
}

func newFakeAdapter(id types.VenueID, product types.ProductInfo, base, quote string, baseBal, quoteBal string) *fakeAdapter {
	return &fakeAdapter{
		id:      id,
		events:  make(chan types.CanonicalEvent, 64),
		product: product,
		wallets: map[string]types.Wallet{
			base:  {Venue: id, Asset: base, Available: decimal.MustParse(baseBal)},
			quote: {Venue: id, Asset: quote, Available: decimal.MustParse(quoteBal)},
		},
	}
}

func (f *fakeAdapter) ID() types.VenueID { return f.id }

func (f *fakeAdapter) Connect(ctx context.Context, pair types.Pair) error {
	f.mu.Lock()
	f.connectCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Events() <-chan types.CanonicalEvent { return f.events }

func (f *fakeAdapter) LimitOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitCalls = append(f.limitCalls, req)
	if f.limitErr != nil {
		return "", f.limitErr
	}
	f.nextOrderNum++
	return fmt.Sprintf("%s-order-%d", f.id, f.nextOrderNum), nil
}

func (f *fakeAdapter) MarketOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCalls = append(f.marketCalls, req)
	if f.marketErr != nil {
		return "", f.marketErr
	}
	f.nextOrderNum++
	return fmt.Sprintf("%s-order-%d", f.id, f.nextOrderNum), nil
}

func (f *fakeAdapter) Cancel(ctx context.Context, venueOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, venueOrderID)
	return f.cancelErr
}

func (f *fakeAdapter) GetWallet(ctx context.Context, asset string) (types.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallets[asset], nil
}

func (f *fakeAdapter) GetProducts(ctx context.Context, pair types.Pair) (types.ProductInfo, error) {
	return f.product, nil
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) numLimitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.limitCalls)
}

func (f *fakeAdapter) numMarketCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marketCalls)
}

func (f *fakeAdapter) numCancelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelCalls)
}

func (f *fakeAdapter) lastLimitCall() types.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limitCalls[len(f.limitCalls)-1]
}

func (f *fakeAdapter) lastMarketCall() types.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marketCalls[len(f.marketCalls)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func snapshot(venueID types.VenueID, pair types.Pair, bidPrice, bidQty, askPrice, askQty string) types.OrderBookSnapshotEvent {
	return types.OrderBookSnapshotEvent{
		VenueID: venueID,
		Pair:    pair,
		Bids:    []types.BookLevel{{Price: decimal.MustParse(bidPrice), Quantity: decimal.MustParse(bidQty)}},
		Asks:    []types.BookLevel{{Price: decimal.MustParse(askPrice), Quantity: decimal.MustParse(askQty)}},
		At:      time.Now(),
	}
}
