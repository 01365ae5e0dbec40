// Package engine is the central orchestrator of the arbitrage bot.
//
// It wires together all subsystems:
//
//  1. Each configured venue.Adapter connects and streams canonical events.
//  2. The multiplexer fans every adapter's events into one ordered stream.
//  3. On every book update the engine re-scores all six strategy shapes
//     across every pair of venues and drives the resulting quote through
//     WAIT_FOR_ARB -> WAIT_FOR_MATCH -> CANCEL_MAKE -> WAIT_FOR_ARB.
//  4. Balances are reconciled through the ledger as fills are observed;
//     completed cycles are appended to the trade log.
//
// Lifecycle: New() -> Start() -> [runs until ctx cancelled] -> Stop()
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"arbengine/internal/balance"
	"arbengine/internal/book"
	"arbengine/internal/config"
	"arbengine/internal/multiplex"
	"arbengine/internal/risk"
	"arbengine/internal/strategy"
	"arbengine/internal/tradelog"
	"arbengine/internal/venue"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// cycleState is the engine's position in the per-opportunity state machine
// described by spec.md §4.5.
type cycleState int

const (
	stateWaitForArb cycleState = iota
	stateWaitForMatch
	stateCancelMake
)

// legRole distinguishes the resting order of a maker/taker shape from its
// hedge leg(s), or either leg of a taker/taker shape.
type legRole int

const (
	legMaker legRole = iota
	legTaker
	legLiquidate
)

// orderLeg is the engine's local record of one order placed as part of a
// cycle. Strategies and the engine hold VenueID/ClientID, never a pointer
// into a venue adapter's internal state.
type orderLeg struct {
	role      legRole
	venue     types.VenueID
	clientID  string
	venueID   string // venue-assigned order id, set once OrderReceived arrives
	side      types.Side
	price     decimal.Decimal
	quantity  decimal.Decimal
	filled    decimal.Decimal
	received  bool
	done      bool
}

// cycle is one in-flight arbitrage attempt. maker is nil for a taker/taker
// shape (S5/S6), which has no resting leg.
type cycle struct {
	quote      strategy.Quote
	state      cycleState
	maker      *orderLeg
	takers     []*orderLeg
	makerTotal decimal.Decimal
	takerTotal decimal.Decimal
}

func (c *cycle) legByClientID(id string) *orderLeg {
	if c.maker != nil && c.maker.clientID == id {
		return c.maker
	}
	for _, t := range c.takers {
		if t.clientID == id {
			return t
		}
	}
	return nil
}

func (c *cycle) allDone() bool {
	if c.maker != nil && !c.maker.done {
		return false
	}
	for _, t := range c.takers {
		if !t.done {
			return false
		}
	}
	return true
}

// Engine orchestrates all components of the arbitrage system.
type Engine struct {
	cfg      *config.Config
	pair     types.Pair
	adapters map[types.VenueID]venue.Adapter
	products map[types.VenueID]types.ProductInfo

	books   map[types.VenueID]*book.Book
	booksMu sync.Mutex

	ledger   *balance.Ledger
	riskMgr  *risk.Manager
	tradeLog *tradelog.Log
	mux      *multiplex.Multiplexer
	logger   *slog.Logger

	maxQuantity decimal.Decimal
	clientSeq   atomic.Uint64

	mu    sync.Mutex
	cur   *cycle // nil when idle in WAIT_FOR_ARB

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all engine components. It connects to no venues yet; call
// Start to begin streaming and trading.
func New(ctx context.Context, cfg *config.Config, adapters map[types.VenueID]venue.Adapter, logger *slog.Logger) (*Engine, error) {
	pair := cfg.Engine.Pair()

	maxQty, err := decimal.Parse(cfg.Engine.MaxQuantity)
	if err != nil {
		return nil, fmt.Errorf("engine.max_quantity: %w", err)
	}
	maxResidue, err := decimal.Parse(cfg.Risk.MaxUnhedgedResidue)
	if err != nil {
		return nil, fmt.Errorf("risk.max_unhedged_residue: %w", err)
	}

	tl, err := tradelog.Open(cfg.Store.TradeLogPath)
	if err != nil {
		return nil, err
	}

	products := make(map[types.VenueID]types.ProductInfo, len(adapters))
	ledger := balance.New()
	for id, a := range adapters {
		info, err := a.GetProducts(ctx, pair)
		if err != nil {
			tl.Close()
			return nil, fmt.Errorf("%s: get products: %w", id, err)
		}
		products[id] = info

		for _, asset := range []string{pair.Base, pair.Quote} {
			w, err := a.GetWallet(ctx, asset)
			if err != nil {
				tl.Close()
				return nil, fmt.Errorf("%s: get wallet %s: %w", id, asset, err)
			}
			ledger.Seed(w)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	return &Engine{
		cfg:         cfg,
		pair:        pair,
		adapters:    adapters,
		products:    products,
		books:       make(map[types.VenueID]*book.Book),
		ledger:      ledger,
		riskMgr:     risk.NewManager(maxResidue, logger),
		tradeLog:    tl,
		mux:         multiplex.New(256, cfg.Engine.StallTimeout, logger),
		logger:      logger.With("component", "engine"),
		maxQuantity: maxQty,
		ctx:         runCtx,
		cancel:      cancel,
	}, nil
}

// Start connects every venue adapter and launches the event loop.
func (e *Engine) Start() error {
	for id, a := range e.adapters {
		if err := a.Connect(e.ctx, e.pair); err != nil {
			return fmt.Errorf("%s: connect: %w", id, err)
		}
		e.mux.Add(e.ctx, id, a.Events())
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()

	return nil
}

// Stop cancels every background goroutine, waits for them to exit, and
// closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	e.wg.Wait()
	e.mux.Wait()

	for id, a := range e.adapters {
		if err := a.Close(); err != nil {
			e.logger.Error("close adapter", "venue", id, "error", err)
		}
	}
	if err := e.tradeLog.Close(); err != nil {
		e.logger.Error("close trade log", "error", err)
	}
	e.logger.Info("shutdown complete")
}

func (e *Engine) run() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-e.mux.Out():
			if !ok {
				return
			}
			e.handleEvent(ev)
		case err := <-e.mux.Errs():
			e.logger.Error("multiplexer stalled, stopping the run", "error", err)
			e.cancel()
		case kill := <-e.riskMgr.KillCh():
			e.handleKill(kill)
		}
	}
}

func (e *Engine) handleEvent(ev types.CanonicalEvent) {
	switch v := ev.(type) {
	case types.OrderBookSnapshotEvent:
		e.applySnapshot(v)
		e.onBookChanged()
	case types.OrderBookUpdateEvent:
		e.applyUpdate(v)
	case types.OrderReceivedEvent:
		e.handleReceived(v)
	case types.OrderOpenEvent:
		e.logger.Debug("order open", "venue", v.VenueID, "order", v.VenueOrderID)
	case types.OrderMatchEvent:
		e.handleMatch(v)
	case types.OrderDoneEvent:
		e.handleDone(v)
	case types.HeartbeatEvent:
	case types.SubscriptionsEvent:
		e.logger.Debug("subscriptions confirmed", "venue", v.VenueID, "channels", v.Channels)
	}
}

func (e *Engine) applySnapshot(ev types.OrderBookSnapshotEvent) {
	e.booksMu.Lock()
	e.books[ev.VenueID] = book.NewFromSnapshot(ev.VenueID, ev.Pair, ev.Sequence, ev.Bids, ev.Asks)
	e.booksMu.Unlock()
}

func (e *Engine) applyUpdate(ev types.OrderBookUpdateEvent) {
	e.booksMu.Lock()
	b, ok := e.books[ev.VenueID]
	e.booksMu.Unlock()
	if !ok {
		return
	}

	if err := b.ApplyUpdate(ev.Sequence, ev.Side, ev.Price, ev.Quantity); err != nil {
		e.logger.Warn("sequence gap, discarding book and resubscribing", "venue", ev.VenueID, "error", err)
		e.booksMu.Lock()
		delete(e.books, ev.VenueID)
		e.booksMu.Unlock()

		if a, ok := e.adapters[ev.VenueID]; ok {
			go func() {
				if err := a.Connect(e.ctx, e.pair); err != nil && e.ctx.Err() == nil {
					e.logger.Error("resnapshot failed", "venue", ev.VenueID, "error", err)
				}
			}()
		}
		return
	}

	e.onBookChanged()
}

// onBookChanged re-scores every strategy shape across every pair of venues.
// In WAIT_FOR_ARB this may start a new cycle. In WAIT_FOR_MATCH it may
// trigger a cancel of the resting maker leg per spec.md §4.5.
func (e *Engine) onBookChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.cur == nil:
		e.tryStartCycleLocked()
	case e.cur.state == stateWaitForMatch && e.cur.maker != nil:
		e.maybeCancelLocked()
	}
}

func (e *Engine) tryStartCycleLocked() {
	quotes := e.evaluateAllPairsLocked()
	quote, ok := strategy.Select(quotes)
	if !ok {
		return
	}
	e.startCycleLocked(quote)
}

// evaluateAllPairsLocked scores all six shapes across every unordered pair
// of configured venues and returns every quote Evaluate produced, including
// those with non-positive profit (Select skips those).
func (e *Engine) evaluateAllPairsLocked() []strategy.Quote {
	ids := make([]types.VenueID, 0, len(e.adapters))
	for id := range e.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	e.booksMu.Lock()
	defer e.booksMu.Unlock()

	var all []strategy.Quote
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if !e.riskMgr.IsHealthy(a) || !e.riskMgr.IsHealthy(b) {
				continue
			}
			bookA, okA := e.books[a]
			bookB, okB := e.books[b]
			if !okA || !okB {
				continue
			}
			in := strategy.Input{
				VenueA: a, VenueB: b,
				BookA: bookA, BookB: bookB,
				ProductA: e.products[a], ProductB: e.products[b],
				MaxQuantity: e.maxQuantity,
				AvailBaseA:  e.availableLocked(a, e.pair.Base),
				AvailQuoteA: e.availableLocked(a, e.pair.Quote),
				AvailBaseB:  e.availableLocked(b, e.pair.Base),
				AvailQuoteB: e.availableLocked(b, e.pair.Quote),
			}
			all = append(all, strategy.Evaluate(in)...)
		}
	}
	return all
}

func (e *Engine) startCycleLocked(quote strategy.Quote) {
	clientID := e.newClientID(quote.MakerVenue)
	c := &cycle{quote: quote, state: stateWaitForMatch}

	if quote.Shape.IsMakerTaker() {
		spendAsset, spendAmount := reserveLeg(e.pair, quote.MakerSide, quote.MakerPrice, quote.Quantity)
		if err := e.ledger.Reserve(quote.MakerVenue, spendAsset, spendAmount); err != nil {
			e.logger.Warn("cannot reserve maker funds, skipping quote", "shape", quote.Shape, "error", err)
			return
		}

		c.maker = &orderLeg{
			role: legMaker, venue: quote.MakerVenue, clientID: clientID,
			side: quote.MakerSide, price: quote.MakerPrice, quantity: quote.Quantity,
		}
		e.cur = c

		a := e.adapters[quote.MakerVenue]
		req := types.OrderRequest{
			Venue: quote.MakerVenue, Pair: e.pair, Side: quote.MakerSide,
			Type: types.OrderTypeLimit, Flags: []types.OrderFlag{types.FlagPostOnly},
			Price: quote.MakerPrice, Quantity: quote.Quantity, ClientID: clientID,
		}
		go func() {
			venueOrderID, err := a.LimitOrder(e.ctx, req)
			e.onMakerSubmitResult(clientID, venueOrderID, err)
		}()
		return
	}

	// Taker/taker (S5/S6): no resting leg, both legs settle directly on
	// match rather than going through the reserve/release dance.
	firstLeg := &orderLeg{role: legTaker, venue: quote.MakerVenue, clientID: clientID, side: quote.MakerSide, price: quote.MakerPrice, quantity: quote.Quantity}
	secondClientID := e.newClientID(quote.TakerVenue)
	secondLeg := &orderLeg{role: legTaker, venue: quote.TakerVenue, clientID: secondClientID, side: quote.TakerSide, price: quote.TakerPrice, quantity: quote.Quantity}
	c.takers = []*orderLeg{firstLeg, secondLeg}
	e.cur = c

	e.submitMarketLeg(firstLeg)
	e.submitMarketLeg(secondLeg)
}

func (e *Engine) submitMarketLeg(leg *orderLeg) {
	a := e.adapters[leg.venue]
	req := types.OrderRequest{
		Venue: leg.venue, Pair: e.pair, Side: leg.side,
		Type: types.OrderTypeMarket, Quantity: leg.quantity, ClientID: leg.clientID,
	}
	go func() {
		venueOrderID, err := a.MarketOrder(e.ctx, req)
		if err != nil {
			e.logger.Error("taker leg submit failed", "venue", leg.venue, "error", err)
			e.riskMgr.ReportError(leg.venue, err)
			return
		}
		e.mu.Lock()
		leg.venueID = venueOrderID
		e.mu.Unlock()
	}()
}

// onMakerSubmitResult handles the outcome of submitting the resting maker
// order: success moves to WAIT_FOR_MATCH (already set), PostOnlyRejected
// reverts to WAIT_FOR_ARB per spec.md §4.5.
func (e *Engine) onMakerSubmitResult(clientID, venueOrderID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cur
	if c == nil || c.maker == nil || c.maker.clientID != clientID {
		return
	}

	if err != nil {
		e.logger.Warn("maker order rejected", "client_id", clientID, "error", err)
		spendAsset, spendAmount := reserveLeg(e.pair, c.maker.side, c.maker.price, c.maker.quantity)
		e.ledger.Release(c.maker.venue, spendAsset, spendAmount)
		// PostOnlyRejected and other per-request errors leave the venue
		// healthy and just return to WAIT_FOR_ARB; ReportError only halts
		// the venue for Protocol/Authentication errors.
		e.riskMgr.ReportError(c.maker.venue, err)
		e.cur = nil
		return
	}
	c.maker.venueID = venueOrderID
}

func (e *Engine) handleReceived(ev types.OrderReceivedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return
	}
	if leg := e.cur.legByClientID(ev.ClientID); leg != nil {
		leg.received = true
		leg.venueID = ev.VenueOrderID
	}
}

// maybeCancelLocked requests cancellation of the resting maker leg if it is
// no longer at the top of book, if the cycle's own quote is no longer
// viable, or if taker-side depth has fallen below the resting size.
func (e *Engine) maybeCancelLocked() {
	c := e.cur
	if c.maker == nil || c.maker.venueID == "" {
		return
	}

	stillViable := e.quoteStillViableLocked(c.quote)
	if stillViable {
		e.booksMu.Lock()
		makerBook, takerBook := e.books[c.maker.venue], e.books[c.quote.TakerVenue]
		e.booksMu.Unlock()
		top, hasTop := makerBook.BestBid()
		cover, hasCover := takerBook.BestBid()
		outbid := hasTop && top.Price.GreaterThan(c.maker.price)
		if c.maker.side == types.Sell {
			top, hasTop = makerBook.BestAsk()
			cover, hasCover = takerBook.BestAsk()
			outbid = hasTop && top.Price.LessThan(c.maker.price)
		}
		unfilled := c.maker.quantity.Sub(c.maker.filled)
		stillViable = !outbid && hasCover && !cover.Quantity.LessThan(unfilled)
	}
	if stillViable {
		return
	}

	a := e.adapters[c.maker.venue]
	venueOrderID := c.maker.venueID
	go func() {
		err := a.Cancel(e.ctx, venueOrderID)
		var unknownOrder *venue.UnknownOrderError
		if err != nil && !errors.As(err, &unknownOrder) {
			e.logger.Warn("cancel request failed", "venue", c.maker.venue, "order", venueOrderID, "error", err)
			return
		}
		e.mu.Lock()
		if e.cur == c {
			e.cur.state = stateCancelMake
		}
		e.mu.Unlock()
	}()
}

func (e *Engine) quoteStillViableLocked(q strategy.Quote) bool {
	if !e.riskMgr.IsHealthy(q.MakerVenue) || !e.riskMgr.IsHealthy(q.TakerVenue) {
		return false
	}

	e.booksMu.Lock()
	bookA, okA := e.books[q.MakerVenue]
	bookB, okB := e.books[q.TakerVenue]
	e.booksMu.Unlock()
	if !okA || !okB {
		return false
	}

	in := strategy.Input{
		VenueA: q.MakerVenue, VenueB: q.TakerVenue,
		BookA: bookA, BookB: bookB,
		ProductA: e.products[q.MakerVenue], ProductB: e.products[q.TakerVenue],
		MaxQuantity: e.maxQuantity,
		AvailBaseA:  e.availableLocked(q.MakerVenue, e.pair.Base),
		AvailQuoteA: e.availableLocked(q.MakerVenue, e.pair.Quote),
		AvailBaseB:  e.availableLocked(q.TakerVenue, e.pair.Base),
		AvailQuoteB: e.availableLocked(q.TakerVenue, e.pair.Quote),
	}
	for _, candidate := range strategy.Evaluate(in) {
		if candidate.Shape == q.Shape && candidate.Profit.IsPositive() {
			return true
		}
	}
	return false
}

func (e *Engine) handleMatch(ev types.OrderMatchEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cur
	if c == nil {
		return
	}
	leg := c.legByClientID(ev.ClientID)
	if leg == nil {
		return
	}
	leg.filled = leg.filled.Add(ev.Quantity)

	spendAsset, spendAmount := reserveLeg(e.pair, leg.side, ev.Price, ev.Quantity)
	receiveAsset, receiveAmount := receiveLeg(e.pair, leg.side, ev.Price, ev.Quantity)
	if leg.role == legMaker {
		// only a maker leg went through Reserve, so only a maker fill
		// releases Reserved; taker and liquidate legs never reserved
		// anything and must debit Available directly.
		e.ledger.SettleMatch(leg.venue, spendAsset, spendAmount, receiveAsset, receiveAmount)
	} else {
		e.ledger.SettleTakerFill(leg.venue, spendAsset, spendAmount, receiveAsset, receiveAmount)
	}

	notional := ev.Quantity.Mul(ev.Price)

	switch {
	case leg.role == legMaker:
		c.makerTotal = c.makerTotal.Add(notional)
		e.afterMakerFillLocked(c, leg, ev.Quantity, ev.Price)
	case c.maker == nil && len(c.takers) > 0 && leg == c.takers[0]:
		// taker/taker shape: the first (buy) leg stands in for the maker leg
		c.makerTotal = c.makerTotal.Add(notional)
	default:
		c.takerTotal = c.takerTotal.Add(notional)
	}
}

// afterMakerFillLocked applies spec.md §4.5's WAIT_FOR_MATCH fill rule: hedge
// on the taker venue if the fill clears its min_notional; liquidate on the
// maker venue if it clears the maker's own (inflated) min_notional but not
// the taker's; otherwise record unhedged residue.
func (e *Engine) afterMakerFillLocked(c *cycle, maker *orderLeg, fillQty, fillPrice decimal.Decimal) {
	takerProduct := e.products[c.quote.TakerVenue]
	makerProduct := e.products[c.quote.MakerVenue]
	notional := fillQty.Mul(fillPrice)

	if notional.GreaterOrEqual(takerProduct.MinNotional) {
		clientID := e.newClientID(c.quote.TakerVenue)
		leg := &orderLeg{role: legTaker, venue: c.quote.TakerVenue, clientID: clientID, side: c.quote.TakerSide, price: c.quote.TakerPrice, quantity: fillQty}
		c.takers = append(c.takers, leg)
		e.submitMarketLeg(leg)
		return
	}

	liquidateThreshold := makerProduct.MinNotional.Mul(decimal.MustParse("1.06"))
	if notional.GreaterOrEqual(liquidateThreshold) {
		spendAsset, spendAmount := reserveLeg(e.pair, maker.side, fillPrice, fillQty)
		receiveAsset, receiveAmount := receiveLeg(e.pair, maker.side, fillPrice, fillQty)
		// reverse the balance delta this fill just applied
		e.ledger.SettleTakerFill(c.quote.MakerVenue, receiveAsset, receiveAmount, spendAsset, spendAmount)

		liquidateSide := maker.side.Opposite()
		liquidatePrice := fillPrice.Mul(decimal.MustParse("0.95"))
		if maker.side == types.Sell {
			liquidatePrice = fillPrice.Mul(decimal.MustParse("1.05"))
		}

		clientID := e.newClientID(c.quote.MakerVenue)
		leg := &orderLeg{role: legLiquidate, venue: c.quote.MakerVenue, clientID: clientID, side: liquidateSide, price: liquidatePrice, quantity: fillQty}
		c.takers = append(c.takers, leg)

		a := e.adapters[c.quote.MakerVenue]
		req := types.OrderRequest{Venue: c.quote.MakerVenue, Pair: e.pair, Side: liquidateSide, Type: types.OrderTypeLimit, Price: liquidatePrice, Quantity: fillQty, ClientID: clientID}
		go func() {
			venueOrderID, err := a.LimitOrder(e.ctx, req)
			if err != nil {
				e.logger.Error("liquidate-on-maker submit failed", "venue", c.quote.MakerVenue, "error", err)
				return
			}
			e.mu.Lock()
			leg.venueID = venueOrderID
			e.mu.Unlock()
		}()
		return
	}

	e.ledger.RecordUnhedged(c.quote.MakerVenue, e.pair.Base, fillQty)
	e.riskMgr.RecordUnhedged(c.quote.MakerVenue, fillQty)
	e.logger.Warn("fill too small to hedge or liquidate, recording unhedged residue",
		"venue", c.quote.MakerVenue, "quantity", fillQty, "notional", notional)
}

func (e *Engine) handleDone(ev types.OrderDoneEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cur
	if c == nil {
		return
	}
	leg := c.legByClientID(ev.ClientID)
	if leg == nil {
		return
	}
	leg.done = true

	if leg.role == legMaker {
		if !ev.Remaining.IsZero() {
			spendAsset, spendAmount := reserveLeg(e.pair, leg.side, leg.price, ev.Remaining)
			e.ledger.Release(leg.venue, spendAsset, spendAmount)
		}
		c.state = stateCancelMake
	}

	if c.allDone() {
		e.completeCycleLocked(c)
	}
}

func (e *Engine) completeCycleLocked(c *cycle) {
	var profit decimal.Decimal
	if c.quote.MakerSide == types.Buy {
		profit = c.takerTotal.Sub(c.makerTotal)
	} else {
		profit = c.makerTotal.Sub(c.takerTotal)
	}

	entry := tradelog.Entry{
		At:         time.Now(),
		Shape:      c.quote.Shape,
		MakerVenue: c.quote.MakerVenue,
		MakerSide:  c.quote.MakerSide,
		TakerVenue: c.quote.TakerVenue,
		TakerSide:  c.quote.TakerSide,
		MakerTotal: c.makerTotal,
		TakerTotal: c.takerTotal,
		Profit:     profit,
	}
	if err := e.tradeLog.Append(entry); err != nil {
		e.logger.Error("append trade log", "error", err)
	}

	e.cur = nil
}

func (e *Engine) handleKill(kill risk.KillSignal) {
	e.logger.Error("kill signal received", "venue", kill.Venue, "reason", kill.Reason, "fatal", kill.Fatal)

	e.mu.Lock()
	c := e.cur
	if c != nil && (c.quote.MakerVenue == kill.Venue || c.quote.TakerVenue == kill.Venue) && c.maker != nil && c.maker.venueID != "" {
		a := e.adapters[c.maker.venue]
		venueOrderID := c.maker.venueID
		go func() {
			if err := a.Cancel(e.ctx, venueOrderID); err != nil {
				e.logger.Error("cancel on kill failed", "venue", c.maker.venue, "error", err)
			}
		}()
	}
	e.mu.Unlock()

	if kill.Fatal {
		e.cancel()
	}
}

// availableLocked returns venue's current available (unreserved) balance of
// asset, or zero if the ledger has never seen that venue/asset pair.
func (e *Engine) availableLocked(venueID types.VenueID, asset string) decimal.Decimal {
	w, ok := e.ledger.Wallet(venueID, asset)
	if !ok {
		return decimal.Zero
	}
	return w.Available
}

func (e *Engine) newClientID(venueID types.VenueID) string {
	n := e.clientSeq.Add(1)
	return fmt.Sprintf("%s-%d", venueID, n)
}

// reserveLeg returns the asset and amount that must be reserved (or
// released) to place/undo one order leg: a buy reserves quote notional, a
// sell reserves base quantity.
func reserveLeg(pair types.Pair, side types.Side, price, quantity decimal.Decimal) (asset string, amount decimal.Decimal) {
	if side == types.Buy {
		return pair.Quote, quantity.Mul(price)
	}
	return pair.Base, quantity
}

// receiveLeg returns the asset and amount credited once a leg fills: a buy
// receives base quantity, a sell receives quote notional.
func receiveLeg(pair types.Pair, side types.Side, price, quantity decimal.Decimal) (asset string, amount decimal.Decimal) {
	if side == types.Buy {
		return pair.Base, quantity
	}
	return pair.Quote, quantity.Mul(price)
}
