// Package restex implements a venue adapter for generic centralized
// exchanges that authenticate REST requests with an HMAC-SHA256 signature
// over timestamp+method+path+body and push book/order events over a JSON
// WebSocket feed. This is the adapter shape for venues like Coinbase or
// Kraken: no on-chain signing, just an API key/secret pair.
package restex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"arbengine/internal/venue"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// Credentials are the API key triplet most centralized exchanges issue.
type Credentials struct {
	APIKey     string
	Secret     string // base64-encoded
	Passphrase string
}

// Config configures one restex adapter instance.
type Config struct {
	VenueID     types.VenueID
	RESTBaseURL string
	WSURL       string
	Creds       Credentials
	PriceScale  int32
	QtyScale    int32
	MinNotional decimal.Decimal
	MakerFee    decimal.Decimal
	TakerFee    decimal.Decimal
	RateLimits  RateLimitConfig
}

// RateLimitConfig is the per-category (burst, sustained) limits the venue
// publishes.
type RateLimitConfig struct {
	OrderBurst, OrderRate   float64
	CancelBurst, CancelRate float64
	BookBurst, BookRate     float64
}

var _ venue.Adapter = (*Adapter)(nil)

// Adapter implements venue.Adapter for a generic HMAC-signed exchange.
type Adapter struct {
	cfg Config
	log *slog.Logger

	rest *resty.Client
	rl   *venue.RateLimiter
	feed *venue.WSFeed

	events chan types.CanonicalEvent

	mu       sync.Mutex
	sequence uint64
	ctx      context.Context
}

// New creates an unconnected adapter.
func New(cfg Config, log *slog.Logger) *Adapter {
	a := &Adapter{
		cfg:    cfg,
		log:    log.With("venue", cfg.VenueID),
		rest:   resty.New().SetBaseURL(cfg.RESTBaseURL).SetTimeout(10 * time.Second),
		rl: venue.NewRateLimiter(
			cfg.RateLimits.OrderBurst, cfg.RateLimits.OrderRate,
			cfg.RateLimits.CancelBurst, cfg.RateLimits.CancelRate,
			cfg.RateLimits.BookBurst, cfg.RateLimits.BookRate,
		),
		events: make(chan types.CanonicalEvent, 256),
	}
	return a
}

func (a *Adapter) ID() types.VenueID { return a.cfg.VenueID }

func (a *Adapter) Events() <-chan types.CanonicalEvent { return a.events }

// Connect opens the WebSocket feed, requests an initial snapshot over REST,
// and emits it as the first OrderBookSnapshotEvent.
func (a *Adapter) Connect(ctx context.Context, pair types.Pair) error {
	snapshot, seq, err := a.fetchSnapshot(ctx, pair)
	if err != nil {
		return fmt.Errorf("%s: initial snapshot: %w", a.cfg.VenueID, err)
	}
	a.mu.Lock()
	a.sequence = seq
	a.ctx = ctx
	a.mu.Unlock()
	a.emit(snapshot)

	a.feed = venue.NewWSFeed(a.cfg.WSURL, a.log,
		func(conn *websocket.Conn) error { return a.subscribe(conn, pair) },
		func(data []byte) error { return a.dispatch(pair, data) },
	)
	go a.feed.Run(ctx)
	return nil
}

func (a *Adapter) fetchSnapshot(ctx context.Context, pair types.Pair) (types.CanonicalEvent, uint64, error) {
	if err := a.rl.Book.Wait(ctx); err != nil {
		return nil, 0, err
	}
	var raw struct {
		Sequence uint64         `json:"sequence"`
		Bids     [][2]string    `json:"bids"`
		Asks     [][2]string    `json:"asks"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&raw).
		Get(fmt.Sprintf("/products/%s/book", pair.String()))
	if err != nil {
		return nil, 0, &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return nil, 0, venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}

	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, 0, err
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, 0, err
	}

	ev := types.OrderBookSnapshotEvent{
		VenueID:  a.cfg.VenueID,
		Pair:     pair,
		Sequence: raw.Sequence,
		Bids:     bids,
		Asks:     asks,
		At:       time.Now(),
	}
	return ev, raw.Sequence, nil
}

func parseLevels(raw [][2]string) ([]types.BookLevel, error) {
	out := make([]types.BookLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.Parse(pair[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.Parse(pair[1])
		if err != nil {
			return nil, err
		}
		out = append(out, types.BookLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

func (a *Adapter) subscribe(conn *websocket.Conn, pair types.Pair) error {
	msg := map[string]any{
		"type":     "subscribe",
		"channels": []string{"level2", "user"},
		"product":  pair.String(),
		"api_key":  a.cfg.Creds.APIKey,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// wireMessage is the minimal envelope this adapter expects from the feed; a
// real venue's field names differ, but every venue's feed carries a type tag
// and a payload, so the dispatch shape below generalizes across them.
type wireMessage struct {
	Type         string          `json:"type"`
	Sequence     uint64          `json:"sequence"`
	Side         string          `json:"side"`
	Price        string          `json:"price"`
	Size         string          `json:"size"`
	OrderID      string          `json:"order_id"`
	ClientID     string          `json:"client_id"`
	FillPrice    string          `json:"fill_price"`
	FillSize     string          `json:"fill_size"`
	Reason       string          `json:"reason"`
	Remaining    string          `json:"remaining_size"`
	Channels     []string        `json:"channels"`
}

func (a *Adapter) dispatch(pair types.Pair, data []byte) error {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch msg.Type {
	case "l2update":
		price, err := decimal.Parse(msg.Price)
		if err != nil {
			return err
		}
		qty, err := decimal.Parse(msg.Size)
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.sequence = msg.Sequence
		a.mu.Unlock()
		ev := types.OrderBookUpdateEvent{
			VenueID:  a.cfg.VenueID,
			Pair:     pair,
			Sequence: msg.Sequence,
			Side:     types.Side(msg.Side),
			Price:    price,
			Quantity: qty,
			At:       time.Now(),
		}
		a.emit(ev)

	case "received":
		a.emit(types.OrderReceivedEvent{VenueID: a.cfg.VenueID, ClientID: msg.ClientID, VenueOrderID: msg.OrderID, At: time.Now()})

	case "open":
		a.emit(types.OrderOpenEvent{VenueID: a.cfg.VenueID, ClientID: msg.ClientID, VenueOrderID: msg.OrderID, At: time.Now()})

	case "match":
		price, err := decimal.Parse(msg.FillPrice)
		if err != nil {
			return err
		}
		qty, err := decimal.Parse(msg.FillSize)
		if err != nil {
			return err
		}
		a.emit(types.OrderMatchEvent{
			VenueID: a.cfg.VenueID, ClientID: msg.ClientID, VenueOrderID: msg.OrderID,
			Price: price, Quantity: qty, At: time.Now(),
		})

	case "done":
		remaining := decimal.Zero
		if msg.Remaining != "" {
			r, err := decimal.Parse(msg.Remaining)
			if err == nil {
				remaining = r
			}
		}
		a.emit(types.OrderDoneEvent{
			VenueID: a.cfg.VenueID, ClientID: msg.ClientID, VenueOrderID: msg.OrderID,
			Reason: types.DoneReason(msg.Reason), Remaining: remaining, At: time.Now(),
		})

	case "heartbeat":
		a.emit(types.HeartbeatEvent{VenueID: a.cfg.VenueID, At: time.Now()})

	case "subscriptions":
		a.emit(types.SubscriptionsEvent{VenueID: a.cfg.VenueID, Channels: msg.Channels, At: time.Now()})
	}
	return nil
}

// emit sends ev on the events channel, falling back to ctx cancellation so a
// feed goroutine still decoding a frame during shutdown never blocks
// forever or races a channel close.
func (a *Adapter) emit(ev types.CanonicalEvent) {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		a.events <- ev
		return
	}
	select {
	case a.events <- ev:
	case <-ctx.Done():
	}
}

// LimitOrder signs and submits a resting order.
func (a *Adapter) LimitOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := a.rl.Order.Wait(ctx); err != nil {
		return "", err
	}
	return a.submit(ctx, "limit", req)
}

// MarketOrder signs and submits an immediate order.
func (a *Adapter) MarketOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := a.rl.Order.Wait(ctx); err != nil {
		return "", err
	}
	return a.submit(ctx, "market", req)
}

func (a *Adapter) submit(ctx context.Context, kind string, req types.OrderRequest) (string, error) {
	body := map[string]any{
		"product_id": req.Pair.String(),
		"side":       req.Side,
		"type":       kind,
		"size":       req.Quantity.String(),
		"client_id":  req.ClientID,
	}
	if kind == "limit" {
		body["price"] = req.Price.String()
		for _, f := range req.Flags {
			if f == types.FlagPostOnly {
				body["post_only"] = true
			}
			if f == types.FlagIOC {
				body["time_in_force"] = "IOC"
			}
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	headers, err := a.signHeaders("POST", "/orders", string(payload))
	if err != nil {
		return "", err
	}

	var out struct {
		OrderID string `json:"order_id"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetHeaders(headers).
		SetBody(payload).SetResult(&out).Post("/orders")
	if err != nil {
		return "", &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return "", venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	return out.OrderID, nil
}

// Cancel requests cancellation of a resting order.
func (a *Adapter) Cancel(ctx context.Context, venueOrderID string) error {
	if err := a.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	path := "/orders/" + venueOrderID
	headers, err := a.signHeaders("DELETE", path, "")
	if err != nil {
		return err
	}
	resp, err := a.rest.R().SetContext(ctx).SetHeaders(headers).Delete(path)
	if err != nil {
		return &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	return nil
}

// GetWallet returns the available/reserved balance for one asset.
func (a *Adapter) GetWallet(ctx context.Context, asset string) (types.Wallet, error) {
	path := "/accounts/" + asset
	headers, err := a.signHeaders("GET", path, "")
	if err != nil {
		return types.Wallet{}, err
	}
	var out struct {
		Available string `json:"available"`
		Hold      string `json:"hold"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetHeaders(headers).SetResult(&out).Get(path)
	if err != nil {
		return types.Wallet{}, &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return types.Wallet{}, venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	avail, err := decimal.Parse(out.Available)
	if err != nil {
		return types.Wallet{}, err
	}
	hold, err := decimal.Parse(out.Hold)
	if err != nil {
		return types.Wallet{}, err
	}
	return types.Wallet{Venue: a.cfg.VenueID, Asset: asset, Available: avail, Reserved: hold}, nil
}

// GetProducts returns the precision/fee metadata configured for this
// adapter, seeded from Config; it makes no request to the venue.
func (a *Adapter) GetProducts(ctx context.Context, pair types.Pair) (types.ProductInfo, error) {
	return types.ProductInfo{
		Venue:         a.cfg.VenueID,
		Pair:          pair,
		PriceScale:    a.cfg.PriceScale,
		QuantityScale: a.cfg.QtyScale,
		MinNotional:   a.cfg.MinNotional,
		MakerFeeRate:  a.cfg.MakerFee,
		TakerFeeRate:  a.cfg.TakerFee,
	}, nil
}

// Close force-closes the WebSocket connection so the feed goroutine observes
// shutdown promptly. It does not close the events channel: the feed
// goroutine is still draining in-flight frames when Close returns, and a
// send on a closed channel from that goroutine would panic.
func (a *Adapter) Close() error {
	if a.feed != nil {
		return a.feed.Close()
	}
	return nil
}

// signHeaders computes the L2-style HMAC-SHA256 signature over
// timestamp+method+path[+body], matching the scheme most centralized
// exchanges use for trading endpoints.
func (a *Adapter) signHeaders(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	secretBytes, err := base64.StdEncoding.DecodeString(a.cfg.Creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"CB-ACCESS-KEY":        a.cfg.Creds.APIKey,
		"CB-ACCESS-SIGN":       sig,
		"CB-ACCESS-TIMESTAMP":  ts,
		"CB-ACCESS-PASSPHRASE": a.cfg.Creds.Passphrase,
	}, nil
}

