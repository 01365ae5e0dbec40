// Package chainex implements a venue adapter for on-chain CLOB-style
// exchanges that authenticate with an EIP-712 typed-data signature over an
// ECDSA wallet key rather than an HMAC API secret. Order submission still
// goes over REST and fills still arrive over a WebSocket feed; only the
// signing scheme differs from restex, which is exactly the point of hiding
// it behind the venue.Adapter interface.
package chainex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"arbengine/internal/venue"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// Config configures one chainex adapter instance.
type Config struct {
	VenueID      types.VenueID
	RESTBaseURL  string
	WSURL        string
	PrivateKey   string // hex, 0x-prefixed or not
	ChainID      int64
	PriceScale   int32
	QtyScale     int32
	MinNotional  decimal.Decimal
	MakerFee     decimal.Decimal
	TakerFee     decimal.Decimal
	RateLimits   RateLimitConfig
}

// RateLimitConfig mirrors restex's: every venue's REST surface divides into
// the same three request categories.
type RateLimitConfig struct {
	OrderBurst, OrderRate   float64
	CancelBurst, CancelRate float64
	BookBurst, BookRate     float64
}

var _ venue.Adapter = (*Adapter)(nil)

// Adapter implements venue.Adapter for an EIP-712-signed on-chain venue.
type Adapter struct {
	cfg     Config
	log     *slog.Logger
	rest    *resty.Client
	rl      *venue.RateLimiter
	feed    *venue.WSFeed
	events  chan types.CanonicalEvent

	privateKey *privateKeyHolder
	address    common.Address

	mu  sync.Mutex
	ctx context.Context
}

func New(cfg Config, log *slog.Logger) (*Adapter, error) {
	key, err := loadPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("chainex: %w", err)
	}
	a := &Adapter{
		cfg:  cfg,
		log:  log.With("venue", cfg.VenueID),
		rest: resty.New().SetBaseURL(cfg.RESTBaseURL).SetTimeout(10 * time.Second),
		rl: venue.NewRateLimiter(
			cfg.RateLimits.OrderBurst, cfg.RateLimits.OrderRate,
			cfg.RateLimits.CancelBurst, cfg.RateLimits.CancelRate,
			cfg.RateLimits.BookBurst, cfg.RateLimits.BookRate,
		),
		events:     make(chan types.CanonicalEvent, 256),
		privateKey: key,
		address:    key.address,
	}
	return a, nil
}

func (a *Adapter) ID() types.VenueID                       { return a.cfg.VenueID }
func (a *Adapter) Events() <-chan types.CanonicalEvent     { return a.events }

func (a *Adapter) Connect(ctx context.Context, pair types.Pair) error {
	snapshot, err := a.fetchSnapshot(ctx, pair)
	if err != nil {
		return fmt.Errorf("%s: initial snapshot: %w", a.cfg.VenueID, err)
	}
	a.mu.Lock()
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

func (a *Adapter) fetchSnapshot(ctx context.Context, pair types.Pair) (types.CanonicalEvent, error) {
	if err := a.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var raw struct {
		Sequence uint64      `json:"sequence"`
		Bids     [][2]string `json:"bids"`
		Asks     [][2]string `json:"asks"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&raw).
		Get(fmt.Sprintf("/book/%s", pair.String()))
	if err != nil {
		return nil, &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return nil, venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, err
	}
	return types.OrderBookSnapshotEvent{
		VenueID: a.cfg.VenueID, Pair: pair, Sequence: raw.Sequence,
		Bids: bids, Asks: asks, At: time.Now(),
	}, nil
}

func parseLevels(raw [][2]string) ([]types.BookLevel, error) {
	out := make([]types.BookLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.Parse(lvl[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.Parse(lvl[1])
		if err != nil {
			return nil, err
		}
		out = append(out, types.BookLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

func (a *Adapter) subscribe(conn *websocket.Conn, pair types.Pair) error {
	sig, nonce, timestamp, err := a.signAuth()
	if err != nil {
		return err
	}
	msg := map[string]any{
		"type":      "subscribe",
		"channels":  []string{"book", "user"},
		"product":   pair.String(),
		"address":   a.address.Hex(),
		"signature": sig,
		"nonce":     nonce,
		"timestamp": timestamp,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

type wireMessage struct {
	Type      string   `json:"type"`
	Sequence  uint64   `json:"sequence"`
	Side      string   `json:"side"`
	Price     string   `json:"price"`
	Size      string   `json:"size"`
	OrderID   string   `json:"order_id"`
	ClientID  string   `json:"client_id"`
	FillPrice string   `json:"fill_price"`
	FillSize  string   `json:"fill_size"`
	Reason    string   `json:"reason"`
	Remaining string   `json:"remaining_size"`
	Channels  []string `json:"channels"`
}

func (a *Adapter) dispatch(pair types.Pair, data []byte) error {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch msg.Type {
	case "book_update":
		price, err := decimal.Parse(msg.Price)
		if err != nil {
			return err
		}
		qty, err := decimal.Parse(msg.Size)
		if err != nil {
			return err
		}
		a.emit(types.OrderBookUpdateEvent{
			VenueID: a.cfg.VenueID, Pair: pair, Sequence: msg.Sequence,
			Side: types.Side(msg.Side), Price: price, Quantity: qty, At: time.Now(),
		})

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
			if r, err := decimal.Parse(msg.Remaining); err == nil {
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

// LimitOrder signs an EIP-712 order payload and submits it.
func (a *Adapter) LimitOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := a.rl.Order.Wait(ctx); err != nil {
		return "", err
	}
	return a.submit(ctx, req, false)
}

// MarketOrder signs an EIP-712 order payload for immediate execution.
func (a *Adapter) MarketOrder(ctx context.Context, req types.OrderRequest) (string, error) {
	if err := a.rl.Order.Wait(ctx); err != nil {
		return "", err
	}
	return a.submit(ctx, req, true)
}

func (a *Adapter) submit(ctx context.Context, req types.OrderRequest, market bool) (string, error) {
	salt := strconv.FormatInt(time.Now().UnixNano(), 10)
	order := map[string]any{
		"salt":     salt,
		"maker":    a.address.Hex(),
		"side":     req.Side,
		"price":    req.Price.String(),
		"size":     req.Quantity.String(),
		"market":   req.Pair.String(),
		"clientId": req.ClientID,
	}
	sig, err := a.signOrder(salt, req)
	if err != nil {
		return "", err
	}
	order["signature"] = sig

	payload, err := json.Marshal(order)
	if err != nil {
		return "", err
	}

	var out struct {
		OrderID string `json:"order_id"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetBody(payload).SetResult(&out).Post("/orders")
	if err != nil {
		return "", &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return "", venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	return out.OrderID, nil
}

// Cancel requests cancellation of a resting order. Cancels on-chain venues
// still need the maker's signature to prove ownership of the order.
func (a *Adapter) Cancel(ctx context.Context, venueOrderID string) error {
	if err := a.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	sig, nonce, _, err := a.signAuth()
	if err != nil {
		return err
	}
	resp, err := a.rest.R().SetContext(ctx).
		SetQueryParam("address", a.address.Hex()).
		SetQueryParam("signature", sig).
		SetQueryParam("nonce", strconv.Itoa(nonce)).
		Delete("/orders/" + venueOrderID)
	if err != nil {
		return &venue.TransportError{Err: err}
	}
	if resp.IsError() {
		return venue.ClassifyHTTPError(resp.StatusCode(), resp.String())
	}
	return nil
}

// GetWallet reads the on-chain token balance for asset.
func (a *Adapter) GetWallet(ctx context.Context, asset string) (types.Wallet, error) {
	var out struct {
		Available string `json:"available"`
		Locked    string `json:"locked"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&out).
		Get(fmt.Sprintf("/wallet/%s/%s", a.address.Hex(), asset))
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
	locked, err := decimal.Parse(out.Locked)
	if err != nil {
		return types.Wallet{}, err
	}
	return types.Wallet{Venue: a.cfg.VenueID, Asset: asset, Available: avail, Reserved: locked}, nil
}

// GetProducts returns the precision/fee metadata configured for this
// adapter, seeded from Config.
func (a *Adapter) GetProducts(ctx context.Context, pair types.Pair) (types.ProductInfo, error) {
	return types.ProductInfo{
		Venue: a.cfg.VenueID, Pair: pair,
		PriceScale: a.cfg.PriceScale, QuantityScale: a.cfg.QtyScale,
		MinNotional:  a.cfg.MinNotional,
		MakerFeeRate: a.cfg.MakerFee, TakerFeeRate: a.cfg.TakerFee,
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

// signAuth produces an EIP-712 "ClobAuth" signature proving wallet control,
// used both for the WS subscribe handshake and for signature-authenticated
// cancels.
func (a *Adapter) signAuth() (sig string, nonce int, timestamp string, err error) {
	a.mu.Lock()
	nonce = int(time.Now().UnixNano() % 1_000_000)
	a.mu.Unlock()
	timestamp = strconv.FormatInt(time.Now().Unix(), 10)

	domain := &apitypes.TypedDataDomain{
		Name:    "ClobAuthDomain",
		Version: "1",
		ChainId: (*ethmath.HexOrDecimal256)(big.NewInt(a.cfg.ChainID)),
	}
	typesDef := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
		},
		"ClobAuth": {
			{Name: "address", Type: "address"},
			{Name: "timestamp", Type: "string"},
			{Name: "nonce", Type: "uint256"},
			{Name: "message", Type: "string"},
		},
	}
	message := apitypes.TypedDataMessage{
		"address":   a.address.Hex(),
		"timestamp": timestamp,
		"nonce":     fmt.Sprintf("%d", nonce),
		"message":   "This message attests that I control the given wallet",
	}

	sigBytes, err := a.signTypedData(domain, typesDef, message, "ClobAuth")
	if err != nil {
		return "", 0, "", err
	}
	return "0x" + common.Bytes2Hex(sigBytes), nonce, timestamp, nil
}

// signOrder produces an EIP-712 "Order" signature over the order's economic
// terms, proving the maker authorized exactly this trade.
func (a *Adapter) signOrder(salt string, req types.OrderRequest) (string, error) {
	domain := &apitypes.TypedDataDomain{
		Name:    "ExchangeOrder",
		Version: "1",
		ChainId: (*ethmath.HexOrDecimal256)(big.NewInt(a.cfg.ChainID)),
	}
	typesDef := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
		},
		"Order": {
			{Name: "maker", Type: "address"},
			{Name: "side", Type: "string"},
			{Name: "price", Type: "string"},
			{Name: "size", Type: "string"},
			{Name: "market", Type: "string"},
			{Name: "salt", Type: "string"},
		},
	}
	message := apitypes.TypedDataMessage{
		"maker":  a.address.Hex(),
		"side":   string(req.Side),
		"price":  req.Price.String(),
		"size":   req.Quantity.String(),
		"market": req.Pair.String(),
		"salt":   salt,
	}
	sigBytes, err := a.signTypedData(domain, typesDef, message, "Order")
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(sigBytes), nil
}

func (a *Adapter) signTypedData(domain *apitypes.TypedDataDomain, typesDef apitypes.Types, message apitypes.TypedDataMessage, primaryType string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, a.privateKey.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}
