package binance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

const (
	Name = "Binance"

	mainnetURL    = "https://api.binance.com"
	testnetURL    = "https://testnet.binance.vision"
	mainnetStream = "wss://stream.binance.com:9443"
	testnetStream = "wss://testnet.binance.vision"

	defaultDepth   = 20
	defaultHistory = 50
)

// Client reads public market data from the Binance REST API. Account and
// order endpoints are not signed; they are answered from local state.
type Client struct {
	cfg       exchange.Config
	rest      *gobinance.Client
	streamURL string
	dialer    *websocket.Dialer
	limiter   *exchange.RateLimiter
	orders    *exchange.OrderStore
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	connected bool
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithRateLimiter(rl *exchange.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(cfg exchange.Config, opts ...Option) *Client {
	baseURL, streamURL := mainnetURL, mainnetStream
	if cfg.Testnet {
		baseURL, streamURL = testnetURL, testnetStream
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.StreamURL != "" {
		streamURL = cfg.StreamURL
	}

	rest := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	rest.BaseURL = baseURL

	c := &Client{
		cfg:       cfg,
		rest:      rest,
		streamURL: streamURL,
		dialer:    &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		orders:    exchange.NewOrderStore(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = exchange.NewRateLimiter(cfg.RateLimit)
	}
	c.logger = c.logger.With(slog.String("exchange", Name))
	return c
}

func (c *Client) Name() string {
	return Name
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.limiter.Wait(ctx, "ping"); err != nil {
		return err
	}
	if err := c.rest.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected", slog.String("base_url", c.rest.BaseURL))
	return nil
}

func (c *Client) Disconnect(_ context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.logger.Info("disconnected")
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetMarketData issues one /ticker/24hr request per symbol; the first
// failure aborts the call.
func (c *Client) GetMarketData(ctx context.Context, symbols []string) ([]exchange.MarketData, error) {
	if err := c.ensureConnected("ticker"); err != nil {
		return nil, err
	}

	out := make([]exchange.MarketData, 0, len(symbols))
	for _, s := range symbols {
		symbol := exchange.FormatSymbol(s)
		if err := c.limiter.Wait(ctx, "ticker/24hr"); err != nil {
			return nil, err
		}

		stats, err := c.rest.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance ticker %s: %w", symbol, err)
		}
		for _, st := range stats {
			out = append(out, exchange.MarketData{
				Exchange:  Name,
				Symbol:    st.Symbol,
				Price:     parseFloat(st.LastPrice),
				Volume24h: parseFloat(st.Volume),
				Change24h: parseFloat(st.PriceChangePercent),
				High24h:   parseFloat(st.HighPrice),
				Low24h:    parseFloat(st.LowPrice),
				Timestamp: c.timestamp(st.CloseTime),
			})
		}
	}
	return out, nil
}

func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (exchange.OrderBook, error) {
	if err := c.ensureConnected("depth"); err != nil {
		return exchange.OrderBook{}, err
	}
	if limit <= 0 {
		limit = defaultDepth
	}
	symbol = exchange.FormatSymbol(symbol)
	if err := c.limiter.Wait(ctx, "depth"); err != nil {
		return exchange.OrderBook{}, err
	}

	res, err := c.rest.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return exchange.OrderBook{}, fmt.Errorf("binance depth %s: %w", symbol, err)
	}

	bids := make([]exchange.OrderBookEntry, 0, len(res.Bids))
	for _, b := range res.Bids {
		bids = append(bids, exchange.OrderBookEntry{Price: parseFloat(b.Price), Quantity: parseFloat(b.Quantity)})
	}
	asks := make([]exchange.OrderBookEntry, 0, len(res.Asks))
	for _, a := range res.Asks {
		asks = append(asks, exchange.OrderBookEntry{Price: parseFloat(a.Price), Quantity: parseFloat(a.Quantity)})
	}

	return exchange.BuildOrderBook(Name, symbol, bids, asks, c.now()), nil
}

// GetBalances returns a fixed demo account.
func (c *Client) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	if err := c.ready(ctx, "account"); err != nil {
		return nil, err
	}

	return []exchange.Balance{
		exchange.NewBalance("BTC", 0.5, 0.1),
		exchange.NewBalance("ETH", 5.2, 0.8),
		exchange.NewBalance("USDT", 12500, 2500),
		exchange.NewBalance("BNB", 25, 0),
	}, nil
}

// PlaceOrder accepts the order locally: market orders fill at once, every
// other type rests as pending.
func (c *Client) PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (exchange.TradeOrder, error) {
	if err := exchange.ValidateOrder(spec); err != nil {
		return exchange.TradeOrder{}, err
	}
	if err := c.ready(ctx, "order"); err != nil {
		return exchange.TradeOrder{}, err
	}

	order := exchange.TradeOrder{
		ID:        uuid.NewString(),
		Exchange:  Name,
		Symbol:    exchange.FormatSymbol(spec.Symbol),
		Side:      spec.Side,
		Type:      spec.Type,
		Amount:    spec.Amount,
		Price:     spec.Price,
		Timestamp: c.now(),
	}
	if spec.Type == exchange.Market {
		order.Status = exchange.StatusFilled
		order.Filled = spec.Amount
	} else {
		order.Status = exchange.StatusPending
		order.Remaining = spec.Amount
	}

	c.orders.Put(order)
	c.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("status", string(order.Status)))
	return order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.ready(ctx, "cancel"); err != nil {
		return err
	}
	if _, err := c.orders.Cancel(orderID, nil); err != nil {
		return fmt.Errorf("binance cancel %s: %w", orderID, err)
	}
	return nil
}

func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (exchange.TradeOrder, error) {
	if err := c.ready(ctx, "order_status"); err != nil {
		return exchange.TradeOrder{}, err
	}
	order, ok := c.orders.Get(orderID)
	if !ok {
		return exchange.TradeOrder{}, fmt.Errorf("binance order %s: %w", orderID, exchange.ErrOrderNotFound)
	}
	return order, nil
}

func (c *Client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]exchange.TradeOrder, error) {
	if err := c.ready(ctx, "trades"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistory
	}
	if symbol != "" {
		symbol = exchange.FormatSymbol(symbol)
	}
	return c.orders.Filled(symbol, limit), nil
}

func (c *Client) ensureConnected(endpoint string) error {
	if !c.IsConnected() {
		return fmt.Errorf("binance %s: %w", endpoint, exchange.ErrNotConnected)
	}
	return nil
}

func (c *Client) ready(ctx context.Context, endpoint string) error {
	if err := c.ensureConnected(endpoint); err != nil {
		return err
	}
	return c.limiter.Wait(ctx, endpoint)
}

func (c *Client) timestamp(ms int64) time.Time {
	if ms <= 0 {
		return c.now()
	}
	return time.UnixMilli(ms)
}

func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
