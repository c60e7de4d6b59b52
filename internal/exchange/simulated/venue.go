// Package simulated implements venues that answer every call from a
// hard-coded price table with randomized perturbation. No network traffic
// is generated.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

const (
	defaultBookDepth = 20
	maxBookDepth     = 100
	defaultHistory   = 50
)

// Profile describes how one simulated venue behaves.
type Profile struct {
	Name string
	// Prices maps normalized symbols to the reference price perturbations
	// are drawn around.
	Prices map[string]float64
	// Variation is the half-width of the price band as a fraction (0.02 = ±2%).
	Variation      float64
	ExecutionRate  float64
	CancelRate     float64
	ConnectLatency time.Duration
	OrderLatency   time.Duration
	Symbols        exchange.SymbolMap
	// Balances lists the reference holdings per asset.
	Balances map[string]float64
}

type Venue struct {
	profile Profile
	cfg     exchange.Config
	limiter *exchange.RateLimiter
	orders  *exchange.OrderStore
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	connected bool
}

type Option func(*Venue)

// WithRand injects the randomness source. Use a seeded generator for
// reproducible output.
func WithRand(r *rand.Rand) Option {
	return func(v *Venue) { v.rng = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Venue) { v.logger = logger }
}

// WithSleep replaces the artificial latency sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(v *Venue) { v.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(v *Venue) { v.now = now }
}

func WithRateLimiter(rl *exchange.RateLimiter) Option {
	return func(v *Venue) { v.limiter = rl }
}

func New(profile Profile, cfg exchange.Config, opts ...Option) *Venue {
	v := &Venue{
		profile: profile,
		cfg:     cfg,
		orders:  exchange.NewOrderStore(),
		logger:  slog.Default(),
		sleep:   exchange.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if v.limiter == nil {
		v.limiter = exchange.NewRateLimiter(cfg.RateLimit)
	}
	v.logger = v.logger.With(slog.String("exchange", profile.Name))
	return v
}

func (v *Venue) Name() string {
	return v.profile.Name
}

func (v *Venue) Profile() Profile {
	return v.profile
}

func (v *Venue) Connect(ctx context.Context) error {
	if !v.cfg.HasCredentials() {
		return fmt.Errorf("%s connect: %w", v.profile.Name, exchange.ErrMissingCredentials)
	}
	if err := v.sleep(ctx, v.profile.ConnectLatency); err != nil {
		return fmt.Errorf("%s connect: %w", v.profile.Name, err)
	}

	v.mu.Lock()
	v.connected = true
	v.mu.Unlock()

	v.logger.Info("connected", slog.Bool("testnet", v.cfg.Testnet))
	return nil
}

func (v *Venue) Disconnect(_ context.Context) error {
	v.mu.Lock()
	v.connected = false
	v.mu.Unlock()

	v.logger.Info("disconnected")
	return nil
}

func (v *Venue) IsConnected() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.connected
}

func (v *Venue) GetMarketData(ctx context.Context, symbols []string) ([]exchange.MarketData, error) {
	if err := v.ready(ctx, "ticker"); err != nil {
		return nil, err
	}

	now := v.now()
	out := make([]exchange.MarketData, 0, len(symbols))
	for _, s := range symbols {
		canonical, base, ok := v.lookup(s)
		if !ok {
			v.logger.Debug("no reference price, skipping", slog.String("symbol", s))
			continue
		}

		band := v.profile.Variation
		price := v.perturb(base, band)
		out = append(out, exchange.MarketData{
			Exchange:  v.profile.Name,
			Symbol:    canonical,
			Price:     price,
			Volume24h: roundQty(v.float64()*5_000_000 + 100_000),
			Change24h: round(v.signed()*band*100, 2),
			High24h:   roundPrice(price * (1 + v.float64()*band)),
			Low24h:    roundPrice(price * (1 - v.float64()*band)),
			Timestamp: now,
		})
	}
	return out, nil
}

func (v *Venue) GetOrderBook(ctx context.Context, symbol string, limit int) (exchange.OrderBook, error) {
	if err := v.ready(ctx, "depth"); err != nil {
		return exchange.OrderBook{}, err
	}

	canonical, base, ok := v.lookup(symbol)
	if !ok {
		return exchange.OrderBook{}, fmt.Errorf("%s order book %s: %w", v.profile.Name, symbol, exchange.ErrUnsupportedSymbol)
	}

	if limit <= 0 {
		limit = defaultBookDepth
	}
	if limit > maxBookDepth {
		limit = maxBookDepth
	}

	mid := v.perturb(base, v.profile.Variation)
	halfSpread := mid * 0.0005
	bids := make([]exchange.OrderBookEntry, 0, limit)
	asks := make([]exchange.OrderBookEntry, 0, limit)
	bidPrice, askPrice := mid-halfSpread, mid+halfSpread
	for i := 0; i < limit; i++ {
		bids = append(bids, exchange.OrderBookEntry{Price: roundPrice(bidPrice), Quantity: v.quantity()})
		asks = append(asks, exchange.OrderBookEntry{Price: roundPrice(askPrice), Quantity: v.quantity()})
		step := mid * 0.0002 * (1 + v.float64())
		bidPrice -= step
		askPrice += step
	}

	return exchange.BuildOrderBook(v.profile.Name, canonical, bids, asks, v.now()), nil
}

func (v *Venue) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	if err := v.ready(ctx, "account"); err != nil {
		return nil, err
	}

	assets := make([]string, 0, len(v.profile.Balances))
	for asset := range v.profile.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	out := make([]exchange.Balance, 0, len(assets))
	for _, asset := range assets {
		ref := v.profile.Balances[asset]
		free := roundQty(ref * (0.8 + v.float64()*0.4))
		locked := roundQty(free * v.float64() * 0.2)
		out = append(out, exchange.NewBalance(asset, free, locked))
	}
	return out, nil
}

func (v *Venue) PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (exchange.TradeOrder, error) {
	if err := exchange.ValidateOrder(spec); err != nil {
		return exchange.TradeOrder{}, err
	}
	if err := v.ready(ctx, "order"); err != nil {
		return exchange.TradeOrder{}, err
	}

	canonical, base, ok := v.lookup(spec.Symbol)
	if !ok {
		return exchange.TradeOrder{}, fmt.Errorf("%s place order %s: %w", v.profile.Name, spec.Symbol, exchange.ErrUnsupportedSymbol)
	}
	if err := v.sleep(ctx, v.profile.OrderLatency); err != nil {
		return exchange.TradeOrder{}, err
	}

	order := exchange.TradeOrder{
		ID:        uuid.NewString(),
		Exchange:  v.profile.Name,
		Symbol:    canonical,
		Side:      spec.Side,
		Type:      spec.Type,
		Amount:    spec.Amount,
		Price:     spec.Price,
		Timestamp: v.now(),
	}

	switch {
	case v.float64() >= v.profile.ExecutionRate:
		order.Status = exchange.StatusFailed
		order.Remaining = spec.Amount
	case spec.Type == exchange.Market:
		order.Status = exchange.StatusFilled
		order.Filled = spec.Amount
		order.Price = v.perturb(base, v.profile.Variation)
	default:
		order.Status = exchange.StatusPending
		order.Remaining = spec.Amount
	}

	v.orders.Put(order)
	v.logger.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("status", string(order.Status)))
	return order, nil
}

func (v *Venue) CancelOrder(ctx context.Context, orderID string) error {
	if err := v.ready(ctx, "cancel"); err != nil {
		return err
	}

	_, err := v.orders.Cancel(orderID, func() bool {
		return v.float64() < v.profile.CancelRate
	})
	if err != nil {
		return fmt.Errorf("%s cancel %s: %w", v.profile.Name, orderID, err)
	}
	return nil
}

func (v *Venue) GetOrderStatus(ctx context.Context, orderID string) (exchange.TradeOrder, error) {
	if err := v.ready(ctx, "order_status"); err != nil {
		return exchange.TradeOrder{}, err
	}

	order, ok := v.orders.Get(orderID)
	if !ok {
		return exchange.TradeOrder{}, fmt.Errorf("%s order %s: %w", v.profile.Name, orderID, exchange.ErrOrderNotFound)
	}
	return order, nil
}

// GetTradeHistory returns this session's filled orders followed by
// generated fills, newest first.
func (v *Venue) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]exchange.TradeOrder, error) {
	if err := v.ready(ctx, "trades"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistory
	}

	var canonical string
	if symbol != "" {
		var ok bool
		if canonical, _, ok = v.lookup(symbol); !ok {
			return []exchange.TradeOrder{}, nil
		}
	}

	out := v.orders.Filled(canonical, limit)
	symbols := v.knownSymbols()
	if len(symbols) == 0 {
		return out, nil
	}
	at := v.now()
	if len(out) > 0 {
		at = out[len(out)-1].Timestamp
	}
	for len(out) < limit {
		s := canonical
		if s == "" {
			s = symbols[v.intn(len(symbols))]
		}
		at = at.Add(-time.Duration(1+v.intn(600)) * time.Second)
		amount := v.quantity()
		side := exchange.Buy
		if v.float64() < 0.5 {
			side = exchange.Sell
		}
		out = append(out, exchange.TradeOrder{
			ID:        uuid.NewString(),
			Exchange:  v.profile.Name,
			Symbol:    s,
			Side:      side,
			Type:      exchange.Market,
			Amount:    amount,
			Price:     v.perturb(v.profile.Prices[s], v.profile.Variation),
			Status:    exchange.StatusFilled,
			Filled:    amount,
			Timestamp: at,
		})
	}
	return out, nil
}

func (v *Venue) ready(ctx context.Context, endpoint string) error {
	if !v.IsConnected() {
		return fmt.Errorf("%s %s: %w", v.profile.Name, endpoint, exchange.ErrNotConnected)
	}
	return v.limiter.Wait(ctx, endpoint)
}

// lookup normalizes symbol, sends it through the venue map and back, and
// returns the reference price of the result.
func (v *Venue) lookup(symbol string) (string, float64, bool) {
	native := v.profile.Symbols.ToVenue(symbol)
	if !v.profile.Symbols.Mapped(symbol) {
		v.logger.Debug("symbol has no venue mapping, passing through", slog.String("symbol", native))
	}
	canonical := v.profile.Symbols.FromVenue(native)
	base, ok := v.profile.Prices[canonical]
	return canonical, base, ok
}

func (v *Venue) knownSymbols() []string {
	out := make([]string, 0, len(v.profile.Prices))
	for s := range v.profile.Prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (v *Venue) perturb(base, band float64) float64 {
	return roundPrice(base * (1 + v.signed()*band))
}

func (v *Venue) quantity() float64 {
	return roundQty(v.float64()*5 + 0.01)
}

func (v *Venue) float64() float64 {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	return v.rng.Float64()
}

// signed returns a value in [-1, 1).
func (v *Venue) signed() float64 {
	return v.float64()*2 - 1
}

func (v *Venue) intn(n int) int {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	return v.rng.Intn(n)
}

func roundPrice(p float64) float64 {
	if p < 1 {
		return round(p, 6)
	}
	return round(p, 2)
}

func roundQty(q float64) float64 {
	return round(q, 4)
}

func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}
