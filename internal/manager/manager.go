// Package manager owns the set of exchange adapters, tracks which one is
// active and fans calls out across all of them.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

const (
	DefaultHealthInterval = 30 * time.Second
	DefaultProbeSymbol    = "BTCUSDT"
)

var (
	ErrNoActiveExchange     = errors.New("no active exchange")
	ErrExchangeNotFound     = errors.New("exchange not registered")
	ErrExchangeNotConnected = errors.New("exchange not connected")
	ErrExchangeExists       = errors.New("exchange already registered")
	ErrUnknownExchangeType  = errors.New("unknown exchange type")
)

// Factory builds an unconnected adapter for one exchange type.
type Factory func(cfg exchange.Config, logger *slog.Logger) (exchange.Adapter, error)

// SnapshotStore receives every aggregated market-data pass.
type SnapshotStore interface {
	SaveMarketData(ctx context.Context, data []exchange.MarketData) error
}

type instance struct {
	kind          exchange.Type
	adapter       exchange.Adapter
	connected     bool
	lastHeartbeat time.Time
}

type Manager struct {
	logger         *slog.Logger
	healthInterval time.Duration
	probeSymbol    string
	factories      map[exchange.Type]Factory
	store          SnapshotStore
	now            func() time.Time

	mu        sync.RWMutex
	instances map[exchange.Type]*instance
	active    exchange.Type

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	subs subscribers
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithHealthInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.healthInterval = d
		}
	}
}

// WithFactory registers or replaces the constructor for t.
func WithFactory(t exchange.Type, f Factory) Option {
	return func(m *Manager) { m.factories[t] = f }
}

func WithSnapshotStore(store SnapshotStore) Option {
	return func(m *Manager) { m.store = store }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithProbeSymbol sets the symbol requested by health probes.
func WithProbeSymbol(symbol string) Option {
	return func(m *Manager) { m.probeSymbol = exchange.FormatSymbol(symbol) }
}

func New(opts ...Option) *Manager {
	m := &Manager{
		logger:         slog.Default(),
		healthInterval: DefaultHealthInterval,
		probeSymbol:    DefaultProbeSymbol,
		factories:      make(map[exchange.Type]Factory),
		now:            time.Now,
		instances:      make(map[exchange.Type]*instance),
	}
	for t, f := range DefaultFactories(nil) {
		m.factories[t] = f
	}
	for _, opt := range opts {
		opt(m)
	}
	m.subs.init()
	return m
}

// AddExchange builds and connects an adapter of type t. Nothing is
// registered when Connect fails. The first registered exchange becomes
// active.
func (m *Manager) AddExchange(ctx context.Context, t exchange.Type, cfg exchange.Config) error {
	factory, ok := m.factories[t]
	if !ok {
		return fmt.Errorf("add %q: %w", t, ErrUnknownExchangeType)
	}

	m.mu.RLock()
	_, exists := m.instances[t]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("add %s: %w", t, ErrExchangeExists)
	}

	adapter, err := factory(cfg, m.logger)
	if err != nil {
		return fmt.Errorf("add %s: %w", t, err)
	}
	if err := adapter.Connect(ctx); err != nil {
		m.logger.Error("failed to connect exchange",
			slog.String("exchange", string(t)),
			slog.Any("error", err))
		return fmt.Errorf("add %s: %w", t, err)
	}

	m.mu.Lock()
	if _, exists := m.instances[t]; exists {
		m.mu.Unlock()
		m.disconnect(ctx, t, adapter)
		return fmt.Errorf("add %s: %w", t, ErrExchangeExists)
	}
	m.instances[t] = &instance{
		kind:          t,
		adapter:       adapter,
		connected:     true,
		lastHeartbeat: m.now(),
	}
	if m.active == "" {
		m.active = t
	}
	m.mu.Unlock()

	m.logger.Info("exchange added", slog.String("exchange", string(t)))
	m.publish()
	return nil
}

// RemoveExchange disconnects and forgets t. When t was active, the first
// remaining connected exchange (by type name) takes over, if any.
func (m *Manager) RemoveExchange(ctx context.Context, t exchange.Type) error {
	m.mu.Lock()
	inst, ok := m.instances[t]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("remove %s: %w", t, ErrExchangeNotFound)
	}
	delete(m.instances, t)
	if m.active == t {
		m.active = m.firstConnectedLocked()
	}
	active := m.active
	m.mu.Unlock()

	m.disconnect(ctx, t, inst.adapter)
	m.logger.Info("exchange removed",
		slog.String("exchange", string(t)),
		slog.String("active", string(active)))
	m.publish()
	return nil
}

func (m *Manager) SetActiveExchange(t exchange.Type) error {
	m.mu.Lock()
	inst, ok := m.instances[t]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("set active %s: %w", t, ErrExchangeNotFound)
	}
	if !inst.connected {
		m.mu.Unlock()
		return fmt.Errorf("set active %s: %w", t, ErrExchangeNotConnected)
	}
	m.active = t
	m.mu.Unlock()

	m.logger.Info("active exchange changed", slog.String("exchange", string(t)))
	m.publish()
	return nil
}

// ActiveExchange returns the active type, or "" when there is none.
func (m *Manager) ActiveExchange() exchange.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Exchanges lists registered types in name order.
func (m *Manager) Exchanges() []exchange.Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedTypesLocked()
}

func (m *Manager) GetMarketData(ctx context.Context, symbols []string) ([]exchange.MarketData, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return nil, err
	}
	return a.GetMarketData(ctx, symbols)
}

func (m *Manager) GetOrderBook(ctx context.Context, symbol string, limit int) (exchange.OrderBook, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return exchange.OrderBook{}, err
	}
	return a.GetOrderBook(ctx, symbol, limit)
}

func (m *Manager) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return nil, err
	}
	return a.GetBalances(ctx)
}

func (m *Manager) PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (exchange.TradeOrder, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return exchange.TradeOrder{}, err
	}
	return a.PlaceOrder(ctx, spec)
}

func (m *Manager) CancelOrder(ctx context.Context, orderID string) error {
	a, err := m.activeAdapter()
	if err != nil {
		return err
	}
	return a.CancelOrder(ctx, orderID)
}

func (m *Manager) GetOrderStatus(ctx context.Context, orderID string) (exchange.TradeOrder, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return exchange.TradeOrder{}, err
	}
	return a.GetOrderStatus(ctx, orderID)
}

func (m *Manager) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]exchange.TradeOrder, error) {
	a, err := m.activeAdapter()
	if err != nil {
		return nil, err
	}
	return a.GetTradeHistory(ctx, symbol, limit)
}

// Shutdown stops the health loop, disconnects every adapter and clears the
// registry. Disconnect errors are logged and otherwise ignored.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopHealthLoop()

	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[exchange.Type]*instance)
	m.active = ""
	m.mu.Unlock()

	for t, inst := range instances {
		m.disconnect(ctx, t, inst.adapter)
	}

	m.publish()
	m.subs.closeAll()
	m.logger.Info("exchange manager stopped", slog.Int("disconnected", len(instances)))
}

func (m *Manager) activeAdapter() (exchange.Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == "" {
		return nil, ErrNoActiveExchange
	}
	inst, ok := m.instances[m.active]
	if !ok {
		return nil, ErrNoActiveExchange
	}
	return inst.adapter, nil
}

func (m *Manager) disconnect(ctx context.Context, t exchange.Type, a exchange.Adapter) {
	if err := a.Disconnect(ctx); err != nil {
		m.logger.Warn("disconnect failed",
			slog.String("exchange", string(t)),
			slog.Any("error", err))
	}
}

func (m *Manager) firstConnectedLocked() exchange.Type {
	for _, t := range m.sortedTypesLocked() {
		if m.instances[t].connected {
			return t
		}
	}
	return ""
}

func (m *Manager) sortedTypesLocked() []exchange.Type {
	types := make([]exchange.Type, 0, len(m.instances))
	for t := range m.instances {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// connectedLocked returns the connected instances in type order.
func (m *Manager) connectedLocked() []*instance {
	var out []*instance
	for _, t := range m.sortedTypesLocked() {
		if inst := m.instances[t]; inst.connected {
			out = append(out, inst)
		}
	}
	return out
}
