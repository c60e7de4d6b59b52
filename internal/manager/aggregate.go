package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

// Quote is the best price found for a symbol on one exchange.
type Quote struct {
	Exchange exchange.Type `json:"exchange"`
	Symbol   string        `json:"symbol"`
	Side     exchange.Side `json:"side"`
	Price    float64       `json:"price"`
}

// GetAggregatedMarketData queries every connected exchange concurrently.
// An exchange that fails is logged and reported with an empty slice, so
// the call itself only fails on a cancelled context.
func (m *Manager) GetAggregatedMarketData(ctx context.Context, symbols []string) (map[exchange.Type][]exchange.MarketData, error) {
	m.mu.RLock()
	targets := m.connectedLocked()
	m.mu.RUnlock()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[exchange.Type][]exchange.MarketData, len(targets))
	)
	for _, inst := range targets {
		wg.Add(1)
		go func(inst *instance) {
			defer wg.Done()

			data, err := inst.adapter.GetMarketData(ctx, symbols)
			if err != nil {
				m.logger.Warn("aggregated market data failed",
					slog.String("exchange", string(inst.kind)),
					slog.Any("error", err))
				data = []exchange.MarketData{}
			}
			if data == nil {
				data = []exchange.MarketData{}
			}

			mu.Lock()
			out[inst.kind] = data
			mu.Unlock()
		}(inst)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.store != nil {
		m.saveSnapshot(ctx, out)
	}
	return out, nil
}

// GetAggregatedOrderBooks fetches symbol's book from every connected
// exchange. Exchanges that fail are left out of the result.
func (m *Manager) GetAggregatedOrderBooks(ctx context.Context, symbol string, limit int) (map[exchange.Type]exchange.OrderBook, error) {
	m.mu.RLock()
	targets := m.connectedLocked()
	m.mu.RUnlock()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[exchange.Type]exchange.OrderBook, len(targets))
	)
	for _, inst := range targets {
		wg.Add(1)
		go func(inst *instance) {
			defer wg.Done()

			book, err := inst.adapter.GetOrderBook(ctx, symbol, limit)
			if err != nil {
				m.logger.Warn("aggregated order book failed",
					slog.String("exchange", string(inst.kind)),
					slog.String("symbol", symbol),
					slog.Any("error", err))
				return
			}

			mu.Lock()
			out[inst.kind] = book
			mu.Unlock()
		}(inst)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBestPrice returns the cheapest exchange for a buy and the most
// generous one for a sell. A nil quote means no exchange reported symbol.
// Prices are fetched independently, so the comparison is not atomic.
func (m *Manager) GetBestPrice(ctx context.Context, symbol string, side exchange.Side) (*Quote, error) {
	if side != exchange.Buy && side != exchange.Sell {
		return nil, fmt.Errorf("best price: side %q: %w", side, exchange.ErrInvalidOrder)
	}

	data, err := m.GetAggregatedMarketData(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	return BestPrice(data, symbol, side), nil
}

// BestPrice picks the minimum price for buy and the maximum for sell.
// Ties go to the exchange whose type sorts first.
func BestPrice(data map[exchange.Type][]exchange.MarketData, symbol string, side exchange.Side) *Quote {
	symbol = exchange.FormatSymbol(symbol)

	types := make([]exchange.Type, 0, len(data))
	for t := range data {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var best *Quote
	for _, t := range types {
		for _, md := range data[t] {
			if exchange.FormatSymbol(md.Symbol) != symbol || md.Price <= 0 {
				continue
			}
			if best == nil ||
				(side == exchange.Buy && md.Price < best.Price) ||
				(side == exchange.Sell && md.Price > best.Price) {
				best = &Quote{Exchange: t, Symbol: symbol, Side: side, Price: md.Price}
			}
		}
	}
	return best
}

func (m *Manager) saveSnapshot(ctx context.Context, data map[exchange.Type][]exchange.MarketData) {
	var flat []exchange.MarketData
	for _, items := range data {
		flat = append(flat, items...)
	}
	if len(flat) == 0 {
		return
	}
	if err := m.store.SaveMarketData(ctx, flat); err != nil {
		m.logger.Warn("snapshot store write failed", slog.Any("error", err))
	}
}
