package ui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/arbitrage"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

// BookSource fans order-book requests out to every connected exchange.
type BookSource interface {
	GetAggregatedOrderBooks(ctx context.Context, symbol string, limit int) (map[exchange.Type]exchange.OrderBook, error)
}

const monitorDepth = 5

// Monitor polls books for every symbol each interval and pushes the best
// cross-exchange quote to d. It returns when ctx is done.
func Monitor(ctx context.Context, src BookSource, d *Dashboard, symbols []string, interval time.Duration, logger *slog.Logger) {
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					data, ok := pollSymbol(ctx, src, symbol, logger)
					if ok {
						d.SendCoinData(data)
					}
				}
			}
		}(symbol)
	}
	wg.Wait()
}

func pollSymbol(ctx context.Context, src BookSource, symbol string, logger *slog.Logger) (CoinData, bool) {
	books, err := src.GetAggregatedOrderBooks(ctx, symbol, monitorDepth)
	if err != nil {
		logger.Debug("order books unavailable", slog.String("symbol", symbol), slog.Any("error", err))
		return CoinData{}, false
	}
	op, err := arbitrage.Find(symbol, books)
	if err != nil {
		logger.Debug("no cross-exchange quote", slog.String("symbol", symbol), slog.Any("error", err))
		return CoinData{}, false
	}
	return NewCoinData(op, time.Now()), true
}

// NewCoinData converts an opportunity into a dashboard row. Spread is a
// percentage of the buy price.
func NewCoinData(op arbitrage.Opportunity, ts time.Time) CoinData {
	spread := 0.0
	if op.Buy.Price > 0 {
		spread = op.Spread / op.Buy.Price * 100
	}
	return CoinData{
		Timestamp:    ts,
		Symbol:       op.Symbol,
		BuyExchange:  op.Buy.Exchange,
		SellExchange: op.Sell.Exchange,
		BuyPrice:     op.Buy.Price,
		SellPrice:    op.Sell.Price,
		Profit:       op.NetProfitPercent,
		Spread:       spread,
	}
}
