package manager

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/binance"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/coinbase"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/kraken"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/simulated"
)

// DefaultFactories returns constructors for every supported exchange.
// newRand, when non-nil, supplies the randomness of each simulated venue.
func DefaultFactories(newRand func() *rand.Rand) map[exchange.Type]Factory {
	simOpts := func(logger *slog.Logger) []simulated.Option {
		opts := []simulated.Option{simulated.WithLogger(logger)}
		if newRand != nil {
			opts = append(opts, simulated.WithRand(newRand()))
		}
		return opts
	}

	return map[exchange.Type]Factory{
		exchange.Binance: func(cfg exchange.Config, logger *slog.Logger) (exchange.Adapter, error) {
			return binance.New(cfg, binance.WithLogger(logger)), nil
		},
		exchange.Coinbase: func(cfg exchange.Config, logger *slog.Logger) (exchange.Adapter, error) {
			return coinbase.New(cfg, simOpts(logger)...), nil
		},
		exchange.Kraken: func(cfg exchange.Config, logger *slog.Logger) (exchange.Adapter, error) {
			return kraken.New(cfg, simOpts(logger)...), nil
		},
	}
}

// SeededRand returns a newRand func for DefaultFactories. Each venue gets
// its own generator derived from seed; seed 0 returns nil (time-seeded).
func SeededRand(seed int64) func() *rand.Rand {
	if seed == 0 {
		return nil
	}
	var mu sync.Mutex
	next := seed
	return func() *rand.Rand {
		mu.Lock()
		defer mu.Unlock()
		r := rand.New(rand.NewSource(next))
		next++
		return r
	}
}
