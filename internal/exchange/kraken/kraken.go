package kraken

import (
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/simulated"
)

const Name = "Kraken"

// Kraken uses XBT for bitcoin and prefixes its legacy pairs with X/Z.
var Symbols = exchange.NewSymbolMap(map[string]string{
	"BTCUSDT": "XXBTZUSD",
	"ETHUSDT": "XETHZUSD",
	"XRPUSDT": "XXRPZUSD",
	"SOLUSDT": "SOLUSD",
	"DOTUSDT": "DOTUSD",
})

func Profile() simulated.Profile {
	return simulated.Profile{
		Name: Name,
		Prices: map[string]float64{
			"BTCUSDT": 43245.00,
			"ETHUSDT": 2648.90,
			"XRPUSDT": 0.6185,
			"SOLUSDT": 98.40,
			"DOTUSDT": 7.21,
		},
		Variation:      0.015,
		ExecutionRate:  0.90,
		CancelRate:     0.95,
		ConnectLatency: 800 * time.Millisecond,
		OrderLatency:   300 * time.Millisecond,
		Symbols:        Symbols,
		Balances: map[string]float64{
			"XBT": 0.42,
			"ETH": 7.5,
			"DOT": 820,
			"USD": 18000,
		},
	}
}

func New(cfg exchange.Config, opts ...simulated.Option) *simulated.Venue {
	return simulated.New(Profile(), cfg, opts...)
}
