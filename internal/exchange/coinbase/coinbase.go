// internal/exchange/coinbase/coinbase.go
package coinbase

import (
	"time"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange/simulated"
)

const Name = "Coinbase"

// Symbols maps normalized pairs to Coinbase product ids. Anything else is
// sent as-is.
var Symbols = exchange.NewSymbolMap(map[string]string{
	"BTCUSDT": "BTC-USD",
	"ETHUSDT": "ETH-USD",
	"SOLUSDT": "SOL-USD",
	"ADAUSDT": "ADA-USD",
})

func Profile() simulated.Profile {
	return simulated.Profile{
		Name: Name,
		Prices: map[string]float64{
			"BTCUSDT": 43280.50,
			"ETHUSDT": 2652.30,
			"SOLUSDT": 98.75,
			"ADAUSDT": 0.5215,
		},
		Variation:      0.02,
		ExecutionRate:  0.95,
		CancelRate:     0.98,
		ConnectLatency: 500 * time.Millisecond,
		OrderLatency:   200 * time.Millisecond,
		Symbols:        Symbols,
		Balances: map[string]float64{
			"BTC":  0.85,
			"ETH":  12.4,
			"SOL":  150,
			"USDC": 25000,
		},
	}
}

// New returns a simulated Coinbase adapter. Connect requires an API key
// and secret even though nothing is sent anywhere.
func New(cfg exchange.Config, opts ...simulated.Option) *simulated.Venue {
	return simulated.New(Profile(), cfg, opts...)
}
