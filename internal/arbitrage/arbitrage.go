// internal/arbitrage/arbitrage.go
package arbitrage

import (
	"errors"
	"sort"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

// TradeFee is charged once per round trip, 0.1%.
const TradeFee = 0.001

var ErrNoCrossExchangeQuotes = errors.New("no bids or asks from two different exchanges")

// Level is the top of one side of one exchange's book.
type Level struct {
	Exchange exchange.Type `json:"exchange"`
	Price    float64       `json:"price"`
	Quantity float64       `json:"quantity"`
}

type Opportunity struct {
	Symbol           string  `json:"symbol"`
	Buy              Level   `json:"buy"`
	Sell             Level   `json:"sell"`
	Spread           float64 `json:"spread"`
	NetProfitPercent float64 `json:"net_profit_percent"`
	// Quantity is the size available at both top levels.
	Quantity float64 `json:"quantity"`
}

// Profitable reports whether selling on Sell after buying on Buy beats fees.
func (o Opportunity) Profitable() bool {
	return o.NetProfitPercent > 0
}

// FindBestPrices finds the lowest ask and the highest bid that sit on two
// different exchanges. Books are visited in exchange-type order so the
// result is stable for equal prices.
func FindBestPrices(books map[exchange.Type]exchange.OrderBook) (lowestAsk, highestBid Level, err error) {
	types := make([]exchange.Type, 0, len(books))
	for t := range books {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var bestBids, bestAsks []Level
	for _, t := range types {
		book := books[t]
		// Bids are sorted highest first, asks lowest first
		if bid, ok := book.BestBid(); ok {
			bestBids = append(bestBids, Level{Exchange: t, Price: bid.Price, Quantity: bid.Quantity})
		}
		if ask, ok := book.BestAsk(); ok {
			bestAsks = append(bestAsks, Level{Exchange: t, Price: ask.Price, Quantity: ask.Quantity})
		}
	}

	found := false
	for _, bid := range bestBids {
		for _, ask := range bestAsks {
			// same exchange arbitrage is not an opportunity
			if bid.Exchange == ask.Exchange {
				continue
			}
			if !found || bid.Price-ask.Price > highestBid.Price-lowestAsk.Price {
				highestBid, lowestAsk = bid, ask
				found = true
			}
		}
	}
	if !found {
		return Level{}, Level{}, ErrNoCrossExchangeQuotes
	}
	return lowestAsk, highestBid, nil
}

func CalculateNetProfitPercentage(ask, bid float64) float64 {
	if ask <= 0 {
		return 0
	}
	netProfit := (bid - ask) * (1 - TradeFee)
	return (netProfit / ask) * 100
}

// Find builds the best cross-exchange Opportunity for symbol.
func Find(symbol string, books map[exchange.Type]exchange.OrderBook) (Opportunity, error) {
	ask, bid, err := FindBestPrices(books)
	if err != nil {
		return Opportunity{}, err
	}
	return Opportunity{
		Symbol:           exchange.FormatSymbol(symbol),
		Buy:              ask,
		Sell:             bid,
		Spread:           bid.Price - ask.Price,
		NetProfitPercent: CalculateNetProfitPercentage(ask.Price, bid.Price),
		Quantity:         min(ask.Quantity, bid.Quantity),
	}, nil
}
