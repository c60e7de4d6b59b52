package exchange

import (
	"sort"
	"time"
)

// BuildOrderBook orders bids from the highest price and asks from the
// lowest, then recomputes the cumulative totals of each side.
func BuildOrderBook(exchangeName, symbol string, bids, asks []OrderBookEntry, ts time.Time) OrderBook {
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return OrderBook{
		Exchange:  exchangeName,
		Symbol:    symbol,
		Bids:      accumulate(bids),
		Asks:      accumulate(asks),
		Timestamp: ts,
	}
}

func accumulate(entries []OrderBookEntry) []OrderBookEntry {
	var running float64
	for i := range entries {
		running += entries[i].Quantity
		entries[i].Total = running
	}
	if entries == nil {
		return []OrderBookEntry{}
	}
	return entries
}

// BestBid returns the top bid, false when the side is empty.
func (b OrderBook) BestBid() (OrderBookEntry, bool) {
	if len(b.Bids) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Bids[0], true
}

func (b OrderBook) BestAsk() (OrderBookEntry, bool) {
	if len(b.Asks) == 0 {
		return OrderBookEntry{}, false
	}
	return b.Asks[0], true
}
