// internal/exchange/exchange.go
package exchange

import (
	"context"
	"time"
)

// Adapter is the surface every venue integration implements so the
// manager can treat all exchanges the same way.
type Adapter interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	GetMarketData(ctx context.Context, symbols []string) ([]MarketData, error)
	// GetOrderBook returns a snapshot of the book. A non-positive limit
	// selects the adapter default.
	GetOrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error)
	GetBalances(ctx context.Context) ([]Balance, error)
	PlaceOrder(ctx context.Context, spec OrderSpec) (TradeOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (TradeOrder, error)
	// GetTradeHistory returns executed orders, newest first. An empty
	// symbol means all symbols.
	GetTradeHistory(ctx context.Context, symbol string, limit int) ([]TradeOrder, error)
}

type Type string

const (
	Binance  Type = "binance"
	Coinbase Type = "coinbase"
	Kraken   Type = "kraken"
)

func (t Type) Valid() bool {
	switch t {
	case Binance, Coinbase, Kraken:
		return true
	}
	return false
}

// Config carries per-adapter credentials and hints. It is passed by value
// and never modified after the adapter is built.
type Config struct {
	APIKey    string        `json:"api_key"`
	APISecret string        `json:"api_secret"`
	Testnet   bool          `json:"testnet"`
	RateLimit time.Duration `json:"rate_limit"`

	// BaseURL and StreamURL override the venue endpoints (tests, proxies).
	BaseURL   string `json:"base_url,omitempty"`
	StreamURL string `json:"stream_url,omitempty"`
}

func (c Config) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type MarketData struct {
	Exchange  string    `json:"exchange"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume24h float64   `json:"volume_24h"`
	Change24h float64   `json:"change_24h"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	MarketCap *float64  `json:"market_cap,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderBookEntry struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	// Total is the cumulative quantity from the top of the side down to
	// and including this level.
	Total float64 `json:"total"`
}

type OrderBook struct {
	Exchange  string           `json:"exchange"`
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookEntry `json:"bids"`
	Asks      []OrderBookEntry `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market     OrderType = "market"
	Limit      OrderType = "limit"
	StopLoss   OrderType = "stop_loss"
	TakeProfit OrderType = "take_profit"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusFailed    OrderStatus = "failed"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFilled, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// OrderSpec is what a caller asks for. Price is required for limit orders
// and ignored for market orders.
type OrderSpec struct {
	Symbol string    `json:"symbol" validate:"required"`
	Side   Side      `json:"side" validate:"required,oneof=buy sell"`
	Type   OrderType `json:"type" validate:"required,oneof=market limit stop_loss take_profit"`
	Amount float64   `json:"amount" validate:"required,gt=0"`
	Price  float64   `json:"price,omitempty" validate:"omitempty,gt=0"`
}

type TradeOrder struct {
	ID        string      `json:"id"`
	Exchange  string      `json:"exchange"`
	Symbol    string      `json:"symbol"`
	Side      Side        `json:"side"`
	Type      OrderType   `json:"type"`
	Amount    float64     `json:"amount"`
	Price     float64     `json:"price,omitempty"`
	Status    OrderStatus `json:"status"`
	Filled    float64     `json:"filled"`
	Remaining float64     `json:"remaining"`
	Timestamp time.Time   `json:"timestamp"`
}

type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
	Total  float64 `json:"total"`
}

// NewBalance is the only constructor adapters use, so Total always equals
// Free+Locked.
func NewBalance(asset string, free, locked float64) Balance {
	return Balance{
		Asset:  asset,
		Free:   free,
		Locked: locked,
		Total:  free + locked,
	}
}
