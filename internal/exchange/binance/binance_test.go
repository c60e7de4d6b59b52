package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

func noSleep(context.Context, time.Duration) error { return nil }

type restStub struct {
	mu       sync.Mutex
	requests []string
	pingFail bool
}

func (s *restStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ping", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if s.pingFail {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"code":-1001,"msg":"maintenance"}`))
			return
		}
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		symbol := r.URL.Query().Get("symbol")
		if symbol == "BADUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"symbol":             symbol,
			"priceChange":        "120.50",
			"priceChangePercent": "0.280",
			"lastPrice":          "43250.10",
			"highPrice":          "43900.00",
			"lowPrice":           "42800.00",
			"volume":             "18234.5",
			"quoteVolume":        "788000000.0",
			"openTime":           1700000000000,
			"closeTime":          1700086400000,
		})
	})
	mux.HandleFunc("/api/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{
			"lastUpdateId": 1027024,
			"bids": [["43249.00","0.5"],["43250.00","1.25"],["43248.00","2"]],
			"asks": [["43252.00","0.75"],["43251.00","0.25"]]
		}`))
	})
	return mux
}

func (s *restStub) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.URL.Path)
}

func newTestClient(t *testing.T, stub *restStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	rl := exchange.NewRateLimiter(0, exchange.WithClock(nil, noSleep))
	return New(exchange.Config{BaseURL: srv.URL}, WithRateLimiter(rl))
}

func TestNew_Endpoints(t *testing.T) {
	main := New(exchange.Config{})
	assert.Equal(t, mainnetURL, main.rest.BaseURL)
	assert.Equal(t, mainnetStream, main.streamURL)

	test := New(exchange.Config{Testnet: true})
	assert.Equal(t, testnetURL, test.rest.BaseURL)
	assert.Equal(t, testnetStream, test.streamURL)
}

func TestConnect(t *testing.T) {
	stub := &restStub{}
	c := newTestClient(t, stub)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{"/api/v3/ping"}, stub.requests)

	require.NoError(t, c.Disconnect(context.Background()))
	assert.False(t, c.IsConnected())
}

func TestConnect_PingFailure(t *testing.T) {
	c := newTestClient(t, &restStub{pingFail: true})

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance connect")
	assert.False(t, c.IsConnected())
}

func TestCallsBeforeConnect(t *testing.T) {
	stub := &restStub{}
	c := newTestClient(t, stub)
	ctx := context.Background()

	_, err := c.GetMarketData(ctx, []string{"BTCUSDT"})
	assert.ErrorIs(t, err, exchange.ErrNotConnected)
	_, err = c.GetOrderBook(ctx, "BTCUSDT", 5)
	assert.ErrorIs(t, err, exchange.ErrNotConnected)
	_, err = c.GetBalances(ctx)
	assert.ErrorIs(t, err, exchange.ErrNotConnected)
	_, err = c.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 1})
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	assert.Empty(t, stub.requests)
}

func TestGetMarketData(t *testing.T) {
	stub := &restStub{}
	c := newTestClient(t, stub)
	require.NoError(t, c.Connect(context.Background()))

	data, err := c.GetMarketData(context.Background(), []string{"btc/usdt", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	btc := data[0]
	assert.Equal(t, "Binance", btc.Exchange)
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, 43250.10, btc.Price)
	assert.Equal(t, 18234.5, btc.Volume24h)
	assert.Equal(t, 0.28, btc.Change24h)
	assert.Equal(t, 43900.0, btc.High24h)
	assert.Equal(t, 42800.0, btc.Low24h)
	assert.Equal(t, time.UnixMilli(1700086400000), btc.Timestamp)
	assert.Equal(t, "ETHUSDT", data[1].Symbol)
}

func TestGetMarketData_APIError(t *testing.T) {
	c := newTestClient(t, &restStub{})
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.GetMarketData(context.Background(), []string{"BADUSDT"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance ticker BADUSDT")
}

func TestGetOrderBook(t *testing.T) {
	c := newTestClient(t, &restStub{})
	require.NoError(t, c.Connect(context.Background()))

	book, err := c.GetOrderBook(context.Background(), "BTCUSDT", 5)
	require.NoError(t, err)

	require.Len(t, book.Bids, 3)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, 43250.0, book.Bids[0].Price)
	assert.Equal(t, 43251.0, book.Asks[0].Price)

	for _, side := range [][]exchange.OrderBookEntry{book.Bids, book.Asks} {
		var sum float64
		for _, e := range side {
			sum += e.Quantity
			assert.Equal(t, sum, e.Total)
		}
	}
}

func TestBalances(t *testing.T) {
	c := newTestClient(t, &restStub{})
	require.NoError(t, c.Connect(context.Background()))

	balances, err := c.GetBalances(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, balances)
	for _, b := range balances {
		assert.Equal(t, b.Free+b.Locked, b.Total)
	}
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &restStub{})
	require.NoError(t, c.Connect(ctx))

	market, err := c.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "btc-usdt", Side: exchange.Buy, Type: exchange.Market, Amount: 0.25})
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusFilled, market.Status)
	assert.Equal(t, "BTCUSDT", market.Symbol)
	assert.Equal(t, market.Amount, market.Filled+market.Remaining)

	limit, err := c.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "ETHUSDT", Side: exchange.Sell, Type: exchange.Limit, Amount: 3, Price: 2700})
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusPending, limit.Status)
	assert.Equal(t, limit.Amount, limit.Filled+limit.Remaining)

	_, err = c.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "ETHUSDT", Side: exchange.Sell, Type: exchange.Limit, Amount: 3})
	assert.ErrorIs(t, err, exchange.ErrInvalidOrder)

	require.NoError(t, c.CancelOrder(ctx, limit.ID))
	got, err := c.GetOrderStatus(ctx, limit.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusCancelled, got.Status)

	assert.ErrorIs(t, c.CancelOrder(ctx, market.ID), exchange.ErrOrderNotCancellable)
	_, err = c.GetOrderStatus(ctx, "nope")
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)

	history, err := c.GetTradeHistory(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, market.ID, history[0].ID)

	history, err = c.GetTradeHistory(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func tickerServer(t *testing.T, messages []string) (*httptest.Server, chan string) {
	t.Helper()
	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.RequestURI()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, paths
}

func TestSubscribeTicker_SingleStream(t *testing.T) {
	srv, paths := tickerServer(t, []string{
		`{"result":null,"id":1}`,
		`{"e":"24hrTicker","E":1700000000123,"s":"BTCUSDT","P":"1.25","c":"43300.5","C":1700000000000,"h":"43500","l":"42000","v":"1000.5","q":"43000000","O":1699913600000,"o":"42765.0"}`,
	})

	c := New(exchange.Config{StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http")})

	var mu sync.Mutex
	var got []exchange.MarketData
	stream, err := c.SubscribeTicker(context.Background(), []string{"BTCUSDT"}, func(md exchange.MarketData) {
		mu.Lock()
		got = append(got, md)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, "/ws/btcusdt@ticker", <-paths)

	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the server closed the connection")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, 43300.5, got[0].Price)
	assert.Equal(t, 1.25, got[0].Change24h)
	assert.Equal(t, time.UnixMilli(1700000000123), got[0].Timestamp)
}

func TestSubscribeTicker_CombinedStream(t *testing.T) {
	srv, paths := tickerServer(t, []string{
		`{"stream":"ethusdt@ticker","data":{"e":"24hrTicker","E":1700000000500,"s":"ETHUSDT","c":"2650.10","C":1700000000000,"P":"-0.5","h":"2700","l":"2600","v":"5000"}}`,
	})

	c := New(exchange.Config{StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	updates := make(chan exchange.MarketData, 4)
	stream, err := c.SubscribeTicker(context.Background(), []string{"BTCUSDT", "eth-usdt"}, func(md exchange.MarketData) {
		updates <- md
	})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, "/stream?streams=btcusdt@ticker/ethusdt@ticker", <-paths)

	select {
	case md := <-updates:
		assert.Equal(t, "ETHUSDT", md.Symbol)
		assert.Equal(t, 2650.10, md.Price)
		assert.Equal(t, -0.5, md.Change24h)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ticker update")
	}
}

func TestSubscribeTicker_ContextCancelStopsStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(exchange.Config{StreamURL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.SubscribeTicker(ctx, []string{"BTCUSDT"}, func(exchange.MarketData) {})
	require.NoError(t, err)

	cancel()
	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream still running after context cancel")
	}
}

func TestSubscribeTicker_NoSymbols(t *testing.T) {
	c := New(exchange.Config{})
	_, err := c.SubscribeTicker(context.Background(), nil, func(exchange.MarketData) {})
	assert.Error(t, err)
}
