package simulated

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testProfile() Profile {
	return Profile{
		Name: "TestVenue",
		Prices: map[string]float64{
			"BTCUSDT": 40000,
			"ETHUSDT": 2500,
			"ADAUSDT": 0.5,
		},
		Variation:     0.02,
		ExecutionRate: 1,
		CancelRate:    1,
		Symbols: exchange.NewSymbolMap(map[string]string{
			"BTCUSDT": "BTC-USD",
			"ETHUSDT": "ETH-USD",
		}),
		Balances: map[string]float64{"BTC": 1, "USD": 10000},
	}
}

func newVenue(t *testing.T, p Profile, cfg exchange.Config) *Venue {
	t.Helper()
	rl := exchange.NewRateLimiter(0, exchange.WithClock(nil, noSleep))
	return New(p, cfg,
		WithRand(rand.New(rand.NewSource(42))),
		WithSleep(noSleep),
		WithRateLimiter(rl),
	)
}

func connected(t *testing.T, p Profile) *Venue {
	t.Helper()
	v := newVenue(t, p, exchange.Config{APIKey: "key", APISecret: "secret"})
	require.NoError(t, v.Connect(context.Background()))
	return v
}

func TestConnect_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  exchange.Config
	}{
		{name: "No Credentials", cfg: exchange.Config{}},
		{name: "Missing Secret", cfg: exchange.Config{APIKey: "key"}},
		{name: "Missing Key", cfg: exchange.Config{APISecret: "secret"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newVenue(t, testProfile(), tc.cfg)
			err := v.Connect(context.Background())
			assert.ErrorIs(t, err, exchange.ErrMissingCredentials)
			assert.False(t, v.IsConnected())
		})
	}
}

func TestConnect_HonoursLatencyAndContext(t *testing.T) {
	p := testProfile()
	p.ConnectLatency = time.Hour
	v := New(p, exchange.Config{APIKey: "k", APISecret: "s"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := v.Connect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, v.IsConnected())
}

func TestCallsBeforeConnect(t *testing.T) {
	v := newVenue(t, testProfile(), exchange.Config{APIKey: "k", APISecret: "s"})
	ctx := context.Background()

	_, err := v.GetMarketData(ctx, []string{"BTCUSDT"})
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	_, err = v.GetOrderBook(ctx, "BTCUSDT", 5)
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	_, err = v.GetBalances(ctx)
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	_, err = v.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 1})
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	assert.ErrorIs(t, v.CancelOrder(ctx, "x"), exchange.ErrNotConnected)

	_, err = v.GetTradeHistory(ctx, "", 0)
	assert.ErrorIs(t, err, exchange.ErrNotConnected)

	require.NoError(t, v.Connect(ctx))
	require.NoError(t, v.Disconnect(ctx))
	_, err = v.GetOrderStatus(ctx, "x")
	assert.ErrorIs(t, err, exchange.ErrNotConnected)
}

func TestGetMarketData(t *testing.T) {
	v := connected(t, testProfile())

	data, err := v.GetMarketData(context.Background(), []string{"btc-usdt", "ETHUSDT", "DOGEUSDT"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	for _, md := range data {
		base := testProfile().Prices[md.Symbol]
		assert.Equal(t, "TestVenue", md.Exchange)
		assert.InDelta(t, base, md.Price, base*0.0201)
		assert.GreaterOrEqual(t, md.High24h, md.Low24h)
		assert.Positive(t, md.Volume24h)
		assert.False(t, md.Timestamp.IsZero())
	}
	assert.Equal(t, "BTCUSDT", data[0].Symbol)
}

func TestGetMarketData_DeterministicWithSeed(t *testing.T) {
	clock := func() time.Time { return time.Unix(1_700_000_000, 0) }
	build := func() *Venue {
		v := New(testProfile(), exchange.Config{APIKey: "k", APISecret: "s"},
			WithRand(rand.New(rand.NewSource(7))),
			WithSleep(noSleep),
			WithClock(clock),
			WithRateLimiter(exchange.NewRateLimiter(0, exchange.WithClock(nil, noSleep))),
		)
		require.NoError(t, v.Connect(context.Background()))
		return v
	}

	a, err := build().GetMarketData(context.Background(), []string{"BTCUSDT", "ADAUSDT"})
	require.NoError(t, err)
	b, err := build().GetMarketData(context.Background(), []string{"BTCUSDT", "ADAUSDT"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGetOrderBook_Totals(t *testing.T) {
	v := connected(t, testProfile())

	book, err := v.GetOrderBook(context.Background(), "ETHUSDT", 15)
	require.NoError(t, err)
	require.Len(t, book.Bids, 15)
	require.Len(t, book.Asks, 15)

	for _, side := range [][]exchange.OrderBookEntry{book.Bids, book.Asks} {
		var sum float64
		for _, e := range side {
			sum += e.Quantity
			assert.Equal(t, sum, e.Total)
		}
	}
	for i := 1; i < len(book.Bids); i++ {
		assert.GreaterOrEqual(t, book.Bids[i-1].Price, book.Bids[i].Price)
		assert.LessOrEqual(t, book.Asks[i-1].Price, book.Asks[i].Price)
	}
	assert.Less(t, book.Bids[0].Price, book.Asks[0].Price)
}

func TestGetOrderBook_DefaultAndUnknown(t *testing.T) {
	v := connected(t, testProfile())

	book, err := v.GetOrderBook(context.Background(), "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, book.Bids, defaultBookDepth)

	_, err = v.GetOrderBook(context.Background(), "DOGEUSDT", 10)
	assert.ErrorIs(t, err, exchange.ErrUnsupportedSymbol)
}

func TestGetBalances(t *testing.T) {
	v := connected(t, testProfile())

	balances, err := v.GetBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "BTC", balances[0].Asset)

	for _, b := range balances {
		assert.Equal(t, b.Free+b.Locked, b.Total)
		assert.GreaterOrEqual(t, b.Locked, 0.0)
	}
}

func TestPlaceOrder(t *testing.T) {
	tests := []struct {
		name       string
		execRate   float64
		spec       exchange.OrderSpec
		wantStatus exchange.OrderStatus
		wantErr    error
	}{
		{
			name:       "Market Order Fills",
			execRate:   1,
			spec:       exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 0.3},
			wantStatus: exchange.StatusFilled,
		},
		{
			name:       "Limit Order Rests",
			execRate:   1,
			spec:       exchange.OrderSpec{Symbol: "ETHUSDT", Side: exchange.Sell, Type: exchange.Limit, Amount: 1.7, Price: 2600},
			wantStatus: exchange.StatusPending,
		},
		{
			name:       "Stop Loss Rests",
			execRate:   1,
			spec:       exchange.OrderSpec{Symbol: "ETHUSDT", Side: exchange.Sell, Type: exchange.StopLoss, Amount: 1, Price: 2400},
			wantStatus: exchange.StatusPending,
		},
		{
			name:       "Execution Failure",
			execRate:   0,
			spec:       exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 0.1},
			wantStatus: exchange.StatusFailed,
		},
		{
			name:     "Invalid Spec",
			execRate: 1,
			spec:     exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Limit, Amount: 1},
			wantErr:  exchange.ErrInvalidOrder,
		},
		{
			name:     "Unknown Symbol",
			execRate: 1,
			spec:     exchange.OrderSpec{Symbol: "DOGEUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 1},
			wantErr:  exchange.ErrUnsupportedSymbol,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := testProfile()
			p.ExecutionRate = tc.execRate
			v := connected(t, p)

			order, err := v.PlaceOrder(context.Background(), tc.spec)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, order.ID)
			assert.Equal(t, tc.wantStatus, order.Status)
			assert.True(t, order.Status.Valid())
			assert.Equal(t, tc.spec.Amount, order.Filled+order.Remaining)

			stored, err := v.GetOrderStatus(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, order, stored)
		})
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	v := connected(t, testProfile())

	pending, err := v.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Limit, Amount: 1, Price: 39000})
	require.NoError(t, err)
	require.NoError(t, v.CancelOrder(ctx, pending.ID))

	got, err := v.GetOrderStatus(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusCancelled, got.Status)

	assert.ErrorIs(t, v.CancelOrder(ctx, pending.ID), exchange.ErrOrderNotCancellable)
	assert.ErrorIs(t, v.CancelOrder(ctx, "missing"), exchange.ErrOrderNotFound)

	p := testProfile()
	p.CancelRate = 0
	unlucky := connected(t, p)
	order, err := unlucky.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.Limit, Amount: 1, Price: 39000})
	require.NoError(t, err)
	assert.ErrorIs(t, unlucky.CancelOrder(ctx, order.ID), exchange.ErrOrderNotCancellable)

	got, err = unlucky.GetOrderStatus(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusPending, got.Status)
}

func TestGetTradeHistory(t *testing.T) {
	ctx := context.Background()
	v := connected(t, testProfile())

	placed, err := v.PlaceOrder(ctx, exchange.OrderSpec{Symbol: "ETHUSDT", Side: exchange.Buy, Type: exchange.Market, Amount: 2})
	require.NoError(t, err)

	history, err := v.GetTradeHistory(ctx, "eth/usdt", 10)
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, placed.ID, history[0].ID)

	for i, trade := range history {
		assert.Equal(t, "ETHUSDT", trade.Symbol)
		assert.Equal(t, exchange.StatusFilled, trade.Status)
		assert.Equal(t, trade.Amount, trade.Filled+trade.Remaining)
		if i > 0 {
			assert.True(t, !trade.Timestamp.After(history[i-1].Timestamp))
		}
	}

	all, err := v.GetTradeHistory(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, defaultHistory)

	none, err := v.GetTradeHistory(ctx, "DOGEUSDT", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}
