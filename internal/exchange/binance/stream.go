package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
)

// TickerEvent is a 24hrTicker stream payload. Binance reuses letters in
// both cases, so every key is declared to keep encoding/json from folding
// "C" into "c".
type TickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	PrevClosePrice     string `json:"x"`
	LastPrice          string `json:"c"`
	CloseTime          int64  `json:"C"`
	LastQty            string `json:"Q"`
	QuoteVolume        string `json:"q"`
	BidPrice           string `json:"b"`
	BidQty             string `json:"B"`
	AskPrice           string `json:"a"`
	AskQty             string `json:"A"`
	OpenPrice          string `json:"o"`
	OpenTime           int64  `json:"O"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
	LastID             int64  `json:"L"`
	FirstID            int64  `json:"F"`
	Volume             string `json:"v"`
	Count              int64  `json:"n"`
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// TickerStream is a live ticker subscription. It is never re-established:
// once the connection drops, Done is closed and no more updates arrive.
type TickerStream struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func (s *TickerStream) Done() <-chan struct{} {
	return s.done
}

func (s *TickerStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// SubscribeTicker opens a raw ticker stream for symbols and calls handler
// for every update. It works independently of Connect and the polling
// methods.
func (c *Client) SubscribeTicker(ctx context.Context, symbols []string, handler func(exchange.MarketData)) (*TickerStream, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("binance subscribe: no symbols")
	}

	url := c.tickerURL(symbols)
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance subscribe: WebSocket connection failed: %w", err)
	}

	stream := &TickerStream{
		conn:   conn,
		done:   make(chan struct{}),
		logger: c.logger,
	}
	c.logger.Info("ticker stream opened", slog.String("url", url))

	go stream.watch(ctx)
	go stream.handleMessages(handler, c.now)

	return stream, nil
}

func (c *Client) tickerURL(symbols []string) string {
	base := strings.TrimRight(c.streamURL, "/")
	if len(symbols) == 1 {
		return base + "/ws/" + streamName(symbols[0])
	}
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = streamName(s)
	}
	return base + "/stream?streams=" + strings.Join(names, "/")
}

func streamName(symbol string) string {
	return strings.ToLower(exchange.FormatSymbol(symbol)) + "@ticker"
}

func (s *TickerStream) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		s.Close()
	case <-s.done:
	}
}

func (s *TickerStream) handleMessages(handler func(exchange.MarketData), now func() time.Time) {
	defer close(s.done)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Warn("ticker stream read error", slog.Any("error", err))
			s.Close()
			return
		}

		md, ok := decodeTicker(message, now)
		if !ok {
			continue
		}
		handler(md)
	}
}

func decodeTicker(message []byte, now func() time.Time) (exchange.MarketData, bool) {
	payload := message
	var combined combinedMessage
	if err := json.Unmarshal(message, &combined); err == nil && combined.Stream != "" {
		payload = combined.Data
	}

	var ev TickerEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.EventType != "24hrTicker" {
		return exchange.MarketData{}, false
	}

	ts := now()
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime)
	}
	return exchange.MarketData{
		Exchange:  Name,
		Symbol:    ev.Symbol,
		Price:     parseFloat(ev.LastPrice),
		Volume24h: parseFloat(ev.Volume),
		Change24h: parseFloat(ev.PriceChangePercent),
		High24h:   parseFloat(ev.HighPrice),
		Low24h:    parseFloat(ev.LowPrice),
		Timestamp: ts,
	}, true
}
