package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HyperCogAI/hypercognition-sub001/internal/arbitrage"
	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/manager"
)

// Exchanges is the part of the manager the API serves.
type Exchanges interface {
	AddExchange(ctx context.Context, t exchange.Type, cfg exchange.Config) error
	RemoveExchange(ctx context.Context, t exchange.Type) error
	SetActiveExchange(t exchange.Type) error
	Status() manager.Status
	Subscribe() (<-chan manager.Status, func())

	GetMarketData(ctx context.Context, symbols []string) ([]exchange.MarketData, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (exchange.OrderBook, error)
	GetBalances(ctx context.Context) ([]exchange.Balance, error)
	PlaceOrder(ctx context.Context, spec exchange.OrderSpec) (exchange.TradeOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (exchange.TradeOrder, error)
	GetTradeHistory(ctx context.Context, symbol string, limit int) ([]exchange.TradeOrder, error)

	GetAggregatedMarketData(ctx context.Context, symbols []string) (map[exchange.Type][]exchange.MarketData, error)
	GetAggregatedOrderBooks(ctx context.Context, symbol string, limit int) (map[exchange.Type]exchange.OrderBook, error)
	GetBestPrice(ctx context.Context, symbol string, side exchange.Side) (*manager.Quote, error)
}

// Snapshots reads cached market data.
type Snapshots interface {
	LatestMarketData(ctx context.Context, exchangeName, symbol string) (*exchange.MarketData, error)
}

type Handler struct {
	exchanges Exchanges
	snapshots Snapshots
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewHandler builds the handler set. snapshots may be nil when no cache
// is configured.
func NewHandler(exchanges Exchanges, snapshots Snapshots, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		exchanges: exchanges,
		snapshots: snapshots,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type AddExchangeRequest struct {
	Type        exchange.Type `json:"type" binding:"required"`
	APIKey      string        `json:"api_key"`
	APISecret   string        `json:"api_secret"`
	Testnet     bool          `json:"testnet"`
	RateLimitMS int           `json:"rate_limit_ms" binding:"gte=0"`
}

type SetActiveRequest struct {
	Type exchange.Type `json:"type" binding:"required"`
}

// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.exchanges.Status())
}

// POST /api/exchanges
func (h *Handler) AddExchange(c *gin.Context) {
	var req AddExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	t := exchange.Type(strings.ToLower(string(req.Type)))
	cfg := exchange.Config{
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
		Testnet:   req.Testnet,
		RateLimit: time.Duration(req.RateLimitMS) * time.Millisecond,
	}
	if err := h.exchanges.AddExchange(c.Request.Context(), t, cfg); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.exchanges.Status())
}

// DELETE /api/exchanges/:type
func (h *Handler) RemoveExchange(c *gin.Context) {
	t := exchange.Type(strings.ToLower(c.Param("type")))
	if err := h.exchanges.RemoveExchange(c.Request.Context(), t); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.exchanges.Status())
}

// PUT /api/exchanges/active
func (h *Handler) SetActiveExchange(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.exchanges.SetActiveExchange(exchange.Type(strings.ToLower(string(req.Type)))); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.exchanges.Status())
}

// GET /api/market?symbols=BTCUSDT,ETHUSDT
func (h *Handler) GetMarketData(c *gin.Context) {
	symbols, ok := symbolsParam(c)
	if !ok {
		return
	}
	data, err := h.exchanges.GetMarketData(c.Request.Context(), symbols)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GET /api/market/aggregated?symbols=BTCUSDT
func (h *Handler) GetAggregatedMarketData(c *gin.Context) {
	symbols, ok := symbolsParam(c)
	if !ok {
		return
	}
	data, err := h.exchanges.GetAggregatedMarketData(c.Request.Context(), symbols)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GET /api/best-price?symbol=BTCUSDT&side=buy
func (h *Handler) GetBestPrice(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	side := exchange.Side(strings.ToLower(c.DefaultQuery("side", string(exchange.Buy))))

	quote, err := h.exchanges.GetBestPrice(c.Request.Context(), symbol, side)
	if err != nil {
		h.fail(c, err)
		return
	}
	if quote == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no exchange reports " + symbol})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GET /api/orderbook?symbol=BTCUSDT&limit=20
func (h *Handler) GetOrderBook(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	book, err := h.exchanges.GetOrderBook(c.Request.Context(), symbol, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// GET /api/balances
func (h *Handler) GetBalances(c *gin.Context) {
	balances, err := h.exchanges.GetBalances(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// POST /api/orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	var spec exchange.OrderSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := exchange.ValidateOrder(spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.exchanges.PlaceOrder(c.Request.Context(), spec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// DELETE /api/orders/:id
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.exchanges.CancelOrder(c.Request.Context(), orderID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order cancelled", "order_id": orderID})
}

// GET /api/orders/:id
func (h *Handler) GetOrderStatus(c *gin.Context) {
	order, err := h.exchanges.GetOrderStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GET /api/trades?symbol=BTCUSDT&limit=50
func (h *Handler) GetTradeHistory(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	trades, err := h.exchanges.GetTradeHistory(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// GET /api/arbitrage?symbol=BTCUSDT
func (h *Handler) GetArbitrage(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	books, err := h.exchanges.GetAggregatedOrderBooks(c.Request.Context(), symbol, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	op, err := arbitrage.Find(symbol, books)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, op)
}

// GET /api/snapshots/:type/:symbol
func (h *Handler) GetSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot cache disabled"})
		return
	}
	md, err := h.snapshots.LatestMarketData(c.Request.Context(), c.Param("type"), c.Param("symbol"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if md == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot"})
		return
	}
	c.JSON(http.StatusOK, md)
}

// GET /ws/status pushes every status change as a JSON text frame.
func (h *Handler) StreamStatus(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("status stream upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.exchanges.Subscribe()
	defer unsubscribe()

	// the reader only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				h.logger.Debug("status stream write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Warn("request failed",
			slog.String("endpoint", c.FullPath()),
			slog.Any("error", err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, exchange.ErrInvalidOrder),
		errors.Is(err, exchange.ErrMissingCredentials),
		errors.Is(err, exchange.ErrUnsupportedSymbol),
		errors.Is(err, manager.ErrUnknownExchangeType):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrExchangeNotFound),
		errors.Is(err, exchange.ErrOrderNotFound),
		errors.Is(err, arbitrage.ErrNoCrossExchangeQuotes):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrExchangeExists),
		errors.Is(err, manager.ErrNoActiveExchange),
		errors.Is(err, manager.ErrExchangeNotConnected),
		errors.Is(err, exchange.ErrNotConnected),
		errors.Is(err, exchange.ErrOrderNotCancellable):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func symbolParam(c *gin.Context) (string, bool) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'symbol' query parameter"})
		return "", false
	}
	return symbol, true
}

func symbolsParam(c *gin.Context) ([]string, bool) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'symbols' query parameter"})
		return nil, false
	}
	return symbols, true
}

// limitParam returns 0 (adapter default) when limit is absent.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'limit' must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
