package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine, h *Handler) {
	api := router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.POST("/exchanges", h.AddExchange)
		api.DELETE("/exchanges/:type", h.RemoveExchange)
		api.PUT("/exchanges/active", h.SetActiveExchange)

		api.GET("/market", h.GetMarketData)
		api.GET("/market/aggregated", h.GetAggregatedMarketData)
		api.GET("/best-price", h.GetBestPrice)
		api.GET("/orderbook", h.GetOrderBook)
		api.GET("/balances", h.GetBalances)

		api.POST("/orders", h.PlaceOrder)
		api.DELETE("/orders/:id", h.CancelOrder)
		api.GET("/orders/:id", h.GetOrderStatus)
		api.GET("/trades", h.GetTradeHistory)

		api.GET("/arbitrage", h.GetArbitrage)
		api.GET("/snapshots/:type/:symbol", h.GetSnapshot)
	}

	router.GET("/ws/status", h.StreamStatus)
}

// NewRouter returns a gin engine with recovery, request logging and every
// route registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))
	RegisterRoutes(router, h)
	return router
}

func NewServer(addr string, h *Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("endpoint", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
