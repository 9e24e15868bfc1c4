package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/service"
	"github.com/kirinyoku/tixfront/internal/session"
)

// Sessions resolves the browser session of a request.
type Sessions interface {
	Acquire(ctx context.Context, id, token string) (*session.Session, error)
}

// Idempotency guards order placement against client retries.
type Idempotency interface {
	Begin(ctx context.Context, key string, lockTTL time.Duration) (redisrepo.IdemState, string, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	Release(ctx context.Context, key string) error
}

func NewRouter(
	svcs *service.Services,
	idem Idempotency,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s := r.Group("", SessionMiddleware(svcs.Sessions))

	res := s.Group("/reservation")
	{
		res.POST("", handleOpenReservation())
		res.GET("", handleGetReservation())
		res.GET("/schema", handleGetSchema())

		res.POST("/categories/:cid/increase", handleIncreaseCategory())
		res.POST("/categories/:cid/decrease", handleDecreaseCategory())

		res.POST("/categories/:cid/draft", handleOpenDraft())
		res.POST("/categories/:cid/draft/:tid/increase", handleDraftIncrease())
		res.POST("/categories/:cid/draft/:tid/decrease", handleDraftDecrease())
		res.PUT("/categories/:cid/draft", handleApplyDraft())
		res.DELETE("/categories/:cid/draft", handleResetDraft())
		res.DELETE("/draft", handleCloseDraft())

		res.POST("/seatmap/events", handleSeatMapEvent())
		res.POST("/seatmap/tariff", handleChooseTariff())
		res.DELETE("/seatmap/tariff", handleCancelTariff())

		res.DELETE("/items/:key", handleRemoveReservationItem())
		res.POST("/commit", handleCommit())
	}

	s.POST("/auth", handleAuth())

	co := s.Group("/checkout")
	{
		co.GET("", handleLoadCheckout())
		co.GET("/timer", handleCheckoutTimer())
		co.DELETE("", handleCloseCheckout())
		co.DELETE("/items/:seatId", handleRemoveCheckoutItem())
		co.POST("/orders", handleCreateOrder(idem))
	}

	ord := s.Group("/orders")
	{
		ord.GET("", handleListOrders())
		ord.GET("/:oid/tickets", handleOrderTickets())
		ord.POST("/:oid/refund", handleRefund())
		ord.DELETE("/:oid", handleDeleteOrder())
		ord.GET("/:oid/receipt", handleReceipt())
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Kind: kindInvalid, Error: msg})
}

// respondReservation writes the reservation screen after a mutation.
func respondReservation(c *gin.Context, sess *session.Session) {
	v, err := sess.Reservation.View()
	if err != nil {
		respondErr(c, err)
		return
	}
	writeJSONWithCache(c, http.StatusOK, ReservationResponse{
		View:    v,
		SeatMap: sess.SeatMapState(),
	}, "no-cache", true)
}
