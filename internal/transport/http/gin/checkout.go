package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/service/checkout"
	"github.com/kirinyoku/tixfront/internal/service/orders"
)

const idemLockTTL = 60 * time.Second

// @Summary  Checkout screen: held cart and countdown
// @Success  200 {object} checkout.View
// @Failure  502 {object} ErrorResponse
// @Router   /checkout [get]
func handleLoadCheckout() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := currentSession(c).Checkout.Load(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// @Summary  Countdown state
// @Success  200 {object} checkout.Timer
// @Router   /checkout/timer [get]
func handleCheckoutTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, currentSession(c).Checkout.Timer())
	}
}

// @Summary  Leave the checkout screen
// @Success  204
// @Router   /checkout [delete]
func handleCloseCheckout() gin.HandlerFunc {
	return func(c *gin.Context) {
		currentSession(c).Checkout.Close()
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Release one held item
// @Param    seatId path int true "Seat ID"
// @Success  200 {object} checkout.View
// @Failure  422 {object} ErrorResponse
// @Router   /checkout/items/{seatId} [delete]
func handleRemoveCheckoutItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		seatID, ok := parseInt64Param(c, "seatId")
		if !ok {
			return
		}
		v, err := currentSession(c).Checkout.RemoveItem(c.Request.Context(), seatID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// @Summary  Place an order (idempotent)
// @Param    req body  CreateOrderRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.PlacedOrder
// @Failure  409 {object} ErrorResponse "idem in progress"
// @Failure  410 {object} ErrorResponse "cart expired"
// @Failure  422 {object} ErrorResponse
// @Router   /checkout/orders [post]
func handleCreateOrder(idem Idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sess := currentSession(c)

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemOrder(sess.ID, idemKey)

			state, payload, err := idem.Begin(c.Request.Context(), idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			switch state {
			case redisrepo.IdemReplay:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			case redisrepo.IdemBusy:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{
					Kind:  kindConflict,
					Code:  "idempotency_in_progress",
					Error: "idempotency key in progress",
				})
				return
			}
		}

		order, err := sess.Checkout.CreateOrder(c.Request.Context(), checkout.OrderInput{
			Name:  req.Name,
			Phone: req.Phone,
		})
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(order)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, order)
	}
}

// @Summary  Orders of the session's user
// @Success  200 {array} upstream.Order
// @Router   /orders [get]
func handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := currentSession(c).Orders.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Tickets of an order
// @Param    oid path int true "Order ID"
// @Success  200 {object} upstream.OrderTickets
// @Router   /orders/{oid}/tickets [get]
func handleOrderTickets() gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := parseInt64Param(c, "oid")
		if !ok {
			return
		}
		t, err := currentSession(c).Orders.Tickets(c.Request.Context(), oid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Request a refund
// @Param    oid path int true "Order ID"
// @Param    req body RefundRequest true "payload"
// @Success  204
// @Failure  422 {object} ErrorResponse
// @Router   /orders/{oid}/refund [post]
func handleRefund() gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := parseInt64Param(c, "oid")
		if !ok {
			return
		}
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		err := currentSession(c).Orders.Refund(c.Request.Context(), orders.RefundInput{
			OrderID: oid,
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Reason:  req.Reason,
		})
		respondErr(c, err)
	}
}

// @Summary  Cancel an unpaid order
// @Param    oid path int true "Order ID"
// @Success  204
// @Router   /orders/{oid} [delete]
func handleDeleteOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := parseInt64Param(c, "oid")
		if !ok {
			return
		}
		respondErr(c, currentSession(c).Orders.Delete(c.Request.Context(), oid))
	}
}

// @Summary  Local receipt of an order placed by this session
// @Param    oid path int true "Order ID"
// @Success  200 {object} domain.Receipt
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{oid}/receipt [get]
func handleReceipt() gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := parseInt64Param(c, "oid")
		if !ok {
			return
		}
		r, err := currentSession(c).Orders.Receipt(c.Request.Context(), oid)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, r, "private, max-age=60", true)
	}
}
