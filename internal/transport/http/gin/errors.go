package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/tixfront/internal/seatmap"
	"github.com/kirinyoku/tixfront/internal/service/checkout"
	"github.com/kirinyoku/tixfront/internal/service/orders"
	"github.com/kirinyoku/tixfront/internal/service/reservation"
	"github.com/kirinyoku/tixfront/internal/upstream"
)

const (
	kindMessage      = "message"
	kindAuthRequired = "auth_required"
	kindConflict     = "conflict"
	kindNotFound     = "not_found"
	kindInvalid      = "invalid"
	kindCritical     = "critical"
)

// localErr is how a service sentinel reaches the browser.
type localErr struct {
	err    error
	status int
	kind   string
	code   string
}

var localErrs = []localErr{
	{reservation.ErrCommitInProgress, http.StatusConflict, kindConflict, "commit_in_progress"},
	{reservation.ErrStaleCommit, http.StatusConflict, kindConflict, "cart_cleared"},
	{reservation.ErrNotOpened, http.StatusConflict, kindConflict, "not_opened"},
	{reservation.ErrDraftNotOpen, http.StatusConflict, kindConflict, "draft_not_open"},
	{seatmap.ErrNotReady, http.StatusConflict, kindConflict, "seat_map_not_ready"},
	{seatmap.ErrNoPendingSeat, http.StatusConflict, kindConflict, "no_pending_seat"},
	{checkout.ErrNotLoaded, http.StatusConflict, kindConflict, "checkout_not_loaded"},
	{checkout.ErrCartExpired, http.StatusGone, kindConflict, "cart_expired"},

	{reservation.ErrEventNotFound, http.StatusNotFound, kindNotFound, "event_not_found"},
	{reservation.ErrCategoryNotFound, http.StatusNotFound, kindNotFound, "category_not_found"},
	{reservation.ErrTariffNotFound, http.StatusNotFound, kindNotFound, "tariff_not_found"},
	{reservation.ErrNoSeatMap, http.StatusNotFound, kindNotFound, "no_seat_map"},
	{seatmap.ErrSeatNotOnChart, http.StatusNotFound, kindNotFound, "seat_not_on_chart"},
	{orders.ErrReceiptNotFound, http.StatusNotFound, kindNotFound, "receipt_not_found"},

	{seatmap.ErrUnknownEvent, http.StatusBadRequest, kindInvalid, "unknown_event"},
	{orders.ErrInvalidOrderID, http.StatusBadRequest, kindInvalid, "invalid_order_id"},

	{reservation.ErrNothingSelectable, http.StatusUnprocessableEntity, kindMessage, "nothing_selectable"},
	{reservation.ErrTariffRequired, http.StatusUnprocessableEntity, kindMessage, "tariff_required"},
	{reservation.ErrNoTariffs, http.StatusUnprocessableEntity, kindMessage, "no_tariffs"},
	{reservation.ErrEmptyCart, http.StatusUnprocessableEntity, kindMessage, "empty_cart"},
	{reservation.ErrInvalidEmail, http.StatusUnprocessableEntity, kindMessage, "invalid_email"},
	{seatmap.ErrTariffNotFound, http.StatusUnprocessableEntity, kindMessage, "tariff_not_offered"},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity, kindMessage, "empty_cart"},
	{checkout.ErrItemNotFound, http.StatusUnprocessableEntity, kindMessage, "item_not_held"},
	{checkout.ErrInvalidName, http.StatusUnprocessableEntity, kindMessage, "invalid_name"},
	{checkout.ErrInvalidPhone, http.StatusUnprocessableEntity, kindMessage, "invalid_phone"},
	{orders.ErrInvalidRefund, http.StatusUnprocessableEntity, kindMessage, "invalid_refund"},
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	// wraps the upstream error, so it goes first
	if errors.Is(err, reservation.ErrAuthRequired) {
		c.JSON(http.StatusUnauthorized, authRequired())
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Kind:  kindConflict,
			Code:  "rate_limited",
			Error: rl.Error(),
		})
		return
	}

	for _, le := range localErrs {
		if errors.Is(err, le.err) {
			c.JSON(le.status, ErrorResponse{
				Kind:    le.kind,
				Code:    le.code,
				Message: le.err.Error(),
			})
			return
		}
	}

	if ae, ok := upstream.AsAPIError(err); ok {
		switch upstream.Classify(err) {
		case upstream.KindAuthRequired:
			c.JSON(http.StatusUnauthorized, authRequired())
		case upstream.KindAdvisory:
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Kind:    kindMessage,
				Code:    ae.Code,
				Message: ae.Message,
				Advice:  ae.Advice,
			})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Kind:    kindCritical,
				Code:    ae.Code,
				Message: ae.Message,
				Advice:  ae.Advice,
			})
		}
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusBadGateway, ErrorResponse{Kind: kindCritical, Error: "upstream unavailable"})
}

func authRequired() ErrorResponse {
	return ErrorResponse{Kind: kindAuthRequired, Code: upstream.CodeUnauthorized}
}
