package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/tixfront/internal/seatmap"
	"github.com/kirinyoku/tixfront/internal/service/reservation"
	"github.com/kirinyoku/tixfront/internal/session"
)

// @Summary  Open an event for reservation
// @Param    req body  OpenReservationRequest true "payload"
// @Success  200 {object} ReservationResponse
// @Failure  404 {object} ErrorResponse
// @Router   /reservation [post]
func handleOpenReservation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OpenReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sess := currentSession(c)
		_, err := sess.Open(c.Request.Context(), reservation.OpenRequest{
			ActionID: req.ActionID,
			VenueID:  req.VenueID,
			CityID:   req.CityID,
			EventID:  req.EventID,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		respondReservation(c, sess)
	}
}

// @Summary  Reservation screen
// @Success  200 {object} ReservationResponse
// @Failure  409 {object} ErrorResponse
// @Router   /reservation [get]
func handleGetReservation() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondReservation(c, currentSession(c))
	}
}

// @Summary  Seat map SVG of the open event
// @Produce  image/svg+xml
// @Success  200 {string} string
// @Failure  404 {object} ErrorResponse
// @Router   /reservation/schema [get]
func handleGetSchema() gin.HandlerFunc {
	return func(c *gin.Context) {
		svg, err := currentSession(c).Reservation.Schema(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeWithCache(c, http.StatusOK, "image/svg+xml", []byte(svg), "private, max-age=300", false)
	}
}

// @Summary  Add one ticket of a single-price category
// @Param    cid path int true "Category ID"
// @Success  200 {object} ReservationResponse
// @Failure  422 {object} ErrorResponse
// @Router   /reservation/categories/{cid}/increase [post]
func handleIncreaseCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		mutate(c, func(sess *session.Session) error {
			return sess.Reservation.IncreaseCategory(cid)
		})
	}
}

// @Summary  Remove one ticket of a single-price category
// @Param    cid path int true "Category ID"
// @Success  200 {object} ReservationResponse
// @Router   /reservation/categories/{cid}/decrease [post]
func handleDecreaseCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		mutate(c, func(sess *session.Session) error {
			return sess.Reservation.DecreaseCategory(cid)
		})
	}
}

// @Summary  Open the tariff editor of a category
// @Param    cid path int true "Category ID"
// @Success  200 {object} reservation.DraftView
// @Failure  422 {object} ErrorResponse
// @Router   /reservation/categories/{cid}/draft [post]
func handleOpenDraft() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		draft(c, func(sess *session.Session) (reservation.DraftView, error) {
			return sess.Reservation.OpenDraft(cid)
		})
	}
}

// @Summary  Add one ticket of a tariff to the draft
// @Param    cid path int true "Category ID"
// @Param    tid path int true "Tariff ID"
// @Success  200 {object} reservation.DraftView
// @Failure  409 {object} ErrorResponse
// @Router   /reservation/categories/{cid}/draft/{tid}/increase [post]
func handleDraftIncrease() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		tid, ok := parseInt64Param(c, "tid")
		if !ok {
			return
		}
		draft(c, func(sess *session.Session) (reservation.DraftView, error) {
			return sess.Reservation.DraftIncrease(cid, tid)
		})
	}
}

// @Summary  Remove one ticket of a tariff from the draft
// @Param    cid path int true "Category ID"
// @Param    tid path int true "Tariff ID"
// @Success  200 {object} reservation.DraftView
// @Router   /reservation/categories/{cid}/draft/{tid}/decrease [post]
func handleDraftDecrease() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		tid, ok := parseInt64Param(c, "tid")
		if !ok {
			return
		}
		draft(c, func(sess *session.Session) (reservation.DraftView, error) {
			return sess.Reservation.DraftDecrease(cid, tid)
		})
	}
}

// @Summary  Write the draft into the cart
// @Param    cid path int true "Category ID"
// @Success  200 {object} ReservationResponse
// @Router   /reservation/categories/{cid}/draft [put]
func handleApplyDraft() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		mutate(c, func(sess *session.Session) error {
			return sess.Reservation.ApplyDraft(cid)
		})
	}
}

// @Summary  Drop every tariff line of a category
// @Param    cid path int true "Category ID"
// @Success  200 {object} ReservationResponse
// @Router   /reservation/categories/{cid}/draft [delete]
func handleResetDraft() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, ok := parseInt64Param(c, "cid")
		if !ok {
			return
		}
		mutate(c, func(sess *session.Session) error {
			return sess.Reservation.ResetDraft(cid)
		})
	}
}

// @Summary  Close the tariff editor without touching the cart
// @Success  200 {object} ReservationResponse
// @Router   /reservation/draft [delete]
func handleCloseDraft() gin.HandlerFunc {
	return func(c *gin.Context) {
		mutate(c, func(sess *session.Session) error {
			sess.Reservation.CloseDraft()
			return nil
		})
	}
}

// @Summary  Seat map widget event
// @Param    req body  SeatMapEventRequest true "payload"
// @Success  200 {object} SeatMapResponse
// @Failure  409 {object} ErrorResponse
// @Router   /reservation/seatmap/events [post]
func handleSeatMapEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SeatMapEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sess := currentSession(c)
		cmds, err := sess.SeatEvent(seatmap.Event{
			Kind: seatmap.EventKind(req.Kind),
			Seat: req.Seat,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		respondSeatMap(c, sess, cmds)
	}
}

// @Summary  Choose a tariff for the pending seat
// @Param    req body  ChooseTariffRequest true "payload"
// @Success  200 {object} SeatMapResponse
// @Failure  409 {object} ErrorResponse
// @Router   /reservation/seatmap/tariff [post]
func handleChooseTariff() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChooseTariffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sess := currentSession(c)
		cmds, err := sess.ChooseTariff(req.TariffID)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondSeatMap(c, sess, cmds)
	}
}

// @Summary  Dismiss the tariff picker
// @Success  200 {object} SeatMapResponse
// @Router   /reservation/seatmap/tariff [delete]
func handleCancelTariff() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		respondSeatMap(c, sess, sess.CancelTariff())
	}
}

// @Summary  Remove a line from the reservation summary
// @Param    key path string true "Cart item key"
// @Success  200 {object} SeatMapResponse
// @Router   /reservation/items/{key} [delete]
func handleRemoveReservationItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		cmds, err := sess.RemoveItem(c.Param("key"))
		if err != nil {
			respondErr(c, err)
			return
		}
		respondSeatMap(c, sess, cmds)
	}
}

// @Summary  Reserve the cart on the server
// @Success  200 {object} CommitResponse
// @Failure  401 {object} ErrorResponse "email required"
// @Failure  409 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /reservation/commit [post]
func handleCommit() gin.HandlerFunc {
	return func(c *gin.Context) {
		hold, err := currentSession(c).Reservation.Commit(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CommitResponse{Hold: hold})
	}
}

// @Summary  Authenticate by email and resume a suspended commit
// @Param    req body  AuthRequest true "payload"
// @Success  200 {object} AuthResponse
// @Failure  422 {object} ErrorResponse
// @Router   /auth [post]
func handleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		hold, replayed, err := currentSession(c).Reservation.Authenticate(c.Request.Context(), req.Email)
		if err != nil {
			respondErr(c, err)
			return
		}
		resp := AuthResponse{Replayed: replayed}
		if replayed {
			resp.Hold = &hold
		}
		c.JSON(http.StatusOK, resp)
	}
}

func mutate(c *gin.Context, fn func(sess *session.Session) error) {
	sess := currentSession(c)
	if err := sess.Mutate(func() error { return fn(sess) }); err != nil {
		respondErr(c, err)
		return
	}
	respondReservation(c, sess)
}

func draft(c *gin.Context, fn func(sess *session.Session) (reservation.DraftView, error)) {
	sess := currentSession(c)
	var v reservation.DraftView
	err := sess.Mutate(func() error {
		var err error
		v, err = fn(sess)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func respondSeatMap(c *gin.Context, sess *session.Session, cmds []seatmap.Command) {
	if cmds == nil {
		cmds = []seatmap.Command{}
	}
	c.JSON(http.StatusOK, SeatMapResponse{
		Commands: cmds,
		SeatMap:  sess.SeatMapState(),
		Cart:     sess.Cart.Snapshot(),
	})
}
