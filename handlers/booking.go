package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slotwise/config"
	"slotwise/models"
	"slotwise/services/reservation"
	"slotwise/utils"
)

// ReservationHandler exposes the reservation engine over HTTP.
type ReservationHandler struct {
	Engine   reservation.Engine
	Bookings reservation.BookingRepository
}

// NewReservationHandler returns a handler bound to the given engine.
func NewReservationHandler(engine reservation.Engine, bookings reservation.BookingRepository) *ReservationHandler {
	return &ReservationHandler{Engine: engine, Bookings: bookings}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(config.AppConfig.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// ListAvailableSlotsHandler handles GET /api/slots?from=&to=&location=.
func (h *ReservationHandler) ListAvailableSlotsHandler(c *gin.Context) {
	from, err := time.Parse(models.DateLayout, c.Query("from"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "from must be a date in YYYY-MM-DD form")
		return
	}
	to, err := time.Parse(models.DateLayout, c.Query("to"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "to must be a date in YYYY-MM-DD form")
		return
	}
	horizon := config.AppConfig.SlotHorizonDays
	if horizon > 0 && to.Sub(from) > time.Duration(horizon)*24*time.Hour {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "date range exceeds the slot horizon")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	slots, err := h.Engine.ListAvailableSlots(ctx, from, to, c.Query("location"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// ReserveHandler handles POST /api/bookings.
func (h *ReservationHandler) ReserveHandler(c *gin.Context) {
	var input models.ReserveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	booking, err := h.Engine.Reserve(ctx, input.Slot, input.UserRef)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bookingId": booking.ID, "booking": booking})
}

// ListUserBookingsHandler handles GET /api/bookings/user/:userRef.
func (h *ReservationHandler) ListUserBookingsHandler(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	bookings, err := h.Engine.ListUserBookings(ctx, c.Param("userRef"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// CancelBookingHandler handles DELETE /api/bookings/:id.
func (h *ReservationHandler) CancelBookingHandler(c *gin.Context) {
	var input models.CancelRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Engine.CancelBooking(ctx, c.Param("id"), input.UserRef); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ListConfirmedBookingsHandler handles GET /api/admin/bookings?from=&to=&location=.
// A read-only window over confirmed bookings for operators.
func (h *ReservationHandler) ListConfirmedBookingsHandler(c *gin.Context) {
	from, err := time.Parse(models.DateLayout, c.Query("from"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "from must be a date in YYYY-MM-DD form")
		return
	}
	to, err := time.Parse(models.DateLayout, c.Query("to"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "to must be a date in YYYY-MM-DD form")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	// The end date is inclusive as a calendar date.
	bookings, err := h.Bookings.QueryConfirmed(ctx, c.Query("location"), from, to.AddDate(0, 0, 1))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// respondEngineError maps engine error kinds onto HTTP statuses. The engine
// is the sole boundary translating store failures, so the mapping stays flat.
func respondEngineError(c *gin.Context, err error) {
	var ve *reservation.ValidationError
	var ce *reservation.CollisionError
	var te *reservation.TransientStoreError
	var se *reservation.StoreUnavailableError
	switch {
	case errors.As(err, &ve):
		utils.JSONError(c, http.StatusBadRequest, "invalid request", ve.Reason)
	case errors.As(err, &ce):
		utils.JSONError(c, http.StatusConflict, "slot unavailable", err.Error())
	case errors.As(err, &te):
		utils.JSONError(c, http.StatusServiceUnavailable, "could not commit reservation, try again", err.Error())
	case errors.As(err, &se):
		utils.JSONError(c, http.StatusServiceUnavailable, "service unavailable", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
