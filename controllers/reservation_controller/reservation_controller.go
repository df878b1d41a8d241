package reservation_controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/reservation"
	"github.com/trekvista/booking/utils"
)

// ReservationController exposes the reservation core over HTTP. It owns no
// state beyond the coordinator; all capacity decisions happen in the core.
type ReservationController struct {
	coordinator *reservation.Coordinator
}

func NewReservationController(coordinator *reservation.Coordinator) *ReservationController {
	return &ReservationController{coordinator: coordinator}
}

// WriteError maps a coordinator error to an HTTP response. Retryable codes
// carry a Retry-After hint so well-behaved clients back off before retrying.
func WriteError(c *gin.Context, err error) {
	code := reservation.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case reservation.CodeValidation:
		status = http.StatusBadRequest
	case reservation.CodeNotFound, reservation.CodeVoucherNotFound:
		status = http.StatusNotFound
	case reservation.CodeForbidden:
		status = http.StatusForbidden
	case reservation.CodeSlotUnavailable, reservation.CodeInsufficientCapacity,
		reservation.CodeVoucherExpired, reservation.CodeVoucherExhausted,
		reservation.CodeVoucherUserMismatch, reservation.CodeVoucherBelowMinimum,
		reservation.CodePersistenceConflict:
		status = http.StatusConflict
	case reservation.CodeInvariantViolation, reservation.CodeInternal:
		status = http.StatusInternalServerError
	}

	if code.Retryable() {
		c.Header("Retry-After", "1")
	}

	message := "Internal server error"
	var coded *reservation.Error
	if errors.As(err, &coded) && status != http.StatusInternalServerError {
		message = coded.Message
	}

	c.JSON(status, gin.H{"code": string(code), "error": message})
}

type reserveRequest struct {
	TrekSlug     string `json:"trek_slug" binding:"required"`
	SlotID       string `json:"slot_id" binding:"required"`
	Participants int    `json:"participants" binding:"required"`
	VoucherCode  string `json:"voucher_code"`
}

// ReserveSlot handles POST /v1/bookings.
func (rc *ReservationController) ReserveSlot(c *gin.Context) {
	user, err := utils.GetUserIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid slot_id"})
		return
	}

	booking, err := rc.coordinator.Reserve(c.Request.Context(), reservation.ReservationRequest{
		TrekSlug:     req.TrekSlug,
		SlotID:       slotID,
		User:         user,
		Participants: req.Participants,
		VoucherCode:  req.VoucherCode,
	})
	if err != nil {
		logger.WarnLogger.Warnf("Reservation rejected for user %s on slot %s: %v", user.ID, slotID, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// CancelBooking handles POST /v1/bookings/:id/cancel.
func (rc *ReservationController) CancelBooking(c *gin.Context) {
	user, err := utils.GetUserIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid booking id"})
		return
	}

	booking, err := rc.coordinator.Cancel(c.Request.Context(), bookingID, user)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm. Restricted to the
// admin role; in production this is driven by the payment webhook.
func (rc *ReservationController) ConfirmBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid booking id"})
		return
	}

	booking, err := rc.coordinator.Confirm(c.Request.Context(), bookingID)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// GetBooking handles GET /v1/bookings/:id.
func (rc *ReservationController) GetBooking(c *gin.Context) {
	user, err := utils.GetUserIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid booking id"})
		return
	}

	booking, err := rc.coordinator.GetBooking(c.Request.Context(), bookingID, user)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// GetMyBookings handles GET /v1/bookings with optional status, page and
// limit query parameters.
func (rc *ReservationController) GetMyBookings(c *gin.Context) {
	user, err := utils.GetUserIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := c.Query("status")

	bookings, total, err := rc.coordinator.ListBookings(c.Request.Context(), user, status, page, limit)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
