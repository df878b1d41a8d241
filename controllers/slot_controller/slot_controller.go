package slot_controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/controllers/reservation_controller"
	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/reservation"
)

// SlotController exposes the admin slot CRUD surface and the public
// availability read. Writes go straight to the models; availability and
// reconcile go through the coordinator so the cache stays coherent.
type SlotController struct {
	db          *pgxpool.Pool
	coordinator *reservation.Coordinator
}

func NewSlotController(db *pgxpool.Pool, coordinator *reservation.Coordinator) *SlotController {
	return &SlotController{db: db, coordinator: coordinator}
}

type createSlotRequest struct {
	TrekSlug string    `json:"trek_slug" binding:"required"`
	Date     time.Time `json:"date" binding:"required"`
	Capacity int       `json:"capacity" binding:"required"`
}

// CreateSlot handles POST /v1/admin/slots.
func (sc *SlotController) CreateSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	if _, err := trek_models.GetTrekBySlug(c.Request.Context(), sc.db, req.TrekSlug); err != nil {
		if errors.Is(err, trek_models.ErrTrekNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "trek not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	slot, err := slot_models.NewSlot(req.TrekSlug, req.Date, req.Capacity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	created, err := slot_models.CreateSlot(c.Request.Context(), sc.db, slot)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to create slot for trek %s: %v", req.TrekSlug, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"slot": created})
}

// UpdateSlot handles PATCH /v1/admin/slots/:id. Shrinking capacity below the
// current booked count is allowed; existing bookings are never evicted and
// availability clamps at zero.
func (sc *SlotController) UpdateSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid slot id"})
		return
	}

	var params slot_models.UpdateSlotParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	slot, err := slot_models.UpdateSlot(c.Request.Context(), sc.db, slotID, params)
	if err != nil {
		if errors.Is(err, slot_models.ErrSlotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "error": "slot not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": err.Error()})
		return
	}

	if slot.Booked > slot.Capacity {
		logger.WarnLogger.Warnf("Slot %s capacity (%d) is now below booked (%d)", slot.ID, slot.Capacity, slot.Booked)
	}

	c.JSON(http.StatusOK, gin.H{"slot": slot})
}

// ListSlots handles GET /v1/treks/:slug/slots. Pass open_only=true to hide
// closed departures.
func (sc *SlotController) ListSlots(c *gin.Context) {
	trekSlug := c.Param("slug")
	openOnly := c.Query("open_only") == "true"

	slots, err := slot_models.ListSlotsByTrek(c.Request.Context(), sc.db, trekSlug, openOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL_ERROR", "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// GetAvailability handles GET /v1/slots/:id/availability. Served from the
// display cache when warm; the figure may lag the ledger by the cache TTL.
func (sc *SlotController) GetAvailability(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid slot id"})
		return
	}

	av, err := sc.coordinator.Availability(c.Request.Context(), slotID)
	if err != nil {
		reservation_controller.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"availability": av})
}

// ReconcileSlot handles POST /v1/admin/slots/:id/reconcile, repairing the
// cached booked counter from the booking ledger.
func (sc *SlotController) ReconcileSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "VALIDATION_ERROR", "error": "invalid slot id"})
		return
	}

	booked, err := sc.coordinator.Reconcile(c.Request.Context(), slotID)
	if err != nil {
		reservation_controller.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slot_id": slotID, "booked": booked})
}
