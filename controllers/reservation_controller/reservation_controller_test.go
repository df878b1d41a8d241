package reservation_controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekvista/booking/controllers/reservation_controller"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/reservation"
	"github.com/trekvista/booking/reservation/store"
)

func setupRouter(t *testing.T, userID uuid.UUID) (*gin.Engine, *store.Memory, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemory()
	m.AddTrek(trek_models.Trek{
		Slug:      "annapurna-circuit",
		Name:      "Annapurna Circuit",
		BasePrice: 1000,
		Status:    shared_models.TrekStatusActive,
	})
	slot := slot_models.Slot{
		ID:       uuid.New(),
		TrekSlug: "annapurna-circuit",
		Date:     time.Now().Add(30 * 24 * time.Hour),
		Capacity: 2,
		Status:   shared_models.SlotStatusOpen,
	}
	m.AddSlot(slot)

	coordinator := reservation.NewCoordinator(m)
	controller := reservation_controller.NewReservationController(coordinator)

	r := gin.New()
	group := r.Group("/v1/bookings")
	if userID != uuid.Nil {
		group.Use(func(c *gin.Context) {
			c.Set("sub", userID.String())
			c.Next()
		})
	}
	group.POST("", controller.ReserveSlot)
	group.GET("/:id", controller.GetBooking)
	group.POST("/:id/cancel", controller.CancelBooking)

	return r, m, slot.ID
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReserveSlotEndpoint(t *testing.T) {
	userID := uuid.New()
	r, _, slotID := setupRouter(t, userID)

	w := postJSON(r, "/v1/bookings", gin.H{
		"trek_slug":    "annapurna-circuit",
		"slot_id":      slotID.String(),
		"participants": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Booking struct {
			ID          string `json:"id"`
			Status      string `json:"status"`
			TotalAmount int64  `json:"total_amount"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, shared_models.BookingStatusPending, resp.Booking.Status)
	assert.Equal(t, int64(2100), resp.Booking.TotalAmount)
}

func TestReserveSlotEndpointConflictWhenFull(t *testing.T) {
	userID := uuid.New()
	r, _, slotID := setupRouter(t, userID)

	body := gin.H{
		"trek_slug":    "annapurna-circuit",
		"slot_id":      slotID.String(),
		"participants": 2,
	}

	w := postJSON(r, "/v1/bookings", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/v1/bookings", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "INSUFFICIENT_CAPACITY")
}

func TestReserveSlotEndpointValidation(t *testing.T) {
	userID := uuid.New()
	r, _, _ := setupRouter(t, userID)

	w := postJSON(r, "/v1/bookings", gin.H{"trek_slug": "annapurna-circuit"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/v1/bookings", gin.H{
		"trek_slug":    "annapurna-circuit",
		"slot_id":      "not-a-uuid",
		"participants": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserveSlotEndpointUnauthorized(t *testing.T) {
	r, _, slotID := setupRouter(t, uuid.Nil)

	w := postJSON(r, "/v1/bookings", gin.H{
		"trek_slug":    "annapurna-circuit",
		"slot_id":      slotID.String(),
		"participants": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCancelBookingEndpoint(t *testing.T) {
	userID := uuid.New()
	r, _, slotID := setupRouter(t, userID)

	w := postJSON(r, "/v1/bookings", gin.H{
		"trek_slug":    "annapurna-circuit",
		"slot_id":      slotID.String(),
		"participants": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Booking struct {
			ID string `json:"id"`
		} `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = postJSON(r, "/v1/bookings/"+resp.Booking.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), shared_models.BookingStatusCancelled)

	// Cancelling an unknown booking is a 404.
	w = postJSON(r, "/v1/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
