package slot_models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekvista/booking/models/shared_models"
)

func TestNewSlot(t *testing.T) {
	date := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	slot, err := NewSlot("annapurna-circuit", date, 12)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, slot.ID)
	assert.Equal(t, "annapurna-circuit", slot.TrekSlug)
	assert.Equal(t, 12, slot.Capacity)
	assert.Equal(t, 0, slot.Booked)
	assert.Equal(t, shared_models.SlotStatusOpen, slot.Status)
	assert.True(t, slot.IsOpen())

	_, err = NewSlot("annapurna-circuit", date, -1)
	assert.Error(t, err)
}

func TestAvailableSeatsClampsAtZero(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		booked   int
		want     int
	}{
		{"empty slot", 10, 0, 10},
		{"partially booked", 10, 7, 3},
		{"full", 10, 10, 0},
		{"capacity shrunk under bookings", 5, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := Slot{Capacity: tt.capacity, Booked: tt.booked}
			assert.Equal(t, tt.want, slot.AvailableSeats())
		})
	}
}

func TestCheckInvariants(t *testing.T) {
	ok := Slot{ID: uuid.New(), Capacity: 10, Booked: 4}
	assert.NoError(t, ok.CheckInvariants())

	// Overbooked relative to a shrunk capacity is tolerated.
	shrunk := Slot{ID: uuid.New(), Capacity: 3, Booked: 5}
	assert.NoError(t, shrunk.CheckInvariants())

	negCapacity := Slot{ID: uuid.New(), Capacity: -1, Booked: 0}
	assert.ErrorIs(t, negCapacity.CheckInvariants(), ErrInvariantViolation)

	negBooked := Slot{ID: uuid.New(), Capacity: 10, Booked: -2}
	assert.ErrorIs(t, negBooked.CheckInvariants(), ErrInvariantViolation)
}
