package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trekvista/booking/models/booking_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/models/voucher_models"
)

// Store is the persistence boundary of the reservation core. Implementations
// must guarantee that Atomically is all-or-nothing and that locks taken
// inside it serialize concurrent callers touching the same rows.
type Store interface {
	GetTrek(ctx context.Context, slug string) (*trek_models.Trek, error)
	GetSlot(ctx context.Context, slotID uuid.UUID) (*slot_models.Slot, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*booking_models.Booking, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]booking_models.Booking, int, error)
	GetVoucher(ctx context.Context, code string) (*voucher_models.Voucher, error)

	// Atomically runs fn inside one transaction. If fn returns an error the
	// transaction rolls back completely: no booking row, no voucher use, no
	// slot increment survives a partial failure.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	// Reconcile recomputes a slot's cached booked counter from the booking
	// ledger. Idempotent.
	Reconcile(ctx context.Context, slotID uuid.UUID) (int, error)

	// ExpirePending cancels pending bookings created before cutoff and
	// returns the slot IDs needing reconciliation.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// CompletePast marks confirmed bookings on past slots as completed.
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

// Tx is the set of operations available inside an atomic reservation or
// cancellation. Lock methods take exclusive row locks: the same slot or
// voucher serializes, distinct rows stay concurrent.
type Tx interface {
	LockSlot(ctx context.Context, slotID uuid.UUID) (*slot_models.Slot, error)
	LockBooking(ctx context.Context, bookingID uuid.UUID) (*booking_models.Booking, error)
	LockVoucher(ctx context.Context, code string) (*voucher_models.Voucher, error)
	LiveBookedParticipants(ctx context.Context, slotID uuid.UUID) (int, error)
	CreateBooking(ctx context.Context, booking *booking_models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status string) error
	RedeemVoucher(ctx context.Context, voucherID uuid.UUID) error
	SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked int) error
}
