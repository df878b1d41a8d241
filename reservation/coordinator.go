// Package reservation implements the trek-slot capacity and reservation
// engine: capacity checks, atomic booking creation with voucher redemption,
// cancellation and counter reconciliation.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/booking_models"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/models/voucher_models"
	"github.com/trekvista/booking/pricing"
)

// ReservationRequest is the core-facing input for a reservation.
type ReservationRequest struct {
	TrekSlug     string                      `json:"trek_slug"`
	SlotID       uuid.UUID                   `json:"slot_id"`
	User         shared_models.UserIdentity  `json:"-"`
	Participants int                         `json:"participants"`
	VoucherCode  string                      `json:"voucher_code,omitempty"`
}

// Availability is the display-level view of a slot's remaining seats.
type Availability struct {
	SlotID    uuid.UUID `json:"slot_id"`
	TrekSlug  string    `json:"trek_slug"`
	Date      time.Time `json:"date"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Available int       `json:"available"`
	Status    string    `json:"status"`
}

// AvailabilityCache is a best-effort display cache. It is never consulted
// for the reservation-time capacity check.
type AvailabilityCache interface {
	Get(ctx context.Context, slotID uuid.UUID) (*Availability, bool)
	Set(ctx context.Context, av *Availability)
	Invalidate(ctx context.Context, slotID uuid.UUID)
}

// Coordinator orchestrates reservations against the store. It holds no
// shared mutable state: all serialization comes from the store's locks.
type Coordinator struct {
	store Store
	cache AvailabilityCache
	now   func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCache attaches a display-availability cache.
func WithCache(cache AvailabilityCache) Option {
	return func(c *Coordinator) { c.cache = cache }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator over the given store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reserve validates the request against current capacity and, in a single
// atomic unit, creates the booking, redeems the voucher (if any) and bumps
// the slot's cached booked counter. When two requests race for the last
// seat, the first committer wins; the loser observes INSUFFICIENT_CAPACITY.
func (c *Coordinator) Reserve(ctx context.Context, req ReservationRequest) (*booking_models.Booking, error) {
	if req.Participants < 1 {
		return nil, NewError(CodeValidation, "participants must be at least 1")
	}
	if req.User.ID == uuid.Nil {
		return nil, NewError(CodeValidation, "user identity is required")
	}
	if req.SlotID == uuid.Nil || req.TrekSlug == "" {
		return nil, NewError(CodeValidation, "trek slug and slot id are required")
	}

	trek, err := c.store.GetTrek(ctx, req.TrekSlug)
	if err != nil {
		if errors.Is(err, trek_models.ErrTrekNotFound) {
			return nil, NewError(CodeNotFound, "trek not found")
		}
		return nil, c.storeError(err)
	}
	if !trek.IsActive() {
		return nil, NewError(CodeSlotUnavailable, "trek is not active")
	}

	var booking *booking_models.Booking
	var freshAvailability *Availability

	err = c.store.Atomically(ctx, func(tx Tx) error {
		slot, err := tx.LockSlot(ctx, req.SlotID)
		if err != nil {
			if errors.Is(err, slot_models.ErrSlotNotFound) {
				return NewError(CodeNotFound, "slot not found")
			}
			return WrapError(CodeInternal, "failed to lock slot", err)
		}
		if slot.TrekSlug != req.TrekSlug {
			return NewError(CodeValidation, "slot does not belong to the requested trek")
		}
		if err := slot.CheckInvariants(); err != nil {
			logger.ErrorLogger.Errorf("Invariant violation on slot %s: %v", slot.ID, err)
			c.scheduleReconcile(slot.ID)
			return WrapError(CodeInvariantViolation, "slot counters are corrupt", err)
		}
		if !slot.IsOpen() {
			return NewError(CodeSlotUnavailable, "slot is closed")
		}

		// Capacity is derived from the live booking ledger under the slot
		// lock. The cached booked column is never trusted here.
		live, err := tx.LiveBookedParticipants(ctx, slot.ID)
		if err != nil {
			return WrapError(CodeInternal, "failed to compute live participants", err)
		}
		if available := slot.Capacity - live; req.Participants > available {
			return NewError(CodeInsufficientCapacity, "not enough seats available")
		}

		baseAmount := trek.BasePrice * int64(req.Participants)

		var voucherID *uuid.UUID
		var discount int64
		if req.VoucherCode != "" {
			voucher, err := tx.LockVoucher(ctx, req.VoucherCode)
			if err != nil {
				if errors.Is(err, voucher_models.ErrVoucherNotFound) {
					return NewError(CodeVoucherNotFound, "voucher not found")
				}
				return WrapError(CodeInternal, "failed to lock voucher", err)
			}
			if err := voucher.Validate(req.User.ID, baseAmount, c.now()); err != nil {
				return voucherError(err)
			}
			discount = voucher.DiscountFor(baseAmount)
			voucherID = &voucher.ID
		}

		quote, err := pricing.Compute(trek.BasePrice, req.Participants, discount)
		if err != nil {
			return WrapError(CodeValidation, "invalid pricing input", err)
		}

		b, err := booking_models.NewBooking(slot.ID, trek.Slug, req.User.ID, req.Participants)
		if err != nil {
			return WrapError(CodeInternal, "failed to build booking", err)
		}
		b.BaseAmount = quote.BaseAmount
		b.GSTAmount = quote.GSTAmount
		b.DiscountAmount = quote.DiscountAmount
		b.TotalAmount = quote.FinalAmount
		b.VoucherID = voucherID

		if err := tx.CreateBooking(ctx, b); err != nil {
			return WrapError(CodeInternal, "failed to create booking", err)
		}
		if voucherID != nil {
			if err := tx.RedeemVoucher(ctx, *voucherID); err != nil {
				if errors.Is(err, voucher_models.ErrVoucherExhausted) {
					return NewError(CodeVoucherExhausted, "voucher has no uses left")
				}
				return WrapError(CodeInternal, "failed to redeem voucher", err)
			}
		}

		booked := live + req.Participants
		if err := tx.SetSlotBooked(ctx, slot.ID, booked); err != nil {
			return WrapError(CodeInternal, "failed to update slot counter", err)
		}

		booking = b
		freshAvailability = availabilityOf(slot, booked)
		return nil
	})
	if err != nil {
		return nil, c.storeError(err)
	}

	c.refreshCache(ctx, freshAvailability)
	logger.InfoLogger.Infof("Reserved %d seats on slot %s for user %s (booking %s)",
		req.Participants, req.SlotID, req.User.ID, booking.ID)
	return booking, nil
}

// Cancel transitions a booking to cancelled and reconciles the slot's
// cached counter in the same transaction, freeing the seats. A voucher use
// consumed by the booking is not refunded.
func (c *Coordinator) Cancel(ctx context.Context, bookingID uuid.UUID, user shared_models.UserIdentity) (*booking_models.Booking, error) {
	var booking *booking_models.Booking
	var freshAvailability *Availability

	err := c.store.Atomically(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, booking_models.ErrBookingNotFound) {
				return NewError(CodeNotFound, "booking not found")
			}
			return WrapError(CodeInternal, "failed to lock booking", err)
		}
		if !user.IsAdmin() && b.UserID != user.ID {
			return NewError(CodeForbidden, "booking does not belong to this user")
		}
		switch b.Status {
		case shared_models.BookingStatusCancelled:
			return NewError(CodeValidation, "booking is already cancelled")
		case shared_models.BookingStatusCompleted:
			return NewError(CodeValidation, "completed bookings cannot be cancelled")
		}

		if err := tx.UpdateBookingStatus(ctx, b.ID, shared_models.BookingStatusCancelled); err != nil {
			return WrapError(CodeInternal, "failed to cancel booking", err)
		}

		slot, err := tx.LockSlot(ctx, b.SlotID)
		if err != nil {
			return WrapError(CodeInternal, "failed to lock slot for reconcile", err)
		}
		live, err := tx.LiveBookedParticipants(ctx, slot.ID)
		if err != nil {
			return WrapError(CodeInternal, "failed to recount live participants", err)
		}
		if err := tx.SetSlotBooked(ctx, slot.ID, live); err != nil {
			return WrapError(CodeInternal, "failed to update slot counter", err)
		}

		b.Status = shared_models.BookingStatusCancelled
		booking = b
		freshAvailability = availabilityOf(slot, live)
		return nil
	})
	if err != nil {
		return nil, c.storeError(err)
	}

	c.refreshCache(ctx, freshAvailability)
	logger.InfoLogger.Infof("Booking %s cancelled, slot %s reconciled", booking.ID, booking.SlotID)
	return booking, nil
}

// Confirm transitions a pending booking to confirmed. It is invoked by the
// payment collaborator once payment settles; seats are already held, so no
// capacity change occurs.
func (c *Coordinator) Confirm(ctx context.Context, bookingID uuid.UUID) (*booking_models.Booking, error) {
	var booking *booking_models.Booking

	err := c.store.Atomically(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, booking_models.ErrBookingNotFound) {
				return NewError(CodeNotFound, "booking not found")
			}
			return WrapError(CodeInternal, "failed to lock booking", err)
		}
		if b.Status != shared_models.BookingStatusPending {
			return NewError(CodeValidation, "only pending bookings can be confirmed")
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, shared_models.BookingStatusConfirmed); err != nil {
			return WrapError(CodeInternal, "failed to confirm booking", err)
		}
		b.Status = shared_models.BookingStatusConfirmed
		booking = b
		return nil
	})
	if err != nil {
		return nil, c.storeError(err)
	}

	logger.InfoLogger.Infof("Booking %s confirmed", booking.ID)
	return booking, nil
}

// Availability returns the display-level seat availability for a slot,
// served from the cache when possible.
func (c *Coordinator) Availability(ctx context.Context, slotID uuid.UUID) (*Availability, error) {
	if c.cache != nil {
		if av, ok := c.cache.Get(ctx, slotID); ok {
			return av, nil
		}
	}

	slot, err := c.store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, slot_models.ErrSlotNotFound) {
			return nil, NewError(CodeNotFound, "slot not found")
		}
		return nil, WrapError(CodeInternal, "failed to fetch slot", err)
	}

	av := availabilityOf(slot, slot.Booked)
	c.refreshCache(ctx, av)
	return av, nil
}

// Reconcile repairs a slot's cached booked counter from the booking ledger.
func (c *Coordinator) Reconcile(ctx context.Context, slotID uuid.UUID) (int, error) {
	booked, err := c.store.Reconcile(ctx, slotID)
	if err != nil {
		if errors.Is(err, slot_models.ErrSlotNotFound) {
			return 0, NewError(CodeNotFound, "slot not found")
		}
		if errors.Is(err, slot_models.ErrInvariantViolation) {
			return 0, WrapError(CodeInvariantViolation, "slot counters are corrupt", err)
		}
		return 0, c.storeError(err)
	}
	if c.cache != nil {
		c.cache.Invalidate(ctx, slotID)
	}
	return booked, nil
}

// GetBooking fetches a booking, enforcing ownership unless the caller is an
// admin.
func (c *Coordinator) GetBooking(ctx context.Context, bookingID uuid.UUID, user shared_models.UserIdentity) (*booking_models.Booking, error) {
	b, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking_models.ErrBookingNotFound) {
			return nil, NewError(CodeNotFound, "booking not found")
		}
		return nil, WrapError(CodeInternal, "failed to fetch booking", err)
	}
	if !user.IsAdmin() && b.UserID != user.ID {
		return nil, NewError(CodeForbidden, "booking does not belong to this user")
	}
	return b, nil
}

// ListBookings returns a user's bookings with pagination.
func (c *Coordinator) ListBookings(ctx context.Context, user shared_models.UserIdentity, status string, page, limit int) ([]booking_models.Booking, int, error) {
	bookings, total, err := c.store.ListUserBookings(ctx, user.ID, status, page, limit)
	if err != nil {
		return nil, 0, WrapError(CodeInternal, "failed to list bookings", err)
	}
	return bookings, total, nil
}

// PreviewVoucher computes the discount a voucher would grant on a trek
// order without consuming a use. Read-only: a use is only ever consumed
// inside Reserve's transaction.
func (c *Coordinator) PreviewVoucher(ctx context.Context, code string, user shared_models.UserIdentity, trekSlug string, participants int) (*pricing.Quote, error) {
	if participants < 1 {
		return nil, NewError(CodeValidation, "participants must be at least 1")
	}

	trek, err := c.store.GetTrek(ctx, trekSlug)
	if err != nil {
		if errors.Is(err, trek_models.ErrTrekNotFound) {
			return nil, NewError(CodeNotFound, "trek not found")
		}
		return nil, c.storeError(err)
	}

	voucher, err := c.store.GetVoucher(ctx, code)
	if err != nil {
		if errors.Is(err, voucher_models.ErrVoucherNotFound) {
			return nil, NewError(CodeVoucherNotFound, "voucher not found")
		}
		return nil, WrapError(CodeInternal, "failed to fetch voucher", err)
	}

	baseAmount := trek.BasePrice * int64(participants)
	if err := voucher.Validate(user.ID, baseAmount, c.now()); err != nil {
		return nil, voucherError(err)
	}

	quote, err := pricing.Compute(trek.BasePrice, participants, voucher.DiscountFor(baseAmount))
	if err != nil {
		return nil, WrapError(CodeValidation, "invalid pricing input", err)
	}
	return &quote, nil
}

// scheduleReconcile kicks off an asynchronous repair attempt after an
// invariant violation. The in-flight request is never silently corrected.
func (c *Coordinator) scheduleReconcile(slotID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.store.Reconcile(ctx, slotID); err != nil {
			logger.ErrorLogger.Errorf("Background reconcile of slot %s failed: %v", slotID, err)
		}
	}()
}

func (c *Coordinator) refreshCache(ctx context.Context, av *Availability) {
	if c.cache != nil && av != nil {
		c.cache.Set(ctx, av)
	}
}

// storeError normalizes errors bubbling out of the store: coded errors pass
// through, serialization conflicts become retryable, everything else is
// internal.
func (c *Coordinator) storeError(err error) error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	if errors.Is(err, ErrTxConflict) {
		return WrapError(CodePersistenceConflict, "reservation lost a serialization race, retry", err)
	}
	logger.ErrorLogger.Errorf("Reservation store failure: %v", err)
	return WrapError(CodeInternal, "persistence failure", err)
}

func voucherError(err error) error {
	switch {
	case errors.Is(err, voucher_models.ErrVoucherNotFound):
		return NewError(CodeVoucherNotFound, "voucher not found")
	case errors.Is(err, voucher_models.ErrVoucherExpired):
		return NewError(CodeVoucherExpired, "voucher has expired")
	case errors.Is(err, voucher_models.ErrVoucherExhausted):
		return NewError(CodeVoucherExhausted, "voucher has no uses left")
	case errors.Is(err, voucher_models.ErrVoucherUserMismatch):
		return NewError(CodeVoucherUserMismatch, "voucher is not valid for this user")
	case errors.Is(err, voucher_models.ErrVoucherBelowMinimum):
		return NewError(CodeVoucherBelowMinimum, "order amount is below the voucher minimum")
	}
	return WrapError(CodeInternal, "voucher validation failed", err)
}

func availabilityOf(slot *slot_models.Slot, booked int) *Availability {
	available := slot.Capacity - booked
	if available < 0 {
		available = 0
	}
	return &Availability{
		SlotID:    slot.ID,
		TrekSlug:  slot.TrekSlug,
		Date:      slot.Date,
		Capacity:  slot.Capacity,
		Booked:    booked,
		Available: available,
		Status:    slot.Status,
	}
}
