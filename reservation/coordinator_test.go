package reservation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekvista/booking/models/booking_models"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/models/voucher_models"
	"github.com/trekvista/booking/reservation"
	"github.com/trekvista/booking/reservation/store"
)

const testTrekSlug = "annapurna-circuit"

func seedTrek(m *store.Memory, basePrice int64) {
	m.AddTrek(trek_models.Trek{
		Slug:      testTrekSlug,
		Name:      "Annapurna Circuit",
		BasePrice: basePrice,
		Status:    shared_models.TrekStatusActive,
		CreatedAt: time.Now(),
	})
}

func seedSlot(m *store.Memory, capacity, booked int) uuid.UUID {
	slot := slot_models.Slot{
		ID:       uuid.New(),
		TrekSlug: testTrekSlug,
		Date:     time.Now().Add(30 * 24 * time.Hour),
		Capacity: capacity,
		Booked:   booked,
		Status:   shared_models.SlotStatusOpen,
	}
	m.AddSlot(slot)
	return slot.ID
}

func user() shared_models.UserIdentity {
	return shared_models.UserIdentity{ID: uuid.New(), Role: shared_models.RoleUser}
}

func admin() shared_models.UserIdentity {
	return shared_models.UserIdentity{ID: uuid.New(), Role: shared_models.RoleAdmin}
}

func reserveReq(slotID uuid.UUID, u shared_models.UserIdentity, participants int) reservation.ReservationRequest {
	return reservation.ReservationRequest{
		TrekSlug:     testTrekSlug,
		SlotID:       slotID,
		User:         u,
		Participants: participants,
	}
}

func TestReserveCreatesPendingBookingWithQuote(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	booking, err := c.Reserve(context.Background(), reserveReq(slotID, user(), 2))
	require.NoError(t, err)

	assert.Equal(t, shared_models.BookingStatusPending, booking.Status)
	assert.Equal(t, 2, booking.Participants)
	assert.Equal(t, int64(2000), booking.BaseAmount)
	assert.Equal(t, int64(0), booking.DiscountAmount)
	assert.Equal(t, int64(100), booking.GSTAmount)
	assert.Equal(t, int64(2100), booking.TotalAmount)

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.Booked)
}

func TestReserveValidation(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	_, err := c.Reserve(ctx, reserveReq(slotID, user(), 0))
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))

	_, err = c.Reserve(ctx, reserveReq(slotID, shared_models.UserIdentity{}, 1))
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))

	req := reserveReq(uuid.New(), user(), 1)
	_, err = c.Reserve(ctx, req)
	assert.Equal(t, reservation.CodeNotFound, reservation.CodeOf(err))

	req = reserveReq(slotID, user(), 1)
	req.TrekSlug = "no-such-trek"
	_, err = c.Reserve(ctx, req)
	assert.Equal(t, reservation.CodeNotFound, reservation.CodeOf(err))
}

func TestReserveRejectsClosedSlotAndInactiveTrek(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	ctx := context.Background()

	closed := slot_models.Slot{
		ID:       uuid.New(),
		TrekSlug: testTrekSlug,
		Date:     time.Now().Add(24 * time.Hour),
		Capacity: 10,
		Status:   shared_models.SlotStatusClosed,
	}
	m.AddSlot(closed)

	c := reservation.NewCoordinator(m)
	_, err := c.Reserve(ctx, reserveReq(closed.ID, user(), 1))
	assert.Equal(t, reservation.CodeSlotUnavailable, reservation.CodeOf(err))

	m.AddTrek(trek_models.Trek{
		Slug:      testTrekSlug,
		BasePrice: 1000,
		Status:    shared_models.TrekStatusInactive,
	})
	slotID := seedSlot(m, 10, 0)
	_, err = c.Reserve(ctx, reserveReq(slotID, user(), 1))
	assert.Equal(t, reservation.CodeSlotUnavailable, reservation.CodeOf(err))
}

func TestReserveRejectsSlotFromAnotherTrek(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	m.AddTrek(trek_models.Trek{
		Slug:      "everest-base-camp",
		BasePrice: 5000,
		Status:    shared_models.TrekStatusActive,
	})
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	req := reserveReq(slotID, user(), 1)
	req.TrekSlug = "everest-base-camp"
	_, err := c.Reserve(context.Background(), req)
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Reserve(context.Background(), reserveReq(slotID, user(), 1))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, reservation.CodeInsufficientCapacity, reservation.CodeOf(err))
			rejected++
		}
	}

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 3, rejected)

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 5, slot.Booked)
}

func TestRaceForLastSeatsOnlySmallerGroupFits(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)

	// Three seats already held by a live booking.
	held, err := booking_models.NewBooking(slotID, testTrekSlug, uuid.New(), 3)
	require.NoError(t, err)
	m.AddBooking(*held)

	var wg sync.WaitGroup
	errTwo := make(chan error, 1)
	errThree := make(chan error, 1)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.Reserve(context.Background(), reserveReq(slotID, user(), 2))
		errTwo <- err
	}()
	go func() {
		defer wg.Done()
		_, err := c.Reserve(context.Background(), reserveReq(slotID, user(), 3))
		errThree <- err
	}()
	wg.Wait()

	assert.NoError(t, <-errTwo)
	assert.Equal(t, reservation.CodeInsufficientCapacity, reservation.CodeOf(<-errThree))

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 5, slot.Booked)
}

func TestSingleUseVoucherRace(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	voucher, err := voucher_models.NewVoucher("ONEUSE", 10, time.Now().Add(24*time.Hour), 1)
	require.NoError(t, err)
	m.AddVoucher(*voucher)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := reserveReq(slotID, user(), 1)
			req.VoucherCode = "ONEUSE"
			_, err := c.Reserve(context.Background(), req)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, exhausted := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if reservation.CodeOf(err) == reservation.CodeVoucherExhausted {
			exhausted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exhausted)

	got, err := m.GetVoucher(context.Background(), "ONEUSE")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses)
}

func TestReserveAppliesVoucherDiscount(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	maxDiscount := int64(150)
	voucher, err := voucher_models.NewVoucher("TREK10", 10, time.Now().Add(24*time.Hour), 5)
	require.NoError(t, err)
	voucher.MaximumDiscount = &maxDiscount
	m.AddVoucher(*voucher)

	req := reserveReq(slotID, user(), 2)
	req.VoucherCode = "TREK10"

	booking, err := c.Reserve(context.Background(), req)
	require.NoError(t, err)

	// 2000 base, discount capped at 150, 5% GST on 1850.
	assert.Equal(t, int64(2000), booking.BaseAmount)
	assert.Equal(t, int64(150), booking.DiscountAmount)
	assert.Equal(t, int64(93), booking.GSTAmount)
	assert.Equal(t, int64(1943), booking.TotalAmount)
	require.NotNil(t, booking.VoucherID)
	assert.Equal(t, voucher.ID, *booking.VoucherID)
}

// brokenTrekStore simulates a storage outage on the trek lookup path.
type brokenTrekStore struct {
	*store.Memory
}

func (s *brokenTrekStore) GetTrek(context.Context, string) (*trek_models.Trek, error) {
	return nil, errors.New("connection refused")
}

func TestTrekStorageFailureIsInternalNotNotFound(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(&brokenTrekStore{Memory: m})
	ctx := context.Background()

	_, err := c.Reserve(ctx, reserveReq(slotID, user(), 1))
	assert.Equal(t, reservation.CodeInternal, reservation.CodeOf(err))

	_, err = c.PreviewVoucher(ctx, "TREK10", user(), testTrekSlug, 1)
	assert.Equal(t, reservation.CodeInternal, reservation.CodeOf(err))
}

func TestReserveRollsBackOnBookingInsertFailure(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	voucher, err := voucher_models.NewVoucher("TREK10", 10, time.Now().Add(24*time.Hour), 5)
	require.NoError(t, err)
	m.AddVoucher(*voucher)

	m.FailCreateBooking = errors.New("insert failed")

	u := user()
	req := reserveReq(slotID, u, 2)
	req.VoucherCode = "TREK10"

	_, err = c.Reserve(context.Background(), req)
	assert.Equal(t, reservation.CodeInternal, reservation.CodeOf(err))

	got, err := m.GetVoucher(context.Background(), "TREK10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentUses)

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Booked)

	bookings, _, err := m.ListUserBookings(context.Background(), u.ID, "", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestReserveRollsBackOnVoucherRedemptionFailure(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	voucher, err := voucher_models.NewVoucher("TREK10", 10, time.Now().Add(24*time.Hour), 5)
	require.NoError(t, err)
	m.AddVoucher(*voucher)

	m.FailRedeemVoucher = errors.New("redeem failed")

	u := user()
	req := reserveReq(slotID, u, 2)
	req.VoucherCode = "TREK10"

	_, err = c.Reserve(context.Background(), req)
	assert.Equal(t, reservation.CodeInternal, reservation.CodeOf(err))

	// The booking inserted before the redemption failure must not survive.
	bookings, _, err := m.ListUserBookings(context.Background(), u.ID, "", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	got, err := m.GetVoucher(context.Background(), "TREK10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentUses)

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Booked)
}

func TestReserveRollsBackOnStorageFailure(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 0)
	c := reservation.NewCoordinator(m)

	voucher, err := voucher_models.NewVoucher("TREK10", 10, time.Now().Add(24*time.Hour), 5)
	require.NoError(t, err)
	m.AddVoucher(*voucher)

	m.FailSetSlotBooked = errors.New("disk on fire")

	u := user()
	req := reserveReq(slotID, u, 2)
	req.VoucherCode = "TREK10"

	_, err = c.Reserve(context.Background(), req)
	assert.Equal(t, reservation.CodeInternal, reservation.CodeOf(err))

	// Nothing from the failed transaction may be visible.
	got, err := m.GetVoucher(context.Background(), "TREK10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentUses)

	slot, err := m.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Booked)

	bookings, _, err := m.ListUserBookings(context.Background(), u.ID, "", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestCancelFreesSeats(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 2, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	u := user()
	first, err := c.Reserve(ctx, reserveReq(slotID, u, 2))
	require.NoError(t, err)

	_, err = c.Reserve(ctx, reserveReq(slotID, user(), 1))
	assert.Equal(t, reservation.CodeInsufficientCapacity, reservation.CodeOf(err))

	cancelled, err := c.Cancel(ctx, first.ID, u)
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusCancelled, cancelled.Status)

	slot, err := m.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.Booked)

	_, err = c.Reserve(ctx, reserveReq(slotID, user(), 1))
	assert.NoError(t, err)
}

func TestCancelOwnership(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	owner := user()
	booking, err := c.Reserve(ctx, reserveReq(slotID, owner, 1))
	require.NoError(t, err)

	_, err = c.Cancel(ctx, booking.ID, user())
	assert.Equal(t, reservation.CodeForbidden, reservation.CodeOf(err))

	_, err = c.Cancel(ctx, booking.ID, admin())
	assert.NoError(t, err)
}

func TestCancelStatusGuards(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	u := user()
	booking, err := c.Reserve(ctx, reserveReq(slotID, u, 1))
	require.NoError(t, err)

	_, err = c.Cancel(ctx, booking.ID, u)
	require.NoError(t, err)

	_, err = c.Cancel(ctx, booking.ID, u)
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))

	completed, err := booking_models.NewBooking(slotID, testTrekSlug, u.ID, 1)
	require.NoError(t, err)
	completed.Status = shared_models.BookingStatusCompleted
	m.AddBooking(*completed)

	_, err = c.Cancel(ctx, completed.ID, u)
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))
}

func TestConfirmTransitionsPendingOnly(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	booking, err := c.Reserve(ctx, reserveReq(slotID, user(), 1))
	require.NoError(t, err)

	confirmed, err := c.Confirm(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, shared_models.BookingStatusConfirmed, confirmed.Status)

	_, err = c.Confirm(ctx, booking.ID)
	assert.Equal(t, reservation.CodeValidation, reservation.CodeOf(err))

	// Confirmed bookings still hold their seats.
	slot, err := m.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.Booked)
}

func TestPreviewVoucherIsReadOnly(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	voucher, err := voucher_models.NewVoucher("TREK10", 10, time.Now().Add(24*time.Hour), 1)
	require.NoError(t, err)
	m.AddVoucher(*voucher)

	quote, err := c.PreviewVoucher(ctx, "TREK10", user(), testTrekSlug, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200), quote.DiscountAmount)

	// Preview consumed nothing; the single use is still available.
	got, err := m.GetVoucher(ctx, "TREK10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentUses)

	_, err = c.PreviewVoucher(ctx, "NOPE", user(), testTrekSlug, 2)
	assert.Equal(t, reservation.CodeVoucherNotFound, reservation.CodeOf(err))
}

func TestReconcileRepairsDriftedCounter(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 99)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	live, err := booking_models.NewBooking(slotID, testTrekSlug, uuid.New(), 2)
	require.NoError(t, err)
	m.AddBooking(*live)

	booked, err := c.Reconcile(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, booked)

	// Idempotent.
	booked, err = c.Reconcile(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, booked)

	slot, err := m.GetSlot(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.Booked)
}

func TestAvailability(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 10, 3)
	c := reservation.NewCoordinator(m)

	av, err := c.Availability(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 10, av.Capacity)
	assert.Equal(t, 3, av.Booked)
	assert.Equal(t, 7, av.Available)

	_, err = c.Availability(context.Background(), uuid.New())
	assert.Equal(t, reservation.CodeNotFound, reservation.CodeOf(err))
}

func TestGetBookingEnforcesOwnership(t *testing.T) {
	m := store.NewMemory()
	seedTrek(m, 1000)
	slotID := seedSlot(m, 5, 0)
	c := reservation.NewCoordinator(m)
	ctx := context.Background()

	owner := user()
	booking, err := c.Reserve(ctx, reserveReq(slotID, owner, 1))
	require.NoError(t, err)

	got, err := c.GetBooking(ctx, booking.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	_, err = c.GetBooking(ctx, booking.ID, user())
	assert.Equal(t, reservation.CodeForbidden, reservation.CodeOf(err))

	_, err = c.GetBooking(ctx, booking.ID, admin())
	assert.NoError(t, err)
}
