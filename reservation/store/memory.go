package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trekvista/booking/models/booking_models"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/models/voucher_models"
	"github.com/trekvista/booking/reservation"
)

// Memory is an in-memory reservation.Store for tests and local development.
// Atomically takes a snapshot of the whole state and restores it when fn
// fails, so rollback semantics match the database store.
type Memory struct {
	mu       sync.Mutex
	treks    map[string]trek_models.Trek
	slots    map[uuid.UUID]slot_models.Slot
	bookings map[uuid.UUID]booking_models.Booking
	vouchers map[uuid.UUID]voucher_models.Voucher
	codes    map[string]uuid.UUID

	// Fault injection points for rollback tests.
	FailCreateBooking error
	FailRedeemVoucher error
	FailSetSlotBooked error
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		treks:    make(map[string]trek_models.Trek),
		slots:    make(map[uuid.UUID]slot_models.Slot),
		bookings: make(map[uuid.UUID]booking_models.Booking),
		vouchers: make(map[uuid.UUID]voucher_models.Voucher),
		codes:    make(map[string]uuid.UUID),
	}
}

// AddTrek seeds a trek.
func (m *Memory) AddTrek(trek trek_models.Trek) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.treks[trek.Slug] = trek
}

// AddSlot seeds a slot.
func (m *Memory) AddSlot(slot slot_models.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = slot
}

// AddBooking seeds a booking.
func (m *Memory) AddBooking(booking booking_models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

// AddVoucher seeds a voucher.
func (m *Memory) AddVoucher(voucher voucher_models.Voucher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[voucher.ID] = voucher
	m.codes[voucher.Code] = voucher.ID
}

func (m *Memory) GetTrek(_ context.Context, slug string) (*trek_models.Trek, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trek, ok := m.treks[slug]
	if !ok {
		return nil, trek_models.ErrTrekNotFound
	}
	return &trek, nil
}

func (m *Memory) GetSlot(_ context.Context, slotID uuid.UUID) (*slot_models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[slotID]
	if !ok {
		return nil, slot_models.ErrSlotNotFound
	}
	return &slot, nil
}

func (m *Memory) GetBooking(_ context.Context, bookingID uuid.UUID) (*booking_models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return nil, booking_models.ErrBookingNotFound
	}
	return &booking, nil
}

func (m *Memory) ListUserBookings(_ context.Context, userID uuid.UUID, status string, page, limit int) ([]booking_models.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []booking_models.Booking
	for _, b := range m.bookings {
		if b.UserID == userID && (status == "" || b.Status == status) {
			all = append(all, b)
		}
	}
	// Pagination is not exercised by tests; return everything.
	return all, len(all), nil
}

func (m *Memory) GetVoucher(_ context.Context, code string) (*voucher_models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, voucher_models.ErrVoucherNotFound
	}
	voucher := m.vouchers[id]
	return &voucher, nil
}

// Atomically serializes all transactions behind one mutex and restores a
// snapshot when fn fails. Coarser than the database's per-row locks, but
// the observable semantics are the same.
func (m *Memory) Atomically(_ context.Context, fn func(tx reservation.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryTx{m: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) Reconcile(_ context.Context, slotID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[slotID]
	if !ok {
		return 0, slot_models.ErrSlotNotFound
	}
	if err := slot.CheckInvariants(); err != nil {
		return 0, err
	}

	live := m.liveLocked(slotID)
	slot.Booked = live
	slot.UpdatedAt = time.Now()
	m.slots[slotID] = slot
	return live, nil
}

func (m *Memory) ExpirePending(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var slotIDs []uuid.UUID
	for id, b := range m.bookings {
		if b.Status == shared_models.BookingStatusPending && b.CreatedAt.Before(cutoff) {
			b.Status = shared_models.BookingStatusCancelled
			b.UpdatedAt = time.Now()
			m.bookings[id] = b
			if !seen[b.SlotID] {
				seen[b.SlotID] = true
				slotIDs = append(slotIDs, b.SlotID)
			}
		}
	}
	return slotIDs, nil
}

func (m *Memory) CompletePast(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, b := range m.bookings {
		if b.Status != shared_models.BookingStatusConfirmed {
			continue
		}
		slot, ok := m.slots[b.SlotID]
		if ok && slot.Date.Before(now) {
			b.Status = shared_models.BookingStatusCompleted
			b.UpdatedAt = now
			m.bookings[id] = b
			n++
		}
	}
	return n, nil
}

func (m *Memory) liveLocked(slotID uuid.UUID) int {
	live := 0
	for _, b := range m.bookings {
		if b.SlotID == slotID && b.HoldsSeats() {
			live += b.Participants
		}
	}
	return live
}

type memorySnapshot struct {
	slots    map[uuid.UUID]slot_models.Slot
	bookings map[uuid.UUID]booking_models.Booking
	vouchers map[uuid.UUID]voucher_models.Voucher
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		slots:    make(map[uuid.UUID]slot_models.Slot, len(m.slots)),
		bookings: make(map[uuid.UUID]booking_models.Booking, len(m.bookings)),
		vouchers: make(map[uuid.UUID]voucher_models.Voucher, len(m.vouchers)),
	}
	for k, v := range m.slots {
		s.slots[k] = v
	}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	for k, v := range m.vouchers {
		s.vouchers[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.slots = s.slots
	m.bookings = s.bookings
	m.vouchers = s.vouchers
}

type memoryTx struct {
	m *Memory
}

func (t *memoryTx) LockSlot(_ context.Context, slotID uuid.UUID) (*slot_models.Slot, error) {
	slot, ok := t.m.slots[slotID]
	if !ok {
		return nil, slot_models.ErrSlotNotFound
	}
	return &slot, nil
}

func (t *memoryTx) LockBooking(_ context.Context, bookingID uuid.UUID) (*booking_models.Booking, error) {
	booking, ok := t.m.bookings[bookingID]
	if !ok {
		return nil, booking_models.ErrBookingNotFound
	}
	return &booking, nil
}

func (t *memoryTx) LockVoucher(_ context.Context, code string) (*voucher_models.Voucher, error) {
	id, ok := t.m.codes[code]
	if !ok {
		return nil, voucher_models.ErrVoucherNotFound
	}
	voucher := t.m.vouchers[id]
	return &voucher, nil
}

func (t *memoryTx) LiveBookedParticipants(_ context.Context, slotID uuid.UUID) (int, error) {
	return t.m.liveLocked(slotID), nil
}

func (t *memoryTx) CreateBooking(_ context.Context, booking *booking_models.Booking) error {
	if t.m.FailCreateBooking != nil {
		return t.m.FailCreateBooking
	}
	t.m.bookings[booking.ID] = *booking
	return nil
}

func (t *memoryTx) UpdateBookingStatus(_ context.Context, bookingID uuid.UUID, status string) error {
	booking, ok := t.m.bookings[bookingID]
	if !ok {
		return booking_models.ErrBookingNotFound
	}
	booking.Status = status
	booking.UpdatedAt = time.Now()
	t.m.bookings[bookingID] = booking
	return nil
}

func (t *memoryTx) RedeemVoucher(_ context.Context, voucherID uuid.UUID) error {
	if t.m.FailRedeemVoucher != nil {
		return t.m.FailRedeemVoucher
	}
	voucher, ok := t.m.vouchers[voucherID]
	if !ok {
		return voucher_models.ErrVoucherNotFound
	}
	if voucher.CurrentUses >= voucher.MaxUses {
		return voucher_models.ErrVoucherExhausted
	}
	voucher.CurrentUses++
	voucher.UpdatedAt = time.Now()
	t.m.vouchers[voucherID] = voucher
	return nil
}

func (t *memoryTx) SetSlotBooked(_ context.Context, slotID uuid.UUID, booked int) error {
	if t.m.FailSetSlotBooked != nil {
		return t.m.FailSetSlotBooked
	}
	slot, ok := t.m.slots[slotID]
	if !ok {
		return slot_models.ErrSlotNotFound
	}
	if booked < 0 {
		return slot_models.ErrInvariantViolation
	}
	slot.Booked = booked
	slot.UpdatedAt = time.Now()
	t.m.slots[slotID] = slot
	return nil
}
