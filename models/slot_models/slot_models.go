package slot_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/shared_models"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
	// ErrInvariantViolation marks a slot whose stored counters are corrupt
	// (negative capacity or booked). It must never be silently clamped at
	// this layer.
	ErrInvariantViolation = errors.New("slot invariant violation")
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so model functions
// can run standalone or inside the reservation transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Slot is one departure date of a trek with a fixed seat capacity. Booked is
// a cached sum of live participant counts; the reservation path never trusts
// it for the capacity check.
type Slot struct {
	ID        uuid.UUID `json:"id"`
	TrekSlug  string    `json:"trek_slug"`
	Date      time.Time `json:"date"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSlot creates a new open Slot for a trek departure.
func NewSlot(trekSlug string, date time.Time, capacity int) (*Slot, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("capacity must not be negative")
	}
	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for slot: %w", err)
	}
	now := time.Now()
	return &Slot{
		ID:        id,
		TrekSlug:  trekSlug,
		Date:      date,
		Capacity:  capacity,
		Booked:    0,
		Status:    shared_models.SlotStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOpen reports whether the slot accepts reservations.
func (s *Slot) IsOpen() bool {
	return s.Status == shared_models.SlotStatusOpen
}

// AvailableSeats is the display-level availability. Admin edits may shrink
// capacity below the current booked count; availability clamps at zero.
func (s *Slot) AvailableSeats() int {
	if avail := s.Capacity - s.Booked; avail > 0 {
		return avail
	}
	return 0
}

// CheckInvariants returns ErrInvariantViolation if the stored counters are
// corrupt. booked > capacity is NOT flagged here: the admin surface may
// legitimately shrink capacity under existing bookings.
func (s *Slot) CheckInvariants() error {
	if s.Capacity < 0 || s.Booked < 0 {
		return fmt.Errorf("%w: slot %s capacity=%d booked=%d", ErrInvariantViolation, s.ID, s.Capacity, s.Booked)
	}
	return nil
}

const slotColumns = `id, trek_slug, date, capacity, booked, status, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	slot := &Slot{}
	err := row.Scan(
		&slot.ID, &slot.TrekSlug, &slot.Date, &slot.Capacity,
		&slot.Booked, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("database error fetching slot: %w", err)
	}
	return slot, nil
}

// GetSlotByID fetches a slot by its ID.
func GetSlotByID(ctx context.Context, q Querier, slotID uuid.UUID) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	slot, err := scanSlot(q.QueryRow(ctx, query, slotID))
	if err != nil {
		if !errors.Is(err, ErrSlotNotFound) {
			logger.ErrorLogger.Errorf("Failed to fetch slot %s: %v", slotID, err)
		}
		return nil, err
	}
	return slot, nil
}

// GetSlotByIDForUpdate fetches a slot inside tx holding an exclusive row
// lock. Every capacity decision for this slot serializes behind this lock;
// slots lock independently so unrelated departures stay concurrent.
func GetSlotByIDForUpdate(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
	slot, err := scanSlot(tx.QueryRow(ctx, query, slotID))
	if err != nil {
		if !errors.Is(err, ErrSlotNotFound) {
			logger.ErrorLogger.Errorf("Failed to lock slot %s: %v", slotID, err)
		}
		return nil, err
	}
	return slot, nil
}

// LiveBookedParticipants sums participants over bookings still holding seats
// (pending or confirmed). This is the source of truth for capacity checks;
// the cached booked column is only a read optimization for listings.
func LiveBookedParticipants(ctx context.Context, q Querier, slotID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(participants), 0)
		FROM bookings
		WHERE slot_id = $1 AND status IN ($2, $3)`

	var live int
	err := q.QueryRow(ctx, query, slotID,
		shared_models.BookingStatusPending, shared_models.BookingStatusConfirmed,
	).Scan(&live)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to sum live participants for slot %s: %v", slotID, err)
		return 0, fmt.Errorf("failed to compute live booked participants: %w", err)
	}
	return live, nil
}

// SetBooked writes the cached booked counter.
func SetBooked(ctx context.Context, q Querier, slotID uuid.UUID, booked int) error {
	if booked < 0 {
		return fmt.Errorf("%w: refusing to set booked=%d on slot %s", ErrInvariantViolation, booked, slotID)
	}

	query := `UPDATE slots SET booked = $2, updated_at = NOW() WHERE id = $1`
	cmdTag, err := q.Exec(ctx, query, slotID, booked)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to set booked for slot %s: %v", slotID, err)
		return fmt.Errorf("failed to update slot booked count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// ReconcileSlot recomputes the cached booked counter from the booking ledger
// and persists it. Idempotent; safe to call after cancellations, admin edits
// or on a repair schedule. Returns the reconciled booked count.
func ReconcileSlot(ctx context.Context, db *pgxpool.Pool, slotID uuid.UUID) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	slot, err := GetSlotByIDForUpdate(ctx, tx, slotID)
	if err != nil {
		return 0, err
	}
	if err := slot.CheckInvariants(); err != nil {
		logger.ErrorLogger.Errorf("Reconcile found corrupt slot %s: %v", slotID, err)
		return 0, err
	}

	live, err := LiveBookedParticipants(ctx, tx, slotID)
	if err != nil {
		return 0, err
	}

	if live != slot.Booked {
		logger.WarnLogger.Warnf("Slot %s booked drift: cached=%d live=%d, repairing", slotID, slot.Booked, live)
	}

	if err := SetBooked(ctx, tx, slotID, live); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit reconcile: %w", err)
	}

	logger.InfoLogger.Infof("Slot %s reconciled, booked=%d", slotID, live)
	return live, nil
}

// CreateSlot inserts a new slot row.
func CreateSlot(ctx context.Context, db *pgxpool.Pool, slot *Slot) (*Slot, error) {
	logger.InfoLogger.Infof("Creating slot for trek %s on %s", slot.TrekSlug, slot.Date.Format("2006-01-02"))

	query := `
		INSERT INTO slots (id, trek_slug, date, capacity, booked, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var insertedID uuid.UUID
	err := db.QueryRow(ctx, query,
		slot.ID, slot.TrekSlug, slot.Date, slot.Capacity,
		slot.Booked, slot.Status, slot.CreatedAt, slot.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to insert slot for trek %s: %v", slot.TrekSlug, err)
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}

	slot.ID = insertedID
	logger.InfoLogger.Infof("Slot %s created for trek %s", slot.ID, slot.TrekSlug)
	return slot, nil
}

// UpdateSlotParams carries optional admin edits to a slot.
type UpdateSlotParams struct {
	Capacity *int       `json:"capacity"`
	Date     *time.Time `json:"date"`
	Status   *string    `json:"status"`
}

// UpdateSlot applies admin edits. Capacity may shrink below the current
// booked count; availability clamps at zero at the display layer.
func UpdateSlot(ctx context.Context, db *pgxpool.Pool, slotID uuid.UUID, params UpdateSlotParams) (*Slot, error) {
	if params.Capacity != nil && *params.Capacity < 0 {
		return nil, fmt.Errorf("capacity must not be negative")
	}
	if params.Status != nil &&
		*params.Status != shared_models.SlotStatusOpen && *params.Status != shared_models.SlotStatusClosed {
		return nil, fmt.Errorf("invalid slot status %q", *params.Status)
	}

	query := `
		UPDATE slots
		SET capacity = COALESCE($2, capacity),
		    date = COALESCE($3, date),
		    status = COALESCE($4, status),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + slotColumns

	slot, err := scanSlot(db.QueryRow(ctx, query, slotID, params.Capacity, params.Date, params.Status))
	if err != nil {
		if !errors.Is(err, ErrSlotNotFound) {
			logger.ErrorLogger.Errorf("Failed to update slot %s: %v", slotID, err)
		}
		return nil, err
	}

	logger.InfoLogger.Infof("Slot %s updated", slotID)
	return slot, nil
}

// ListSlotsByTrek returns the slots scheduled for a trek, soonest first.
func ListSlotsByTrek(ctx context.Context, db *pgxpool.Pool, trekSlug string, openOnly bool) ([]Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE trek_slug = $1`
	args := []any{trekSlug}
	if openOnly {
		query += ` AND status = $2`
		args = append(args, shared_models.SlotStatusOpen)
	}
	query += ` ORDER BY date`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to list slots for trek %s: %v", trekSlug, err)
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var slot Slot
		err := rows.Scan(
			&slot.ID, &slot.TrekSlug, &slot.Date, &slot.Capacity,
			&slot.Booked, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt,
		)
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to scan slot row: %v", err)
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, nil
}
