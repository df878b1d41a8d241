package booking_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
)

var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingAlreadyCancelled = errors.New("booking is already cancelled")
	ErrBookingNotCancellable   = errors.New("booking is not in a cancellable state")
	ErrBookingNotOwnedByUser   = errors.New("booking does not belong to this user")
)

// Booking is one reservation against a slot. Participants count against the
// slot's capacity while the status is pending or confirmed.
type Booking struct {
	ID             uuid.UUID  `json:"id"`
	SlotID         uuid.UUID  `json:"slot_id"`
	TrekSlug       string     `json:"trek_slug"`
	UserID         uuid.UUID  `json:"user_id"`
	Participants   int        `json:"participants"`
	Status         string     `json:"status"`
	BaseAmount     int64      `json:"base_amount"`
	GSTAmount      int64      `json:"gst_amount"`
	DiscountAmount int64      `json:"discount_amount"`
	TotalAmount    int64      `json:"total_amount"`
	VoucherID      *uuid.UUID `json:"voucher_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HoldsSeats reports whether the booking currently counts against capacity.
func (b *Booking) HoldsSeats() bool {
	return b.Status == shared_models.BookingStatusPending ||
		b.Status == shared_models.BookingStatusConfirmed
}

// NewBooking creates a pending Booking struct.
func NewBooking(slotID uuid.UUID, trekSlug string, userID uuid.UUID, participants int) (*Booking, error) {
	if participants < 1 {
		return nil, fmt.Errorf("participants must be at least 1")
	}
	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for booking: %w", err)
	}
	now := time.Now()
	return &Booking{
		ID:           id,
		SlotID:       slotID,
		TrekSlug:     trekSlug,
		UserID:       userID,
		Participants: participants,
		Status:       shared_models.BookingStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

const bookingColumns = `id, slot_id, trek_slug, user_id, participants, status,
	base_amount, gst_amount, discount_amount, total_amount, voucher_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	booking := &Booking{}
	err := row.Scan(
		&booking.ID, &booking.SlotID, &booking.TrekSlug, &booking.UserID,
		&booking.Participants, &booking.Status, &booking.BaseAmount,
		&booking.GSTAmount, &booking.DiscountAmount, &booking.TotalAmount,
		&booking.VoucherID, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("database error fetching booking: %w", err)
	}
	return booking, nil
}

// CreateBooking inserts a booking row. It runs against a Querier so the
// reservation coordinator can call it inside the slot-locked transaction.
func CreateBooking(ctx context.Context, q slot_models.Querier, booking *Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	var insertedID uuid.UUID
	err := q.QueryRow(ctx, query,
		booking.ID, booking.SlotID, booking.TrekSlug, booking.UserID,
		booking.Participants, booking.Status, booking.BaseAmount,
		booking.GSTAmount, booking.DiscountAmount, booking.TotalAmount,
		booking.VoucherID, booking.CreatedAt, booking.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to insert booking for slot %s: %v", booking.SlotID, err)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = insertedID
	logger.InfoLogger.Infof("Booking %s created for slot %s (%d participants)",
		booking.ID, booking.SlotID, booking.Participants)
	return booking, nil
}

// GetBookingByID fetches a booking record by its ID.
func GetBookingByID(ctx context.Context, q slot_models.Querier, bookingID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	booking, err := scanBooking(q.QueryRow(ctx, query, bookingID))
	if err != nil {
		if !errors.Is(err, ErrBookingNotFound) {
			logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		}
		return nil, err
	}
	return booking, nil
}

// GetBookingByIDForUpdate fetches a booking inside tx with a row lock, so a
// cancellation cannot race a concurrent status change.
func GetBookingByIDForUpdate(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	booking, err := scanBooking(tx.QueryRow(ctx, query, bookingID))
	if err != nil {
		if !errors.Is(err, ErrBookingNotFound) {
			logger.ErrorLogger.Errorf("Failed to lock booking %s: %v", bookingID, err)
		}
		return nil, err
	}
	return booking, nil
}

// UpdateBookingStatus updates the status of a booking.
func UpdateBookingStatus(ctx context.Context, q slot_models.Querier, bookingID uuid.UUID, status string) error {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`

	cmdTag, err := q.Exec(ctx, query, bookingID, status)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to update booking %s status: %v", bookingID, err)
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}

	logger.InfoLogger.Infof("Booking %s status updated to %s", bookingID, status)
	return nil
}

// GetBookingsByUser retrieves a user's bookings with pagination and an
// optional status filter, newest first.
func GetBookingsByUser(ctx context.Context, q slot_models.Querier, userID uuid.UUID, status string, page, limit int) ([]Booking, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	baseQuery := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1`
	countQuery := `SELECT COUNT(*) FROM bookings WHERE user_id = $1`
	countArgs := []any{userID}
	args := []any{userID}

	if status != "" {
		baseQuery += ` AND status = $2`
		countQuery += ` AND status = $2`
		countArgs = append(countArgs, status)
		args = append(args, status, limit, offset)
		baseQuery += ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	} else {
		args = append(args, limit, offset)
		baseQuery += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	}

	var totalCount int
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		logger.ErrorLogger.Errorf("Failed to count bookings for user %s: %v", userID, err)
		return nil, 0, fmt.Errorf("failed to get booking count: %w", err)
	}

	rows, err := q.Query(ctx, baseQuery, args...)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch bookings for user %s: %v", userID, err)
		return nil, 0, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var booking Booking
		err := rows.Scan(
			&booking.ID, &booking.SlotID, &booking.TrekSlug, &booking.UserID,
			&booking.Participants, &booking.Status, &booking.BaseAmount,
			&booking.GSTAmount, &booking.DiscountAmount, &booking.TotalAmount,
			&booking.VoucherID, &booking.CreatedAt, &booking.UpdatedAt,
		)
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to scan booking row: %v", err)
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, totalCount, nil
}

// ExpirePendingBefore cancels pending bookings created before cutoff and
// returns the distinct slot IDs that need reconciliation. Used by the
// maintenance sweeper to release seats held by abandoned payment flows.
func ExpirePendingBefore(ctx context.Context, q slot_models.Querier, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3
		RETURNING slot_id`

	rows, err := q.Query(ctx, query,
		shared_models.BookingStatusCancelled, shared_models.BookingStatusPending, cutoff)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to expire pending bookings: %v", err)
		return nil, fmt.Errorf("failed to expire pending bookings: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]bool)
	var slotIDs []uuid.UUID
	for rows.Next() {
		var slotID uuid.UUID
		if err := rows.Scan(&slotID); err != nil {
			return nil, fmt.Errorf("failed to scan expired booking slot: %w", err)
		}
		if !seen[slotID] {
			seen[slotID] = true
			slotIDs = append(slotIDs, slotID)
		}
	}

	if len(slotIDs) > 0 {
		logger.InfoLogger.Infof("Expired pending bookings across %d slots", len(slotIDs))
	}
	return slotIDs, nil
}

// CompletePastConfirmed transitions confirmed bookings whose trek date has
// passed into the terminal completed state. Completed bookings no longer
// hold seats, but their slots are in the past so no reconcile is needed.
func CompletePastConfirmed(ctx context.Context, q slot_models.Querier, now time.Time) (int64, error) {
	query := `
		UPDATE bookings b
		SET status = $1, updated_at = NOW()
		FROM slots s
		WHERE b.slot_id = s.id AND b.status = $2 AND s.date < $3`

	cmdTag, err := q.Exec(ctx, query,
		shared_models.BookingStatusCompleted, shared_models.BookingStatusConfirmed, now)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to complete past bookings: %v", err)
		return 0, fmt.Errorf("failed to complete past bookings: %w", err)
	}

	if n := cmdTag.RowsAffected(); n > 0 {
		logger.InfoLogger.Infof("Marked %d past confirmed bookings as completed", n)
		return n, nil
	}
	return 0, nil
}
