// Package store provides reservation.Store implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/models/booking_models"
	"github.com/trekvista/booking/models/slot_models"
	"github.com/trekvista/booking/models/trek_models"
	"github.com/trekvista/booking/models/voucher_models"
	"github.com/trekvista/booking/reservation"
)

// Postgres implements reservation.Store over pgx. Row locks
// (SELECT ... FOR UPDATE) inside Atomically provide the per-slot and
// per-voucher serialization; unrelated rows never contend.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store over the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetTrek(ctx context.Context, slug string) (*trek_models.Trek, error) {
	return trek_models.GetTrekBySlug(ctx, p.pool, slug)
}

func (p *Postgres) GetSlot(ctx context.Context, slotID uuid.UUID) (*slot_models.Slot, error) {
	return slot_models.GetSlotByID(ctx, p.pool, slotID)
}

func (p *Postgres) GetBooking(ctx context.Context, bookingID uuid.UUID) (*booking_models.Booking, error) {
	return booking_models.GetBookingByID(ctx, p.pool, bookingID)
}

func (p *Postgres) ListUserBookings(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]booking_models.Booking, int, error) {
	return booking_models.GetBookingsByUser(ctx, p.pool, userID, status, page, limit)
}

func (p *Postgres) GetVoucher(ctx context.Context, code string) (*voucher_models.Voucher, error) {
	return voucher_models.GetVoucherByCode(ctx, p.pool, code)
}

// Atomically runs fn inside one database transaction. Any error rolls the
// whole transaction back; serialization losses surface as ErrTxConflict so
// callers know a clean retry is safe.
func (p *Postgres) Atomically(ctx context.Context, fn func(tx reservation.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return mapTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (p *Postgres) Reconcile(ctx context.Context, slotID uuid.UUID) (int, error) {
	return slot_models.ReconcileSlot(ctx, p.pool, slotID)
}

func (p *Postgres) ExpirePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return booking_models.ExpirePendingBefore(ctx, p.pool, cutoff)
}

func (p *Postgres) CompletePast(ctx context.Context, now time.Time) (int64, error) {
	return booking_models.CompletePastConfirmed(ctx, p.pool, now)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockSlot(ctx context.Context, slotID uuid.UUID) (*slot_models.Slot, error) {
	return slot_models.GetSlotByIDForUpdate(ctx, t.tx, slotID)
}

func (t *postgresTx) LockBooking(ctx context.Context, bookingID uuid.UUID) (*booking_models.Booking, error) {
	return booking_models.GetBookingByIDForUpdate(ctx, t.tx, bookingID)
}

func (t *postgresTx) LockVoucher(ctx context.Context, code string) (*voucher_models.Voucher, error) {
	return voucher_models.GetVoucherByCodeForUpdate(ctx, t.tx, code)
}

func (t *postgresTx) LiveBookedParticipants(ctx context.Context, slotID uuid.UUID) (int, error) {
	return slot_models.LiveBookedParticipants(ctx, t.tx, slotID)
}

func (t *postgresTx) CreateBooking(ctx context.Context, booking *booking_models.Booking) error {
	_, err := booking_models.CreateBooking(ctx, t.tx, booking)
	return err
}

func (t *postgresTx) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status string) error {
	return booking_models.UpdateBookingStatus(ctx, t.tx, bookingID, status)
}

func (t *postgresTx) RedeemVoucher(ctx context.Context, voucherID uuid.UUID) error {
	return voucher_models.IncrementUses(ctx, t.tx, voucherID)
}

func (t *postgresTx) SetSlotBooked(ctx context.Context, slotID uuid.UUID, booked int) error {
	return slot_models.SetBooked(ctx, t.tx, slotID, booked)
}

// mapTxError tags serialization and deadlock failures (SQLSTATE 40001,
// 40P01) as retryable conflicts.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %v", reservation.ErrTxConflict, err)
		}
	}
	return err
}
