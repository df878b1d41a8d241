package voucher_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/shared_models"
	"github.com/trekvista/booking/models/slot_models"
)

var (
	ErrVoucherNotFound     = errors.New("voucher not found")
	ErrVoucherExpired      = errors.New("voucher has expired")
	ErrVoucherExhausted    = errors.New("voucher has no uses left")
	ErrVoucherUserMismatch = errors.New("voucher is not valid for this user")
	ErrVoucherBelowMinimum = errors.New("order amount is below the voucher minimum")
)

// Voucher is a discount code. A single-use code is modelled as MaxUses=1;
// a user-scoped code carries a non-nil UserID.
type Voucher struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	MinimumAmount   *int64     `json:"minimum_amount,omitempty"`
	MaximumDiscount *int64     `json:"maximum_discount,omitempty"`
	ValidUntil      time.Time  `json:"valid_until"`
	MaxUses         int        `json:"max_uses"`
	CurrentUses     int        `json:"current_uses"`
	IsActive        bool       `json:"is_active"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewVoucher creates an active Voucher.
func NewVoucher(code string, discountPercent int, validUntil time.Time, maxUses int) (*Voucher, error) {
	if code == "" {
		return nil, fmt.Errorf("voucher code must not be empty")
	}
	if discountPercent < 1 || discountPercent > 100 {
		return nil, fmt.Errorf("discount percent must be between 1 and 100")
	}
	if maxUses < 1 {
		return nil, fmt.Errorf("max uses must be at least 1")
	}
	id, err := shared_models.GenerateUUIDv7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for voucher: %w", err)
	}
	now := time.Now()
	return &Voucher{
		ID:              id,
		Code:            code,
		DiscountPercent: discountPercent,
		ValidUntil:      validUntil,
		MaxUses:         maxUses,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Validate checks whether the voucher can be applied by userID to an order
// of the given pre-tax amount. An inactive voucher behaves as if the code
// did not exist.
func (v *Voucher) Validate(userID uuid.UUID, amount int64, now time.Time) error {
	if !v.IsActive {
		return ErrVoucherNotFound
	}
	if now.After(v.ValidUntil) {
		return ErrVoucherExpired
	}
	if v.CurrentUses >= v.MaxUses {
		return ErrVoucherExhausted
	}
	if v.UserID != nil && *v.UserID != userID {
		return ErrVoucherUserMismatch
	}
	if v.MinimumAmount != nil && amount < *v.MinimumAmount {
		return ErrVoucherBelowMinimum
	}
	return nil
}

// DiscountFor computes the discount on a pre-tax amount: the percentage
// rounded to the nearest currency unit, capped by MaximumDiscount.
func (v *Voucher) DiscountFor(amount int64) int64 {
	discount := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(v.DiscountPercent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	if v.MaximumDiscount != nil && discount > *v.MaximumDiscount {
		discount = *v.MaximumDiscount
	}
	if discount > amount {
		discount = amount
	}
	return discount
}

const voucherColumns = `id, code, discount_percent, minimum_amount, maximum_discount,
	valid_until, max_uses, current_uses, is_active, user_id, created_at, updated_at`

func scanVoucher(row pgx.Row) (*Voucher, error) {
	v := &Voucher{}
	err := row.Scan(
		&v.ID, &v.Code, &v.DiscountPercent, &v.MinimumAmount, &v.MaximumDiscount,
		&v.ValidUntil, &v.MaxUses, &v.CurrentUses, &v.IsActive, &v.UserID,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("database error fetching voucher: %w", err)
	}
	return v, nil
}

// GetVoucherByCode fetches a voucher by its code without locking. Used by
// the read-only preview path; never by redemption.
func GetVoucherByCode(ctx context.Context, q slot_models.Querier, code string) (*Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	v, err := scanVoucher(q.QueryRow(ctx, query, code))
	if err != nil {
		if !errors.Is(err, ErrVoucherNotFound) {
			logger.ErrorLogger.Errorf("Failed to fetch voucher %q: %v", code, err)
		}
		return nil, err
	}
	return v, nil
}

// GetVoucherByCodeForUpdate fetches a voucher inside tx holding an exclusive
// row lock. Redemptions of the same code serialize behind this lock;
// different codes stay concurrent.
func GetVoucherByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1 FOR UPDATE`
	v, err := scanVoucher(tx.QueryRow(ctx, query, code))
	if err != nil {
		if !errors.Is(err, ErrVoucherNotFound) {
			logger.ErrorLogger.Errorf("Failed to lock voucher %q: %v", code, err)
		}
		return nil, err
	}
	return v, nil
}

// IncrementUses consumes one use of the voucher. The guard re-checks the
// use limit so current_uses can never exceed max_uses even if a caller
// skipped Validate.
func IncrementUses(ctx context.Context, q slot_models.Querier, voucherID uuid.UUID) error {
	query := `
		UPDATE vouchers
		SET current_uses = current_uses + 1, updated_at = NOW()
		WHERE id = $1 AND current_uses < max_uses`

	cmdTag, err := q.Exec(ctx, query, voucherID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to increment uses for voucher %s: %v", voucherID, err)
		return fmt.Errorf("failed to redeem voucher: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVoucherExhausted
	}
	return nil
}

// CreateVoucher inserts a new voucher row.
func CreateVoucher(ctx context.Context, db *pgxpool.Pool, v *Voucher) (*Voucher, error) {
	logger.InfoLogger.Infof("Creating voucher %q (%d%%, max uses %d)", v.Code, v.DiscountPercent, v.MaxUses)

	query := `
		INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	var insertedID uuid.UUID
	err := db.QueryRow(ctx, query,
		v.ID, v.Code, v.DiscountPercent, v.MinimumAmount, v.MaximumDiscount,
		v.ValidUntil, v.MaxUses, v.CurrentUses, v.IsActive, v.UserID,
		v.CreatedAt, v.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to insert voucher %q: %v", v.Code, err)
		return nil, fmt.Errorf("failed to create voucher: %w", err)
	}

	v.ID = insertedID
	return v, nil
}

// ListVouchers returns all vouchers, newest first.
func ListVouchers(ctx context.Context, db *pgxpool.Pool) ([]Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers ORDER BY created_at DESC`

	rows, err := db.Query(ctx, query)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to list vouchers: %v", err)
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		err := rows.Scan(
			&v.ID, &v.Code, &v.DiscountPercent, &v.MinimumAmount, &v.MaximumDiscount,
			&v.ValidUntil, &v.MaxUses, &v.CurrentUses, &v.IsActive, &v.UserID,
			&v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			logger.ErrorLogger.Errorf("Failed to scan voucher row: %v", err)
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}

	return vouchers, nil
}

// DeactivateVoucher disables a voucher without deleting its redemption
// history.
func DeactivateVoucher(ctx context.Context, db *pgxpool.Pool, voucherID uuid.UUID) error {
	query := `UPDATE vouchers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	cmdTag, err := db.Exec(ctx, query, voucherID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to deactivate voucher %s: %v", voucherID, err)
		return fmt.Errorf("failed to deactivate voucher: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}

	logger.InfoLogger.Infof("Voucher %s deactivated", voucherID)
	return nil
}
