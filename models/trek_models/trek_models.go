package trek_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/models/shared_models"
)

var ErrTrekNotFound = errors.New("trek not found")

// Trek is an immutable catalog entry. Treks are created by the admin CRUD
// surface and are read-only to the reservation core.
type Trek struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	BasePrice int64     `json:"base_price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the trek can accept reservations.
func (t *Trek) IsActive() bool {
	return t.Status == shared_models.TrekStatusActive
}

// GetTrekBySlug fetches a trek catalog entry by its slug.
func GetTrekBySlug(ctx context.Context, db *pgxpool.Pool, slug string) (*Trek, error) {
	trek := &Trek{}
	query := `
		SELECT slug, name, base_price, status, created_at
		FROM treks
		WHERE slug = $1`

	err := db.QueryRow(ctx, query, slug).Scan(
		&trek.Slug, &trek.Name, &trek.BasePrice, &trek.Status, &trek.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnLogger.Warnf("Trek %q not found", slug)
			return nil, ErrTrekNotFound
		}
		logger.ErrorLogger.Errorf("Failed to fetch trek %q: %v", slug, err)
		return nil, fmt.Errorf("database error fetching trek: %w", err)
	}

	return trek, nil
}

// ListActiveTreks returns all treks currently open for reservations.
func ListActiveTreks(ctx context.Context, db *pgxpool.Pool) ([]Trek, error) {
	query := `
		SELECT slug, name, base_price, status, created_at
		FROM treks
		WHERE status = $1
		ORDER BY name`

	rows, err := db.Query(ctx, query, shared_models.TrekStatusActive)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to list active treks: %v", err)
		return nil, fmt.Errorf("failed to list treks: %w", err)
	}
	defer rows.Close()

	var treks []Trek
	for rows.Next() {
		var trek Trek
		if err := rows.Scan(&trek.Slug, &trek.Name, &trek.BasePrice, &trek.Status, &trek.CreatedAt); err != nil {
			logger.ErrorLogger.Errorf("Failed to scan trek row: %v", err)
			return nil, fmt.Errorf("failed to scan trek: %w", err)
		}
		treks = append(treks, trek)
	}

	return treks, nil
}
