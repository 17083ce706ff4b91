package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	tank "watervend/internal/tank/domain"
)

// StateRepository persists the single tank state row.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository constructs a repository.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Load fetches the persisted state. Returns found=false when the row does
// not exist yet (first boot).
func (r *StateRepository) Load(ctx context.Context) (tank.Snapshot, bool, error) {
	if r == nil || r.db == nil {
		return tank.Snapshot{}, false, errors.New("tank repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT capacity_liters, quality_ppm, remaining_liters, version
FROM tank_state
WHERE id = 1`)
	var snap tank.Snapshot
	err := row.Scan(&snap.CapacityLiters, &snap.QualityPpm, &snap.RemainingLiters, &snap.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return tank.Snapshot{}, false, nil
	}
	if err != nil {
		return tank.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save upserts the state row. The version guard refuses to write a snapshot
// older than what is already persisted, so a stale writer can never roll the
// durable state backwards.
func (r *StateRepository) Save(ctx context.Context, snap tank.Snapshot) error {
	if r == nil || r.db == nil {
		return errors.New("tank repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tank_state (id, capacity_liters, quality_ppm, remaining_liters, version, updated_at)
VALUES (1, $1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	capacity_liters = EXCLUDED.capacity_liters,
	quality_ppm = EXCLUDED.quality_ppm,
	remaining_liters = EXCLUDED.remaining_liters,
	version = EXCLUDED.version,
	updated_at = EXCLUDED.updated_at
WHERE tank_state.version < EXCLUDED.version`,
		snap.CapacityLiters, snap.QualityPpm, snap.RemainingLiters, snap.Version, time.Now().UTC())
	return err
}
