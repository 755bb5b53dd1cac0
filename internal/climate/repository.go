package climate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultHistoryRetention is how many snapshots are kept per thermostat.
const DefaultHistoryRetention = 2000

// HistoryEntry is one row of thermostat_history.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Snapshot  Snapshot  `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteRepository implements StateStore on the thermostat_state table and
// StatePublisher on thermostat_history.
type SQLiteRepository struct {
	db        *sql.DB
	retention int
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, retention: DefaultHistoryRetention}
}

// SetRetention changes how many history rows are kept per thermostat.
// Zero or less disables pruning.
func (r *SQLiteRepository) SetRetention(n int) {
	r.retention = n
}

// Load returns the saved state, or ErrNoPersistedState.
func (r *SQLiteRepository) Load(ctx context.Context, thermostatID string) (*PersistedState, error) {
	var mode, attrs string
	err := r.db.QueryRowContext(ctx,
		`SELECT hvac_mode, attributes FROM thermostat_state WHERE thermostat_id = ?`,
		thermostatID,
	).Scan(&mode, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPersistedState
		}
		return nil, fmt.Errorf("querying thermostat state: %w", err)
	}

	ps := &PersistedState{HVACMode: mode}
	if err := json.Unmarshal([]byte(attrs), &ps.Attributes); err != nil {
		return nil, fmt.Errorf("decoding thermostat attributes: %w", err)
	}
	return ps, nil
}

// Save upserts the state for thermostatID.
func (r *SQLiteRepository) Save(ctx context.Context, thermostatID string, state PersistedState) error {
	attrs, err := json.Marshal(state.Attributes)
	if err != nil {
		return fmt.Errorf("encoding thermostat attributes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO thermostat_state (thermostat_id, hvac_mode, attributes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thermostat_id) DO UPDATE SET
			hvac_mode = excluded.hvac_mode,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`,
		thermostatID, state.HVACMode, string(attrs), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving thermostat state: %w", err)
	}
	return nil
}

// Publish appends snap to the history and prunes rows beyond the
// retention limit.
func (r *SQLiteRepository) Publish(ctx context.Context, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	createdAt := snap.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO thermostat_history (thermostat_id, hvac_mode, hvac_action, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ThermostatID, string(snap.HVACMode), string(snap.HVACAction), string(body),
		createdAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("inserting history: %w", err)
	}

	if r.retention > 0 {
		if _, err := r.db.ExecContext(ctx, `
			DELETE FROM thermostat_history
			WHERE thermostat_id = ? AND id NOT IN (
				SELECT id FROM thermostat_history
				WHERE thermostat_id = ?
				ORDER BY id DESC
				LIMIT ?
			)`,
			snap.ThermostatID, snap.ThermostatID, r.retention,
		); err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
	}
	return nil
}

// History returns up to limit snapshots for thermostatID, newest first.
func (r *SQLiteRepository) History(ctx context.Context, thermostatID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, snapshot, created_at FROM thermostat_history
		WHERE thermostat_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		thermostatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var body, createdAt string
		if err := rows.Scan(&e.ID, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("decoding snapshot %d: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // format is controlled
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}
