package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"afiya-triage/internal/triage"
)

type Repository interface {
	SaveSync(ctx context.Context, rec Record) error
	LastSync(ctx context.Context, deviceID string) (*Record, error)
}

type sqlRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &sqlRepo{db: db}
}

func (r *sqlRepo) SaveSync(ctx context.Context, rec Record) error {
	queries := rec.PendingQueries
	if queries == nil {
		queries = []triage.DiagnosisRequest{}
	}
	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO offline_sync (device_id, pending_queries, client_kb_version, processed, failed, sync_status, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.DeviceID, string(queriesJSON), rec.ClientKBVersion, rec.Processed, rec.Failed, rec.Status, rec.SyncedAt)
	if err != nil {
		return fmt.Errorf("insert offline sync: %w", err)
	}
	return nil
}

// LastSync returns the newest record for deviceID, or nil if there is none.
func (r *sqlRepo) LastSync(ctx context.Context, deviceID string) (*Record, error) {
	query := `
		SELECT device_id, pending_queries, client_kb_version, processed, failed, sync_status, synced_at
		FROM offline_sync WHERE device_id = $1
		ORDER BY synced_at DESC, id DESC LIMIT 1
	`
	var rec Record
	var queriesJSON []byte
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&rec.DeviceID, &queriesJSON, &rec.ClientKBVersion, &rec.Processed, &rec.Failed, &rec.Status, &rec.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(queriesJSON) > 0 {
		if err := json.Unmarshal(queriesJSON, &rec.PendingQueries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending queries: %w", err)
		}
	}
	return &rec, nil
}
