package triage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LogRepository stores diagnosis log records.
type LogRepository interface {
	SaveLog(ctx context.Context, rec LogRecord) error
}

type sqlRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) LogRepository {
	return &sqlRepo{db: db}
}

func (r *sqlRepo) SaveLog(ctx context.Context, rec LogRecord) error {
	conditionsJSON, err := json.Marshal(nonNil(rec.MatchedConditions))
	if err != nil {
		return err
	}
	flagsJSON, err := json.Marshal(nonNil(rec.RedFlags))
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO diagnosis_logs (session_id, symptoms_text, detected_language, matched_conditions, red_flags_detected, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.SessionID.String(), rec.SymptomsText, string(rec.Language),
		string(conditionsJSON), string(flagsJSON), rec.ResponseTimeMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert diagnosis log: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
