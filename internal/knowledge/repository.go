package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	// SaveConditions inserts or updates each condition by title inside one
	// transaction, setting Condition.ID. beforeCommit, if non-nil, runs with
	// the IDs set; an error from it rolls the transaction back.
	SaveConditions(ctx context.Context, conds []Condition, version string, beforeCommit func([]Condition) error) (added, updated int, err error)
	// LatestVersion returns the version of the most recent upload.
	LatestVersion(ctx context.Context) (string, error)
}

type sqlRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &sqlRepo{db: db}
}

func jsonList(s []string) (string, error) {
	b, err := json.Marshal(nonNil(s))
	return string(b), err
}

func (r *sqlRepo) SaveConditions(ctx context.Context, conds []Condition, version string, beforeCommit func([]Condition) error) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	added, updated := 0, 0
	for i := range conds {
		c := &conds[i]
		lists := make([]string, 4)
		for j, l := range [][]string{c.Symptoms, c.Treatments, c.RedFlags, c.Tags} {
			if lists[j], err = jsonList(l); err != nil {
				return 0, 0, err
			}
		}

		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM medical_conditions WHERE title = $1`, c.Title).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			query := `
				INSERT INTO medical_conditions (title, symptoms, description, treatments, red_flags, tags, severity_level, version, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
				RETURNING id
			`
			if err := tx.QueryRowContext(ctx, query,
				c.Title, lists[0], c.Description, lists[1], lists[2], lists[3], c.SeverityLevel, version, now,
			).Scan(&id); err != nil {
				return 0, 0, fmt.Errorf("insert condition %q: %w", c.Title, err)
			}
			added++
		case err != nil:
			return 0, 0, fmt.Errorf("lookup condition %q: %w", c.Title, err)
		default:
			query := `
				UPDATE medical_conditions
				SET symptoms = $2, description = $3, treatments = $4, red_flags = $5, tags = $6,
					severity_level = $7, version = $8, updated_at = $9
				WHERE id = $1
			`
			if _, err := tx.ExecContext(ctx, query,
				id, lists[0], c.Description, lists[1], lists[2], lists[3], c.SeverityLevel, version, now,
			); err != nil {
				return 0, 0, fmt.Errorf("update condition %q: %w", c.Title, err)
			}
			updated++
		}
		c.ID = id
	}
	if beforeCommit != nil {
		if err := beforeCommit(conds); err != nil {
			return 0, 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

func (r *sqlRepo) LatestVersion(ctx context.Context) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT version FROM medical_conditions ORDER BY updated_at DESC, id DESC LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultVersion, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
