package triage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afiya-triage/internal/language"
	"afiya-triage/internal/platform/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite3://"+filepath.Join(t.TempDir(), "triage.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func countBySession(t *testing.T, db *database.DB, sessionID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM diagnosis_logs WHERE session_id = $1`, sessionID).Scan(&n))
	return n
}

func TestRepositorySaveLog(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()
	id := uuid.New()

	err := repo.SaveLog(ctx, LogRecord{
		SessionID:         id,
		SymptomsText:      "I have chest pain",
		Language:          language.English,
		MatchedConditions: []string{"Heart attack"},
		RedFlags:          []string{"chest_pain"},
		ResponseTimeMS:    42,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countBySession(t, db, id.String()))

	var conditions, flags string
	err = db.QueryRow(`SELECT matched_conditions, red_flags_detected FROM diagnosis_logs WHERE session_id = $1`, id.String()).Scan(&conditions, &flags)
	require.NoError(t, err)
	assert.JSONEq(t, `["Heart attack"]`, conditions)
	assert.JSONEq(t, `["chest_pain"]`, flags)
}

func TestRepositoryEmptyLists(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.DB)
	id := uuid.New()
	require.NoError(t, repo.SaveLog(context.Background(), LogRecord{SessionID: id, SymptomsText: "x", Language: language.Yoruba}))

	var flags string
	require.NoError(t, db.QueryRow(`SELECT red_flags_detected FROM diagnosis_logs WHERE session_id = $1`, id.String()).Scan(&flags))
	assert.Equal(t, "[]", flags)
}
