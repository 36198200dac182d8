package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		dsn     string
		wantErr bool
	}{
		{in: "postgres://u:p@localhost:5432/afiya?sslmode=disable", dialect: Postgres, dsn: "postgres://u:p@localhost:5432/afiya?sslmode=disable"},
		{in: "postgresql://localhost/afiya", dialect: Postgres, dsn: "postgresql://localhost/afiya"},
		{in: "sqlite3:///var/lib/afiya/afiya.db", dialect: SQLite, dsn: "/var/lib/afiya/afiya.db"},
		{in: "mysql://localhost/afiya", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dialect, dsn, err := parseURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	url := "sqlite3://" + filepath.Join(t.TempDir(), "afiya.db")
	db, err := Open(context.Background(), url, Options{})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, SQLite, db.Dialect)

	require.NoError(t, db.Migrate())
	// second run is a no-op
	require.NoError(t, db.Migrate())

	for _, table := range []string{"diagnosis_logs", "medical_conditions", "offline_sync"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}
