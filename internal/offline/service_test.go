package offline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afiya-triage/internal/platform/database"
	"afiya-triage/internal/triage"
)

type stubDiagnoser struct{}

func (stubDiagnoser) Diagnose(_ context.Context, q triage.SymptomQuery) (*triage.DiagnosisResult, error) {
	if strings.Contains(q.Symptoms, "fail") {
		return nil, errors.New("vector store unavailable")
	}
	return &triage.DiagnosisResult{
		ID:         uuid.New(),
		Language:   "en",
		Disclaimer: q.Symptoms,
	}, nil
}

type fixedVersion string

func (v fixedVersion) Version(context.Context) (string, error) { return string(v), nil }

func openRepo(t *testing.T) Repository {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite3://"+filepath.Join(t.TempDir(), "sync.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewRepository(db.DB)
}

func pending(texts ...string) []triage.DiagnosisRequest {
	out := make([]triage.DiagnosisRequest, len(texts))
	for i, t := range texts {
		out[i] = triage.DiagnosisRequest{Symptoms: t}
	}
	return out
}

func TestSyncSkipsFailuresAndKeepsOrder(t *testing.T) {
	repo := openRepo(t)
	svc := NewService(stubDiagnoser{}, fixedVersion("1.0.5"), repo)

	res, err := svc.Sync(context.Background(), SyncRequest{
		DeviceID:        "device-1",
		PendingQueries:  pending("first query text", "this one will fail", "third query text", "fourth query text", "fifth query text"),
		ClientKBVersion: "1.0.0",
	})
	require.NoError(t, err)
	require.Len(t, res.ProcessedQueries, 4)
	assert.Equal(t, 1, res.FailedQueries)
	assert.Equal(t, "first query text", res.ProcessedQueries[0].Disclaimer)
	assert.Equal(t, "third query text", res.ProcessedQueries[1].Disclaimer)
	assert.Equal(t, "fifth query text", res.ProcessedQueries[3].Disclaimer)
	assert.True(t, res.KBUpdateRequired)
	assert.Equal(t, "1.0.5", res.KBVersion)

	rec, err := repo.LastSync(context.Background(), "device-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusPartial, rec.Status)
	assert.Equal(t, 4, rec.Processed)
	assert.Equal(t, 1, rec.Failed)
	assert.Len(t, rec.PendingQueries, 5)
	assert.Equal(t, "1.0.0", rec.ClientKBVersion)
}

func TestSyncUpToDate(t *testing.T) {
	svc := NewService(stubDiagnoser{}, fixedVersion("1.0.0"), openRepo(t))
	res, err := svc.Sync(context.Background(), SyncRequest{DeviceID: "d", ClientKBVersion: "1.0.0"})
	require.NoError(t, err)
	assert.False(t, res.KBUpdateRequired)
	assert.Empty(t, res.ProcessedQueries)
	assert.NotNil(t, res.ProcessedQueries)
}

func TestLastSyncMissing(t *testing.T) {
	rec, err := openRepo(t).LastSync(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestHandleSync(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(NewService(stubDiagnoser{}, fixedVersion("1.0.0"), nil)))

	body := `{"device_id":"d1","client_kb_version":"1.0.0","pending_queries":[{"symptoms":"headache and fever"}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offline/sync", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kb_update_required":false`)

	bad := `{"device_id":"d1","client_kb_version":"1.0.0","pending_queries":[{"symptoms":"short"}]}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/offline/sync", strings.NewReader(bad)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending_queries[0].symptoms")
}
