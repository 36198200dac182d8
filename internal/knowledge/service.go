// Package knowledge ingests medical conditions into the SQL store and the
// vector knowledge base.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"afiya-triage/internal/platform/metrics"
)

// pointNamespace derives stable vector point IDs from condition titles, so a
// re-uploaded condition replaces its old vector.
var pointNamespace = uuid.MustParse("6f1d9a52-3c0e-4b8e-9a4f-2f7c1f0b5e11")

// BatchEncoder embeds many texts at once.
type BatchEncoder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer writes vectors with caller-chosen IDs.
type Indexer interface {
	Upsert(ctx context.Context, ids []string, embeddings [][]float32, payloads []map[string]any) (int, error)
}

type Service interface {
	Upload(ctx context.Context, conds []Condition) (*UploadResult, error)
	Version(ctx context.Context) (string, error)
}

type service struct {
	repo    Repository
	encoder BatchEncoder
	index   Indexer
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo Repository, encoder BatchEncoder, index Indexer, m *metrics.Metrics) Service {
	return &service{
		repo:    repo,
		encoder: encoder,
		index:   index,
		metrics: m,
		now:     time.Now,
		logger:  slog.Default().With("component", "knowledge"),
	}
}

// PointID returns the vector point ID used for a condition title.
func PointID(title string) string {
	return uuid.NewSHA1(pointNamespace, []byte(title)).String()
}

func (s *service) Upload(ctx context.Context, conds []Condition) (*UploadResult, error) {
	now := s.now().UTC()
	version := fmt.Sprintf("1.0.%d", now.Unix())

	texts := make([]string, len(conds))
	for i, c := range conds {
		texts[i] = c.Text()
	}
	vecs, err := s.encoder.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed conditions: %w", err)
	}

	// rows commit only once their vectors are indexed, so the reported
	// version never runs ahead of the vector store
	var n int
	added, updated, err := s.repo.SaveConditions(ctx, conds, version, func(saved []Condition) error {
		ids := make([]string, len(saved))
		payloads := make([]map[string]any, len(saved))
		for i, c := range saved {
			ids[i] = PointID(c.Title)
			payloads[i] = c.Payload()
		}
		var err error
		if n, err = s.index.Upsert(ctx, ids, vecs, payloads); err != nil {
			return fmt.Errorf("index conditions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save conditions: %w", err)
	}
	s.metrics.Ingested(n)

	s.logger.Info("knowledge base updated", "added", added, "updated", updated, "version", version)
	return &UploadResult{
		Status:            "success",
		ConditionsAdded:   added,
		ConditionsUpdated: updated,
		Version:           version,
		Timestamp:         now,
	}, nil
}

func (s *service) Version(ctx context.Context) (string, error) {
	return s.repo.LatestVersion(ctx)
}
