// Package offline replays diagnoses queued on devices while they were offline
// and tells the device whether its knowledge base copy is stale.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"afiya-triage/internal/triage"
)

// replayParallelism bounds concurrent diagnoses within one sync.
const replayParallelism = 4

// Versioner reports the current knowledge base version.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

type Service interface {
	Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error)
}

type service struct {
	diagnoser triage.Service
	versions  Versioner
	repo      Repository
	logger    *slog.Logger
}

func NewService(diagnoser triage.Service, versions Versioner, repo Repository) Service {
	return &service{
		diagnoser: diagnoser,
		versions:  versions,
		repo:      repo,
		logger:    slog.Default().With("component", "offline"),
	}
}

// Sync diagnoses every pending query, skipping the ones that fail, and
// records the sync. Results keep the order of the pending queries.
func (s *service) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	version, err := s.versions.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge base version: %w", err)
	}

	results := make([]*triage.DiagnosisResponse, len(req.PendingQueries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayParallelism)
	for i, q := range req.PendingQueries {
		i, q := i, q
		g.Go(func() error {
			res, err := s.diagnoser.Diagnose(gctx, q.Query())
			if err != nil {
				s.logger.Warn("skipping offline query", "device_id", req.DeviceID, "index", i, "error", err)
				return nil
			}
			resp := triage.NewResponse(res)
			results[i] = &resp
			return nil
		})
	}
	_ = g.Wait()

	processed := make([]triage.DiagnosisResponse, 0, len(results))
	for _, r := range results {
		if r != nil {
			processed = append(processed, *r)
		}
	}
	failed := len(req.PendingQueries) - len(processed)

	now := time.Now().UTC()
	status := StatusCompleted
	if failed > 0 {
		status = StatusPartial
	}
	if s.repo != nil {
		err := s.repo.SaveSync(ctx, Record{
			DeviceID:        req.DeviceID,
			PendingQueries:  req.PendingQueries,
			ClientKBVersion: req.ClientKBVersion,
			Processed:       len(processed),
			Failed:          failed,
			Status:          status,
			SyncedAt:        now,
		})
		if err != nil {
			s.logger.Error("failed to store offline sync", "device_id", req.DeviceID, "error", err)
		}
	}

	s.logger.Info("offline sync completed", "device_id", req.DeviceID, "processed", len(processed), "failed", failed)
	return &SyncResponse{
		KBUpdateRequired: req.ClientKBVersion != version,
		KBVersion:        version,
		ProcessedQueries: processed,
		FailedQueries:    failed,
		SyncTimestamp:    now,
	}, nil
}
