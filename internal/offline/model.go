package offline

import (
	"time"

	"afiya-triage/internal/triage"
)

// SyncRequest is the body of POST /api/v1/offline/sync.
type SyncRequest struct {
	DeviceID          string                    `json:"device_id" validate:"required,max=128"`
	PendingQueries    []triage.DiagnosisRequest `json:"pending_queries" validate:"max=100,dive"`
	ClientKBVersion   string                    `json:"client_kb_version" validate:"required"`
	LastSyncTimestamp *time.Time                `json:"last_sync_timestamp,omitempty"`
}

type SyncResponse struct {
	KBUpdateRequired bool                       `json:"kb_update_required"`
	KBVersion        string                     `json:"kb_version"`
	ProcessedQueries []triage.DiagnosisResponse `json:"processed_queries"`
	FailedQueries    int                        `json:"failed_queries"`
	SyncTimestamp    time.Time                  `json:"sync_timestamp"`
}

// Status values of a sync record.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
)

// Record is one stored sync.
type Record struct {
	DeviceID        string
	PendingQueries  []triage.DiagnosisRequest
	ClientKBVersion string
	Processed       int
	Failed          int
	Status          string
	SyncedAt        time.Time
}
