package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"warm-outreach/internal/config"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/events"
	"warm-outreach/internal/gate"
	"warm-outreach/internal/ledger"
	"warm-outreach/internal/merge"
)

type LeadReader interface {
	Read(ctx context.Context) ([]domain.Lead, error)
}

type ResponseMerger interface {
	Merge(ctx context.Context, identity string, batch []domain.SubmissionItem) (merge.Result, error)
}

type OutcomeSource interface {
	Outcomes(ctx context.Context, passID string) ([]domain.DispatchOutcome, error)
}

// PassRunner is the scheduler gate as seen by the API.
type PassRunner interface {
	Status() gate.Status
	State() gate.State
	RunNow(ctx context.Context, now time.Time, force bool) (gate.Result, error)
}

// EventSource is the append-only pass log.
type EventSource interface {
	Events(ctx context.Context, day string) ([]ledger.Event, error)
}

type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

type Deps struct {
	Hub *events.Hub

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Leads    LeadReader
	Merger   ResponseMerger
	Outcomes OutcomeSource
	Gate     PassRunner
	Events   EventSource
	Ledger   Checkpointer // optional

	// AdminToken lets non-loopback callers reach admin routes.
	AdminToken string
}
