// Package ledger is the append-only record of notification passes and their
// per-stakeholder outcomes. Whether a day was already processed is derived
// from it rather than kept as a single mutable marker.
package ledger

import (
	"context"
	"time"

	"warm-outreach/internal/domain"
)

type Kind string

const (
	KindPassStarted   Kind = "pass_started"
	KindPassCompleted Kind = "pass_completed"
)

type Event struct {
	ID     string    `json:"id"`
	PassID string    `json:"pass_id"`
	Kind   Kind      `json:"kind"`
	Day    string    `json:"day"` // YYYY-MM-DD in the schedule's timezone
	At     time.Time `json:"at"`
	Sent   int       `json:"sent"`
	Failed int       `json:"failed"`
	Note   string    `json:"note,omitempty"`
}

type Ledger interface {
	Append(ctx context.Context, e Event) error
	CompletedOn(ctx context.Context, day string) (bool, error)
	Events(ctx context.Context, day string) ([]Event, error)

	RecordOutcomes(ctx context.Context, outcomes []domain.DispatchOutcome) error
	// Outcomes returns the outcomes of passID, or of the latest pass when
	// passID is empty.
	Outcomes(ctx context.Context, passID string) ([]domain.DispatchOutcome, error)

	Close() error
}
