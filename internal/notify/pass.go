package notify

import (
	"context"
	"fmt"
	"log"

	"warm-outreach/internal/domain"
	"warm-outreach/internal/group"
)

type LeadReader interface {
	Read(ctx context.Context) ([]domain.Lead, error)
}

type OutcomeRecorder interface {
	RecordOutcomes(ctx context.Context, outcomes []domain.DispatchOutcome) error
}

// Pass wires one full notification pass: read the table, group pending
// leads by stakeholder, dispatch, then persist every outcome.
type Pass struct {
	Leads      LeadReader
	Dispatcher *Dispatcher
	Log        OutcomeLog
	Recorder   OutcomeRecorder
	DryRun     bool
}

func (p *Pass) Run(ctx context.Context, passID string) (domain.PassSummary, error) {
	leads, err := p.Leads.Read(ctx)
	if err != nil {
		return domain.PassSummary{}, err
	}
	groups := group.ByStakeholder(leads)
	log.Printf("[notify] pass %s: %d stakeholders with pending leads", passID, len(groups))

	if p.DryRun {
		for _, g := range groups {
			log.Printf("[notify] dry-run %s -> %v", g.Email, g.LeadNames())
		}
		return domain.PassSummary{Stakeholders: len(groups)}, nil
	}

	outcomes := p.Dispatcher.Run(ctx, passID, groups)

	if err := p.Log.Write(outcomes); err != nil {
		log.Printf("[notify] outcome log %s: %v", p.Log.Path, err)
	}
	if p.Recorder != nil {
		// Outcomes are persisted even when ctx was cancelled mid-pass.
		if err := p.Recorder.RecordOutcomes(context.WithoutCancel(ctx), outcomes); err != nil {
			log.Printf("[notify] record outcomes: %v", err)
		}
	}
	summary := domain.Summarize(outcomes)
	log.Printf("[notify] pass %s done: %s", passID, describe(summary))
	return summary, nil
}

func describe(s domain.PassSummary) string {
	return fmt.Sprintf("stakeholders=%d sent=%d failed=%d", s.Stakeholders, s.Sent, s.Failed)
}
