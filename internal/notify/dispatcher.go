// Package notify sends one reminder per stakeholder per pass and records
// what happened to each attempt.
package notify

import (
	"context"
	"log"
	"time"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/group"
)

// Transport delivers a fully composed RFC 5322 message.
type Transport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Archiver keeps a copy of each delivered message (for example in a Sent
// mailbox). Archive failures never affect the outcome.
type Archiver interface {
	Archive(ctx context.Context, msg []byte) error
}

type Dispatcher struct {
	Composer  Composer
	Transport Transport
	Limiter   *DomainLimiter
	Archiver  Archiver
	Now       func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Run attempts delivery to every group in order. A failure for one
// stakeholder never stops the others; each attempt yields one outcome.
func (d *Dispatcher) Run(ctx context.Context, passID string, groups []group.Group) []domain.DispatchOutcome {
	out := make([]domain.DispatchOutcome, 0, len(groups))
	for _, g := range groups {
		if len(g.Leads) == 0 {
			continue
		}
		o := domain.DispatchOutcome{
			PassID:       passID,
			Email:        g.Email,
			PendingCount: len(g.Leads),
			LeadNames:    g.LeadNames(),
			FormLink:     FormLink(d.Composer.BaseURL, g.Email),
		}

		err := d.deliver(ctx, g.Email, o.LeadNames)
		o.Timestamp = d.now()
		if err != nil {
			o.Status = domain.OutcomeFailed
			o.Reason = err.Error()
			log.Printf("[notify] %v", apperr.TransportFailure(g.Email, err))
		} else {
			o.Status = domain.OutcomeSuccess
			log.Printf("[notify] sent to %s leads=%d", g.Email, o.PendingCount)
		}
		out = append(out, o)
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, to string, leads []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := d.Composer.Compose(to, leads, d.now())
	if err != nil {
		return err
	}
	if err := d.Limiter.Wait(ctx, to); err != nil {
		return err
	}
	if err := d.Transport.Send(ctx, d.Composer.From, []string{to}, msg.Raw); err != nil {
		return err
	}
	if d.Archiver != nil {
		if err := d.Archiver.Archive(ctx, msg.Raw); err != nil {
			log.Printf("[notify] archive copy for %s: %v", to, err)
		}
	}
	return nil
}
