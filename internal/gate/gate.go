// Package gate runs notification passes at most once per calendar day.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"warm-outreach/internal/domain"
)

type State int32

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Pass performs one notification pass. It returns an error only when the
// pass could not run at all (for example the lead table is unavailable);
// per-stakeholder delivery failures are part of the summary.
type Pass func(ctx context.Context, passID string) (domain.PassSummary, error)

const (
	ReasonNoTrigger   = "no_trigger"
	ReasonAlreadySent = "already_sent"
	ReasonSent        = "sent"
)

type Result struct {
	Ran     bool               `json:"ran"`
	Reason  string             `json:"reason"`
	Day     string             `json:"day"`
	PassID  string             `json:"pass_id,omitempty"`
	Summary domain.PassSummary `json:"summary"`
}

// Status is the last observed activity of the gate.
type Status struct {
	State      string `json:"state"`
	Trigger    string `json:"trigger"`
	LastTickAt string `json:"last_tick_at"`
	LastRunAt  string `json:"last_run_at"`
	LastOkAt   string `json:"last_ok_at"`
	LastError  string `json:"last_error"`
	LastPassID string `json:"last_pass_id"`
	LastSent   int    `json:"last_sent"`
	LastFailed int    `json:"last_failed"`
}

type Option func(*Gate)

// WithLockFile adds a cross-process lock around check, run and mark.
func WithLockFile(path string, timeout time.Duration) Option {
	return func(g *Gate) {
		g.flock = flock.New(path)
		if timeout > 0 {
			g.lockTimeout = timeout
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(g *Gate) { g.newID = newID }
}

type Gate struct {
	trigger Trigger
	marker  Marker
	pass    Pass

	mu          sync.Mutex
	flock       *flock.Flock
	lockTimeout time.Duration
	newID       func() string

	state    atomic.Int32
	statusMu sync.Mutex
	status   atomic.Value // Status
}

func New(trigger Trigger, marker Marker, pass Pass, opts ...Option) *Gate {
	g := &Gate{
		trigger:     trigger,
		marker:      marker,
		pass:        pass,
		lockTimeout: 30 * time.Second,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	g.status.Store(Status{State: Closed.String(), Trigger: trigger.String()})
	return g
}

func (g *Gate) State() State { return State(g.state.Load()) }

func (g *Gate) Status() Status {
	st := g.status.Load().(Status)
	st.State = g.State().String()
	return st
}

func (g *Gate) Trigger() Trigger { return g.trigger }

// Tick evaluates the trigger for now and, when it matches and today has not
// been processed, runs one pass.
func (g *Gate) Tick(ctx context.Context, now time.Time) (Result, error) {
	g.updateStatus(func(st *Status) { st.LastTickAt = now.Format(time.RFC3339) })

	day := g.trigger.Day(now)
	if !g.trigger.Matches(now) {
		return Result{Reason: ReasonNoTrigger, Day: day}, nil
	}
	return g.run(ctx, now, false)
}

// RunNow skips the trigger check. Unless force is set it still honors the
// marker, so a manual run cannot double-send on a day already processed.
func (g *Gate) RunNow(ctx context.Context, now time.Time, force bool) (Result, error) {
	return g.run(ctx, now, force)
}

func (g *Gate) run(ctx context.Context, now time.Time, force bool) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.flock != nil {
		lctx, cancel := context.WithTimeout(ctx, g.lockTimeout)
		ok, err := g.flock.TryLockContext(lctx, 100*time.Millisecond)
		cancel()
		if err != nil || !ok {
			if err == nil {
				err = errors.New("lock not acquired")
			}
			return Result{}, fmt.Errorf("gate lock %s: %w", g.flock.Path(), err)
		}
		defer func() { _ = g.flock.Unlock() }()
	}

	day := g.trigger.Day(now)
	res := Result{Day: day}

	if !force {
		done, err := g.marker.Completed(ctx, day)
		if err != nil {
			return res, fmt.Errorf("read marker: %w", err)
		}
		if done {
			res.Reason = ReasonAlreadySent
			return res, nil
		}
	}

	passID := g.newID()
	res.PassID = passID

	g.state.Store(int32(Open))
	defer g.state.Store(int32(Closed))
	g.updateStatus(func(st *Status) {
		st.LastRunAt = now.Format(time.RFC3339)
		st.LastPassID = passID
	})

	if err := g.marker.Begin(ctx, day, passID); err != nil {
		log.Printf("[gate] record pass start day=%s pass=%s: %v", day, passID, err)
	}

	log.Printf("[gate] pass %s opening for %s", passID, day)
	summary, err := g.pass(ctx, passID)
	if err != nil {
		// Not marking the day lets the next matching tick retry.
		g.updateStatus(func(st *Status) { st.LastError = err.Error() })
		return res, fmt.Errorf("pass %s: %w", passID, err)
	}

	res.Ran = true
	res.Reason = ReasonSent
	res.Summary = summary

	if err := g.marker.Complete(ctx, day, passID, summary); err != nil {
		g.updateStatus(func(st *Status) { st.LastError = err.Error() })
		return res, fmt.Errorf("write marker: %w", err)
	}

	log.Printf("[gate] pass %s closed day=%s stakeholders=%d sent=%d failed=%d",
		passID, day, summary.Stakeholders, summary.Sent, summary.Failed)
	g.updateStatus(func(st *Status) {
		st.LastError = ""
		st.LastOkAt = time.Now().Format(time.RFC3339)
		st.LastSent = summary.Sent
		st.LastFailed = summary.Failed
	})
	return res, nil
}

func (g *Gate) updateStatus(fn func(*Status)) {
	g.statusMu.Lock()
	defer g.statusMu.Unlock()
	st := g.status.Load().(Status)
	fn(&st)
	g.status.Store(st)
}
