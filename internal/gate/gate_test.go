package gate

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/ledger"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// 2025-07-01 is a Tuesday.
var tuesday2340 = time.Date(2025, 7, 1, 23, 40, 0, 0, ist)

func weeklyTrigger(t *testing.T) Trigger {
	t.Helper()
	tr, err := NewWeekly("Tuesday", "23:40", ist)
	if err != nil {
		t.Fatalf("new trigger failed: %v", err)
	}
	return tr
}

func countingPass(calls *int32, summary domain.PassSummary, err error) Pass {
	return func(context.Context, string) (domain.PassSummary, error) {
		atomic.AddInt32(calls, 1)
		return summary, err
	}
}

func sqliteMarker(t *testing.T) LedgerMarker {
	t.Helper()
	l, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return LedgerMarker{Ledger: l}
}

func TestScenarioTickThenRetick(t *testing.T) {
	var calls int32
	marker := FileMarker{Path: filepath.Join(t.TempDir(), "last_email_sent.txt")}
	g := New(weeklyTrigger(t), marker, countingPass(&calls, domain.PassSummary{Stakeholders: 1, Sent: 1}, nil))
	ctx := context.Background()

	res, err := g.Tick(ctx, tuesday2340)
	if err != nil {
		t.Fatalf("first tick failed: %v", err)
	}
	if !res.Ran || res.Reason != ReasonSent || res.Day != "2025-07-01" {
		t.Fatalf("expected pass to run on 2025-07-01, got %+v", res)
	}
	if done, _ := marker.Completed(ctx, "2025-07-01"); !done {
		t.Fatalf("expected marker to hold today's date")
	}

	res, err = g.Tick(ctx, tuesday2340.Add(20*time.Second))
	if err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if res.Ran || res.Reason != ReasonAlreadySent {
		t.Fatalf("expected second tick to be deduped, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one pass, got %d", calls)
	}
	if g.State() != Closed {
		t.Fatalf("gate must return to closed")
	}
}

func TestAtMostOncePerDayUnderRepeatedConcurrentTicks(t *testing.T) {
	var calls int32
	marker := sqliteMarker(t)
	lockPath := filepath.Join(t.TempDir(), "gate.lock")
	g := New(weeklyTrigger(t), marker, countingPass(&calls, domain.PassSummary{}, nil),
		WithLockFile(lockPath, time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Tick(context.Background(), tuesday2340); err != nil {
				t.Errorf("tick failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected one pass across 25 evaluations, got %d", calls)
	}
}

func TestTwoGatesSharingLockAndLedgerSendOnce(t *testing.T) {
	var calls int32
	marker := sqliteMarker(t)
	lockPath := filepath.Join(t.TempDir(), "gate.lock")
	a := New(weeklyTrigger(t), marker, countingPass(&calls, domain.PassSummary{}, nil), WithLockFile(lockPath, 5*time.Second))
	b := New(weeklyTrigger(t), marker, countingPass(&calls, domain.PassSummary{}, nil), WithLockFile(lockPath, 5*time.Second))

	var wg sync.WaitGroup
	for _, g := range []*Gate{a, b, a, b} {
		wg.Add(1)
		go func(g *Gate) {
			defer wg.Done()
			_, _ = g.Tick(context.Background(), tuesday2340)
		}(g)
	}
	wg.Wait()
	if calls != 1 {
		t.Fatalf("expected a single pass across gates, got %d", calls)
	}
}

func TestNoTriggerOutsideMinute(t *testing.T) {
	var calls int32
	g := New(weeklyTrigger(t), sqliteMarker(t), countingPass(&calls, domain.PassSummary{}, nil))
	for _, now := range []time.Time{
		tuesday2340.Add(-time.Minute),
		tuesday2340.Add(time.Minute),
		tuesday2340.AddDate(0, 0, 1),
	} {
		res, err := g.Tick(context.Background(), now)
		if err != nil || res.Ran || res.Reason != ReasonNoTrigger {
			t.Fatalf("expected no pass at %s, got %+v err=%v", now, res, err)
		}
	}
	if calls != 0 {
		t.Fatalf("expected no passes, got %d", calls)
	}
}

func TestPartialFailureStillMarksDay(t *testing.T) {
	var calls int32
	marker := sqliteMarker(t)
	g := New(weeklyTrigger(t), marker, countingPass(&calls, domain.PassSummary{Stakeholders: 2, Sent: 1, Failed: 1}, nil))

	res, err := g.Tick(context.Background(), tuesday2340)
	if err != nil || !res.Ran {
		t.Fatalf("expected pass to complete, got %+v err=%v", res, err)
	}
	if done, _ := marker.Completed(context.Background(), "2025-07-01"); !done {
		t.Fatalf("a failed stakeholder must not block marking the day")
	}
	events, _ := marker.Ledger.Events(context.Background(), "2025-07-01")
	if len(events) != 2 || events[0].Kind != ledger.KindPassStarted || events[1].Failed != 1 {
		t.Fatalf("unexpected ledger events %+v", events)
	}
}

func TestStoreFailureLeavesDayOpenForRetry(t *testing.T) {
	var calls int32
	marker := sqliteMarker(t)
	g := New(weeklyTrigger(t), marker,
		countingPass(&calls, domain.PassSummary{}, apperr.StoreUnavailable("open lead table", nil)))

	_, err := g.Tick(context.Background(), tuesday2340)
	if !apperr.Is(err, apperr.CodeStoreUnavailable) {
		t.Fatalf("expected STORE_UNAVAILABLE, got %v", err)
	}
	if done, _ := marker.Completed(context.Background(), "2025-07-01"); done {
		t.Fatalf("day must stay unmarked when the pass could not run")
	}
	if g.Status().LastError == "" {
		t.Fatalf("expected status to record the error")
	}

	_, _ = g.Tick(context.Background(), tuesday2340.Add(30*time.Second))
	if calls != 2 {
		t.Fatalf("expected retry on the next matching tick, got %d calls", calls)
	}
}

func TestRunNowHonorsMarkerUnlessForced(t *testing.T) {
	var calls int32
	g := New(weeklyTrigger(t), sqliteMarker(t), countingPass(&calls, domain.PassSummary{}, nil))
	wednesday := tuesday2340.Add(12 * time.Hour)
	ctx := context.Background()

	if res, _ := g.RunNow(ctx, wednesday, false); !res.Ran {
		t.Fatalf("expected manual run off-schedule")
	}
	if res, _ := g.RunNow(ctx, wednesday, false); res.Ran {
		t.Fatalf("expected second manual run to be deduped")
	}
	if res, _ := g.RunNow(ctx, wednesday, true); !res.Ran {
		t.Fatalf("expected forced run")
	}
	if calls != 2 {
		t.Fatalf("expected 2 passes, got %d", calls)
	}
}

func TestGateIsOpenDuringPass(t *testing.T) {
	var g *Gate
	var seen State
	g = New(weeklyTrigger(t), sqliteMarker(t), func(context.Context, string) (domain.PassSummary, error) {
		seen = g.State()
		return domain.PassSummary{}, nil
	})
	if _, err := g.Tick(context.Background(), tuesday2340); err != nil {
		t.Fatal(err)
	}
	if seen != Open || g.State() != Closed {
		t.Fatalf("expected open during pass and closed after, got %v then %v", seen, g.State())
	}
}

func TestPassIDsFlowIntoPassAndLedger(t *testing.T) {
	n := 0
	ids := func() string { n++; return fmt.Sprintf("pass-%d", n) }
	var got []string
	marker := sqliteMarker(t)
	g := New(weeklyTrigger(t), marker, func(_ context.Context, passID string) (domain.PassSummary, error) {
		got = append(got, passID)
		return domain.PassSummary{Stakeholders: 1, Sent: 1}, nil
	}, WithIDs(ids))
	ctx := context.Background()

	res, err := g.Tick(ctx, tuesday2340)
	if err != nil || res.PassID != "pass-1" {
		t.Fatalf("expected pass-1, got %+v %v", res, err)
	}
	if res, _ := g.RunNow(ctx, tuesday2340, true); res.PassID != "pass-2" {
		t.Fatalf("expected pass-2, got %+v", res)
	}
	if len(got) != 2 || got[0] != "pass-1" || got[1] != "pass-2" {
		t.Fatalf("pass saw ids %v", got)
	}
	if st := g.Status(); st.LastPassID != "pass-2" {
		t.Fatalf("expected status to track pass-2, got %q", st.LastPassID)
	}

	evs, err := marker.Ledger.Events(ctx, "2025-07-01")
	if err != nil {
		t.Fatal(err)
	}
	var kinds []string
	for _, e := range evs {
		kinds = append(kinds, e.PassID+":"+string(e.Kind))
	}
	want := []string{"pass-1:pass_started", "pass-1:pass_completed", "pass-2:pass_started", "pass-2:pass_completed"}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
}
