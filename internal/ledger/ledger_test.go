package ledger

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"warm-outreach/internal/domain"
)

func openTestLedger(t *testing.T) Ledger {
	t.Helper()
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite ledger failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func exerciseLedger(t *testing.T, l Ledger) {
	ctx := context.Background()

	done, err := l.CompletedOn(ctx, "2025-07-01")
	if err != nil || done {
		t.Fatalf("expected empty ledger, got done=%v err=%v", done, err)
	}

	if err := l.Append(ctx, Event{PassID: "p1", Kind: KindPassStarted, Day: "2025-07-01"}); err != nil {
		t.Fatalf("append started failed: %v", err)
	}
	done, _ = l.CompletedOn(ctx, "2025-07-01")
	if done {
		t.Fatalf("a started pass must not count as completed")
	}

	if err := l.Append(ctx, Event{PassID: "p1", Kind: KindPassCompleted, Day: "2025-07-01", Sent: 1, Failed: 1}); err != nil {
		t.Fatalf("append completed failed: %v", err)
	}
	done, _ = l.CompletedOn(ctx, "2025-07-01")
	if !done {
		t.Fatalf("expected day to be completed")
	}
	if other, _ := l.CompletedOn(ctx, "2025-07-02"); other {
		t.Fatalf("completion must be scoped to its day")
	}

	events, err := l.Events(ctx, "2025-07-01")
	if err != nil || len(events) != 2 {
		t.Fatalf("expected 2 events, got %d (err=%v)", len(events), err)
	}
	if events[1].Kind != KindPassCompleted || events[1].Sent != 1 || events[1].Failed != 1 {
		t.Fatalf("unexpected completion event %+v", events[1])
	}

	at := time.Date(2025, 7, 1, 18, 10, 0, 0, time.UTC)
	outcomes := []domain.DispatchOutcome{
		{PassID: "p1", Email: "a@x.com", PendingCount: 2, LeadNames: []string{"Acme", "Globex"}, FormLink: "http://f/?email=a%40x.com", Status: domain.OutcomeSuccess, Timestamp: at},
		{PassID: "p1", Email: "b@y.com", PendingCount: 1, LeadNames: []string{"Acme"}, FormLink: "http://f/?email=b%40y.com", Status: domain.OutcomeFailed, Reason: "550 mailbox unavailable", Timestamp: at},
	}
	if err := l.RecordOutcomes(ctx, outcomes); err != nil {
		t.Fatalf("record outcomes failed: %v", err)
	}

	got, err := l.Outcomes(ctx, "")
	if err != nil {
		t.Fatalf("latest outcomes failed: %v", err)
	}
	if !reflect.DeepEqual(got, outcomes) {
		t.Fatalf("expected %+v, got %+v", outcomes, got)
	}
	if none, _ := l.Outcomes(ctx, "missing"); len(none) != 0 {
		t.Fatalf("expected no outcomes for unknown pass")
	}
}

func TestSQLiteLedger(t *testing.T) {
	exerciseLedger(t, openTestLedger(t))
}

func TestSQLiteLedgerReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := l.Append(ctx, Event{PassID: "p1", Kind: KindPassCompleted, Day: "2025-07-01"}); err != nil {
		t.Fatal(err)
	}
	_ = l.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if done, _ := reopened.CompletedOn(ctx, "2025-07-01"); !done {
		t.Fatalf("expected completion to survive reopen")
	}
}

func TestAppendRejectsIncompleteEvent(t *testing.T) {
	l := openTestLedger(t)
	if err := l.Append(context.Background(), Event{Kind: KindPassStarted}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPlaceholderRebinding(t *testing.T) {
	pg := &sqlLedger{numbered: true}
	if got := pg.q("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebinding %q", got)
	}
	lite := &sqlLedger{}
	if got := lite.q("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite queries must be untouched, got %q", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("mongo", "", ""); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestSQLiteCheckpoint(t *testing.T) {
	l := openTestLedger(t)
	cp, ok := l.(interface{ Checkpoint(context.Context) error })
	if !ok {
		t.Fatalf("expected sqlite ledger to support checkpoint")
	}
	if err := cp.Checkpoint(context.Background()); err != nil {
		t.Fatalf("checkpoint failed: %v", err)
	}
}

func TestEventsAreChronologicalWithinASecond(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 18, 10, 0, 0, time.UTC)

	// .123s sorts before .12s when trailing zeros are trimmed
	for _, e := range []Event{
		{PassID: "p1", Kind: KindPassCompleted, Day: "2025-07-01", At: base.Add(123 * time.Millisecond)},
		{PassID: "p1", Kind: KindPassStarted, Day: "2025-07-01", At: base.Add(120 * time.Millisecond)},
	} {
		if err := l.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	evs, err := l.Events(ctx, "2025-07-01")
	if err != nil || len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d (err=%v)", len(evs), err)
	}
	if evs[0].Kind != KindPassStarted || evs[1].Kind != KindPassCompleted {
		t.Fatalf("expected started before completed, got %s then %s", evs[0].Kind, evs[1].Kind)
	}
	if !evs[0].At.Equal(base.Add(120 * time.Millisecond)) {
		t.Fatalf("timestamp did not round-trip: %s", evs[0].At)
	}
}
