package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/config"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/events"
	"warm-outreach/internal/gate"
	"warm-outreach/internal/ledger"
	"warm-outreach/internal/merge"
)

type fakeLeads struct {
	leads []domain.Lead
	err   error
}

func (f fakeLeads) Read(context.Context) ([]domain.Lead, error) { return f.leads, f.err }

type fakeMerger struct {
	identity string
	batch    []domain.SubmissionItem
	err      error
}

func (f *fakeMerger) Merge(_ context.Context, identity string, batch []domain.SubmissionItem) (merge.Result, error) {
	f.identity, f.batch = identity, batch
	if f.err != nil {
		return merge.Result{}, f.err
	}
	return merge.Result{Identity: identity, Updated: len(batch), Closed: len(batch)}, nil
}

type fakeOutcomes struct{ got string }

func (f *fakeOutcomes) Outcomes(_ context.Context, passID string) ([]domain.DispatchOutcome, error) {
	f.got = passID
	return []domain.DispatchOutcome{
		{PassID: "p1", Email: "a@x.com", Status: domain.OutcomeSuccess},
		{PassID: "p1", Email: "b@y.com", Status: domain.OutcomeFailed, Reason: "550"},
	}, nil
}

type fakeGate struct {
	ran   chan bool
	state gate.State
}

func (f *fakeGate) Status() gate.Status { return gate.Status{State: f.state.String(), LastSent: 3} }
func (f *fakeGate) State() gate.State   { return f.state }
func (f *fakeGate) RunNow(_ context.Context, now time.Time, force bool) (gate.Result, error) {
	f.ran <- force
	return gate.Result{Ran: true, PassID: "p2", Day: "2025-07-01"}, nil
}

func lead(row int, name, recipients, status string) domain.Lead {
	return domain.Lead{
		Row: row, Name: name, ProfileURL: "https://linkedin.com/in/" + strings.ToLower(name),
		RawRecipients: recipients, Recipients: domain.SplitRecipients(recipients),
		Status: domain.ParseStatus(status),
	}
}

type fakeEvents struct{ day string }

func (f *fakeEvents) Events(_ context.Context, day string) ([]ledger.Event, error) {
	f.day = day
	return []ledger.Event{
		{PassID: "p1", Kind: ledger.KindPassStarted, Day: "2025-07-01"},
		{PassID: "p1", Kind: ledger.KindPassCompleted, Day: "2025-07-01", Sent: 2},
	}, nil
}

type harness struct {
	srv     http.Handler
	merger  *fakeMerger
	gate    *fakeGate
	hub     *events.Hub
	outcome *fakeOutcomes
	events  *fakeEvents
}

func newHarness(t *testing.T, leads fakeLeads) *harness {
	t.Helper()
	var cfgVal atomic.Value
	cfgVal.Store(config.Default())
	h := &harness{
		merger:  &fakeMerger{},
		gate:    &fakeGate{ran: make(chan bool, 1)},
		hub:     events.NewHub(),
		outcome: &fakeOutcomes{},
		events:  &fakeEvents{},
	}
	mux := NewMux(Deps{
		Hub:      h.hub,
		CfgVal:   &cfgVal,
		Leads:    leads,
		Merger:   h.merger,
		Outcomes: h.outcome,
		Gate:     h.gate,
		Events:   h.events,

		AdminToken: "admin-tok",
	})
	h.srv = Stack(mux)
	return h
}

// do sends from loopback, as the local admin UI and CLI do.
func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	return h.doFrom("127.0.0.1:40000", method, target, body, nil)
}

func (h *harness) doFrom(remote, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("bad json %q: %v", rec.Body.String(), err)
	}
}

func TestFormListsPendingLeadsForStakeholder(t *testing.T) {
	h := newHarness(t, fakeLeads{leads: []domain.Lead{
		lead(0, "L1", "a@x.com;b@y.com", "Not Done"),
		lead(1, "L2", "b@y.com", "Not Done"),
		lead(2, "L3", "a@x.com", "Done"),
	}})
	rec := h.do(http.MethodGet, "/form?email=b@y.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var v formView
	decode(t, rec, &v)
	if len(v.Leads) != 2 || v.Leads[0].Name != "L1" || v.Leads[1].Row != 1 {
		t.Fatalf("unexpected leads %+v", v.Leads)
	}
	if len(v.ScoreOptions) != 5 || v.Message != "" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestFormWithoutIdentityPrompts(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	rec := h.do(http.MethodGet, "/form", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var e APIError
	decode(t, rec, &e)
	if e.Error.Code != "missing_identity" || !strings.Contains(e.Error.Message, "?email=your@email.com") {
		t.Fatalf("unexpected error %+v", e.Error)
	}
	if e.Error.RequestID == "" {
		t.Fatalf("expected request id in error envelope")
	}
}

func TestFormAllCaughtUp(t *testing.T) {
	h := newHarness(t, fakeLeads{leads: []domain.Lead{lead(0, "L1", "a@x.com", "Done")}})
	var v formView
	rec := h.do(http.MethodGet, "/form?email=a@x.com", "")
	decode(t, rec, &v)
	if rec.Code != http.StatusOK || v.Message != NoPendingMessage || len(v.Leads) != 0 {
		t.Fatalf("unexpected response %d %+v", rec.Code, v)
	}
}

func TestFormStoreUnavailableIs503(t *testing.T) {
	h := newHarness(t, fakeLeads{err: apperr.StoreUnavailable("open lead table", errors.New("locked"))})
	rec := h.do(http.MethodGet, "/form?email=a@x.com", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestSubmitMergesAndPublishes(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	body := `{"responses":[{"row_index":0,"lead":"L1","score":"3 - Professional Acquaintance","comment":"hi"}]}`
	rec := h.do(http.MethodPost, "/form?email=a@x.com", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if h.merger.identity != "a@x.com" || len(h.merger.batch) != 1 || h.merger.batch[0].Comment != "hi" {
		t.Fatalf("unexpected merge call %q %+v", h.merger.identity, h.merger.batch)
	}
	select {
	case msg := <-ch:
		if !strings.Contains(msg, events.TypeResponsesRecorded) {
			t.Fatalf("unexpected event %s", msg)
		}
	default:
		t.Fatalf("expected responses_recorded event")
	}
}

func TestSubmitRejectsSchemaViolations(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	for _, body := range []string{
		`{"responses":[{"row_index":-1,"score":"1"}]}`,
		`{"responses":[{"row_index":0}]}`,
		`{"responses":[{"row_index":0,"score":"1","extra":true}]}`,
		`{"other":[]}`,
		`not json`,
	} {
		rec := h.do(http.MethodPost, "/form?email=a@x.com", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
	if h.merger.batch != nil {
		t.Fatalf("merge must not run for invalid bodies")
	}
}

func TestSubmitMapsMergeErrors(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	h.merger.err = apperr.InvalidSubmission("bad score")
	rec := h.do(http.MethodPost, "/form?email=a@x.com", `{"responses":[{"row_index":0,"score":"9"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	h.merger.err = apperr.NoPendingWork("no responses submitted")
	rec = h.do(http.MethodPost, "/form?email=a@x.com", `{"responses":[]}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "no responses submitted") {
		t.Fatalf("expected informational 200, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPageRendersDeepLink(t *testing.T) {
	h := newHarness(t, fakeLeads{leads: []domain.Lead{lead(0, "Acme", "a@x.com", "Not Done")}})
	rec := h.do(http.MethodGet, "/?email=a%40x.com", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Acme") {
		t.Fatalf("expected form page with lead, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without identity, got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestNotificationsDefaultsToLatestPass(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	rec := h.do(http.MethodGet, "/notifications", "")
	var out struct {
		PassID  string             `json:"pass_id"`
		Summary domain.PassSummary `json:"summary"`
	}
	decode(t, rec, &out)
	if h.outcome.got != "" || out.PassID != "p1" || out.Summary.Sent != 1 || out.Summary.Failed != 1 {
		t.Fatalf("unexpected notifications response %+v", out)
	}
}

func TestSchedulerRunIsAsyncAndForwardsForce(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	rec := h.do(http.MethodPost, "/scheduler/run?force=1", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	select {
	case force := <-h.gate.ran:
		if !force {
			t.Fatalf("expected force to be forwarded")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("manual run never started")
	}

	h.gate.state = gate.Open
	rec = h.do(http.MethodPost, "/scheduler/run", "")
	if !strings.Contains(rec.Body.String(), "already running") {
		t.Fatalf("expected already running, got %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	if rec := h.do(http.MethodDelete, "/form?email=a@x.com", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestAdminRoutesRejectRemoteCallersWithoutToken(t *testing.T) {
	h := newHarness(t, fakeLeads{leads: []domain.Lead{lead(0, "Acme", "a@x.com", "Not Done")}})
	remote := "203.0.113.9:5555"

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/config"},
		{http.MethodPut, "/config"},
		{http.MethodGet, "/notifications"},
		{http.MethodPost, "/scheduler/run?force=1"},
		{http.MethodPost, "/api/secrets/smtp"},
		{http.MethodGet, "/ledger/events"},
		{http.MethodGet, "/events"},
	} {
		rec := h.doFrom(remote, tc.method, tc.target, "", nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", tc.method, tc.target, rec.Code)
		}
		rec = h.doFrom(remote, tc.method, tc.target, "", http.Header{AdminTokenHeader: {"wrong"}})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s with wrong token: expected 403, got %d", tc.method, tc.target, rec.Code)
		}
	}

	rec := h.doFrom(remote, http.MethodGet, "/notifications", "", http.Header{AdminTokenHeader: {"admin-tok"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected token to admit remote caller, got %d", rec.Code)
	}

	// the stakeholder form stays public
	if rec := h.doFrom(remote, http.MethodGet, "/form?email=a@x.com", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected public form, got %d", rec.Code)
	}
	if rec := h.doFrom(remote, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected public health, got %d", rec.Code)
	}
}

func TestLedgerEventsListsAuditTrail(t *testing.T) {
	h := newHarness(t, fakeLeads{})
	rec := h.do(http.MethodGet, "/ledger/events?day=2025-07-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Day    string         `json:"day"`
		Events []ledger.Event `json:"events"`
	}
	decode(t, rec, &out)
	if h.events.day != "2025-07-01" || len(out.Events) != 2 || out.Events[1].Kind != ledger.KindPassCompleted {
		t.Fatalf("unexpected events response %+v", out)
	}

	if rec := h.do(http.MethodGet, "/ledger/events?day=July", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad day, got %d", rec.Code)
	}
}
