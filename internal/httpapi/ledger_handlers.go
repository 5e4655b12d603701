package httpapi

import (
	"net/http"
	"strings"
	"time"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/ledger"
)

type LedgerHandler struct {
	Ledger Checkpointer
	Events EventSource
}

// Checkpoint flushes the sqlite WAL before a backup.
func (h LedgerHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		WriteError(w, r, http.StatusNotImplemented, "unsupported", "ledger does not support checkpoints")
		return
	}
	if err := h.Ledger.Checkpoint(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List returns the pass audit trail, optionally for one ?day=YYYY-MM-DD.
func (h LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Events == nil {
		WriteError(w, r, http.StatusNotImplemented, "unsupported", "no pass log configured")
		return
	}
	day := strings.TrimSpace(r.URL.Query().Get("day"))
	if day != "" {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
			return
		}
	}
	evs, err := h.Events.Events(r.Context(), day)
	if err != nil {
		WriteAppError(w, r, apperr.StoreUnavailable("read pass events", err))
		return
	}
	if evs == nil {
		evs = []ledger.Event{}
	}
	writeJSON(w, map[string]any{"day": day, "events": evs})
}
