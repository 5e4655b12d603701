package httpapi

import (
	"net/http"
	"strings"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/domain"
)

type NotificationsHandler struct {
	Outcomes OutcomeSource
}

// List returns one pass's dispatch outcomes; the latest pass when ?pass= is
// omitted.
func (h NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	passID := strings.TrimSpace(r.URL.Query().Get("pass"))
	outcomes, err := h.Outcomes.Outcomes(r.Context(), passID)
	if err != nil {
		WriteAppError(w, r, apperr.StoreUnavailable("read outcomes", err))
		return
	}
	if outcomes == nil {
		outcomes = []domain.DispatchOutcome{}
	}
	if passID == "" && len(outcomes) > 0 {
		passID = outcomes[0].PassID
	}
	writeJSON(w, map[string]any{
		"pass_id":  passID,
		"outcomes": outcomes,
		"summary":  domain.Summarize(outcomes),
	})
}
