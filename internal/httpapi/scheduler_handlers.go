package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"warm-outreach/internal/events"
	"warm-outreach/internal/gate"
)

type SchedulerHandler struct {
	Gate PassRunner
	Hub  *events.Hub
}

func (h SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Gate.Status())
}

// Run starts a manual pass in the background. Without force=1 the day's
// marker is still honored, so a manual run cannot double-send.
func (h SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Gate.State() == gate.Open {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}
	force := r.URL.Query().Get("force") == "1"
	reqID := RequestIDFrom(r.Context())

	go func() {
		res, err := h.Gate.RunNow(context.Background(), time.Now(), force)
		if err != nil {
			log.Printf("[scheduler] manual run: %v", err)
			return
		}
		if res.Ran && h.Hub != nil {
			h.Hub.Emit(reqID, events.TypePassCompleted, events.PassCompleted{
				PassID: res.PassID, Day: res.Day, Sent: res.Summary.Sent, Failed: res.Summary.Failed,
			})
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "force": force})
}
