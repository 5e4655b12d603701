package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	Gate PassRunner
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	}
	if h.Gate != nil {
		out["gate"] = h.Gate.State().String()
	}
	writeJSON(w, out)
}
