package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
// Only health, scheduler status and the stakeholder form are public; the rest
// goes through AdminOnly.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.HandlerFunc { return AdminOnly(d.AdminToken, h) }

	hh := HealthHandler{Gate: d.Gate}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Stakeholder form. The emailed deep link lands on "/".
	fh := FormHandler{CfgVal: d.CfgVal, Leads: d.Leads, Merger: d.Merger, Hub: d.Hub}
	mux.HandleFunc("/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: fh.Page,
	}))
	mux.HandleFunc("/form", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:  fh.Get,
		http.MethodPost: fh.Submit,
	}))

	// Notification outcomes
	nh := NotificationsHandler{Outcomes: d.Outcomes}
	mux.HandleFunc("/notifications", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: nh.List,
	})))

	// Scheduler
	sch := SchedulerHandler{Gate: d.Gate, Hub: d.Hub}
	mux.HandleFunc("/scheduler/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))
	mux.HandleFunc("/scheduler/run", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	})))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	})))
	mux.HandleFunc("/config/path", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	})))
	mux.HandleFunc("/config/validate", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	})))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/smtp", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetSMTPPassword,
	})))

	// Ledger
	lh := LedgerHandler{Ledger: d.Ledger, Events: d.Events}
	mux.HandleFunc("/ledger/checkpoint", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodPost: lh.Checkpoint,
	})))
	mux.HandleFunc("/ledger/events", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	})))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", admin(methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	})))

	return mux
}
