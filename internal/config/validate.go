package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/gate"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into a single CONFIG_INVALID error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return apperr.ConfigInvalid("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy along with every problem
// found. Callers decide whether warnings matter.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.App.BaseURL = strings.TrimRight(strings.TrimSpace(out.App.BaseURL), "/")
	out.Store.Path = strings.TrimSpace(out.Store.Path)
	out.Schedule.Cron = strings.TrimSpace(out.Schedule.Cron)
	out.Schedule.Time = strings.TrimSpace(out.Schedule.Time)
	out.Grouping.Match = strings.ToLower(strings.TrimSpace(out.Grouping.Match))
	out.Merge.ClosePolicy = strings.ToLower(strings.TrimSpace(out.Merge.ClosePolicy))
	out.Marker.Kind = strings.ToLower(strings.TrimSpace(out.Marker.Kind))
	out.Ledger.Driver = strings.ToLower(strings.TrimSpace(out.Ledger.Driver))

	// ---- app ----
	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if out.App.BaseURL == "" {
		res.addErr("app.base_url is required (form links are built from it)")
	} else if u, err := url.Parse(out.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("app.base_url must be an absolute URL, got %q", out.App.BaseURL)
	}
	if _, err := time.LoadLocation(out.App.Timezone); err != nil {
		res.addErr("app.timezone %q is not a known zone: %v", out.App.Timezone, err)
	}

	// ---- store ----
	if out.Store.Path == "" {
		res.addErr("store.path is required")
	}
	if out.Store.LockTimeoutSeconds <= 0 {
		res.addErr("store.lock_timeout_seconds must be > 0")
	}
	cols := out.Store.Columns
	for name, v := range map[string]string{
		"store.columns.name":        cols.Name,
		"store.columns.profile_url": cols.ProfileURL,
		"store.columns.recipients":  cols.Recipients,
		"store.columns.status":      cols.Status,
	} {
		if strings.TrimSpace(v) == "" {
			res.addErr("%s is required", name)
		}
	}

	// ---- schedule ----
	if out.Schedule.Cron != "" {
		if _, err := gate.NewCron(out.Schedule.Cron, time.UTC); err != nil {
			res.addErr("schedule.cron is invalid: %v", err)
		}
		if out.Schedule.Weekday != "" || out.Schedule.Time != "" {
			res.addWarn("schedule.cron is set; schedule.weekday and schedule.time are ignored.")
		}
	} else {
		if _, err := gate.ParseWeekday(out.Schedule.Weekday); err != nil {
			res.addErr("schedule.weekday: %v", err)
		}
		if _, _, err := gate.ParseClock(out.Schedule.Time); err != nil {
			res.addErr("schedule.time: %v", err)
		}
	}
	if out.Schedule.TickSeconds <= 0 {
		res.addErr("schedule.tick_seconds must be > 0")
	} else if out.Schedule.TickSeconds > 60 {
		res.addWarn("schedule.tick_seconds is %d; ticks longer than a minute can miss the trigger minute.", out.Schedule.TickSeconds)
	}

	// ---- marker / ledger ----
	switch out.Marker.Kind {
	case "ledger":
	case "file":
		if strings.TrimSpace(out.Marker.Path) == "" {
			res.addErr("marker.path is required when marker.kind=file")
		}
	default:
		res.addErr("marker.kind must be ledger or file, got %q", out.Marker.Kind)
	}
	switch out.Ledger.Driver {
	case "sqlite":
		if strings.TrimSpace(out.Ledger.Path) == "" {
			res.addErr("ledger.path is required when ledger.driver=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(out.Ledger.DSN) == "" {
			res.addErr("ledger.dsn is required when ledger.driver=postgres")
		}
	default:
		res.addErr("ledger.driver must be sqlite or postgres, got %q", out.Ledger.Driver)
	}

	// ---- grouping / merge ----
	switch out.Grouping.Match {
	case "exact":
	case "substring":
		res.addWarn("grouping.match=substring can route leads to the wrong stakeholder (a@x.com matches ba@x.com).")
	default:
		res.addErr("grouping.match must be exact or substring, got %q", out.Grouping.Match)
	}
	switch out.Merge.ClosePolicy {
	case "first_response", "all_recipients":
	default:
		res.addErr("merge.close_policy must be first_response or all_recipients, got %q", out.Merge.ClosePolicy)
	}

	// ---- smtp (password not required here; it's in keychain or env) ----
	if strings.TrimSpace(out.SMTP.Host) == "" {
		res.addErr("smtp.host is required")
	}
	if out.SMTP.Port <= 0 || out.SMTP.Port > 65535 {
		res.addErr("smtp.port must be 1..65535")
	}
	if strings.TrimSpace(out.SMTP.From) == "" {
		res.addErr("smtp.from is required")
	} else if _, err := mail.ParseAddress(out.SMTP.From); err != nil {
		res.addErr("smtp.from %q is not an email address", out.SMTP.From)
	}
	if out.SMTP.Username == "" {
		res.addWarn("smtp.username is empty; mail will be sent without authentication.")
	}
	if out.SMTP.MaxPerSecond < 0 {
		res.addErr("smtp.max_per_second must be >= 0")
	}

	if out.Archive.Enabled {
		if strings.TrimSpace(out.Archive.IMAPHost) == "" {
			res.addErr("archive.imap_host is required when archive.enabled=true")
		}
		if strings.TrimSpace(out.Archive.Mailbox) == "" {
			res.addErr("archive.mailbox is required when archive.enabled=true")
		}
	}

	return out, res
}
