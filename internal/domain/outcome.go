package domain

import "time"

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "Success"
	OutcomeFailed  OutcomeStatus = "Failed"
)

// DispatchOutcome records one delivery attempt to one stakeholder in a pass.
type DispatchOutcome struct {
	PassID       string        `json:"pass_id"`
	Email        string        `json:"email"`
	PendingCount int           `json:"num_pending_leads"`
	LeadNames    []string      `json:"lead_names"`
	FormLink     string        `json:"form_link"`
	Status       OutcomeStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// StatusText is the log form: "Success" or "Failed: <reason>".
func (o DispatchOutcome) StatusText() string {
	if o.Status == OutcomeFailed {
		return string(OutcomeFailed) + ": " + o.Reason
	}
	return string(o.Status)
}

type PassSummary struct {
	Stakeholders int `json:"stakeholders"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
}

func Summarize(outcomes []DispatchOutcome) PassSummary {
	s := PassSummary{Stakeholders: len(outcomes)}
	for _, o := range outcomes {
		if o.Status == OutcomeSuccess {
			s.Sent++
		} else {
			s.Failed++
		}
	}
	return s
}
