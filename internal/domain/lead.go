package domain

import "strings"

type Status string

const (
	StatusUnknown Status = ""
	StatusNotDone Status = "Not Done"
	StatusDone    Status = "Done"
)

// ParseStatus reads a status cell case-insensitively. Anything that is not
// recognizably done or not-done is StatusUnknown and never counts as pending.
func ParseStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
	switch s {
	case "done":
		return StatusDone
	case "notdone":
		return StatusNotDone
	default:
		return StatusUnknown
	}
}

type Response struct {
	Score   string `json:"score"`
	Comment string `json:"comment,omitempty"`
}

// Lead is one data row of the shared lead table.
type Lead struct {
	Row           int                 `json:"row"` // 0-based, header excluded
	Name          string              `json:"name"`
	ProfileURL    string              `json:"profile_url"`
	RawRecipients string              `json:"-"`
	Recipients    []string            `json:"-"`
	Status        Status              `json:"status"`
	Responses     map[string]Response `json:"-"`
}

func (l Lead) Pending() bool { return l.Status == StatusNotDone }

func (l Lead) HasRecipient(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, r := range l.Recipients {
		if r == email {
			return true
		}
	}
	return false
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SplitRecipients splits a recipient cell on ';' (and ',') and returns the
// normalized, de-duplicated addresses in cell order.
func SplitRecipients(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = NormalizeEmail(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

const (
	scoreSuffix   = "_Score"
	commentSuffix = "_Comment"
)

func ScoreColumn(stakeholder string) string   { return stakeholder + scoreSuffix }
func CommentColumn(stakeholder string) string { return stakeholder + commentSuffix }

// ResponseColumn reports whether a header belongs to a stakeholder response
// column and, if so, whose and which kind.
func ResponseColumn(header string) (stakeholder string, isScore bool, ok bool) {
	switch {
	case strings.HasSuffix(header, scoreSuffix):
		return strings.TrimSuffix(header, scoreSuffix), true, true
	case strings.HasSuffix(header, commentSuffix):
		return strings.TrimSuffix(header, commentSuffix), false, true
	}
	return "", false, false
}
