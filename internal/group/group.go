// Package group derives per-stakeholder views of pending leads. Nothing here
// is cached; callers recompute after every store read.
package group

import (
	"strings"

	"warm-outreach/internal/domain"
)

type Mode string

const (
	// MatchExact compares the normalized identity against each split
	// recipient address.
	MatchExact Mode = "exact"
	// MatchSubstring is the legacy case-insensitive "contains" test against
	// the raw recipient cell.
	MatchSubstring Mode = "substring"
)

func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == MatchSubstring {
		return MatchSubstring
	}
	return MatchExact
}

type Group struct {
	Email string
	Leads []domain.Lead
}

func (g Group) LeadNames() []string {
	out := make([]string, len(g.Leads))
	for i, l := range g.Leads {
		out[i] = l.Name
	}
	return out
}

// Matches reports whether identity is a recipient of l under mode,
// regardless of status.
func Matches(l domain.Lead, identity string, mode Mode) bool {
	if strings.TrimSpace(identity) == "" {
		return false
	}
	if mode == MatchSubstring {
		return strings.Contains(strings.ToLower(l.RawRecipients), strings.ToLower(identity))
	}
	return l.HasRecipient(identity)
}

// ForStakeholder returns the pending leads addressed to identity in table
// order.
func ForStakeholder(leads []domain.Lead, identity string, mode Mode) []domain.Lead {
	var out []domain.Lead
	for _, l := range leads {
		if l.Pending() && Matches(l, identity, mode) {
			out = append(out, l)
		}
	}
	return out
}

// ByStakeholder partitions pending leads by recipient address. Groups come
// back in first-seen order; a lead with N recipients lands in N groups.
func ByStakeholder(leads []domain.Lead) []Group {
	var groups []Group
	index := map[string]int{}
	for _, l := range leads {
		if !l.Pending() {
			continue
		}
		for _, email := range l.Recipients {
			i, ok := index[email]
			if !ok {
				i = len(groups)
				index[email] = i
				groups = append(groups, Group{Email: email})
			}
			groups[i].Leads = append(groups[i].Leads, l)
		}
	}
	return groups
}
