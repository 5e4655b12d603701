// Package merge writes a stakeholder's form answers back into the lead table.
package merge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/config"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/group"
	"warm-outreach/internal/sheet"
)

type ClosePolicy string

const (
	// CloseFirstResponse marks a lead Done as soon as any recipient answers.
	CloseFirstResponse ClosePolicy = "first_response"
	// CloseAllRecipients waits until every recipient has a score recorded.
	CloseAllRecipients ClosePolicy = "all_recipients"
)

func ParseClosePolicy(s string) ClosePolicy {
	if ClosePolicy(strings.ToLower(strings.TrimSpace(s))) == CloseAllRecipients {
		return CloseAllRecipients
	}
	return CloseFirstResponse
}

type Options struct {
	Match            group.Mode
	ClosePolicy      ClosePolicy
	RequireNameMatch bool
}

type Result struct {
	Identity      string `json:"identity"`
	Updated       int    `json:"updated"`
	Closed        int    `json:"closed"`
	ScoreColumn   string `json:"score_column"`
	CommentColumn string `json:"comment_column"`
}

// Updater is the locked read-modify-commit entry point of the lead table.
type Updater interface {
	Update(ctx context.Context, fn func(*sheet.Table) error) error
}

type Merger struct {
	Store Updater
	Opts  Options
	// OptionsFunc, when set, is read on every Merge so config reloads apply to
	// the next submission.
	OptionsFunc func() Options
}

// OptionsFrom maps the grouping and merge config sections.
func OptionsFrom(cfg config.Config) Options {
	return Options{
		Match:            group.ParseMode(cfg.Grouping.Match),
		ClosePolicy:      ParseClosePolicy(cfg.Merge.ClosePolicy),
		RequireNameMatch: cfg.Merge.RequireNameMatch,
	}
}

func (m *Merger) options() Options {
	if m.OptionsFunc != nil {
		return m.OptionsFunc()
	}
	return m.Opts
}

// Merge applies batch for identity in a single locked update and one commit.
// Nothing is written unless every item validates.
func (m *Merger) Merge(ctx context.Context, identity string, batch []domain.SubmissionItem) (Result, error) {
	if strings.TrimSpace(identity) == "" {
		return Result{}, apperr.MissingIdentity()
	}
	if len(batch) == 0 {
		return Result{}, apperr.NoPendingWork("no responses submitted")
	}

	opts := m.options()
	var res Result
	err := m.Store.Update(ctx, func(t *sheet.Table) error {
		r, err := Apply(t, identity, batch, opts)
		res = r
		return err
	})
	if err != nil {
		return Result{}, err
	}
	log.Printf("[merge] %s: updated=%d closed=%d", res.Identity, res.Updated, res.Closed)
	return res, nil
}

// StakeholderKey is the identity as it appears in response column headers.
func StakeholderKey(identity string, mode group.Mode) string {
	if mode == group.MatchSubstring {
		return strings.TrimSpace(identity)
	}
	return domain.NormalizeEmail(identity)
}

type change struct {
	row     int
	score   string
	comment string
}

// Apply validates batch and stages it onto t without committing.
func Apply(t *sheet.Table, identity string, batch []domain.SubmissionItem, opts Options) (Result, error) {
	if strings.TrimSpace(identity) == "" {
		return Result{}, apperr.MissingIdentity()
	}
	if len(batch) == 0 {
		return Result{}, apperr.NoPendingWork("no responses submitted")
	}
	key := StakeholderKey(identity, opts.Match)

	changes, err := validate(t, identity, batch, opts)
	if err != nil {
		return Result{}, err
	}

	res := Result{Identity: key, ScoreColumn: domain.ScoreColumn(key), CommentColumn: domain.CommentColumn(key)}
	scoreCol, err := t.EnsureColumn(res.ScoreColumn)
	if err != nil {
		return Result{}, apperr.StoreUnavailable("add score column", err)
	}
	commentCol, err := t.EnsureColumn(res.CommentColumn)
	if err != nil {
		return Result{}, apperr.StoreUnavailable("add comment column", err)
	}

	for _, c := range changes {
		if err := t.WriteCell(c.row, scoreCol, c.score); err != nil {
			return Result{}, apperr.StoreUnavailable("write score", err)
		}
		if err := t.WriteCell(c.row, commentCol, c.comment); err != nil {
			return Result{}, apperr.StoreUnavailable("write comment", err)
		}
		res.Updated++

		if !closes(t, c.row, opts.ClosePolicy) {
			continue
		}
		if t.Lead(c.row).Status != domain.StatusDone {
			res.Closed++
		}
		if err := t.SetStatus(c.row, domain.StatusDone); err != nil {
			return Result{}, apperr.StoreUnavailable("write status", err)
		}
	}
	return res, nil
}

func validate(t *sheet.Table, identity string, batch []domain.SubmissionItem, opts Options) ([]change, error) {
	seen := map[int]bool{}
	out := make([]change, 0, len(batch))
	for i, item := range batch {
		if item.RowIndex < 0 || item.RowIndex >= t.RowCount() {
			return nil, apperr.InvalidSubmission(fmt.Sprintf("response %d: row %d does not exist", i+1, item.RowIndex))
		}
		if seen[item.RowIndex] {
			return nil, apperr.InvalidSubmission(fmt.Sprintf("response %d: row %d submitted twice", i+1, item.RowIndex))
		}
		seen[item.RowIndex] = true

		lead := t.Lead(item.RowIndex)
		if opts.RequireNameMatch && !strings.EqualFold(strings.TrimSpace(item.LeadName), lead.Name) {
			return nil, apperr.InvalidSubmission(fmt.Sprintf(
				"response %d: row %d is %q, not %q; reload the form", i+1, item.RowIndex, lead.Name, item.LeadName))
		}
		if !group.Matches(lead, identity, opts.Match) {
			return nil, apperr.InvalidSubmission(fmt.Sprintf(
				"response %d: %s is not a recipient of %q", i+1, identity, lead.Name))
		}
		score, ok := domain.NormalizeScore(item.Score)
		if !ok {
			return nil, apperr.InvalidSubmission(fmt.Sprintf(
				"response %d: %q is not one of %s", i+1, item.Score, strings.Join(domain.ScoreOptions, " | ")))
		}
		out = append(out, change{row: item.RowIndex, score: score, comment: strings.TrimSpace(item.Comment)})
	}
	return out, nil
}

// closes reports whether row should become Done after its staged writes.
func closes(t *sheet.Table, row int, policy ClosePolicy) bool {
	if policy != CloseAllRecipients {
		return true
	}
	lead := t.Lead(row)
	if len(lead.Recipients) == 0 {
		return false
	}
	scored := map[string]bool{}
	for who, resp := range lead.Responses {
		if resp.Score != "" {
			scored[domain.NormalizeEmail(who)] = true
		}
	}
	for _, r := range lead.Recipients {
		if !scored[r] {
			return false
		}
	}
	return true
}
