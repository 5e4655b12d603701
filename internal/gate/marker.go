package gate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"warm-outreach/internal/domain"
	"warm-outreach/internal/ledger"
)

// Marker answers "was a pass already completed for day" and records pass
// boundaries.
type Marker interface {
	Completed(ctx context.Context, day string) (bool, error)
	Begin(ctx context.Context, day, passID string) error
	Complete(ctx context.Context, day, passID string, s domain.PassSummary) error
}

// LedgerMarker derives the marker from the append-only pass ledger.
type LedgerMarker struct {
	Ledger ledger.Ledger
}

func (m LedgerMarker) Completed(ctx context.Context, day string) (bool, error) {
	return m.Ledger.CompletedOn(ctx, day)
}

func (m LedgerMarker) Begin(ctx context.Context, day, passID string) error {
	return m.Ledger.Append(ctx, ledger.Event{PassID: passID, Kind: ledger.KindPassStarted, Day: day})
}

func (m LedgerMarker) Complete(ctx context.Context, day, passID string, s domain.PassSummary) error {
	return m.Ledger.Append(ctx, ledger.Event{
		PassID: passID,
		Kind:   ledger.KindPassCompleted,
		Day:    day,
		Sent:   s.Sent,
		Failed: s.Failed,
	})
}

// FileMarker keeps the last completed day (YYYY-MM-DD) in a single file.
// A missing file means nothing was ever sent.
type FileMarker struct {
	Path string
}

func (m FileMarker) Completed(_ context.Context, day string) (bool, error) {
	b, err := os.ReadFile(m.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read marker: %w", err)
	}
	return strings.TrimSpace(string(b)) == day, nil
}

func (m FileMarker) Begin(context.Context, string, string) error { return nil }

func (m FileMarker) Complete(_ context.Context, day, _ string, _ domain.PassSummary) error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	tmp := m.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(day), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.Path)
}
