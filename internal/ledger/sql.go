package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"warm-outreach/internal/domain"
)

// atLayout is fixed-width so ORDER BY on the text column is chronological.
const atLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqlLedger holds the queries shared by the sqlite and postgres backends.
// Queries are written with '?' and rebound for the driver.
type sqlLedger struct {
	db       *sql.DB
	numbered bool // $1, $2 ... placeholders
}

func (l *sqlLedger) q(query string) string {
	if !l.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (l *sqlLedger) Append(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.Day == "" || e.PassID == "" || e.Kind == "" {
		return errors.New("ledger event requires day, pass_id and kind")
	}
	_, err := l.db.ExecContext(ctx, l.q(`
INSERT INTO pass_events(id, pass_id, kind, day, at, sent, failed, note)
VALUES(?,?,?,?,?,?,?,?);`),
		e.ID, e.PassID, string(e.Kind), e.Day, e.At.UTC().Format(atLayout), e.Sent, e.Failed, e.Note,
	)
	if err != nil {
		return fmt.Errorf("append pass event: %w", err)
	}
	return nil
}

func (l *sqlLedger) CompletedOn(ctx context.Context, day string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, l.q(`
SELECT 1 FROM pass_events
WHERE day = ? AND kind = ?
LIMIT 1;`), day, string(KindPassCompleted)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query completed pass: %w", err)
	}
	return true, nil
}

func (l *sqlLedger) Events(ctx context.Context, day string) ([]Event, error) {
	query := `SELECT id, pass_id, kind, day, at, sent, failed, note FROM pass_events`
	var args []any
	if day != "" {
		query += ` WHERE day = ?`
		args = append(args, day)
	}
	query += ` ORDER BY at, id;`

	rows, err := l.db.QueryContext(ctx, l.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list pass events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind, at string
		if err := rows.Scan(&e.ID, &e.PassID, &kind, &e.Day, &at, &e.Sent, &e.Failed, &e.Note); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *sqlLedger) RecordOutcomes(ctx context.Context, outcomes []domain.DispatchOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, l.q(`
INSERT INTO dispatch_outcomes(id, pass_id, seq, email, pending_count, lead_names, form_link, status, reason, at)
VALUES(?,?,?,?,?,?,?,?,?,?);`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range outcomes {
		names, _ := json.Marshal(o.LeadNames)
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), o.PassID, i, o.Email, o.PendingCount, string(names),
			o.FormLink, string(o.Status), o.Reason, o.Timestamp.UTC().Format(atLayout),
		); err != nil {
			return fmt.Errorf("record outcome for %s: %w", o.Email, err)
		}
	}
	return tx.Commit()
}

func (l *sqlLedger) Outcomes(ctx context.Context, passID string) ([]domain.DispatchOutcome, error) {
	if passID == "" {
		err := l.db.QueryRowContext(ctx, `
SELECT pass_id FROM dispatch_outcomes
ORDER BY at DESC, seq DESC
LIMIT 1;`).Scan(&passID)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	rows, err := l.db.QueryContext(ctx, l.q(`
SELECT pass_id, email, pending_count, lead_names, form_link, status, reason, at
FROM dispatch_outcomes
WHERE pass_id = ?
ORDER BY seq;`), passID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.DispatchOutcome
	for rows.Next() {
		var o domain.DispatchOutcome
		var names, status, at string
		if err := rows.Scan(&o.PassID, &o.Email, &o.PendingCount, &names, &o.FormLink, &status, &o.Reason, &at); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(names), &o.LeadNames)
		o.Status = domain.OutcomeStatus(status)
		o.Timestamp, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (l *sqlLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS pass_events (
  id TEXT PRIMARY KEY,
  pass_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  day TEXT NOT NULL,
  at TEXT NOT NULL,
  sent INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  note TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pass_events_day_kind ON pass_events(day, kind);

CREATE TABLE IF NOT EXISTS dispatch_outcomes (
  id TEXT PRIMARY KEY,
  pass_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  email TEXT NOT NULL,
  pending_count INTEGER NOT NULL,
  lead_names TEXT NOT NULL DEFAULT '[]',
  form_link TEXT NOT NULL,
  status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatch_outcomes_pass ON dispatch_outcomes(pass_id, seq);
`

// Checkpoint folds the sqlite WAL back into the main database file so the
// ledger can be copied safely. It is a no-op on postgres.
func (l *sqlLedger) Checkpoint(ctx context.Context) error {
	if l.numbered {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `PRAGMA wal_checkpoint(FULL);`)
	return err
}
