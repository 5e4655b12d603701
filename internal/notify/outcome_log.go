package notify

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"warm-outreach/internal/domain"
)

var OutcomeLogHeader = []string{"Email", "Num_Pending_Leads", "Lead_Names", "Form_Link", "Status", "Timestamp"}

// OutcomeLog writes one pass's outcomes as a CSV file, replacing the
// previous pass's file atomically. History lives in the ledger.
type OutcomeLog struct {
	Path string
}

func (l OutcomeLog) Write(outcomes []domain.DispatchOutcome) error {
	if l.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return err
	}
	tmp := l.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create outcome log: %w", err)
	}

	w := csv.NewWriter(f)
	_ = w.Write(OutcomeLogHeader)
	for _, o := range outcomes {
		_ = w.Write([]string{
			o.Email,
			strconv.Itoa(o.PendingCount),
			strings.Join(o.LeadNames, ", "),
			o.FormLink,
			o.StatusText(),
			o.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write outcome log: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, l.Path)
}
