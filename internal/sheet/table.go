package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/domain"
)

// Columns names the required header cells of the lead table.
type Columns struct {
	Name       string `yaml:"name" json:"name"`
	ProfileURL string `yaml:"profile_url" json:"profile_url"`
	Recipients string `yaml:"recipients" json:"recipients"`
	Status     string `yaml:"status" json:"status"`
}

func DefaultColumns() Columns {
	return Columns{
		Name:       "Target Lead Name",
		ProfileURL: "Target Lead Linkedin URL",
		Recipients: "Leadership contact email",
		Status:     "Status",
	}
}

// Table is an opened snapshot of the lead table. Writes are staged in memory
// until Commit.
type Table struct {
	path  string
	sheet string
	f     *excelize.File

	header []string
	rows   [][]string
	dirty  bool

	nameCol, urlCol, recipientsCol, statusCol int
}

func openTable(path, sheetName string, cols Columns) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.StoreUnavailable("open lead table "+path, err)
	}
	grid, err := f.GetRows(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, apperr.StoreUnavailable(fmt.Sprintf("read sheet %q", sheetName), err)
	}

	t := &Table{path: path, sheet: sheetName, f: f}
	if len(grid) > 0 {
		t.header = trimHeader(grid[0])
		t.rows = grid[1:]
	}

	missing := []string{}
	find := func(name string) int {
		i := t.ColumnIndex(name)
		if i < 0 {
			missing = append(missing, name)
		}
		return i
	}
	t.nameCol = find(cols.Name)
	t.urlCol = find(cols.ProfileURL)
	t.recipientsCol = find(cols.Recipients)
	t.statusCol = find(cols.Status)
	if len(missing) > 0 {
		_ = f.Close()
		return nil, apperr.StoreUnavailable(
			"lead table is missing required columns: "+strings.Join(missing, ", "), nil)
	}
	return t, nil
}

func trimHeader(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func (t *Table) Close() error {
	if t == nil || t.f == nil {
		return nil
	}
	return t.f.Close()
}

func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.header...)
}

// ColumnIndex returns the 0-based index of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

// EnsureColumn returns the index of name, appending it after the last column
// when absent. Existing columns never move.
func (t *Table) EnsureColumn(name string) (int, error) {
	if i := t.ColumnIndex(name); i >= 0 {
		return i, nil
	}
	idx := len(t.header)
	cell, err := excelize.CoordinatesToCellName(idx+1, 1)
	if err != nil {
		return -1, err
	}
	if err := t.f.SetCellValue(t.sheet, cell, name); err != nil {
		return -1, fmt.Errorf("add column %q: %w", name, err)
	}
	t.header = append(t.header, name)
	t.dirty = true
	return idx, nil
}

func (t *Table) RowCount() int { return len(t.rows) }

func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][col]
}

// WriteCell stages value at a 0-based data row and column.
func (t *Table) WriteCell(row, col int, value string) error {
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range (0..%d)", row, len(t.rows)-1)
	}
	if col < 0 || col >= len(t.header) {
		return fmt.Errorf("column %d out of range (0..%d)", col, len(t.header)-1)
	}
	// header is row 1 in the workbook
	cell, err := excelize.CoordinatesToCellName(col+1, row+2)
	if err != nil {
		return err
	}
	if err := t.f.SetCellValue(t.sheet, cell, value); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	r := t.rows[row]
	for len(r) <= col {
		r = append(r, "")
	}
	r[col] = value
	t.rows[row] = r
	t.dirty = true
	return nil
}

func (t *Table) SetStatus(row int, st domain.Status) error {
	return t.WriteCell(row, t.statusCol, string(st))
}

// Lead parses one data row.
func (t *Table) Lead(row int) domain.Lead {
	raw := t.Cell(row, t.recipientsCol)
	l := domain.Lead{
		Row:           row,
		Name:          strings.TrimSpace(t.Cell(row, t.nameCol)),
		ProfileURL:    strings.TrimSpace(t.Cell(row, t.urlCol)),
		RawRecipients: raw,
		Recipients:    domain.SplitRecipients(raw),
		Status:        domain.ParseStatus(t.Cell(row, t.statusCol)),
	}
	for col, h := range t.header {
		who, isScore, ok := domain.ResponseColumn(h)
		if !ok {
			continue
		}
		v := t.Cell(row, col)
		if v == "" {
			continue
		}
		if l.Responses == nil {
			l.Responses = map[string]domain.Response{}
		}
		resp := l.Responses[who]
		if isScore {
			resp.Score = v
		} else {
			resp.Comment = v
		}
		l.Responses[who] = resp
	}
	return l
}

// ReadAll returns every row with a lead name, staged writes included, in
// table order.
func (t *Table) ReadAll() []domain.Lead {
	out := make([]domain.Lead, 0, len(t.rows))
	for i := range t.rows {
		l := t.Lead(i)
		if l.Name == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Commit persists staged writes by writing a sibling temp file and renaming
// it over the table. On failure the previous file is left untouched.
func (t *Table) Commit() error {
	if !t.dirty {
		return nil
	}
	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return apperr.StoreUnavailable("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := t.f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.StoreUnavailable("write lead table", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.StoreUnavailable("sync lead table", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return apperr.StoreUnavailable("close lead table", err)
	}
	if info, err := os.Stat(t.path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		cleanup()
		return apperr.StoreUnavailable("replace lead table", err)
	}
	t.dirty = false
	return nil
}

// Create writes a new workbook with header and rows. It refuses to overwrite.
func Create(path, sheetName string, header []string, rows [][]string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return err
		}
	}
	put := func(rowNum int, values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheetName, cell, &cells)
	}
	if err := put(1, header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := put(i+2, r); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
