package memory

import (
	"context"
	"fmt"
	"sync"

	ports "tempo/internal/sheets"
)

// Sheet is an in-process RowAppender used when no spreadsheet is configured.
type Sheet struct {
	mu   sync.Mutex
	rows []ports.SectionRow
}

var _ ports.RowAppender = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{}
}

// AppendRows stores the rows and returns a synthetic A1 range.
func (s *Sheet) AppendRows(_ context.Context, rows []ports.SectionRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 2 // row 1 is the header
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem!A%d:H%d", first, len(s.rows)+1), nil
}

// Rows returns a copy of everything appended so far.
func (s *Sheet) Rows() []ports.SectionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SectionRow(nil), s.rows...)
}
