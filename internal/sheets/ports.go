package sheets

import (
	"context"
	"time"

	"tempo/internal/core"
)

// Header is the first row of an export sheet.
var Header = []any{"Section ID", "Owner", "Category", "Title", "Start", "End", "Hours", "Operation"}

// UnknownCategory labels rows whose category no longer exists.
const UnknownCategory = "(deleted category)"

// SectionRow is one exported line of the section log.
type SectionRow struct {
	SectionID string
	OwnerID   string
	Category  string
	Title     string
	Start     time.Time
	End       time.Time
	Hours     float64
	Op        string
}

// NewSectionRow flattens an enriched section for export, rendering times in loc.
func NewSectionRow(s core.EnrichedSection, op string, loc *time.Location) SectionRow {
	if loc == nil {
		loc = time.UTC
	}
	title := ""
	if s.Title != nil {
		title = *s.Title
	}
	return SectionRow{
		SectionID: s.ID,
		OwnerID:   s.OwnerID,
		Category:  s.CategoryName(UnknownCategory),
		Title:     title,
		Start:     time.UnixMilli(s.StartTime).In(loc),
		End:       time.UnixMilli(s.EndTime).In(loc),
		Hours:     s.Hours(),
		Op:        op,
	}
}

// DeletedRow is the tombstone appended when a section is removed.
func DeletedRow(sectionID, ownerID string, at time.Time) SectionRow {
	return SectionRow{SectionID: sectionID, OwnerID: ownerID, Start: at, End: at, Op: "deleted"}
}

// Values returns the row in Header column order.
func (r SectionRow) Values() []any {
	const layout = "2006-01-02 15:04:05"
	return []any{
		r.SectionID,
		r.OwnerID,
		r.Category,
		r.Title,
		r.Start.Format(layout),
		r.End.Format(layout),
		r.Hours,
		r.Op,
	}
}

// Ports for outbound adapters.
type (
	RowAppender interface {
		// AppendRows appends rows after the last used row and returns the written range.
		AppendRows(ctx context.Context, rows []SectionRow) (string, error)
	}
)
