package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"tempo/internal/core"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339, "YYYY-MM-DD HH:MM" or a bare date in loc,
// or raw epoch milliseconds.
func parseTime(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	return 0, fmt.Errorf("invalid time %q: want RFC 3339, YYYY-MM-DD HH:MM or epoch milliseconds", s)
}

// parseMonth reads "YYYY-MM" and returns the year and 0-indexed month.
func parseMonth(s string) (year, month int, err error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return t.Year(), int(t.Month()) - 1, nil
}

func formatTime(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format("2006-01-02 15:04")
}

func printCategories(w io.Writer, cats []core.Category) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Color)
	}
	return tw.Flush()
}

func printSections(w io.Writer, secs []core.EnrichedSection, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tDURATION\tCATEGORY\tTITLE")
	for _, s := range secs {
		title := ""
		if s.Title != nil {
			title = *s.Title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			formatTime(s.StartTime, loc),
			formatTime(s.EndTime, loc),
			core.FormatHours(s.Hours()),
			s.CategoryName("(deleted)"),
			title)
	}
	return tw.Flush()
}

func printStats(w io.Writer, st core.Stats) error {
	fmt.Fprintf(w, "Total: %s across %d sections (%.2f days)\n",
		core.FormatHours(st.TotalHours), st.SectionCount, st.TotalDays)
	if len(st.ByCategory) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTIME\tSECTIONS\tSHARE")
	for _, c := range st.ByCategory {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\n", c.Name, core.FormatHours(c.Hours), c.Count, c.Percentage)
	}
	return tw.Flush()
}
