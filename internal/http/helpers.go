package http

import (
	"strings"

	"tempo/internal/core"
)

// sanitizeInput drops control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

type categoryJSON struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt int64  `json:"createdAt"`
}

type sectionJSON struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"ownerId"`
	CategoryID string        `json:"categoryId"`
	Title      *string       `json:"title,omitempty"`
	StartTime  int64         `json:"startTime"`
	EndTime    int64         `json:"endTime"`
	CreatedAt  int64         `json:"createdAt"`
	DurationMs int64         `json:"durationMs"`
	Category   *categoryJSON `json:"category"`
}

type categoryStatsJSON struct {
	CategoryID   string  `json:"categoryId"`
	Name         string  `json:"name"`
	Color        string  `json:"color"`
	Milliseconds int64   `json:"milliseconds"`
	Count        int     `json:"count"`
	Hours        float64 `json:"hours"`
	Percentage   float64 `json:"percentage"`
}

type statsJSON struct {
	TotalMilliseconds int64               `json:"totalMilliseconds"`
	TotalHours        float64             `json:"totalHours"`
	TotalDays         float64             `json:"totalDays"`
	SectionCount      int                 `json:"sectionCount"`
	ByCategory        []categoryStatsJSON `json:"byCategory"`
}

type idJSON struct {
	ID string `json:"id"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: c.CreatedAt,
	}
}

func toCategoriesJSON(cats []core.Category) []categoryJSON {
	out := make([]categoryJSON, len(cats))
	for i, c := range cats {
		out[i] = toCategoryJSON(c)
	}
	return out
}

func toSectionJSON(s core.TimeSection) sectionJSON {
	return sectionJSON{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		CategoryID: s.CategoryID,
		Title:      s.Title,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		CreatedAt:  s.CreatedAt,
		DurationMs: s.DurationMillis(),
	}
}

// toSectionsJSON renders enriched sections; a dangling category becomes null.
func toSectionsJSON(secs []core.EnrichedSection) []sectionJSON {
	out := make([]sectionJSON, len(secs))
	for i, e := range secs {
		out[i] = toSectionJSON(e.TimeSection)
		if c, ok := e.Category.Get(); ok {
			cj := toCategoryJSON(c)
			out[i].Category = &cj
		}
	}
	return out
}

func toStatsJSON(s core.Stats) statsJSON {
	by := make([]categoryStatsJSON, len(s.ByCategory))
	for i, c := range s.ByCategory {
		by[i] = categoryStatsJSON{
			CategoryID:   c.CategoryID,
			Name:         c.Name,
			Color:        c.Color,
			Milliseconds: c.Milliseconds,
			Count:        c.Count,
			Hours:        c.Hours,
			Percentage:   c.Percentage,
		}
	}
	return statsJSON{
		TotalMilliseconds: s.TotalMilliseconds,
		TotalHours:        s.TotalHours,
		TotalDays:         s.TotalDays,
		SectionCount:      s.SectionCount,
		ByCategory:        by,
	}
}
