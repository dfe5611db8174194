package core

const (
	MillisPerHour = 1000 * 60 * 60
	MillisPerDay  = MillisPerHour * 24
)

// CategoryStats aggregates the sections of one resolved category.
type CategoryStats struct {
	CategoryID   string
	Name         string
	Color        string
	Milliseconds int64
	Count        int
	Hours        float64
	Percentage   float64 // share of Stats.TotalMilliseconds, 0..100
}

// Stats summarizes a filtered set of sections.
type Stats struct {
	TotalMilliseconds int64
	TotalHours        float64
	TotalDays         float64
	SectionCount      int
	ByCategory        []CategoryStats
}

// ComputeStats reduces sections into totals and a per-category breakdown.
//
// Sections whose category no longer resolves count toward the totals but are
// left out of ByCategory. Groups appear in first-seen order, so the result is
// deterministic for a deterministic input order. ByCategory is never nil.
func ComputeStats(sections []EnrichedSection) Stats {
	var total int64
	groups := map[string]*CategoryStats{}
	order := make([]string, 0)

	for _, s := range sections {
		ms := s.DurationMillis()
		total += ms

		c, ok := s.Category.Get()
		if !ok {
			continue
		}
		g, seen := groups[c.ID]
		if !seen {
			g = &CategoryStats{CategoryID: c.ID, Name: c.Name, Color: c.Color}
			groups[c.ID] = g
			order = append(order, c.ID)
		}
		g.Milliseconds += ms
		g.Count++
	}

	byCat := make([]CategoryStats, 0, len(order))
	for _, id := range order {
		g := *groups[id]
		g.Hours = float64(g.Milliseconds) / MillisPerHour
		if total > 0 {
			g.Percentage = float64(g.Milliseconds) / float64(total) * 100
		}
		byCat = append(byCat, g)
	}

	return Stats{
		TotalMilliseconds: total,
		TotalHours:        float64(total) / MillisPerHour,
		TotalDays:         float64(total) / MillisPerDay,
		SectionCount:      len(sections),
		ByCategory:        byCat,
	}
}
