package charts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tempo/internal/core"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no category time to plot")

// minSlicePercent hides slivers that would only clutter the legend.
const minSlicePercent = 1.0

type PieOptions struct {
	Title  string
	Width  int
	Height int
}

func DefaultPieOptions() PieOptions {
	return PieOptions{Width: 800, Height: 800}
}

// CategoryPie renders the per-category breakdown of stats as a PNG pie chart.
// Slice colors come from the category colors when they are valid hex values.
func CategoryPie(stats core.Stats, opts PieOptions) ([]byte, error) {
	values := pieValues(stats)
	if len(values) == 0 {
		return nil, ErrNoData
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultPieOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}

	pie := chart.PieChart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer(nil)
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render category pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}

func pieValues(stats core.Stats) []chart.Value {
	values := make([]chart.Value, 0, len(stats.ByCategory))
	for _, c := range stats.ByCategory {
		if c.Milliseconds <= 0 || c.Percentage < minSlicePercent {
			continue
		}
		style := chart.Style{
			FontSize:  12,
			FontColor: chart.ColorBlack,
		}
		if color, ok := parseHexColor(c.Color); ok {
			style.FillColor = color
			style.StrokeColor = chart.ColorWhite
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", c.Name, core.FormatHours(c.Hours), c.Percentage),
			Value: c.Hours,
			Style: style,
		})
	}
	return values
}

// parseHexColor accepts "#RRGGBB" or "RRGGBB".
func parseHexColor(s string) (drawing.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return drawing.Color{}, false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return drawing.Color{}, false
		}
	}
	return drawing.ColorFromHex(s), true
}
