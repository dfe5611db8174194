package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	ports "tempo/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const headerCheckTTL = 10 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// header presence per sheet name, re-checked after headerCheckTTL
	mu            sync.Mutex
	headerChecked map[string]time.Time
}

var _ ports.RowAppender = (*Client)(nil)

// New creates a Sheets client appending to "<year> <sheetBase>" tabs of the
// given spreadsheet. Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Sections"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		headerChecked: map[string]time.Time{},
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendRows groups rows by the year of their start time and appends each
// group to the matching yearly tab.
func (c *Client) AppendRows(ctx context.Context, rows []ports.SectionRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return "", nil
	}

	var ranges []string
	for _, group := range groupByYear(rows) {
		sheet := yearPrefixedName(c.sheetBase, group.year)
		if err := c.ensureHeader(ctx, sheet); err != nil {
			return "", err
		}

		values := make([][]any, len(group.rows))
		for i, r := range group.rows {
			values[i] = r.Values()
		}
		resp, err := c.svc.Spreadsheets.Values.
			Append(c.spreadsheetID, fmt.Sprintf("%s!A:H", sheet), &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("append rows to %s: %w", sheet, err)
		}
		if resp.Updates != nil {
			ranges = append(ranges, resp.Updates.UpdatedRange)
		}
	}

	slog.InfoContext(ctx, "Appended section rows to Google Sheets", "rows", len(rows), "ranges", ranges)
	return strings.Join(ranges, ","), nil
}

func (c *Client) ensureHeader(ctx context.Context, sheet string) error {
	c.mu.Lock()
	until, ok := c.headerChecked[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(until) {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:H1", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if needsHeader(resp.Values) {
		_, err := c.svc.Spreadsheets.Values.
			Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{ports.Header}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write header %s: %w", rng, err)
		}
		slog.InfoContext(ctx, "Wrote export header", "sheet", sheet)
	}

	c.mu.Lock()
	c.headerChecked[sheet] = time.Now().Add(headerCheckTTL)
	c.mu.Unlock()
	return nil
}

func needsHeader(values [][]any) bool {
	if len(values) == 0 || len(values[0]) == 0 {
		return true
	}
	return strings.TrimSpace(fmt.Sprint(values[0][0])) == ""
}

type yearGroup struct {
	year int
	rows []ports.SectionRow
}

// groupByYear keeps first-seen year order and input order within a year.
func groupByYear(rows []ports.SectionRow) []yearGroup {
	var out []yearGroup
	index := map[int]int{}
	for _, r := range rows {
		y := r.Start.Year()
		i, ok := index[y]
		if !ok {
			i = len(out)
			index[y] = i
			out = append(out, yearGroup{year: y})
		}
		out[i].rows = append(out[i].rows, r)
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
