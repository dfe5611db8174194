package google

import (
	"context"
	"strings"
	"testing"
	"time"

	ports "tempo/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Sections")
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadCredentials_Missing(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := loadCredentials()
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestLoadCredentials_InlineWins(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/does/not/exist.json")

	data, err := loadCredentials()
	if err != nil || string(data) != `{"type":"service_account"}` {
		t.Fatalf("loadCredentials = %q, %v", data, err)
	}
}

func TestLoadCredentials_UnreadableFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/does/not/exist.json")

	if _, err := loadCredentials(); err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestAppendRows_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.AppendRows(context.Background(), []ports.SectionRow{{SectionID: "s1"}})
	if err == nil || err.Error() != "sheets service not initialized" {
		t.Fatalf("expected uninitialized error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Sections", 2024, "2024 Sections"},
		{"  Sections ", 2025, "2025 Sections"},
		{"2023 Sections", 2024, "2023 Sections"},
		{"12345", 2024, "2024 12345"},
		{"", 2024, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestGroupByYear(t *testing.T) {
	at := func(y int) time.Time { return time.Date(y, 6, 1, 0, 0, 0, 0, time.UTC) }
	rows := []ports.SectionRow{
		{SectionID: "a", Start: at(2024)},
		{SectionID: "b", Start: at(2023)},
		{SectionID: "c", Start: at(2024)},
	}
	groups := groupByYear(rows)
	if len(groups) != 2 || groups[0].year != 2024 || groups[1].year != 2023 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if len(groups[0].rows) != 2 || groups[0].rows[1].SectionID != "c" {
		t.Fatalf("unexpected 2024 rows: %+v", groups[0].rows)
	}
}

func TestNeedsHeader(t *testing.T) {
	if !needsHeader(nil) {
		t.Error("empty sheet needs a header")
	}
	if !needsHeader([][]any{{""}}) {
		t.Error("blank first cell needs a header")
	}
	if needsHeader([][]any{ports.Header}) {
		t.Error("existing header should be kept")
	}
}
