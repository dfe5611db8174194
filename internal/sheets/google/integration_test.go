//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	ports "tempo/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_AppendRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if _, err := loadCredentials(); err != nil {
		t.Skipf("service account not configured: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, spreadsheetID, "Integration Sections")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	now := time.Now().UTC()
	rows := []ports.SectionRow{{
		SectionID: "integration-" + now.Format("20060102150405"),
		OwnerID:   "integration",
		Category:  "Test",
		Title:     "integration run",
		Start:     now.Add(-time.Hour),
		End:       now,
		Hours:     1,
		Op:        "created",
	}}

	ref, err := client.AppendRows(ctx, rows)
	if err != nil {
		t.Fatalf("AppendRows failed: %v", err)
	}
	if !strings.Contains(ref, "Integration Sections") {
		t.Errorf("unexpected updated range %q", ref)
	}
	t.Logf("Appended to %s", ref)
}
