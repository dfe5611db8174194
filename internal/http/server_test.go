package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tempo/internal/cache"
	"tempo/internal/core"
	tlog "tempo/internal/log"
	"tempo/internal/services"
	"tempo/internal/store/memory"
)

var fixedNow = time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	stats := cache.NewStatsCache(32, time.Minute)
	n := 0
	svc := services.NewTimeService(memory.New(),
		services.WithStatsCache(stats),
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	srv := NewServer(":0", svc, Options{
		Logger:             tlog.New(tlog.Config{Handler: tlog.NewTextHandler(io.Discard, slog.LevelError)}),
		RateLimitPerMinute: 1000,
		StatsCache:         stats,
		Now:                func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if owner != "" {
		req.Header.Set(HeaderOwnerID, owner)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createCategory(t *testing.T, srv *Server, owner, name string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/categories", owner, map[string]string{"name": name, "color": "#3B82F6"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}
	return decode[idJSON](t, rec).ID
}

func createSection(t *testing.T, srv *Server, owner, catID string, start, end int64) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, http.MethodPost, "/api/sections", owner, map[string]any{"categoryId": catID, "startTime": start, "endTime": end})
}

func TestHealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing middleware headers: %v", path, rec.Header())
		}
	}

	rec := do(t, srv, http.MethodGet, "/metrics", "", nil)
	for _, want := range []string{"tempo_http_requests_total 2", "tempo_stats_cache_hits_total 0", "tempo_rate_limit_rejected_total 0"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q:\n%s", want, rec.Body.String())
		}
	}
}

func TestOwnerHeaderRequired(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/categories", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	if decode[errorBody](t, rec).Error.Code != "unauthorized" {
		t.Errorf("body=%s", rec.Body.String())
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createCategory(t, srv, "u1", "  Work ")

	rec := do(t, srv, http.MethodPost, "/api/categories", "u1", map[string]string{"name": "Work"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/categories", "u1", map[string]string{"name": "  "}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/categories", "u1", map[string]any{"name": "X", "bogus": 1}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status=%d", rec.Code)
	}
	createCategory(t, srv, "u2", "Work")

	rec = do(t, srv, http.MethodPatch, "/api/categories/"+id, "u1", map[string]string{"color": "#EF4444"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update: status=%d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPatch, "/api/categories/"+id, "u2", map[string]string{"color": "#000000"}); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPatch, "/api/categories/nope", "u1", map[string]string{"color": "#000000"}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing update: status=%d", rec.Code)
	}

	cats := decode[[]categoryJSON](t, do(t, srv, http.MethodGet, "/api/categories", "u1", nil))
	if len(cats) != 1 || cats[0].Name != "Work" || cats[0].Color != "#EF4444" || cats[0].CreatedAt != fixedNow.UnixMilli() {
		t.Fatalf("unexpected categories: %+v", cats)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/categories/"+id, "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/categories/"+id+"?cascade=maybe", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad cascade: status=%d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodDelete, "/api/categories/"+id, "u1", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: status=%d", i, rec.Code)
		}
	}
	if cats := decode[[]categoryJSON](t, do(t, srv, http.MethodGet, "/api/categories", "u1", nil)); len(cats) != 0 {
		t.Fatalf("expected no categories, got %+v", cats)
	}
}

func TestSectionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	catID := createCategory(t, srv, "u1", "Work")
	foreignCat := createCategory(t, srv, "u2", "Theirs")
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC).UnixMilli()

	rec := createSection(t, srv, "u1", catID, start, start+core.MillisPerHour)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	secID := decode[idJSON](t, rec).ID

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"end equals start", map[string]any{"categoryId": catID, "startTime": start, "endTime": start}, http.StatusUnprocessableEntity},
		{"foreign category", map[string]any{"categoryId": foreignCat, "startTime": start, "endTime": start + 1}, http.StatusUnprocessableEntity},
		{"missing times", map[string]any{"categoryId": catID}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, srv, http.MethodPost, "/api/sections", "u1", tt.body); rec.Code != tt.want {
			t.Errorf("%s: status=%d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}

	got := decode[sectionJSON](t, do(t, srv, http.MethodGet, "/api/sections/"+secID, "u1", nil))
	if got.DurationMs != core.MillisPerHour || got.CategoryID != catID {
		t.Fatalf("unexpected section: %+v", got)
	}
	if rec := do(t, srv, http.MethodGet, "/api/sections/"+secID, "u2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: status=%d", rec.Code)
	}

	if rec := do(t, srv, http.MethodPatch, "/api/sections/"+secID, "u1", map[string]any{"endTime": start - 1}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid update: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPatch, "/api/sections/"+secID, "u1", map[string]any{"categoryId": foreignCat}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("move to foreign category: status=%d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPatch, "/api/sections/"+secID, "u1", map[string]any{"title": "Deep work", "endTime": start + 2*core.MillisPerHour}); rec.Code != http.StatusNoContent {
		t.Fatalf("update: status=%d %s", rec.Code, rec.Body.String())
	}

	list := decode[[]sectionJSON](t, do(t, srv, http.MethodGet, fmt.Sprintf("/api/sections?from=%d&to=%d", start, start), "u1", nil))
	if len(list) != 1 || list[0].Title == nil || *list[0].Title != "Deep work" || list[0].Category == nil || list[0].Category.Name != "Work" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if rec := do(t, srv, http.MethodGet, "/api/sections?from=x&to=1", "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad range: status=%d", rec.Code)
	}

	month := decode[[]sectionJSON](t, do(t, srv, http.MethodGet, "/api/sections/month?year=2024&month=1", "u1", nil))
	if len(month) != 1 {
		t.Fatalf("February should hold the section, got %d", len(month))
	}
	if jan := decode[[]sectionJSON](t, do(t, srv, http.MethodGet, "/api/sections/month?year=2024&month=0", "u1", nil)); len(jan) != 0 {
		t.Fatalf("January should be empty, got %d", len(jan))
	}
	if def := decode[[]sectionJSON](t, do(t, srv, http.MethodGet, "/api/sections/month", "u1", nil)); len(def) != 1 {
		t.Fatalf("default month should be February 2024, got %d", len(def))
	}

	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodDelete, "/api/sections/"+secID, "u1", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: status=%d", i, rec.Code)
		}
	}
}

func TestStatsAndCascade(t *testing.T) {
	srv := newTestServer(t)
	work := createCategory(t, srv, "u1", "Work")
	gym := createCategory(t, srv, "u1", "Gym")
	day := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

	createSection(t, srv, "u1", work, day, day+3*core.MillisPerHour)
	createSection(t, srv, "u1", gym, day+4*core.MillisPerHour, day+5*core.MillisPerHour)

	statsURL := fmt.Sprintf("/api/stats?from=%d&to=%d", day, day+core.MillisPerDay)
	stats := decode[statsJSON](t, do(t, srv, http.MethodGet, statsURL, "u1", nil))
	if stats.TotalMilliseconds != 4*core.MillisPerHour || stats.SectionCount != 2 || len(stats.ByCategory) != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByCategory[0].Name != "Work" || stats.ByCategory[0].Percentage != 75 {
		t.Errorf("unexpected breakdown: %+v", stats.ByCategory)
	}

	rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/stats/chart.png?from=%d&to=%d&width=300&height=300", day, day+core.MillisPerDay), "u1", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("chart: status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := do(t, srv, http.MethodGet, fmt.Sprintf("/api/stats/chart.png?from=%d&to=%d&width=5", day, day), "u1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("chart width: status=%d", rec.Code)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/categories/"+gym, "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("non-cascade delete: status=%d", rec.Code)
	}
	stats = decode[statsJSON](t, do(t, srv, http.MethodGet, statsURL, "u1", nil))
	if stats.TotalMilliseconds != 4*core.MillisPerHour || len(stats.ByCategory) != 1 {
		t.Fatalf("dangling section should count toward total only: %+v", stats)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/categories/"+work+"?cascade=true", "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("cascade delete: status=%d", rec.Code)
	}
	stats = decode[statsJSON](t, do(t, srv, http.MethodGet, statsURL, "u1", nil))
	if stats.SectionCount != 1 || stats.ByCategory == nil || len(stats.ByCategory) != 0 {
		t.Fatalf("unexpected stats after cascade: %+v", stats)
	}

	empty := fmt.Sprintf("/api/stats/chart.png?from=%d&to=%d", day, day+core.MillisPerDay)
	if rec := do(t, srv, http.MethodGet, empty, "u1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("empty chart: status=%d", rec.Code)
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	svc := services.NewTimeService(memory.New())
	srv := NewServer(":0", svc, Options{
		Logger:             tlog.New(tlog.Config{Handler: tlog.NewTextHandler(io.Discard, slog.LevelError)}),
		RateLimitPerMinute: 2,
	})
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv, http.MethodPost, "/api/categories", "u1", map[string]string{"name": fmt.Sprintf("c%d", i)}).Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
	if rec := do(t, srv, http.MethodGet, "/api/categories", "u1", nil); rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited: %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/categories", "u2", map[string]string{"name": "x"}); rec.Code != http.StatusCreated {
		t.Fatalf("other owners have their own budget: %d", rec.Code)
	}
}

type unavailableService struct {
	TimeService
}

func (unavailableService) Ping(context.Context) error {
	return core.NewStorageError("ping", errors.New("database is locked"))
}

func (unavailableService) ListCategories(context.Context, string) ([]core.Category, error) {
	return nil, fmt.Errorf("list categories: %w", core.NewStorageError("query", errors.New("database is locked")))
}

func TestStorageUnavailable(t *testing.T) {
	srv := NewServer(":0", unavailableService{}, Options{
		Logger: tlog.New(tlog.Config{Handler: tlog.NewTextHandler(io.Discard, slog.LevelError)}),
	})
	defer srv.Shutdown(context.Background())

	if rec := do(t, srv, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: status=%d", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/api/categories", "u1", nil)
	if rec.Code != http.StatusServiceUnavailable || decode[errorBody](t, rec).Error.Code != "storage_unavailable" {
		t.Fatalf("categories: status=%d body=%s", rec.Code, rec.Body.String())
	}
}
