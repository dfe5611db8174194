// Package storetest holds the behavioural checks every store.Backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tempo/internal/core"
	"tempo/internal/store"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) store.Backend

// Run exercises b against the shared backend contract.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"CategoryCRUD", testCategoryCRUD},
		{"DuplicateNamePerOwner", testDuplicateName},
		{"ConcurrentDuplicateInsert", testConcurrentDuplicate},
		{"SectionRequiresOwnedCategory", testSectionOwnership},
		{"SectionIntervalRejected", testSectionInterval},
		{"SectionUpdateMerge", testSectionUpdate},
		{"SectionDeleteIdempotent", testSectionDelete},
		{"RangeOrderingAndBounds", testRange},
		{"RangeCategoryFilter", testRangeCategoryFilter},
		{"CascadeDelete", testCascade},
		{"NonCascadeLeavesDangling", testNonCascade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tt.fn(t, b)
		})
	}
}

func mustCategory(t *testing.T, b store.Backend, id, owner, name string, createdAt int64) core.Category {
	t.Helper()
	c := core.Category{ID: id, OwnerID: owner, Name: name, Color: "#3B82F6", CreatedAt: createdAt}
	if err := b.InsertCategory(context.Background(), c); err != nil {
		t.Fatalf("insert category %s: %v", id, err)
	}
	return c
}

func mustSection(t *testing.T, b store.Backend, id, owner, cat string, start, end int64) core.TimeSection {
	t.Helper()
	s := core.TimeSection{ID: id, OwnerID: owner, CategoryID: cat, StartTime: start, EndTime: end, CreatedAt: start}
	if err := b.InsertSection(context.Background(), s); err != nil {
		t.Fatalf("insert section %s: %v", id, err)
	}
	return s
}

func ids(in []core.EnrichedSection) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.ID
	}
	return out
}

func testCategoryCRUD(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c2", "u1", "Gym", 20)
	mustCategory(t, b, "c1", "u1", "Work", 10)
	mustCategory(t, b, "c3", "u2", "Work", 5)

	got, err := b.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Fatalf("unexpected list order: %+v", got)
	}

	name := "Deep Work"
	if err := b.UpdateCategory(ctx, "c1", core.CategoryPatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	c, err := b.GetCategory(ctx, "c1")
	if err != nil || c.Name != "Deep Work" || c.Color != "#3B82F6" {
		t.Fatalf("get after update: %+v, %v", c, err)
	}

	// rename is not re-checked for uniqueness
	gym := "Gym"
	if err := b.UpdateCategory(ctx, "c1", core.CategoryPatch{Name: &gym}); err != nil {
		t.Fatalf("rename onto existing name should pass, got %v", err)
	}

	if err := b.UpdateCategory(ctx, "missing", core.CategoryPatch{Name: &name}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := b.GetCategory(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.DeleteCategory(ctx, "missing", true); err != nil {
		t.Fatalf("deleting an absent category should be a no-op, got %v", err)
	}
}

func testDuplicateName(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	err := b.InsertCategory(ctx, core.Category{ID: "c2", OwnerID: "u1", Name: "Work", CreatedAt: 2})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	// another owner may reuse the name
	mustCategory(t, b, "c3", "u2", "Work", 3)

	got, _ := b.ListCategories(ctx, "u1")
	if len(got) != 1 {
		t.Fatalf("rejected insert must not persist, got %+v", got)
	}
}

func testConcurrentDuplicate(t *testing.T, b store.Backend) {
	ctx := context.Background()
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- b.InsertCategory(ctx, core.Category{
				ID: fmt.Sprintf("c%d", i), OwnerID: "u1", Name: "Work", CreatedAt: int64(i),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrDuplicateName):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful insert, got %d", ok)
	}
}

func testSectionOwnership(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustCategory(t, b, "c2", "u2", "Work", 2)

	err := b.InsertSection(ctx, core.TimeSection{ID: "s1", OwnerID: "u1", CategoryID: "c2", StartTime: 1, EndTime: 2})
	if !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("foreign category: expected ErrInvalidCategory, got %v", err)
	}
	err = b.InsertSection(ctx, core.TimeSection{ID: "s1", OwnerID: "u1", CategoryID: "nope", StartTime: 1, EndTime: 2})
	if !errors.Is(err, core.ErrInvalidCategory) {
		t.Fatalf("missing category: expected ErrInvalidCategory, got %v", err)
	}
	if _, err := b.GetSection(ctx, "s1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("rejected section must not persist, got %v", err)
	}
	mustSection(t, b, "s1", "u1", "c1", 1, 2)
}

func testSectionInterval(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	err := b.InsertSection(ctx, core.TimeSection{ID: "s1", OwnerID: "u1", CategoryID: "c1", StartTime: 5, EndTime: 5})
	if !errors.Is(err, core.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func testSectionUpdate(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustCategory(t, b, "c2", "u1", "Gym", 2)
	mustSection(t, b, "s1", "u1", "c1", 100, 200)

	bad := int64(300)
	if _, err := b.UpdateSection(ctx, "s1", core.SectionPatch{StartTime: &bad}); !errors.Is(err, core.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	got, _ := b.GetSection(ctx, "s1")
	if got.StartTime != 100 || got.EndTime != 200 {
		t.Fatalf("rejected update changed state: %+v", got)
	}

	title := "squats"
	cat := "c2"
	end := int64(400)
	upd, err := b.UpdateSection(ctx, "s1", core.SectionPatch{CategoryID: &cat, Title: &title, EndTime: &end})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.CategoryID != "c2" || upd.EndTime != 400 || upd.StartTime != 100 || upd.Title == nil || *upd.Title != "squats" {
		t.Fatalf("unexpected merged section: %+v", upd)
	}

	// moved between category indexes
	c1 := "c1"
	if res, _ := b.ListSectionsByRange(ctx, "u1", 0, 1000, &c1); len(res) != 0 {
		t.Fatalf("section still listed under old category: %v", ids(res))
	}
	if res, _ := b.ListSectionsByRange(ctx, "u1", 0, 1000, &cat); len(res) != 1 {
		t.Fatalf("section not listed under new category: %v", ids(res))
	}

	if _, err := b.UpdateSection(ctx, "missing", core.SectionPatch{Title: &title}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSectionDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustSection(t, b, "s1", "u1", "c1", 1, 2)
	for i := 0; i < 2; i++ {
		if err := b.DeleteSection(ctx, "s1"); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	if _, err := b.GetSection(ctx, "s1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testRange(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustCategory(t, b, "c9", "u2", "Work", 1)
	mustSection(t, b, "sb", "u1", "c1", 100, 150)
	mustSection(t, b, "sa", "u1", "c1", 100, 120)
	mustSection(t, b, "s0", "u1", "c1", 50, 60)
	mustSection(t, b, "s3", "u1", "c1", 300, 400)
	mustSection(t, b, "x1", "u2", "c9", 100, 200)

	got, err := b.ListSectionsByRange(ctx, "u1", 100, 300, nil)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	want := []string{"sa", "sb", "s3"}
	if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
		t.Fatalf("range = %v, want %v", ids(got), want)
	}
	if c, ok := got[0].Category.Get(); !ok || c.Name != "Work" {
		t.Fatalf("expected resolved category, got %+v", got[0].Category)
	}

	empty, err := b.ListSectionsByRange(ctx, "u1", 300, 100, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("from > to should be empty, got %v, %v", ids(empty), err)
	}
	none, err := b.ListSectionsByRange(ctx, "nobody", 0, 1000, nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("unknown owner should yield an empty non-nil slice, got %#v, %v", none, err)
	}
}

func testRangeCategoryFilter(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustCategory(t, b, "c2", "u1", "Gym", 2)
	mustSection(t, b, "s1", "u1", "c1", 10, 20)
	mustSection(t, b, "s2", "u1", "c2", 15, 25)
	mustSection(t, b, "s3", "u1", "c1", 30, 40)

	c1 := "c1"
	got, _ := b.ListSectionsByRange(ctx, "u1", 0, 100, &c1)
	if fmt.Sprint(ids(got)) != "[s1 s3]" {
		t.Fatalf("filtered range = %v", ids(got))
	}
}

func testCascade(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustCategory(t, b, "c2", "u1", "Gym", 2)
	mustSection(t, b, "s1", "u1", "c1", 10, 20)
	mustSection(t, b, "s2", "u1", "c2", 15, 25)
	mustSection(t, b, "s3", "u1", "c1", 30, 40)

	if err := b.DeleteCategory(ctx, "c1", true); err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	got, _ := b.ListSectionsByRange(ctx, "u1", 0, 100, nil)
	if fmt.Sprint(ids(got)) != "[s2]" {
		t.Fatalf("after cascade = %v", ids(got))
	}
	if _, err := b.GetCategory(ctx, "c1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("category should be gone, got %v", err)
	}
}

func testNonCascade(t *testing.T, b store.Backend) {
	ctx := context.Background()
	mustCategory(t, b, "c1", "u1", "Work", 1)
	mustSection(t, b, "s1", "u1", "c1", 10, 20)

	if err := b.DeleteCategory(ctx, "c1", false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := b.ListSectionsByRange(ctx, "u1", 0, 100, nil)
	if len(got) != 1 || got[0].Category.IsResolved() {
		t.Fatalf("expected one dangling section, got %+v", got)
	}
	if got[0].CategoryID != "c1" {
		t.Fatalf("dangling reference lost: %+v", got[0])
	}
}
