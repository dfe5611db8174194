package core

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestValidateInterval(t *testing.T) {
	cases := []struct {
		start, end int64
		ok         bool
	}{
		{1700000000000, 1700003600000, true},
		{0, 1, true},
		{5, 5, false}, // zero length
		{10, 5, false},
	}
	for i, tc := range cases {
		err := ValidateInterval(tc.start, tc.end)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("case %d expected ErrInvalidInterval, got %v", i, err)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got, err := NormalizeName("  Work "); err != nil || got != "Work" {
		t.Fatalf("NormalizeName = %q, %v", got, err)
	}
	if _, err := NormalizeName("   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestNewSectionValidate(t *testing.T) {
	good := NewSection{OwnerID: "u1", CategoryID: "c1", StartTime: 1, EndTime: 2}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []struct {
		s    NewSection
		want error
	}{
		{NewSection{OwnerID: "", StartTime: 1, EndTime: 2}, ErrEmptyOwner},
		{NewSection{OwnerID: "u1", StartTime: 2, EndTime: 2}, ErrInvalidInterval},
	}
	for i, tc := range bads {
		if err := tc.s.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestSectionPatchApply(t *testing.T) {
	base := TimeSection{ID: "s1", OwnerID: "u1", CategoryID: "c1", StartTime: 100, EndTime: 200}

	t.Run("keeps unspecified fields", func(t *testing.T) {
		got, err := SectionPatch{Title: ptr("standup")}.Apply(base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.StartTime != 100 || got.EndTime != 200 || got.CategoryID != "c1" {
			t.Fatalf("unexpected merge: %+v", got)
		}
		if got.Title == nil || *got.Title != "standup" {
			t.Fatalf("title not applied: %+v", got.Title)
		}
	})

	t.Run("validates effective interval", func(t *testing.T) {
		// moving only the start past the existing end must fail
		_, err := SectionPatch{StartTime: ptr(int64(250))}.Apply(base)
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("expected ErrInvalidInterval, got %v", err)
		}
		got, err := SectionPatch{StartTime: ptr(int64(250)), EndTime: ptr(int64(300))}.Apply(base)
		if err != nil || got.StartTime != 250 || got.EndTime != 300 {
			t.Fatalf("unexpected result %+v, %v", got, err)
		}
	})

	t.Run("does not check category ownership", func(t *testing.T) {
		got, err := SectionPatch{CategoryID: ptr("someone-elses")}.Apply(base)
		if err != nil || got.CategoryID != "someone-elses" {
			t.Fatalf("unexpected result %+v, %v", got, err)
		}
	})
}

func TestCategoryPatchApply(t *testing.T) {
	c := Category{ID: "c1", Name: "Work", Color: "#3B82F6"}
	got := CategoryPatch{Color: ptr("#EF4444")}.Apply(c)
	if got.Name != "Work" || got.Color != "#EF4444" {
		t.Fatalf("unexpected patch result: %+v", got)
	}
	if !(CategoryPatch{}).IsEmpty() {
		t.Fatal("empty patch should report IsEmpty")
	}
}

func TestCategoryRef(t *testing.T) {
	var zero CategoryRef
	if zero.IsResolved() {
		t.Fatal("zero CategoryRef must be unresolved")
	}
	ref := Resolved(Category{ID: "c1", Name: "Work"})
	c, ok := ref.Get()
	if !ok || c.ID != "c1" {
		t.Fatalf("Get = %+v, %v", c, ok)
	}
	e := EnrichedSection{Category: Unresolved()}
	if got := e.CategoryName("unknown category"); got != "unknown category" {
		t.Fatalf("CategoryName = %q", got)
	}
}

func TestStorageErrorIs(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := NewStorageError("insert section", cause)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatal("StorageError should match ErrStorageUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatal("StorageError should unwrap to the cause")
	}
	if NewStorageError("noop", nil) != nil {
		t.Fatal("nil cause should give nil error")
	}
}
