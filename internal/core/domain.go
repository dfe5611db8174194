package core

import (
	"errors"
	"strings"
)

type (
	// Category is a named, colored label owned by a single user.
	Category struct {
		ID        string
		OwnerID   string
		Name      string
		Color     string // free-form, usually "#RRGGBB"
		CreatedAt int64  // epoch ms
	}

	// TimeSection is a labeled interval [StartTime, EndTime) in epoch milliseconds.
	TimeSection struct {
		ID         string
		OwnerID    string
		CategoryID string
		Title      *string
		StartTime  int64
		EndTime    int64
		CreatedAt  int64
	}

	// NewSection carries the caller-supplied fields of a section to create.
	NewSection struct {
		OwnerID    string
		CategoryID string
		Title      *string
		StartTime  int64
		EndTime    int64
	}

	// CategoryPatch lists the category fields to overwrite; nil fields keep their value.
	CategoryPatch struct {
		Name  *string
		Color *string
	}

	// SectionPatch lists the section fields to overwrite; nil fields keep their value.
	SectionPatch struct {
		CategoryID *string
		Title      *string
		StartTime  *int64
		EndTime    *int64
	}
)

var (
	ErrEmptyOwner = errors.New("empty owner id")
	ErrEmptyName  = errors.New("empty category name")
)

// ValidateInterval enforces end > start.
func ValidateInterval(start, end int64) error {
	if end <= start {
		return ErrInvalidInterval
	}
	return nil
}

func ValidateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrEmptyOwner
	}
	return nil
}

// NormalizeName trims a category name and rejects blanks.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func (n NewSection) Validate() error {
	if err := ValidateOwner(n.OwnerID); err != nil {
		return err
	}
	return ValidateInterval(n.StartTime, n.EndTime)
}

// DurationMillis returns end - start.
func (s TimeSection) DurationMillis() int64 {
	return s.EndTime - s.StartTime
}

// Hours returns the section duration in hours.
func (s TimeSection) Hours() float64 {
	return float64(s.DurationMillis()) / MillisPerHour
}

// IsEmpty reports whether the patch changes nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Color == nil
}

// Apply returns c with the patch applied. Name uniqueness is not re-checked here.
func (p CategoryPatch) Apply(c Category) Category {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	return c
}

// Apply merges the patch into s and validates the effective interval.
// Category ownership is deliberately not re-checked on update.
func (p SectionPatch) Apply(s TimeSection) (TimeSection, error) {
	start := s.StartTime
	if p.StartTime != nil {
		start = *p.StartTime
	}
	end := s.EndTime
	if p.EndTime != nil {
		end = *p.EndTime
	}
	if err := ValidateInterval(start, end); err != nil {
		return s, err
	}
	s.StartTime = start
	s.EndTime = end
	if p.CategoryID != nil {
		s.CategoryID = *p.CategoryID
	}
	if p.Title != nil {
		s.Title = p.Title
	}
	return s, nil
}
