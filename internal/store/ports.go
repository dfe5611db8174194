// Package store declares the persistence ports shared by the memory and
// SQLite backends.
package store

import (
	"context"

	"tempo/internal/core"
)

type (
	CategoryStore interface {
		// ListCategories returns the owner's categories ordered by creation time, then id.
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		GetCategory(ctx context.Context, id string) (core.Category, error)
		// InsertCategory fails with core.ErrDuplicateName when the owner already has
		// a category with c.Name. The check and the insert are one atomic step.
		InsertCategory(ctx context.Context, c core.Category) error
		UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) error
		// DeleteCategory removes the category; with cascade it first removes every
		// section referencing it. Deleting an absent category is a no-op.
		DeleteCategory(ctx context.Context, id string, cascade bool) error
	}

	SectionStore interface {
		GetSection(ctx context.Context, id string) (core.TimeSection, error)
		// InsertSection fails with core.ErrInvalidCategory unless s.CategoryID names a
		// category owned by s.OwnerID, checked atomically with the insert.
		InsertSection(ctx context.Context, s core.TimeSection) error
		// UpdateSection loads, merges, validates and writes the section atomically.
		UpdateSection(ctx context.Context, id string, patch core.SectionPatch) (core.TimeSection, error)
		DeleteSection(ctx context.Context, id string) error
	}

	// RangeIndex answers start-time range queries. Results are ordered by
	// (StartTime, ID) and carry a resolved or unresolved category.
	RangeIndex interface {
		ListSectionsByRange(ctx context.Context, ownerID string, from, to int64, categoryID *string) ([]core.EnrichedSection, error)
	}

	// ChangeMarker is implemented by backends other processes can write to.
	// DataVersion differs after any committed category or section change.
	ChangeMarker interface {
		DataVersion(ctx context.Context) (int64, error)
	}

	// Backend is what the service layer needs from a storage implementation.
	Backend interface {
		CategoryStore
		SectionStore
		RangeIndex
		Ping(ctx context.Context) error
		Close() error
	}
)
