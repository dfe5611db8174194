package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tempo/internal/amqp"
	"tempo/internal/cache"
	"tempo/internal/core"
	"tempo/internal/store"
)

// ChangePublisher announces committed mutations.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// TimeService implements the category, section and statistics operations on
// top of a storage backend. Change messages are published best effort after
// each successful mutation.
type TimeService struct {
	store     store.Backend
	publisher ChangePublisher
	stats     *cache.StatsCache
	loc       *time.Location
	now       func() time.Time
	newID     func() string
}

type Option func(*TimeService)

// WithPublisher sets the change publisher. A nil publisher disables publishing.
func WithPublisher(p ChangePublisher) Option {
	return func(s *TimeService) { s.publisher = p }
}

// WithStatsCache memoizes GetStats; every successful mutation invalidates it.
func WithStatsCache(c *cache.StatsCache) Option {
	return func(s *TimeService) { s.stats = c }
}

// WithLocation sets the calendar used by month queries.
func WithLocation(loc *time.Location) Option {
	return func(s *TimeService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TimeService) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *TimeService) { s.newID = fn }
}

func NewTimeService(backend store.Backend, opts ...Option) *TimeService {
	s := &TimeService{
		store: backend,
		loc:   time.UTC,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TimeService) Location() *time.Location { return s.loc }

func (s *TimeService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *TimeService) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	if err := core.ValidateOwner(ownerID); err != nil {
		return nil, err
	}
	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *TimeService) GetCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// CreateCategory stores a new category and returns its id. The name is
// trimmed and must be unique for the owner.
func (s *TimeService) CreateCategory(ctx context.Context, ownerID, name, color string) (string, error) {
	if err := core.ValidateOwner(ownerID); err != nil {
		return "", err
	}
	name, err := core.NormalizeName(name)
	if err != nil {
		return "", err
	}

	c := core.Category{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      name,
		Color:     color,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category created", "id", c.ID, "owner_id", ownerID, "name", name)
	s.changed(ctx, amqp.KindCategory, amqp.OpCreated, c.ID, ownerID)
	return c.ID, nil
}

// UpdateCategory patches name and/or color. A blank name leaves the name
// unchanged. A rename is not checked against the owner's other category names.
func (s *TimeService) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) error {
	if patch.Name != nil {
		name, err := core.NormalizeName(*patch.Name)
		if errors.Is(err, core.ErrEmptyName) {
			patch.Name = nil
		} else {
			patch.Name = &name
		}
	}
	if err := s.store.UpdateCategory(ctx, id, patch); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	s.changed(ctx, amqp.KindCategory, amqp.OpUpdated, id, s.categoryOwner(ctx, id))
	return nil
}

// DeleteCategory removes a category. With cascade, sections referencing it are
// removed first; without, they keep a dangling reference. Absent ids are a no-op.
func (s *TimeService) DeleteCategory(ctx context.Context, id string, cascade bool) error {
	owner := s.categoryOwner(ctx, id)
	if err := s.store.DeleteCategory(ctx, id, cascade); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if owner == "" {
		return nil
	}
	slog.InfoContext(ctx, "Category deleted", "id", id, "owner_id", owner, "cascade", cascade)
	s.changed(ctx, amqp.KindCategory, amqp.OpDeleted, id, owner)
	return nil
}

// ListSectionsByRange returns the owner's sections starting within [from, to].
func (s *TimeService) ListSectionsByRange(ctx context.Context, ownerID string, from, to int64, categoryID *string) ([]core.EnrichedSection, error) {
	if err := core.ValidateOwner(ownerID); err != nil {
		return nil, err
	}
	out, err := s.store.ListSectionsByRange(ctx, ownerID, from, to, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return out, nil
}

// ListSectionsByMonth lists a whole calendar month; month is 0-indexed.
func (s *TimeService) ListSectionsByMonth(ctx context.Context, ownerID string, year, month int) ([]core.EnrichedSection, error) {
	from, to := core.MonthRange(year, month, s.loc)
	return s.ListSectionsByRange(ctx, ownerID, from, to, nil)
}

func (s *TimeService) GetSection(ctx context.Context, id string) (core.TimeSection, error) {
	sec, err := s.store.GetSection(ctx, id)
	if err != nil {
		return core.TimeSection{}, fmt.Errorf("get section: %w", err)
	}
	return sec, nil
}

func (s *TimeService) CreateSection(ctx context.Context, n core.NewSection) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}

	sec := core.TimeSection{
		ID:         s.newID(),
		OwnerID:    n.OwnerID,
		CategoryID: n.CategoryID,
		Title:      n.Title,
		StartTime:  n.StartTime,
		EndTime:    n.EndTime,
		CreatedAt:  s.now().UnixMilli(),
	}
	if err := s.store.InsertSection(ctx, sec); err != nil {
		return "", fmt.Errorf("create section: %w", err)
	}

	slog.InfoContext(ctx, "Section created",
		"id", sec.ID,
		"owner_id", sec.OwnerID,
		"category_id", sec.CategoryID,
		"duration_ms", sec.DurationMillis())
	s.changed(ctx, amqp.KindSection, amqp.OpCreated, sec.ID, sec.OwnerID)
	return sec.ID, nil
}

// UpdateSection applies a partial update. The effective interval must stay
// valid; the target category's ownership is not re-checked.
func (s *TimeService) UpdateSection(ctx context.Context, id string, patch core.SectionPatch) error {
	sec, err := s.store.UpdateSection(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	s.changed(ctx, amqp.KindSection, amqp.OpUpdated, sec.ID, sec.OwnerID)
	return nil
}

// DeleteSection removes a section; deleting an absent id succeeds.
func (s *TimeService) DeleteSection(ctx context.Context, id string) error {
	sec, getErr := s.store.GetSection(ctx, id)
	if err := s.store.DeleteSection(ctx, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if getErr == nil {
		s.changed(ctx, amqp.KindSection, amqp.OpDeleted, id, sec.OwnerID)
	}
	return nil
}

// GetStats aggregates the sections ListSectionsByRange would return.
func (s *TimeService) GetStats(ctx context.Context, ownerID string, from, to int64, categoryID *string) (core.Stats, error) {
	load := func(ctx context.Context) (core.Stats, error) {
		sections, err := s.ListSectionsByRange(ctx, ownerID, from, to, categoryID)
		if err != nil {
			return core.Stats{}, err
		}
		return core.ComputeStats(sections), nil
	}
	if s.stats == nil {
		return load(ctx)
	}
	if err := core.ValidateOwner(ownerID); err != nil {
		return core.Stats{}, err
	}
	key := cache.StatsKey(ownerID, from, to, categoryID)
	if m, ok := s.store.(store.ChangeMarker); ok {
		// the store may be written by other processes
		v, err := m.DataVersion(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Data version unavailable, bypassing stats cache", "error", err)
			return load(ctx)
		}
		key = cache.VersionedKey(v, key)
	}
	return s.stats.Get(ctx, key, load)
}

func (s *TimeService) categoryOwner(ctx context.Context, id string) string {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return ""
	}
	return c.OwnerID
}

// changed runs after every committed mutation.
func (s *TimeService) changed(ctx context.Context, kind, op, id, ownerID string) {
	if s.stats != nil {
		s.stats.Invalidate()
	}
	s.publish(ctx, kind, op, id, ownerID)
}

func (s *TimeService) publish(ctx context.Context, kind, op, id, ownerID string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Change publisher not configured, skipping message", "kind", kind, "op", op, "id", id)
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.NewChangeMessage(kind, op, id, ownerID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"kind", kind, "op", op, "id", id, "error", err)
	}
}

// Close releases the store and the publisher.
func (s *TimeService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close time service: %w", errors.Join(errs...))
	}
	return nil
}
