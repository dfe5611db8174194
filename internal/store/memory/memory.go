package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tempo/internal/core"
)

// entry is one slot of a sorted index.
type entry struct {
	start int64
	id    string
}

func (e entry) less(o entry) bool {
	if e.start != o.start {
		return e.start < o.start
	}
	return e.id < o.id
}

type ownerCategory struct {
	owner, category string
}

// Store keeps categories and sections in process memory.
// Sections are indexed per owner and per (owner, category) in (start, id)
// order so range lookups are a binary search plus a linear scan.
type Store struct {
	mu         sync.RWMutex
	categories map[string]core.Category
	sections   map[string]core.TimeSection

	byOwner         map[string][]entry
	byOwnerCategory map[ownerCategory][]entry
	byCategory      map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		categories:      map[string]core.Category{},
		sections:        map[string]core.TimeSection{},
		byOwner:         map[string][]entry{},
		byOwnerCategory: map[ownerCategory][]entry{},
		byCategory:      map[string]map[string]struct{}{},
	}
}

// NewFromFiles builds a store seeded from base/seed_categories.txt.
// Each line is "owner,name,color"; blank lines, comments and duplicate
// (owner, name) pairs are skipped. A missing file yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	now := time.Now().UnixMilli()
	for i, rec := range readSeed(filepath.Join(base, "seed_categories.txt")) {
		_ = s.InsertCategory(context.Background(), core.Category{
			ID:        uuid.NewString(),
			OwnerID:   rec[0],
			Name:      rec[1],
			Color:     rec[2],
			CreatedAt: now + int64(i),
		})
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.OwnerID == c.OwnerID && existing.Name == c.Name {
			return core.ErrDuplicateName
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, id string, patch core.CategoryPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.ErrNotFound
	}
	s.categories[id] = patch.Apply(c)
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id string, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cascade {
		for sectionID := range s.byCategory[id] {
			s.removeSectionLocked(sectionID)
		}
		delete(s.byCategory, id)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) GetSection(_ context.Context, id string) (core.TimeSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sections[id]
	if !ok {
		return core.TimeSection{}, core.ErrNotFound
	}
	return sec, nil
}

func (s *Store) InsertSection(_ context.Context, sec core.TimeSection) error {
	if err := core.ValidateInterval(sec.StartTime, sec.EndTime); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[sec.CategoryID]
	if !ok || c.OwnerID != sec.OwnerID {
		return core.ErrInvalidCategory
	}
	s.addSectionLocked(sec)
	return nil
}

func (s *Store) UpdateSection(_ context.Context, id string, patch core.SectionPatch) (core.TimeSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sections[id]
	if !ok {
		return core.TimeSection{}, core.ErrNotFound
	}
	next, err := patch.Apply(cur)
	if err != nil {
		return core.TimeSection{}, err
	}
	s.removeSectionLocked(id)
	s.addSectionLocked(next)
	return next, nil
}

func (s *Store) DeleteSection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeSectionLocked(id)
	return nil
}

func (s *Store) ListSectionsByRange(_ context.Context, ownerID string, from, to int64, categoryID *string) ([]core.EnrichedSection, error) {
	out := make([]core.EnrichedSection, 0)
	if from > to {
		return out, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byOwner[ownerID]
	if categoryID != nil {
		idx = s.byOwnerCategory[ownerCategory{ownerID, *categoryID}]
	}
	i := sort.Search(len(idx), func(i int) bool { return idx[i].start >= from })
	for ; i < len(idx) && idx[i].start <= to; i++ {
		sec := s.sections[idx[i].id]
		ref := core.Unresolved()
		if c, ok := s.categories[sec.CategoryID]; ok {
			ref = core.Resolved(c)
		}
		out = append(out, core.EnrichedSection{TimeSection: sec, Category: ref})
	}
	return out, nil
}

func (s *Store) addSectionLocked(sec core.TimeSection) {
	s.sections[sec.ID] = sec
	e := entry{start: sec.StartTime, id: sec.ID}
	s.byOwner[sec.OwnerID] = insertSorted(s.byOwner[sec.OwnerID], e)
	k := ownerCategory{sec.OwnerID, sec.CategoryID}
	s.byOwnerCategory[k] = insertSorted(s.byOwnerCategory[k], e)
	set, ok := s.byCategory[sec.CategoryID]
	if !ok {
		set = map[string]struct{}{}
		s.byCategory[sec.CategoryID] = set
	}
	set[sec.ID] = struct{}{}
}

func (s *Store) removeSectionLocked(id string) {
	sec, ok := s.sections[id]
	if !ok {
		return
	}
	delete(s.sections, id)
	e := entry{start: sec.StartTime, id: sec.ID}
	s.byOwner[sec.OwnerID] = removeSorted(s.byOwner[sec.OwnerID], e)
	if len(s.byOwner[sec.OwnerID]) == 0 {
		delete(s.byOwner, sec.OwnerID)
	}
	k := ownerCategory{sec.OwnerID, sec.CategoryID}
	s.byOwnerCategory[k] = removeSorted(s.byOwnerCategory[k], e)
	if len(s.byOwnerCategory[k]) == 0 {
		delete(s.byOwnerCategory, k)
	}
	if set, ok := s.byCategory[sec.CategoryID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byCategory, sec.CategoryID)
		}
	}
}

func insertSorted(idx []entry, e entry) []entry {
	i := sort.Search(len(idx), func(i int) bool { return !idx[i].less(e) })
	idx = append(idx, entry{})
	copy(idx[i+1:], idx[i:])
	idx[i] = e
	return idx
}

func removeSorted(idx []entry, e entry) []entry {
	i := sort.Search(len(idx), func(i int) bool { return !idx[i].less(e) })
	if i < len(idx) && idx[i] == e {
		return append(idx[:i], idx[i+1:]...)
	}
	return idx
}

func readSeed(path string) [][3]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[[2]string]struct{}{}
	var out [][3]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			continue
		}
		owner := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		color := ""
		if len(parts) == 3 {
			color = strings.TrimSpace(parts[2])
		}
		if owner == "" || name == "" {
			continue
		}
		key := [2]string{owner, name}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, [3]string{owner, name, color})
	}
	return out
}
