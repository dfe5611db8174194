package core

// CategoryRef is the outcome of resolving a section's category id: either the
// category itself or Unresolved when it was deleted without cascade.
// The zero value is Unresolved.
type CategoryRef struct {
	category *Category
}

// Resolved wraps an existing category.
func Resolved(c Category) CategoryRef {
	return CategoryRef{category: &c}
}

// Unresolved marks a dangling category reference.
func Unresolved() CategoryRef {
	return CategoryRef{}
}

// Get returns the category and true, or the zero Category and false.
func (r CategoryRef) Get() (Category, bool) {
	if r.category == nil {
		return Category{}, false
	}
	return *r.category, true
}

func (r CategoryRef) IsResolved() bool {
	return r.category != nil
}

// EnrichedSection pairs a section with its resolved category.
type EnrichedSection struct {
	TimeSection
	Category CategoryRef
}

// CategoryName returns the category name or fallback for dangling references.
func (e EnrichedSection) CategoryName(fallback string) string {
	if c, ok := e.Category.Get(); ok {
		return c.Name
	}
	return fallback
}
