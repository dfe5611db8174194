package http

import (
	"context"
	"errors"
	"net/http"

	"tempo/internal/core"
	tlog "tempo/internal/log"
)

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner string) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	cats, err := s.svc.ListCategories(ctx, owner)
	if err != nil {
		DomainError(r, tlog.OpList, err).Write(w)
		return
	}
	NewJSONResponse().JSON(toCategoriesJSON(cats)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	var req createCategoryRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	id, err := s.svc.CreateCategory(r.Context(), owner, sanitizeInput(req.Name), sanitizeInput(req.Color))
	if err != nil {
		DomainError(r, tlog.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/"+id).
		JSON(idJSON{ID: id}).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	var req updateCategoryRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if _, err := s.ownedCategory(r.Context(), id, owner); err != nil {
		DomainError(r, tlog.OpUpdate, err).Write(w)
		return
	}

	patch := core.CategoryPatch{Name: sanitizePtr(req.Name), Color: sanitizePtr(req.Color)}
	if err := s.svc.UpdateCategory(r.Context(), id, patch); err != nil {
		DomainError(r, tlog.OpUpdate, err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteCategory succeeds for ids that no longer exist.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	cascade, err := ParseBoolParam(r.URL.Query(), "cascade", false)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if _, err := s.ownedCategory(r.Context(), id, owner); err != nil && !errors.Is(err, errAbsent) {
		DomainError(r, tlog.OpDelete, err).Write(w)
		return
	}
	if err := s.svc.DeleteCategory(r.Context(), id, cascade); err != nil {
		DomainError(r, tlog.OpDelete, err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errAbsent marks a record that does not exist at all, as opposed to one
// owned by someone else. It matches core.ErrNotFound.
var errAbsent = &absentError{}

type absentError struct{}

func (*absentError) Error() string        { return core.ErrNotFound.Error() }
func (*absentError) Is(target error) bool { return target == core.ErrNotFound }

// ownedCategory loads a category and hides categories of other owners behind ErrNotFound.
func (s *Server) ownedCategory(ctx context.Context, id, owner string) (core.Category, error) {
	c, err := s.svc.GetCategory(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, errAbsent
	}
	if err != nil {
		return core.Category{}, err
	}
	if c.OwnerID != owner {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func sanitizePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := sanitizeInput(*p)
	return &v
}
