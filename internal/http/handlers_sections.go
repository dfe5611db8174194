package http

import (
	"context"
	"errors"
	"net/http"

	"tempo/internal/core"
	tlog "tempo/internal/log"
)

type createSectionRequest struct {
	CategoryID string  `json:"categoryId"`
	Title      *string `json:"title"`
	StartTime  *int64  `json:"startTime"`
	EndTime    *int64  `json:"endTime"`
}

type updateSectionRequest struct {
	CategoryID *string `json:"categoryId"`
	Title      *string `json:"title"`
	StartTime  *int64  `json:"startTime"`
	EndTime    *int64  `json:"endTime"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request, owner string) {
	params, err := ParseRangeParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	secs, err := s.svc.ListSectionsByRange(ctx, owner, params.From, params.To, params.CategoryID)
	if err != nil {
		DomainError(r, tlog.OpList, err).Write(w)
		return
	}
	NewJSONResponse().JSON(toSectionsJSON(secs)).Write(w)
}

func (s *Server) handleListSectionsByMonth(w http.ResponseWriter, r *http.Request, owner string) {
	params, err := ParseMonthParams(r.URL.Query(), s.now(), s.svc.Location())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	secs, err := s.svc.ListSectionsByMonth(ctx, owner, params.Year, params.Month)
	if err != nil {
		DomainError(r, tlog.OpList, err).Write(w)
		return
	}
	NewJSONResponse().JSON(toSectionsJSON(secs)).Write(w)
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request, owner string) {
	sec, err := s.ownedSection(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		DomainError(r, tlog.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().JSON(toSectionJSON(sec)).Write(w)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request, owner string) {
	var req createSectionRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.StartTime == nil || req.EndTime == nil {
		BadRequestError("startTime and endTime are required").Write(w)
		return
	}

	id, err := s.svc.CreateSection(r.Context(), core.NewSection{
		OwnerID:    owner,
		CategoryID: sanitizeInput(req.CategoryID),
		Title:      sanitizePtr(req.Title),
		StartTime:  *req.StartTime,
		EndTime:    *req.EndTime,
	})
	if err != nil {
		DomainError(r, tlog.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/sections/"+id).
		JSON(idJSON{ID: id}).
		Write(w)
}

// handleUpdateSection applies a partial update. Moving a section requires
// the target category to belong to the caller.
func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	var req updateSectionRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if _, err := s.ownedSection(r.Context(), id, owner); err != nil {
		DomainError(r, tlog.OpUpdate, err).Write(w)
		return
	}

	patch := core.SectionPatch{
		CategoryID: sanitizePtr(req.CategoryID),
		Title:      sanitizePtr(req.Title),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	if patch.CategoryID != nil {
		if _, err := s.ownedCategory(r.Context(), *patch.CategoryID, owner); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				err = core.ErrInvalidCategory
			}
			DomainError(r, tlog.OpUpdate, err).Write(w)
			return
		}
	}

	if err := s.svc.UpdateSection(r.Context(), id, patch); err != nil {
		DomainError(r, tlog.OpUpdate, err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSection succeeds for ids that no longer exist.
func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	if _, err := s.ownedSection(r.Context(), id, owner); err != nil && !errors.Is(err, errAbsent) {
		DomainError(r, tlog.OpDelete, err).Write(w)
		return
	}
	if err := s.svc.DeleteSection(r.Context(), id); err != nil {
		DomainError(r, tlog.OpDelete, err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownedSection(ctx context.Context, id, owner string) (core.TimeSection, error) {
	sec, err := s.svc.GetSection(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.TimeSection{}, errAbsent
	}
	if err != nil {
		return core.TimeSection{}, err
	}
	if sec.OwnerID != owner {
		return core.TimeSection{}, core.ErrNotFound
	}
	return sec, nil
}
