package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"tempo/internal/charts"
	tlog "tempo/internal/log"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, owner string) {
	params, err := ParseRangeParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	stats, err := s.svc.GetStats(ctx, owner, params.From, params.To, params.CategoryID)
	if err != nil {
		DomainError(r, tlog.OpStats, err).Write(w)
		return
	}
	NewJSONResponse().JSON(toStatsJSON(stats)).Write(w)
}

// handleStatsChart renders the category breakdown as a PNG pie chart.
// An empty breakdown yields 204.
func (s *Server) handleStatsChart(w http.ResponseWriter, r *http.Request, owner string) {
	query := r.URL.Query()
	params, err := ParseRangeParams(query)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	opts := charts.DefaultPieOptions()
	opts.Title = sanitizeInput(query.Get("title"))
	for key, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		if v := query.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 100 || n > 2000 {
				BadRequestError("invalid " + key + ": must be between 100 and 2000").Write(w)
				return
			}
			*dst = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	stats, err := s.svc.GetStats(ctx, owner, params.From, params.To, params.CategoryID)
	if err != nil {
		DomainError(r, tlog.OpStats, err).Write(w)
		return
	}

	png, err := charts.CategoryPie(stats, opts)
	if errors.Is(err, charts.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		DomainError(r, tlog.OpStats, err).Write(w)
		return
	}
	NewJSONResponse().Bytes("image/png", png).Write(w)
}
