package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tempo/internal/cache"
	"tempo/internal/core"
	tlog "tempo/internal/log"
	"tempo/internal/middleware/ratelimit"
	"tempo/internal/middleware/security"
	"tempo/internal/middleware/trace"
)

// TimeService is the application surface the API is built on.
type TimeService interface {
	Ping(ctx context.Context) error
	Location() *time.Location

	ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	CreateCategory(ctx context.Context, ownerID, name, color string) (string, error)
	UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string, cascade bool) error

	GetSection(ctx context.Context, id string) (core.TimeSection, error)
	ListSectionsByRange(ctx context.Context, ownerID string, from, to int64, categoryID *string) ([]core.EnrichedSection, error)
	ListSectionsByMonth(ctx context.Context, ownerID string, year, month int) ([]core.EnrichedSection, error)
	CreateSection(ctx context.Context, n core.NewSection) (string, error)
	UpdateSection(ctx context.Context, id string, patch core.SectionPatch) error
	DeleteSection(ctx context.Context, id string) error

	GetStats(ctx context.Context, ownerID string, from, to int64, categoryID *string) (core.Stats, error)
}

// Options configures NewServer. Zero values select defaults.
type Options struct {
	Logger             *tlog.Logger
	RateLimitPerMinute int
	// StatsCache is only read for /metrics; the service owns invalidation.
	StatsCache *cache.StatsCache
	Now        func() time.Time
}

// Server is the JSON API over a TimeService.
type Server struct {
	http.Server

	svc        TimeService
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	detector   *security.Detector
	statsCache *cache.StatsCache
	cacheMgr   *cache.Manager
	now        func() time.Time
	started    time.Time

	shutdownOnce sync.Once
}

// readTimeout bounds storage reads made on behalf of one request.
const readTimeout = 7 * time.Second

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc TimeService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = tlog.New(tlog.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		svc:        svc,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:     trace.NewMiddleware(logger, detector.ExtractClientIP),
		detector:   detector,
		statsCache: opts.StatsCache,
		now:        now,
		started:    now(),
	}

	if s.statsCache != nil {
		s.cacheMgr = cache.NewManager()
		s.cacheMgr.Register(s.statsCache)
		s.cacheMgr.StartCleanup(10 * time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("GET /api/categories", s.withOwner(s.handleListCategories))
	mux.Handle("POST /api/categories", s.withOwner(s.handleCreateCategory))
	mux.Handle("PATCH /api/categories/{id}", s.withOwner(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", s.withOwner(s.handleDeleteCategory))

	mux.Handle("GET /api/sections", s.withOwner(s.handleListSections))
	mux.Handle("GET /api/sections/month", s.withOwner(s.handleListSectionsByMonth))
	mux.Handle("GET /api/sections/{id}", s.withOwner(s.handleGetSection))
	mux.Handle("POST /api/sections", s.withOwner(s.handleCreateSection))
	mux.Handle("PATCH /api/sections/{id}", s.withOwner(s.handleUpdateSection))
	mux.Handle("DELETE /api/sections/{id}", s.withOwner(s.handleDeleteSection))

	mux.Handle("GET /api/stats", s.withOwner(s.handleStats))
	mux.Handle("GET /api/stats/chart.png", s.withOwner(s.handleStatsChart))

	var h http.Handler = mux
	h = s.limiter.Middleware(rateLimitKey(detector), func(w http.ResponseWriter, r *http.Request) {
		tlog.FromContext(r.Context()).WithComponent(tlog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			tlog.FieldOwnerID, OwnerID(r), tlog.FieldMethod, r.Method, tlog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateLimitKey limits per owner when the header is present, else per client address.
func rateLimitKey(d *security.Detector) func(*http.Request) string {
	return func(r *http.Request) string {
		if owner := OwnerID(r); owner != "" {
			return "owner:" + owner
		}
		return "ip:" + d.ExtractClientIP(r)
	}
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner rejects requests without an owner header.
func (s *Server) withOwner(next ownerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := OwnerID(r)
		if owner == "" {
			UnauthorizedError("missing " + HeaderOwnerID + " header").Write(w)
			return
		}
		l := tlog.FromContext(r.Context()).With(tlog.FieldOwnerID, owner)
		next(w, r.WithContext(tlog.NewContext(r.Context(), l)), owner)
	})
}

// Shutdown stops background goroutines and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.cacheMgr != nil {
			s.cacheMgr.Stop()
		}
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
