package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/mode"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/query"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
	analyticsuc "github.com/kailas-cloud/roadsafe/internal/usecase/analytics"
	compareuc "github.com/kailas-cloud/roadsafe/internal/usecase/compare"
	healthuc "github.com/kailas-cloud/roadsafe/internal/usecase/health"
	planneruc "github.com/kailas-cloud/roadsafe/internal/usecase/planner"
	searchuc "github.com/kailas-cloud/roadsafe/internal/usecase/search"
)

const (
	maxBodyBytes = 1 << 20

	// statusClientClosedRequest is written when the caller went away
	// before the work finished.
	statusClientClosedRequest = 499
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search and decision-support API over chi.
type Server struct {
	search        *searchuc.Service
	planner       *planneruc.Service
	compare       *compareuc.Service
	analytics     *analyticsuc.Service
	health        *healthuc.Service
	source        catalog.Source
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. source is re-read on catalog reload.
func NewServer(
	search *searchuc.Service,
	planner *planneruc.Service,
	compare *compareuc.Service,
	analytics *analyticsuc.Service,
	health *healthuc.Service,
	source catalog.Source,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		search:   search,
		planner:  planner,
		compare:   compare,
		analytics: analytics,
		health:    health,
		source:    source,
		validate:  v,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrCatalogLoad, http.StatusInternalServerError, ErrorResponseCodeCatalogLoadFailed),
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/search", s.SearchGet)
		r.Post("/search", s.SearchPost)
		r.Get("/interventions/{id}", s.GetIntervention)
		r.Post("/plans/budget", s.OptimizeBudget)
		r.Post("/comparisons", s.CompareInterventions)
		r.Post("/catalog/reload", s.ReloadCatalog)
		r.Get("/catalog/stats", s.CatalogStats)
	})
}

// SearchGet handles GET /v1/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	values := r.URL.Query()
	binds := []struct {
		name string
		dest any
	}{
		{"q", &params.Q},
		{"category", &params.Category},
		{"speed_min", &params.SpeedMin},
		{"speed_max", &params.SpeedMax},
		{"tags", &params.Tags},
		{"max_results", &params.MaxResults},
		{"strategy", &params.Strategy},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, values, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
				"Invalid format for parameter "+b.name+": "+err.Error())
			return
		}
	}

	var tags []string
	if params.Tags != nil {
		tags = *params.Tags
	}
	q, err := s.search.NewQuery(
		deref(params.Q), deref(params.Category),
		params.SpeedMin, params.SpeedMax, tags, deref(params.MaxResults),
	)
	if err == nil {
		q, err = withStrategy(q, deref(params.Strategy))
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.runSearch(w, r, q)
}

// SearchPost handles POST /v1/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := s.search.NewQuery(req.Query, req.Category, req.SpeedMin, req.SpeedMax, req.Tags, req.MaxResults)
	if err == nil {
		q, err = withStrategy(q, req.Strategy)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.runSearch(w, r, q)
}

func withStrategy(q query.Query, strategy string) (query.Query, error) {
	m, err := mode.Parse(strategy)
	if err != nil {
		return q, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return q.WithMode(m) //nolint:wrapcheck // already an invalid-query error
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, q query.Query) {
	start := time.Now()
	ctx, usage := domain.NewContextWithUsage(r.Context())
	set, err := s.search.Search(ctx, q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	setCacheHeader(w, set)
	resp := searchResponse(q, set)
	resp.QueryTimeMS = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

// searchResponse renders set from the detail attached when it was computed,
// so the items always agree with set.CatalogVersion().
func searchResponse(q query.Query, set result.Set) SearchResponse {
	items := make([]SearchResultItem, 0, set.Len())
	for _, c := range set.Candidates() {
		items = append(items, searchResultToDTO(c))
	}
	strategies := set.Strategies()
	if strategies == nil {
		strategies = []string{}
	}
	return SearchResponse{
		Items:          items,
		Total:          len(items),
		Mode:           string(q.Mode()),
		Strategies:     strategies,
		Degraded:       set.Degraded(),
		FromCache:      set.FromCache(),
		Fingerprint:    set.Fingerprint(),
		CatalogVersion: set.CatalogVersion(),
	}
}

// GetIntervention handles GET /v1/interventions/{id}.
func (s *Server) GetIntervention(w http.ResponseWriter, r *http.Request) {
	iv, err := s.search.Lookup(chirouter.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, interventionToDTO(iv))
}

// OptimizeBudget handles POST /v1/plans/budget.
func (s *Server) OptimizeBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetPlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	cands, err := s.resolve(req.Candidates)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	optimize := true
	if req.Optimize != nil {
		optimize = *req.Optimize
	}
	plan, err := s.planner.Optimize(r.Context(), cands, req.Budget, optimize)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planToDTO(plan))
}

// CompareInterventions handles POST /v1/comparisons.
func (s *Server) CompareInterventions(w http.ResponseWriter, r *http.Request) {
	var req ComparisonRequest
	if !s.decode(w, r, &req) {
		return
	}
	cands, err := s.resolve(req.Candidates)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	res, err := s.compare.Compare(r.Context(), cands)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparisonToDTO(res))
}

// ReloadCatalog handles POST /v1/catalog/reload.
func (s *Server) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusInternalServerError, ErrorResponseCodeCatalogLoadFailed, "no catalog source configured")
		return
	}
	snap, err := s.search.Reload(r.Context(), s.source)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reloadToDTO(snap))
}

// CatalogStats handles GET /v1/catalog/stats.
func (s *Server) CatalogStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthToDTO(report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func (s *Server) resolve(refs []CandidateRef) ([]decision.Candidate, error) {
	ids := make([]string, len(refs))
	confs := make([]float64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
		confs[i] = ref.Confidence
	}
	return s.search.Resolve(ids, confs) //nolint:wrapcheck // domain errors map to status codes
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			parts[i] = field + " failed " + fe.Tag() + "=" + fe.Param()
		} else {
			parts[i] = field + " failed " + fe.Tag()
		}
	}
	return strings.Join(parts, "; ")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func setCacheHeader(w http.ResponseWriter, set result.Set) {
	if set.FromCache() {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation and lookup
// errors carry only caller-supplied detail; everything else collapses to
// its sentinel.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingUnavailable,
		domain.ErrCatalogLoad,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("request canceled", zap.Error(err))
		writeError(w, statusClientClosedRequest, ErrorResponseCodeRequestCanceled, "request canceled")
		return
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
