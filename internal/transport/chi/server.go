package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	healthuc "github.com/kailas-cloud/dishfinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/dishfinder/internal/usecase/search"
	"github.com/kailas-cloud/dishfinder/internal/vectorindex"
)

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeItemNotFound         ErrorCode = "item_not_found"
	CodeIndexUnavailable     ErrorCode = "index_unavailable"
	CodeEmbeddingUnavailable ErrorCode = "embedding_unavailable"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ItemResponse is returned by PUT /items/{id}.
type ItemResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	IndexRows int               `json:"index_rows"`
}

// Searcher runs the query pipeline.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) searchuc.Response
}

// Catalog applies single catalog edits.
type Catalog interface {
	Index(ctx context.Context, item domain.Item) (bool, error)
	Delete(ctx context.Context, id string) error
}

// IndexStats exposes index statistics.
type IndexStats interface {
	Stats() vectorindex.Stats
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the search API.
type Server struct {
	search        Searcher
	catalog       Catalog
	index         IndexStats
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	catalog Catalog,
	index IndexStats,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:  search,
		catalog: catalog,
		index:   index,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, CodeItemNotFound),
		sentinelHandler(domain.ErrInvalidItem, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrSnapshotUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeEmbeddingUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/search", s.SearchGet)
	r.Post("/search", s.SearchPost)
	r.Put("/items/{id}", s.PutItem)
	r.Delete("/items/{id}", s.DeleteItem)
	r.Get("/index/stats", s.IndexStats)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchGet handles GET /search?q=...&max_results=&vegan=&spice_max=&category=.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	var (
		q          = r.URL.Query()
		text       string
		maxResults *int
		category   *string
		req        searchuc.Request
	)

	// Optional parameters bind into pointers; nil means absent.
	if err := runtime.BindQueryParameter("form", true, true, "q", q, &text); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "max_results", q, &maxResults); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter max_results: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "vegan", q, &req.Filters.Vegan); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter vegan: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "spice_max", q, &req.Filters.SpiceMax); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter spice_max: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", q, &category); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter category: "+err.Error())
		return
	}

	req.Text = text
	if maxResults != nil {
		req.MaxResults = *maxResults
	}
	if category != nil {
		req.Filters.Category = *category
	}

	s.runSearch(w, r, req)
}

// SearchPost handles POST /search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchuc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req searchuc.Request) {
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if req.MaxResults < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "max_results must be non-negative")
		return
	}

	// Pipeline failures are part of the body; the request itself succeeded.
	writeJSON(w, http.StatusOK, s.search.Search(r.Context(), req))
}

// PutItem handles PUT /items/{id}.
func (s *Server) PutItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var item domain.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if item.ID != "" && item.ID != id {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "body id does not match path id")
		return
	}
	item.ID = id

	created, err := s.catalog.Index(r.Context(), item)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ItemResponse{ID: id, Created: created})
}

// DeleteItem handles DELETE /items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IndexStats handles GET /index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.index.Stats())
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		IndexRows: report.IndexRows,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrInvalidItem,
		domain.ErrSnapshotUnavailable,
		domain.ErrEmbeddingUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
