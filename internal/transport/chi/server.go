package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dictcache/internal/domain"
	"github.com/kailas-cloud/dictcache/internal/domain/schema/field"
	logpkg "github.com/kailas-cloud/dictcache/internal/logger"
	healthuc "github.com/kailas-cloud/dictcache/internal/usecase/health"
)

// StatusHeader marks responses served from stale or empty data after a failed refetch.
const StatusHeader = "X-Dictionary-Status"

// Error codes returned in errorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeDictionaryNotFound  = "dictionary_not_found"
	CodeFieldNotFound       = "field_not_found"
	CodeSchemaUnavailable   = "schema_unavailable"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternalError       = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dictionaryConfig struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type structureResponse struct {
	Fields      []field.Structure      `json:"fields"`
	EmptyRecord map[string]field.Value `json:"empty_record"`
	LastUpdated time.Time              `json:"last_updated"`
}

type preloadResponse struct {
	Total             int      `json:"total"`
	FailedCollections []string `json:"failed_collections"`
	FailedSchemas     []string `json:"failed_schemas"`
	DurationMs        int64    `json:"duration_ms"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Collections int               `json:"cached_collections"`
	Schemas     int               `json:"cached_schemas"`
}

// Server serves the dictionary cache over HTTP.
type Server struct {
	dictionaries  Dictionaries
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP gateway.
func NewServer(dictionaries Dictionaries, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dictionaries: dictionaries,
		health:       health,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownDictionary, http.StatusNotFound, CodeDictionaryNotFound),
		sentinelHandler(domain.ErrFieldNotFound, http.StatusNotFound, CodeFieldNotFound),
		sentinelHandler(domain.ErrSchemaUnavailable, http.StatusBadGateway, CodeSchemaUnavailable),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, CodeUpstreamUnavailable),
	}
	return s
}

// Routes registers the gateway endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/dictionaries", func(r chi.Router) {
		r.Get("/", s.ListDictionaries)
		r.Post("/preload", s.PreloadAll)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.GetDictionary)
			r.Get("/list", s.GetDictionaryAsList)
			r.Get("/items/{id}", s.GetDictionaryItem)
			r.Post("/refresh", s.RefreshDictionary)
			r.Get("/structure", s.GetDictionaryStructure)
			r.Get("/structure/fields/{field}", s.GetStructureField)
		})
	})
}

// ListDictionaries handles GET /dictionaries.
func (s *Server) ListDictionaries(w http.ResponseWriter, _ *http.Request) {
	entries := s.dictionaries.Config()
	items := make([]dictionaryConfig, len(entries))
	for i, e := range entries {
		items[i] = dictionaryConfig{Name: e.Name, Path: e.Path, TTLSeconds: int64(e.TTL / time.Second)}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetDictionary handles GET /dictionaries/{name}.
func (s *Server) GetDictionary(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	force, ok := s.bindForce(w, r)
	if !ok {
		return
	}

	data, err := s.dictionaries.GetDictionary(r.Context(), name, force)
	s.writeCollection(w, r, data, err)
}

// GetDictionaryAsList handles GET /dictionaries/{name}/list.
func (s *Server) GetDictionaryAsList(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	var depth int
	if err := bindQuery(r, "depth", &depth); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid depth")
		return
	}

	data, err := s.dictionaries.GetDictionaryAsList(r.Context(), name, depth)
	s.writeCollection(w, r, data, err)
}

// GetDictionaryItem handles GET /dictionaries/{name}/items/{id}.
func (s *Server) GetDictionaryItem(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	var id string
	if err := bindPath(r, "id", &id); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid item id")
		return
	}

	data, err := s.dictionaries.GetDictionaryItemByID(r.Context(), name, id)
	s.writeCollection(w, r, data, err)
}

// RefreshDictionary handles POST /dictionaries/{name}/refresh.
func (s *Server) RefreshDictionary(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	var withSchema bool
	if err := bindQuery(r, "schema", &withSchema); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid schema flag")
		return
	}

	data, err := s.dictionaries.ForceRefresh(r.Context(), name)
	if err == nil && withSchema {
		if _, serr := s.dictionaries.GetDictionaryStructure(r.Context(), name, true); serr != nil {
			s.handleDomainError(w, r, serr)
			return
		}
	}
	s.writeCollection(w, r, data, err)
}

// GetDictionaryStructure handles GET /dictionaries/{name}/structure.
func (s *Server) GetDictionaryStructure(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	force, ok := s.bindForce(w, r)
	if !ok {
		return
	}

	entry, err := s.dictionaries.GetDictionaryStructure(r.Context(), name, force)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, structureResponse{
		Fields:      entry.Fields(),
		EmptyRecord: entry.EmptyRecord(),
		LastUpdated: entry.LastUpdated().UTC(),
	})
}

// GetStructureField handles GET /dictionaries/{name}/structure/fields/{field}.
func (s *Server) GetStructureField(w http.ResponseWriter, r *http.Request) {
	name, ok := s.bindName(w, r)
	if !ok {
		return
	}
	var fieldName string
	if err := bindPath(r, "field", &fieldName); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid field name")
		return
	}

	f, err := s.dictionaries.GetModelStructureField(r.Context(), name, fieldName)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PreloadAll handles POST /dictionaries/preload.
func (s *Server) PreloadAll(w http.ResponseWriter, r *http.Request) {
	report := s.dictionaries.PreloadAll(r.Context())
	writeJSON(w, http.StatusOK, preloadResponse{
		Total:             report.Total,
		FailedCollections: nonNil(report.FailedCollections),
		FailedSchemas:     nonNil(report.FailedSchemas),
		DurationMs:        report.Duration.Milliseconds(),
	})
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

	writeJSON(w, httpStatus, healthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		Collections: report.Collections,
		Schemas:     report.Schemas,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// writeCollection writes a dictionary body. Failures that still produced a
// usable body are served with StatusHeader set to degraded.
func (s *Server) writeCollection(w http.ResponseWriter, r *http.Request, data json.RawMessage, err error) {
	if err != nil {
		if errors.Is(err, domain.ErrUnknownDictionary) {
			s.handleDomainError(w, r, err)
			return
		}
		logpkg.FromContext(r.Context(), s.logger).Warn("serving degraded dictionary", zap.Error(err))
		w.Header().Set(StatusHeader, "degraded")
	}
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) bindName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var name string
	if err := bindPath(r, "name", &name); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid dictionary name")
		return "", false
	}
	return name, true
}

func (s *Server) bindForce(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var force bool
	if err := bindQuery(r, "force", &force); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid force flag")
		return false, false
	}
	return force, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage("[]")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnknownDictionary,
		domain.ErrFieldNotFound,
		domain.ErrSchemaUnavailable,
		domain.ErrUpstreamUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
