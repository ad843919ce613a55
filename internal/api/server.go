// Package api exposes the HTTP interface for the domain intelligence
// service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"llmrank/internal/cache"
	"llmrank/internal/config"
	"llmrank/internal/intel"
	"llmrank/internal/policy/ratelimit"
	"llmrank/internal/telemetry"
)

// StatusReporter exposes the agent's point-in-time counters for the
// health endpoint.
type StatusReporter interface {
	Snapshot() intel.AgentSnapshot
}

// Server wires HTTP handlers to the intelligence store and the agent.
type Server struct {
	router  chi.Router
	store   intel.Store
	agent   StatusReporter
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. agent may
// be nil when the ingestion loop is disabled.
func NewServer(store intel.Store, agent StatusReporter, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		agent:  agent,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.Cache.Enabled {
		s.cache = cache.New(cfg.CacheTTL(), cfg.CacheCleanupInterval())
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{
			PerMinute: cfg.RateLimit.PerMinute,
			Burst:     cfg.RateLimit.Burst,
		})
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(authMiddleware(cfg.Auth.APIKey))
		}
		if s.limiter != nil {
			r.Use(rateLimitMiddleware(s.limiter))
		}
		r.Get("/domain/{domain}", s.domainDetail)

		r.Group(func(r chi.Router) {
			if s.cache != nil {
				r.Use(cacheMiddleware(s.cache))
			}
			r.Get("/domains", s.listDomains)
			r.Get("/categories", s.listCategories)
			r.Get("/search", s.search)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases server-owned resources such as the response cache.
func (s *Server) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service: serviceName,
		Version: serviceVersion,
		Status:  "active",
		Endpoints: map[string]string{
			"all_domains":    "/domains",
			"domain_details": "/domain/{domain}",
			"categories":     "/categories",
			"search":         "/search?q={query}",
			"health":         "/health",
			"metrics":        "/metrics",
		},
		Authentication: "Bearer token required",
	})
}

func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultDomainLimit, maxDomainLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	records, err := s.store.Domains(r.Context(), intel.DomainFilter{Category: category, Limit: limit})
	if err != nil {
		s.logger.Error("list domains failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load domains")
		return
	}

	// Unfiltered listings report the store's true cardinality even when
	// the page is truncated; filtered ones report the page itself.
	total := len(records)
	if category == "" {
		count, err := s.store.CountDomains(r.Context())
		if err != nil {
			s.logger.Error("count domains failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load domains")
			return
		}
		total = count
	}

	writeJSON(w, http.StatusOK, domainsResponse{
		TotalDomains:   total,
		Limit:          limit,
		CategoryFilter: category,
		Domains:        newDomainPayloads(records),
	})
}

func (s *Server) domainDetail(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "domain"))

	record, err := s.store.Domain(r.Context(), name)
	if errors.Is(err, intel.ErrDomainNotFound) {
		writeError(w, http.StatusNotFound, "Domain not found")
		return
	}
	if err != nil {
		s.logger.Error("load domain failed", zap.String("domain", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load domain")
		return
	}

	insights, err := s.store.InsightsForDomain(r.Context(), name, recentInsightLimit)
	if err != nil {
		s.logger.Error("load insights failed", zap.String("domain", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load insights")
		return
	}

	writeJSON(w, http.StatusOK, domainDetailResponse{
		domainPayload:          newDomainPayload(record),
		RecentInsights:         newInsightPayloads(insights),
		TotalInsightsAvailable: record.InsightsCount,
	})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.Categories(r.Context())
	if err != nil {
		s.logger.Error("list categories failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, newCategoryPayloads(summaries))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	matches, err := s.store.SearchDomains(r.Context(), q)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", q), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	total := len(matches)
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:      q,
		Results:    newDomainPayloads(matches),
		TotalCount: total,
		HasMore:    total > maxSearchResults,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "active"
	code := http.StatusOK

	var total int
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("store ping failed", zap.Error(err))
		status, dbStatus, code = "degraded", "error", http.StatusServiceUnavailable
	} else if total, err = s.store.CountDomains(r.Context()); err != nil {
		s.logger.Warn("count domains failed", zap.Error(err))
		status, dbStatus, code = "degraded", "error", http.StatusServiceUnavailable
	}

	agentStatus := string(intel.AgentStateDisabled)
	if s.agent != nil {
		agentStatus = string(s.agent.Snapshot().State)
	}

	writeJSON(w, code, healthResponse{
		Status:                status,
		Timestamp:             time.Now().UTC(),
		TotalDomainsAvailable: total,
		DatabaseConnection:    dbStatus,
		AgentStatus:           agentStatus,
		Version:               serviceVersion,
	})
}

// parseLimit reads the limit query parameter, clamping it to [1, max].
// An absent parameter falls back to def; a non-numeric one is an error.
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit < 1 {
		return 1, nil
	}
	if limit > max {
		return max, nil
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
