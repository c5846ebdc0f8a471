// Package api exposes the catalog and the dialogue orchestrator over HTTP
// and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/booktalk/internal/catalog"
	"github.com/kalambet/booktalk/internal/dialogue"
	"github.com/kalambet/booktalk/internal/metrics"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds what the HTTP handler serves from.
type Deps struct {
	Store          *catalog.Store
	Query          *catalog.Query
	Chat           *dialogue.Orchestrator
	Metrics        *metrics.Metrics // optional; /metrics is not mounted when nil
	AllowedOrigins []string
	TopLimit       int // default for /api/books when ?limit= is absent
}

type chatResponse struct {
	Message dialogue.Message `json:"message"`
}

// NewHandler returns the booktalk REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsMiddleware(deps.AllowedOrigins))

	r.Get("/health", handleHealth(deps))
	r.Get("/api/categories", handleCategories(deps))
	r.Get("/api/books", handleBooks(deps))
	r.Post("/api/chat", handleChat(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"books":  deps.Store.Len(),
		})
	}
}

func handleCategories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Metrics.CountQuery("categories")
		writeJSON(w, http.StatusOK, map[string]any{
			"categories": deps.Query.Categories(),
		})
	}
}

func handleBooks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := topLimit(deps.TopLimit)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a non-negative integer, got %q", raw)
				return
			}
			if n > 0 {
				limit = n
			}
		}

		deps.Metrics.CountQuery("top_books")
		books := deps.Query.TopInCategory(r.URL.Query().Get("category"), limit)
		writeJSON(w, http.StatusOK, map[string]any{"books": books})
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req dialogue.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Messages == nil {
			writeError(w, &dialogue.ValidationError{Field: "messages", Reason: "is required"})
			return
		}

		reply, err := deps.Chat.Respond(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Message: reply})
	}
}

// topLimit is the per-category default page size: the configured value, or
// catalog.DefaultLimit when none is set.
func topLimit(configured int) int {
	if configured <= 0 {
		return catalog.DefaultLimit
	}
	return configured
}

// writeError maps the dialogue error kinds onto status codes. Anything
// unrecognised is reported as a server error.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *dialogue.ValidationError
		nerr *dialogue.NotFoundError
		berr *dialogue.BackendError
	)
	switch {
	case errors.As(err, &verr):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", verr.Error())
	case errors.As(err, &nerr):
		httpError(w, http.StatusNotFound, "not_found_error", "Book not found")
	case errors.As(err, &berr):
		slog.Error("chat turn failed", "error", berr.Err)
		httpError(w, http.StatusInternalServerError, "api_error", "%s", berr.Error())
	default:
		slog.Error("unexpected chat error", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// corsMiddleware reflects allowed origins back with credentials enabled and
// short-circuits preflight requests.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed[origin] || allowed["*"]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")

				if r.Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					} else {
						h.Set("Access-Control-Allow-Headers", "*")
					}
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
