// Package api exposes the engine over HTTP and serves the built site.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
	"github.com/Bitlatte/readnext/internal/prefs"
	"github.com/Bitlatte/readnext/internal/progress"
)

// maxBodyBytes bounds request bodies of the write endpoints.
const maxBodyBytes = 64 << 10

// visitorCookieMaxAge keeps the visitor cookie for a year.
const visitorCookieMaxAge = 365 * 24 * 60 * 60

// Handler serves the readnext API.
type Handler struct {
	engine    *engine.Engine
	log       logger.Logger
	cookie    string
	outputDir string
}

// NewHandler returns a Handler. Visitors are identified by the cookie named
// cookieName; outputDir, when not empty, is served for every non-API path.
func NewHandler(e *engine.Engine, log logger.Logger, cookieName, outputDir string) *Handler {
	return &Handler{engine: e, log: log, cookie: cookieName, outputDir: outputDir}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", h.listPosts)
		r.Get("/posts/{slug}/related", h.related)
		r.Get("/posts/{slug}/outline", h.outline)
		r.Post("/posts/{slug}/progress", h.progress)
		r.Get("/profile", h.profile)
		r.Post("/events", h.recordEvent)
	})

	if h.outputDir != "" {
		r.NotFound(h.static)
	}
	return r
}

type postSummary struct {
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	Permalink string   `json:"permalink"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags"`
	Author    string   `json:"author,omitempty"`
}

func (h *Handler) listPosts(w http.ResponseWriter, _ *http.Request) {
	items := h.engine.Items()
	out := make([]postSummary, 0, len(items))
	for _, it := range items {
		out = append(out, postSummary{
			Slug: it.Slug, Title: it.Title, Permalink: it.Permalink,
			Category: it.Category, Tags: it.Tags, Author: it.Author,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) related(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	scored, err := h.engine.Related(r.Context(), h.visitor(w, r), chi.URLParam(r, "slug"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}

	out := make([]model.RelatedLink, 0, len(scored))
	for _, s := range scored {
		out = append(out, model.RelatedLink{
			Slug: s.Item.Slug, Title: s.Item.Title, Permalink: s.Item.Permalink,
			Category: s.Item.Category, Score: s.Score,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) outline(w http.ResponseWriter, r *http.Request) {
	toc, err := h.engine.Outline(chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if toc == nil {
		toc = []model.OutlineItem{}
	}
	writeJSON(w, http.StatusOK, toc)
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	var m progress.Metrics
	if !decode(w, r, &m) {
		return
	}
	res, err := h.engine.ObserveScroll(r.Context(), h.visitor(w, r), chi.URLParam(r, "slug"), m)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Profile(r.Context(), h.visitor(w, r)))
}

func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request) {
	var ev prefs.Event
	if !decode(w, r, &ev) {
		return
	}
	p, err := h.engine.Record(r.Context(), h.visitor(w, r), ev)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// visitor returns the caller's visitor id, issuing a new cookie when the
// request carries none.
func (h *Handler) visitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    id,
		Path:     "/",
		MaxAge:   visitorCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// static serves the built site without directory listings and with caching
// disabled, which suits local previews.
func (h *Handler) static(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") && r.URL.Path != "/" {
		if _, err := os.Stat(filepath.Join(h.outputDir, r.URL.Path, "index.html")); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	http.FileServer(http.Dir(h.outputDir)).ServeHTTP(w, r)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prefs.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
