// Package api provides the JSON HTTP handlers over the content catalog.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"media-source-go/pkg/appctx"
	"media-source-go/pkg/category"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/services"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

// reservedParams are query parameters that never count as category selections.
var reservedParams = map[string]bool{"page": true, "api_password": true}

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /info", h.handleInfo)
	mux.HandleFunc("GET /api/info", h.handleInfo)

	mux.HandleFunc("GET /api/sources", h.handleSources)
	mux.HandleFunc("GET /api/sources/{id}", h.handleSource)
	mux.HandleFunc("GET /api/sources/{id}/home", h.handleHome)
	mux.HandleFunc("GET /api/sources/{id}/detail", h.handleDetail)
	mux.HandleFunc("GET /api/sources/{id}/search", h.handleSearch)
	mux.HandleFunc("GET /api/sources/{id}/categories", h.handleCategories)
	mux.HandleFunc("GET /api/sources/{id}/categories/{key}/options", h.handleGroupOptions)
	mux.HandleFunc("GET /api/sources/{id}/category", h.handleCategory)
	mux.HandleFunc("GET /api/sources/{id}/video", h.handleVideo)
	mux.HandleFunc("GET /api/sources/{id}/timeline", h.handleTimeline)
}

func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "running",
		"version":  appctx.Version,
		"base_url": h.ctx.Config.BaseURL,
		"uptime":   time.Since(h.ctx.StartedAt).Round(time.Second).String(),
		"sources":  len(h.ctx.Catalog.Sources()),
	})
}

func (h *Handlers) handleSources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctx.Catalog.Sources())
}

func (h *Handlers) handleSource(w http.ResponseWriter, r *http.Request) {
	info, err := h.ctx.Catalog.Source(r.PathValue("id"))
	h.respond(w, r, info, err)
}

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	groups, err := h.ctx.Catalog.Home(r.Context(), r.PathValue("id"))
	h.respond(w, r, groups, err)
}

func (h *Handlers) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "id parameter required")
		return
	}
	d, err := h.ctx.Catalog.Detail(r.Context(), r.PathValue("id"), id)
	h.respond(w, r, d, err)
}

// handleSearch returns one page of results with the keys of its neighbours.
func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	page := types.PageNumber(r.URL.Query().Get("page"))
	res, err := h.ctx.Catalog.SearchLoader(r.PathValue("id"), q).Load(r.Context(), page)
	h.respond(w, r, res, err)
}

func (h *Handlers) handleCategories(w http.ResponseWriter, r *http.Request) {
	groups, err := h.ctx.Catalog.CategoryGroups(r.Context(), r.PathValue("id"))
	h.respond(w, r, groups, err)
}

// handleGroupOptions resolves one group's options. Query parameters carry
// the selections of the groups it depends on.
func (h *Handlers) handleGroupOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.ctx.Catalog.GroupOptions(r.Context(), r.PathValue("id"), r.PathValue("key"), selections(r))
	h.respond(w, r, opts, err)
}

func (h *Handlers) handleCategory(w http.ResponseWriter, r *http.Request) {
	page := types.PageNumber(r.URL.Query().Get("page"))
	res, err := h.ctx.Catalog.CategoryLoader(r.PathValue("id"), selections(r)).Load(r.Context(), page)
	h.respond(w, r, res, err)
}

func (h *Handlers) handleVideo(w http.ResponseWriter, r *http.Request) {
	content := r.URL.Query().Get("content")
	episode := r.URL.Query().Get("episode")
	if content == "" || episode == "" {
		h.writeError(w, http.StatusBadRequest, "content and episode parameters required")
		return
	}
	res, err := h.ctx.Catalog.VideoURL(r.Context(), r.PathValue("id"), content, episode)
	h.respond(w, r, res, err)
}

func (h *Handlers) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.ctx.Catalog.Timeline(r.Context(), r.PathValue("id"))
	h.respond(w, r, tl, err)
}

// selections turns the query string into a category selection. A key
// present with an empty value selects "no constraint".
func selections(r *http.Request) types.CategoryQuery {
	q := make(types.CategoryQuery)
	for k, v := range r.URL.Query() {
		if reservedParams[k] || len(v) == 0 {
			continue
		}
		q[k] = v[0]
	}
	return q
}

// statusFor maps catalog errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, category.ErrDependencyUnselected):
		return http.StatusBadRequest
	}
	kind, ok := sourceerr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case sourceerr.KindUnknownSource:
		return http.StatusNotFound
	case sourceerr.KindUnsupported:
		return http.StatusNotImplemented
	case sourceerr.KindNetwork, sourceerr.KindMarkup, sourceerr.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
			logging.FromContextOr(r.Context(), h.log).WithError(err).Warn("request failed", "status", status)
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
