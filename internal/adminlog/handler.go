package adminlog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchplus/watchplus/internal/platform/httpx"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

// Handler exposes audit-review endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: auth}
}

// MountRoutes registers audit-log routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapViewAdminLogs))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapMutateAdminLogs))
		r.Post("/{id}/correct", h.correct)
		r.Delete("/{id}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := ListFilters{
		ActorUID:  r.URL.Query().Get("actor"),
		TargetUID: r.URL.Query().Get("target"),
		Action:    r.URL.Query().Get("action"),
		Page:      queryInt(r, "page"),
		PageSize:  queryInt(r, "page_size"),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			f.From = ts
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			f.To = ts
		}
	}

	result, err := h.service.List(r.Context(), roles.CallerFromContext(r.Context()), f)
	if err != nil {
		h.respondError(w, "list admin logs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type correctRequest struct {
	Note string `json:"note" validate:"required,max=1000"`
}

func (h *Handler) correct(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Note == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "note is required")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.service.Correct(r.Context(), roles.CallerFromContext(r.Context()), id, req.Note); err != nil {
		h.respondError(w, "correct admin log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "corrected"})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), roles.CallerFromContext(r.Context()), id); err != nil {
		h.respondError(w, "delete admin log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, rules.ErrDenied):
		httpx.RespondError(w, httpx.ErrPermissionDenied)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
