package blocklist

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchplus/watchplus/internal/platform/httpx"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

// Handler exposes blocklist administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    roles.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth roles.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: auth}
}

// MountRoutes registers blocklist routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRank(roles.RankAdmin))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapManageBlockedDomains))
		r.Post("/", h.block)
		r.Delete("/{domain}", h.unblock)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), roles.CallerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list blocked domains", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"domains": records})
}

type blockRequest struct {
	Domain string `json:"domain"`
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	record, err := h.service.Block(r.Context(), roles.CallerFromContext(r.Context()), req.Domain)
	if err != nil {
		h.respondError(w, "block domain", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	err := h.service.Unblock(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "domain"))
	if err != nil {
		h.respondError(w, "unblock domain", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, rules.ErrDenied):
		httpx.RespondError(w, httpx.ErrPermissionDenied)
	case errors.Is(err, ErrInvalidDomain):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrAlreadyBlocked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
