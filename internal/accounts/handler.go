package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/watchplus/watchplus/internal/platform/httpx"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

// Handler manages account administration endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	auth        roles.Middleware
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth roles.Middleware, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		auth:        auth,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuthenticated)
		r.Get("/me", h.me)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRank(roles.RankAdmin))
		r.Get("/", h.list)
		r.Get("/{uid}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapAssignRole))
		r.Post("/{uid}/role", h.assignRole)
		r.Post("/{uid}/revoke", h.revokeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapToggleActive))
		r.Post("/{uid}/active", h.toggleActive)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller := roles.CallerFromContext(r.Context())
	account, err := h.service.Get(r.Context(), caller, caller.UID)
	if err != nil {
		h.respondError(w, "load own account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := ListFilters{
		Search:   r.URL.Query().Get("q"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "page_size"),
	}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := roles.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown role filter")
			return
		}
		f.Role = role
	}
	accounts, total, err := h.service.List(r.Context(), roles.CallerFromContext(r.Context()), f)
	if err != nil {
		h.respondError(w, "list accounts", err)
		return
	}
	page := shared.NormalizePage(f.Page, f.PageSize, 25)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"page":     page.Number,
		"pageSize": page.Size,
		"total":    total,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "uid"))
	if err != nil {
		h.respondError(w, "show account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

type assignRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "role is required")
		return
	}
	newRole, err := roles.Parse(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	key, release, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}

	account, err := h.service.AssignRole(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "uid"), newRole)
	if err != nil {
		release(key)
		h.respondError(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	key, release, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	account, err := h.service.RevokeRole(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "uid"))
	if err != nil {
		release(key)
		h.respondError(w, "revoke role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

type toggleActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request) {
	var req toggleActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "active flag is required")
		return
	}
	account, err := h.service.ToggleActive(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "uid"), *req.Active)
	if err != nil {
		h.respondError(w, "toggle active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

// claimIdempotency reserves the request's Idempotency-Key when one is
// supplied. The returned release func rolls the claim back if the
// mutation fails so a retry can succeed.
func (h *Handler) claimIdempotency(w http.ResponseWriter, r *http.Request) (string, func(string), bool) {
	noop := func(string) {}
	if h.idempotency == nil {
		return "", noop, true
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return "", noop, true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, "accounts"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
			return "", noop, false
		}
		h.logger.Error("idempotency claim", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return "", noop, false
	}
	release := func(k string) {
		if k == "" {
			return
		}
		if err := h.idempotency.Delete(r.Context(), k); err != nil {
			h.logger.Warn("idempotency release", slog.Any("error", err))
		}
	}
	return key, release, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, rules.ErrDenied):
		httpx.RespondError(w, httpx.ErrPermissionDenied)
	case errors.Is(err, ErrConflict):
		httpx.RespondError(w, httpx.ErrConflict)
	case errors.Is(err, ErrNoopAssignment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, roles.ErrInvalidRole):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
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
