package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/watchplus/watchplus/internal/platform/httpx"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

// Handler serves the incident report and evidence request endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      roles.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth roles.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		auth:      auth,
		validator: validator.New(),
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuthenticated)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Get("/archived-requests", h.listArchived)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapViewHexGrid))
		r.Get("/heatmap", h.heatmap)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireCapability(roles.CapSubmitEvidenceRequest))
		r.Post("/{id}/evidence-requests", h.submitEvidenceRequest)
		r.Get("/evidence-requests", h.listEvidenceRequests)
		r.Get("/evidence-requests/{id}", h.showEvidenceRequest)
	})
}

// Lat and Lng are pointers so that 0.0, a legitimate coordinate on the
// equator or prime meridian, is distinguishable from an absent field.
type createReportRequest struct {
	ReporterName string   `json:"reporterName"`
	Lat          *float64 `json:"lat" validate:"required,latitude"`
	Lng          *float64 `json:"lng" validate:"required,longitude"`
	HexCell      string   `json:"hexCell" validate:"required"`
	Category     string   `json:"category" validate:"required"`
	Description  string   `json:"description"`
	VisibleTo    []string `json:"visibleTo"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
		return
	}
	rec, err := h.service.CreateReport(r.Context(), roles.CallerFromContext(r.Context()), CreateReportInput{
		ReporterName: req.ReporterName,
		Lat:          *req.Lat,
		Lng:          *req.Lng,
		HexCell:      req.HexCell,
		Category:     req.Category,
		Description:  req.Description,
		VisibleTo:    req.VisibleTo,
	})
	if err != nil {
		h.respondError(w, "create report", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := ListFilters{
		Category: r.URL.Query().Get("category"),
		HexCell:  r.URL.Query().Get("hex_cell"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "page_size"),
	}
	views, hasNext, err := h.service.ListReports(r.Context(), roles.CallerFromContext(r.Context()), f)
	if err != nil {
		h.respondError(w, "list reports", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reports": views,
		"hasNext": hasNext,
	})
}

func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.service.Heatmap(r.Context(), roles.CallerFromContext(r.Context()), r.URL.Query().Get("category"))
	if err != nil {
		h.respondError(w, "report heatmap", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cells": cells})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetReport(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "show report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

type updateReportRequest struct {
	Category    string   `json:"category" validate:"required"`
	Description string   `json:"description"`
	VisibleTo   []string `json:"visibleTo"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateReportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
		return
	}
	rec, err := h.service.UpdateReport(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "id"), UpdateReportInput{
		Category:    req.Category,
		Description: req.Description,
		VisibleTo:   req.VisibleTo,
	})
	if err != nil {
		h.respondError(w, "update report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteReport(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete report", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type evidenceRequestRequest struct {
	Description string   `json:"description" validate:"required"`
	VisibleTo   []string `json:"visibleTo"`
	TTLHours    int      `json:"ttlHours" validate:"omitempty,min=1,max=720"`
}

func (h *Handler) submitEvidenceRequest(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
		return
	}
	request, err := h.service.SubmitEvidenceRequest(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "id"), EvidenceRequestInput{
		Description: req.Description,
		VisibleTo:   req.VisibleTo,
		TTL:         time.Duration(req.TTLHours) * time.Hour,
	})
	if err != nil {
		h.respondError(w, "submit evidence request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, request)
}

func (h *Handler) listEvidenceRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListOpenEvidenceRequests(r.Context(), roles.CallerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list evidence requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"evidenceRequests": requests})
}

func (h *Handler) showEvidenceRequest(w http.ResponseWriter, r *http.Request) {
	request, err := h.service.GetEvidenceRequest(r.Context(), roles.CallerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "show evidence request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, request)
}

func (h *Handler) listArchived(w http.ResponseWriter, r *http.Request) {
	archived, err := h.service.ListArchived(r.Context(), roles.CallerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list archived requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"archivedRequests": archived})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, rules.ErrDenied):
		httpx.RespondError(w, httpx.ErrPermissionDenied)
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
