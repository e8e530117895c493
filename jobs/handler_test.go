package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"

	"github.com/watchplus/watchplus/internal/roles"
)

type stubEnqueuer struct {
	err   error
	calls int
}

func (s *stubEnqueuer) EnqueueArchiveExpired(ctx context.Context, payload ArchiveExpiredPayload) (*asynq.TaskInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func mountJobRoutes(enqueuer Enqueuer) http.Handler {
	h := NewHandler(nil, enqueuer, roles.Middleware{}, slog.Default())
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func requestAs(method, path string, role roles.Role) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	caller := roles.Caller{UID: "u1", Role: role, Active: true}
	return req.WithContext(roles.ContextWithCaller(req.Context(), caller))
}

func TestArchiveNowEnqueuesSweep(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := mountJobRoutes(enqueuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/jobs/archive-now", roles.RoleSuperAdmin))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, enqueuer.calls)
	assert.Contains(t, rec.Body.String(), `"task":"task-1"`)
}

func TestArchiveNowRequiresSuperAdmin(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	router := mountJobRoutes(enqueuer)

	for _, role := range []roles.Role{roles.RoleUser, roles.RolePolice, roles.RoleAdmin} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, requestAs(http.MethodPost, "/jobs/archive-now", role))
		assert.Equal(t, http.StatusForbidden, rec.Code, "role %s", role)
	}
	assert.Zero(t, enqueuer.calls)
}

func TestArchiveNowUnavailableWhenQueueDown(t *testing.T) {
	router := mountJobRoutes(&stubEnqueuer{err: errors.New("redis down")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, requestAs(http.MethodPost, "/jobs/archive-now", roles.RoleSuperAdmin))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
