// Package handler exposes manual lock management over HTTP. Alert-driven
// locks are created by the alert workflow, not through these endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"keystone/internal/lock"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/platform/httputil"
)

// Engine defines the lock operations the transport layer needs.
type Engine interface {
	ManualLock(ctx context.Context, propertyID id.PropertyID, actions []lock.Action, reason, actor string) ([]id.LockID, error)
	ManualUnlock(ctx context.Context, lockID id.LockID, actor, reason string) error
	ActiveLocks(ctx context.Context, propertyID id.PropertyID) ([]*lock.Lock, error)
	Get(ctx context.Context, lockID id.LockID) (*lock.Lock, error)
}

type Handler struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/locks", h.handleManualLock)
	r.Get("/locks/{lockID}", h.handleGet)
	r.Post("/locks/{lockID}/unlock", h.handleManualUnlock)
	r.Get("/properties/{propertyID}/locks", h.handleActiveLocks)
}

type manualLockRequest struct {
	PropertyID string   `json:"propertyId"`
	Actions    []string `json:"actions"`
	Reason     string   `json:"reason"`
	Actor      string   `json:"actor"`
}

func (h *Handler) handleManualLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[manualLockRequest](w, r)
	if !ok {
		return
	}
	propertyID, err := id.ParsePropertyID(req.PropertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := lock.ParseActions(req.Actions)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	lockIDs, err := h.engine.ManualLock(ctx, propertyID, actions, req.Reason, req.Actor)
	if err != nil {
		h.logFailure(ctx, "manual lock", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"lockIds": lockIDs})
}

type manualUnlockRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (h *Handler) handleManualUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lockID, err := id.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[manualUnlockRequest](w, r)
	if !ok {
		return
	}

	if err := h.engine.ManualUnlock(ctx, lockID, req.Actor, req.Reason); err != nil {
		h.logFailure(ctx, "manual unlock", err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	lockID, err := id.ParseLockID(chi.URLParam(r, "lockID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	l, err := h.engine.Get(r.Context(), lockID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleActiveLocks(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	locks, err := h.engine.ActiveLocks(r.Context(), propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"propertyId": propertyID,
		"locks":      locks,
	})
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	level := slog.LevelError
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeValidation):
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, op+" failed", "error", err.Error())
}
