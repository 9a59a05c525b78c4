// Package handler exposes the action authorization read API consumed by
// external workflow systems before executing property actions.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"keystone/internal/authz"
	"keystone/internal/lock"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/platform/httputil"
)

// Authorizer defines the read operations the transport layer needs.
type Authorizer interface {
	CheckAction(ctx context.Context, propertyID id.PropertyID, action lock.Action) (authz.Decision, error)
	BlockedActions(ctx context.Context, propertyID id.PropertyID) (map[lock.Action][]authz.Blocker, error)
}

type Handler struct {
	authorizer Authorizer
}

func New(authorizer Authorizer) *Handler {
	return &Handler{authorizer: authorizer}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/properties/{propertyID}/authorization", h.handleCheckAction)
	r.Get("/properties/{propertyID}/blocked-actions", h.handleBlockedActions)
}

func (h *Handler) handleCheckAction(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw := r.URL.Query().Get("action")
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "action query parameter is required"))
		return
	}
	action, err := lock.ParseAction(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.authorizer.CheckAction(r.Context(), propertyID, action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *Handler) handleBlockedActions(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	blocked, err := h.authorizer.BlockedActions(r.Context(), propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"propertyId":     propertyID,
		"blockedActions": blocked,
	})
}
