// Package handler exposes the derived property flag and its recompute hook.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "keystone/pkg/domain"
	"keystone/pkg/platform/httputil"
)

// Synchronizer defines the flag operations the transport layer needs.
type Synchronizer interface {
	Recompute(ctx context.Context, propertyID id.PropertyID) (bool, error)
	HasActiveAlerts(ctx context.Context, propertyID id.PropertyID) (bool, error)
}

type Handler struct {
	flags Synchronizer
}

func New(flags Synchronizer) *Handler {
	return &Handler{flags: flags}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/properties/{propertyID}/flag", h.handleGetFlag)
	r.Post("/properties/{propertyID}/flag/recompute", h.handleRecompute)
}

func (h *Handler) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	hasActive, err := h.flags.HasActiveAlerts(r.Context(), propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"propertyId":      propertyID,
		"hasActiveAlerts": hasActive,
	})
}

// handleRecompute re-derives the flag from the lock table. The flag is
// maintained transactionally by the lock engine; this endpoint exists as a
// reconciliation hook for operators.
func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	hasActive, err := h.flags.Recompute(r.Context(), propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"propertyId":      propertyID,
		"hasActiveAlerts": hasActive,
	})
}
