// Package handler exposes the alert lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"keystone/internal/alert"
	alertservice "keystone/internal/alert/service"
	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
	"keystone/pkg/platform/httputil"
)

// Service defines the alert operations the transport layer needs.
type Service interface {
	CreateThresholdAlert(ctx context.Context, req alertservice.CreateThresholdRequest) (*alert.Alert, []id.LockID, error)
	Approve(ctx context.Context, alertID id.AlertID, actor, notes string) (*alert.Alert, int, error)
	Reject(ctx context.Context, alertID id.AlertID, actor, reason string) (*alert.Alert, int, error)
	Get(ctx context.Context, alertID id.AlertID) (*alert.Alert, error)
	PendingByCommittee(ctx context.Context, committee string) ([]*alert.Alert, error)
	Summary(ctx context.Context, propertyID id.PropertyID) (*alert.Summary, error)
}

type Handler struct {
	alerts Service
	logger *slog.Logger
}

func New(alerts Service, logger *slog.Logger) *Handler {
	return &Handler{alerts: alerts, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/alerts/threshold", h.handleCreateThreshold)
	r.Get("/alerts/{alertID}", h.handleGet)
	r.Post("/alerts/{alertID}/approve", h.handleApprove)
	r.Post("/alerts/{alertID}/reject", h.handleReject)
	r.Get("/committees/{committee}/alerts/pending", h.handlePendingByCommittee)
	r.Get("/properties/{propertyID}/alerts/summary", h.handleSummary)
}

type createThresholdRequest struct {
	PropertyID     string  `json:"propertyId"`
	MetricName     string  `json:"metricName"`
	MetricCategory string  `json:"metricCategory"`
	MetricValue    float64 `json:"metricValue"`
	ThresholdValue float64 `json:"thresholdValue"`
}

type alertResponse struct {
	Alert   *alert.Alert `json:"alert"`
	LockIDs []id.LockID  `json:"lockIds,omitempty"`
}

func (h *Handler) handleCreateThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[createThresholdRequest](w, r)
	if !ok {
		return
	}
	propertyID, err := id.ParsePropertyID(req.PropertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, lockIDs, err := h.alerts.CreateThresholdAlert(ctx, alertservice.CreateThresholdRequest{
		PropertyID:     propertyID,
		MetricName:     req.MetricName,
		MetricCategory: alert.MetricCategory(req.MetricCategory),
		MetricValue:    req.MetricValue,
		ThresholdValue: req.ThresholdValue,
	})
	if err != nil {
		h.logFailure(ctx, "create threshold alert", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, alertResponse{Alert: a, LockIDs: lockIDs})
}

type resolveRequest struct {
	Actor string `json:"actor"`
	Notes string `json:"notes"`
}

type resolveResponse struct {
	Alert         *alert.Alert `json:"alert"`
	LocksReleased int          `json:"locksReleased"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.alerts.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.alerts.Reject)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, alertID id.AlertID, actor, notes string) (*alert.Alert, int, error)) {
	ctx := r.Context()

	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[resolveRequest](w, r)
	if !ok {
		return
	}

	a, released, err := resolve(ctx, alertID, req.Actor, req.Notes)
	if err != nil {
		h.logFailure(ctx, "resolve alert", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resolveResponse{Alert: a, LocksReleased: released})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	alertID, err := id.ParseAlertID(chi.URLParam(r, "alertID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.alerts.Get(r.Context(), alertID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handlePendingByCommittee(w http.ResponseWriter, r *http.Request) {
	committee := chi.URLParam(r, "committee")

	pending, err := h.alerts.PendingByCommittee(r.Context(), committee)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"committee": committee,
		"alerts":    pending,
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.alerts.Summary(r.Context(), propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	level := slog.LevelError
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeBadRequest):
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, op+" failed", "error", err.Error())
}
