package authz

import (
	"context"

	"keystone/internal/alert"
	id "keystone/pkg/domain"
)

// AlertCommittees resolves committees by looking up the originating alert.
type AlertCommittees struct {
	alerts alert.Store
}

func NewAlertCommittees(alerts alert.Store) *AlertCommittees {
	return &AlertCommittees{alerts: alerts}
}

func (c *AlertCommittees) CommitteeFor(ctx context.Context, alertID id.AlertID) (string, error) {
	a, err := c.alerts.Get(ctx, alertID)
	if err != nil {
		return "", err
	}
	return a.Committee, nil
}
