package main

import (
	"context"

	circmodels "libripal/internal/circulation/models"
	circservice "libripal/internal/circulation/service"
	notifmodels "libripal/internal/notification/models"
	notifservice "libripal/internal/notification/service"
	dErrors "libripal/pkg/domain-errors"
)

// The patron service wants to export loans and notifications, while those two
// services in turn need the patron service. The proxies below break the
// construction cycle: the patron service gets them up front and main fills in
// the real services once they exist.

type loanListerProxy struct {
	svc *circservice.Service
}

func (p *loanListerProxy) ListHistory(ctx context.Context) ([]*circmodels.Loan, error) {
	if p.svc == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "circulation service not wired")
	}
	return p.svc.ListHistory(ctx)
}

type notificationListerProxy struct {
	svc *notifservice.Service
}

func (p *notificationListerProxy) List(ctx context.Context) ([]*notifmodels.Notification, error) {
	if p.svc == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "notification service not wired")
	}
	return p.svc.List(ctx)
}
