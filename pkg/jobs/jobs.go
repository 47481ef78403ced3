package jobs

import (
	"context"
	"fmt"

	"github.com/platinummonkey/integrationhub/pkg/actor"
	"github.com/platinummonkey/integrationhub/pkg/observability"
)

// InvitationExpirer marks overdue invitations as expired
type InvitationExpirer interface {
	ExpireInvitations(ctx context.Context) (int, error)
}

// InvitationSweep expires overdue invitations as the system actor
type InvitationSweep struct {
	users  InvitationExpirer
	logger *observability.Logger
}

// NewInvitationSweep creates the invitation expiry job
func NewInvitationSweep(users InvitationExpirer, logger *observability.Logger) *InvitationSweep {
	return &InvitationSweep{users: users, logger: logger}
}

// Name implements Job
func (j *InvitationSweep) Name() string { return "invitation-sweep" }

// Run implements Job
func (j *InvitationSweep) Run(ctx context.Context) error {
	ctx = actor.WithActor(ctx, actor.System())
	n, err := j.users.ExpireInvitations(ctx)
	if n > 0 {
		j.logger.WithField("expired", n).Info("expired overdue invitations")
	}
	if err != nil {
		return fmt.Errorf("invitation sweep: %w", err)
	}
	return nil
}

// SessionGauge publishes the number of live console sessions
type SessionGauge struct {
	count   func() int
	metrics *observability.Metrics
}

// NewSessionGauge creates the session gauge job
func NewSessionGauge(count func() int, metrics *observability.Metrics) *SessionGauge {
	return &SessionGauge{count: count, metrics: metrics}
}

// Name implements Job
func (j *SessionGauge) Name() string { return "session-gauge" }

// Run implements Job
func (j *SessionGauge) Run(ctx context.Context) error {
	j.metrics.SetActiveSessions(j.count())
	return nil
}
