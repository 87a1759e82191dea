package logsink

import (
	"context"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models/events"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

// Publisher logs domain events instead of shipping them. It is used when
// no broker is configured.
type Publisher struct {
	log *logger.Logger
}

func NewPublisher(baseLog *logger.Logger) *Publisher {
	return &Publisher{log: baseLog.With("publisher", "logsink")}
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	p.log.Info("Domain event",
		"event_id", event.ID.String(),
		"event_type", string(event.Type),
		"member_number", event.MemberNumber,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
