package ledger

import (
	"time"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

type Option func(*Ledger)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPublisher sets where domain events go after a successful commit.
func WithPublisher(publisher interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = publisher }
}

func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) { l.log = log }
}
