package logsink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sheikh-saqib/club-membership-ledger/internal/models/events"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

func TestPublishLogsEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewPublisher(&logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	at := time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)
	event := events.New(events.TypeMembershipStarted, 7, at, events.MembershipStarted{MembershipID: 3, Begin: at})
	require.NoError(t, p.Publish(context.Background(), event))

	entries := logs.FilterMessage("Domain event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "logsink", fields["publisher"])
	assert.Equal(t, event.ID.String(), fields["event_id"])
	assert.Equal(t, string(events.TypeMembershipStarted), fields["event_type"])
	assert.EqualValues(t, 7, fields["member_number"])
	occurredAt, ok := fields["occurred_at"].(time.Time)
	require.True(t, ok)
	assert.True(t, occurredAt.Equal(at))
}
