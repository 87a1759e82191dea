package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeMemberAdded         Type = "member_added"
	TypeMemberDeleted       Type = "member_deleted"
	TypeMembershipStarted   Type = "membership_started"
	TypeMembershipCancelled Type = "membership_cancelled"
	TypeDepositRecorded     Type = "deposit_recorded"
)

// Event is the envelope published after a ledger operation commits.
type Event struct {
	ID           uuid.UUID `json:"id"`
	Type         Type      `json:"type"`
	MemberNumber int       `json:"member_number"`
	OccurredAt   time.Time `json:"occurred_at"`
	Payload      any       `json:"payload,omitempty"`
}

func New(eventType Type, memberNumber int, occurredAt time.Time, payload any) Event {
	return Event{
		ID:           uuid.New(),
		Type:         eventType,
		MemberNumber: memberNumber,
		OccurredAt:   occurredAt.UTC(),
		Payload:      payload,
	}
}

type MemberAdded struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Birthday  time.Time `json:"birthday"`
}

type MembershipStarted struct {
	MembershipID int64     `json:"membership_id"`
	Begin        time.Time `json:"begin"`
}

type MembershipCancelled struct {
	MembershipID int64     `json:"membership_id"`
	Begin        time.Time `json:"begin"`
	End          time.Time `json:"end"`
}

type DepositRecorded struct {
	DepositID    int64           `json:"deposit_id"`
	MembershipID int64           `json:"membership_id"`
	Amount       decimal.Decimal `json:"amount"`
}
