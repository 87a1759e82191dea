package models

import "time"

// OpenEnded is the End of a membership that has not been cancelled yet.
// It is the largest instant every supported store round-trips unchanged.
var OpenEnded = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Membership is one continuous period of membership for a member.
type Membership struct {
	ID           int64     `json:"id"`
	MemberNumber int       `json:"member_number"`
	Member       *Member   `json:"member,omitempty"`
	Begin        time.Time `json:"begin"`
	End          time.Time `json:"end"`
}

// ActiveAt reports whether t lies in [Begin, End).
func (m Membership) ActiveAt(t time.Time) bool {
	return !t.Before(m.Begin) && t.Before(m.End)
}

// IsOpen reports whether the membership has not been cancelled.
func (m Membership) IsOpen() bool {
	return m.End.Equal(OpenEnded)
}
