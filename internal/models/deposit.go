package models

import "github.com/shopspring/decimal"

// Deposit is a monetary contribution booked against a membership.
type Deposit struct {
	ID           int64           `json:"id"`
	MembershipID int64           `json:"membership_id"`
	Membership   *Membership     `json:"membership,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}
