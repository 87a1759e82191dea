package models

import "github.com/shopspring/decimal"

// DepositStatistic is the sum of a member's deposits for memberships
// that began in Year. It is derived on every query and never persisted.
type DepositStatistic struct {
	Year        int             `json:"year"`
	Member      Member          `json:"member"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
