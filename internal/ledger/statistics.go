package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

type statisticKey struct {
	year         int
	memberNumber int
}

// aggregateDeposits sums deposits per (membership begin year, member).
// Groups come out in the order their first deposit appears.
func aggregateDeposits(deposits []models.Deposit) []models.DepositStatistic {
	index := make(map[statisticKey]int)
	var stats []models.DepositStatistic

	for _, d := range deposits {
		if d.Membership == nil || d.Membership.Member == nil {
			continue
		}
		key := statisticKey{
			year:         d.Membership.Begin.Year(),
			memberNumber: d.Membership.Member.Number,
		}
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, models.DepositStatistic{
				Year:        key.year,
				Member:      *d.Membership.Member,
				TotalAmount: decimal.Zero,
			})
		}
		stats[i].TotalAmount = stats[i].TotalAmount.Add(d.Amount)
	}
	return stats
}
