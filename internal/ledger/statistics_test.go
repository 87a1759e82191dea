package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

func deposit(member *models.Member, begin time.Time, amount string) models.Deposit {
	ms := &models.Membership{MemberNumber: member.Number, Member: member, Begin: begin, End: models.OpenEnded}
	return models.Deposit{Membership: ms, Amount: decimal.RequireFromString(amount)}
}

func TestAggregateDeposits(t *testing.T) {
	ada := &models.Member{Number: 1, FirstName: "Ada", LastName: "Lovelace"}
	grace := &models.Member{Number: 2, FirstName: "Grace", LastName: "Hopper"}
	y2023 := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	y2024 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stats := aggregateDeposits([]models.Deposit{
		deposit(ada, y2023, "10.10"),
		deposit(grace, y2024, "1"),
		deposit(ada, y2024, "5"),
		deposit(ada, y2023, "0.90"),
		{Amount: decimal.NewFromInt(99)},
	})

	assert.Len(t, stats, 3)
	assert.Equal(t, models.DepositStatistic{Year: 2023, Member: *ada, TotalAmount: stats[0].TotalAmount}, stats[0])
	assert.True(t, stats[0].TotalAmount.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, 2024, stats[1].Year)
	assert.Equal(t, grace.Number, stats[1].Member.Number)
	assert.Equal(t, 2024, stats[2].Year)
	assert.Equal(t, ada.Number, stats[2].Member.Number)
	assert.True(t, stats[2].TotalAmount.Equal(decimal.NewFromInt(5)))
}

func TestAggregateDepositsEmpty(t *testing.T) {
	assert.Empty(t, aggregateDeposits(nil))
}
