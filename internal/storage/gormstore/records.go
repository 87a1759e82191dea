package gormstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

type memberRecord struct {
	MemberNumber int       `gorm:"column:member_number;primaryKey;autoIncrement"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null;uniqueIndex:idx_member_last_name"`
	Birthday     time.Time `gorm:"column:birthday;not null"`
}

func (memberRecord) TableName() string { return "member" }

type membershipRecord struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MemberNumber int       `gorm:"column:member_number;not null;index"`
	BeginAt      time.Time `gorm:"column:begin_at;not null"`
	EndAt        time.Time `gorm:"column:end_at;not null"`
}

func (membershipRecord) TableName() string { return "membership" }

type depositRecord struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement"`
	MembershipID int64           `gorm:"column:membership_id;not null;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null"`
}

func (depositRecord) TableName() string { return "deposit" }

func (r memberRecord) toModel() models.Member {
	return models.Member{
		Number:    r.MemberNumber,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Birthday:  r.Birthday.UTC(),
	}
}

func (r membershipRecord) toModel() models.Membership {
	return models.Membership{
		ID:           r.ID,
		MemberNumber: r.MemberNumber,
		Begin:        r.BeginAt.UTC(),
		End:          r.EndAt.UTC(),
	}
}
