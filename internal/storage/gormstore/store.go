package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

// GormMembershipStore persists the ledger through gorm. Dependent rows are
// removed explicitly inside Commit so cascading does not depend on the
// dialect's foreign key support.
type GormMembershipStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// OpenSQLite opens an embedded database at path. ":memory:" gives a private
// in-process database kept on a single connection.
func OpenSQLite(path string, baseLog *logger.Logger) (*GormMembershipStore, error) {
	singleConn := path == ":memory:" || strings.Contains(path, "mode=memory")
	return open(sqlite.Open(path), baseLog, singleConn)
}

func OpenPostgres(dsn string, baseLog *logger.Logger) (*GormMembershipStore, error) {
	return open(postgres.Open(dsn), baseLog, false)
}

func open(dialector gorm.Dialector, baseLog *logger.Logger, singleConn bool) (*GormMembershipStore, error) {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	storeLog := baseLog.With("store", "GormMembershipStore", "dialect", dialector.Name())

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		storeLog.Error("Failed to open database", "error", err)
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	if singleConn {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&memberRecord{}, &membershipRecord{}, &depositRecord{}); err != nil {
		storeLog.Error("Auto migration failed", "error", err)
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	storeLog.Debug("Membership tables migrated")

	return &GormMembershipStore{db: db, log: storeLog}, nil
}

func (s *GormMembershipStore) FindMember(ctx context.Context, number int) (*models.Member, bool, error) {
	var records []memberRecord
	if err := s.db.WithContext(ctx).
		Where("member_number = ?", number).
		Limit(1).
		Find(&records).Error; err != nil {
		return nil, false, fmt.Errorf("find member %d: %w", number, err)
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	member := records[0].toModel()
	return &member, true, nil
}

func (s *GormMembershipStore) LastNameTaken(ctx context.Context, lastName string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&memberRecord{}).
		Where("last_name = ?", lastName).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check last name: %w", err)
	}
	return count > 0, nil
}

// Interval checks run in Go: sqlite keeps timestamps as text, where
// range comparisons in SQL are not reliable.
func (s *GormMembershipStore) ActiveMembership(ctx context.Context, memberNumber int, at time.Time) (*models.Membership, bool, error) {
	return s.firstMembership(ctx, memberNumber, func(ms models.Membership) bool { return ms.ActiveAt(at) })
}

func (s *GormMembershipStore) OpenMembership(ctx context.Context, memberNumber int) (*models.Membership, bool, error) {
	return s.firstMembership(ctx, memberNumber, models.Membership.IsOpen)
}

func (s *GormMembershipStore) firstMembership(ctx context.Context, memberNumber int, match func(models.Membership) bool) (*models.Membership, bool, error) {
	all, err := s.MembershipsOf(ctx, memberNumber)
	if err != nil {
		return nil, false, err
	}
	for i := range all {
		if match(all[i]) {
			return &all[i], true, nil
		}
	}
	return nil, false, nil
}

func (s *GormMembershipStore) MembershipsOf(ctx context.Context, memberNumber int) ([]models.Membership, error) {
	var records []membershipRecord
	if err := s.db.WithContext(ctx).
		Where("member_number = ?", memberNumber).
		Order("id").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	result := make([]models.Membership, 0, len(records))
	for _, r := range records {
		result = append(result, r.toModel())
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Begin.Before(result[j].Begin) })
	return result, nil
}

func (s *GormMembershipStore) DepositsWithOwners(ctx context.Context) ([]models.Deposit, error) {
	var (
		deposits    []depositRecord
		memberships []membershipRecord
		members     []memberRecord
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&deposits).Error; err != nil {
			return fmt.Errorf("load deposits: %w", err)
		}
		if err := tx.Find(&memberships).Error; err != nil {
			return fmt.Errorf("load memberships: %w", err)
		}
		if err := tx.Find(&members).Error; err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	membersByNumber := make(map[int]models.Member, len(members))
	for _, r := range members {
		membersByNumber[r.MemberNumber] = r.toModel()
	}
	membershipsByID := make(map[int64]membershipRecord, len(memberships))
	for _, r := range memberships {
		membershipsByID[r.ID] = r
	}

	result := make([]models.Deposit, 0, len(deposits))
	for _, d := range deposits {
		msRecord, ok := membershipsByID[d.MembershipID]
		if !ok {
			return nil, fmt.Errorf("deposit %d: membership %d missing", d.ID, d.MembershipID)
		}
		member, ok := membersByNumber[msRecord.MemberNumber]
		if !ok {
			return nil, fmt.Errorf("membership %d: member %d missing", msRecord.ID, msRecord.MemberNumber)
		}
		ms := msRecord.toModel()
		ms.Member = &member
		result = append(result, models.Deposit{
			ID:           d.ID,
			MembershipID: d.MembershipID,
			Membership:   &ms,
			Amount:       d.Amount,
		})
	}
	return result, nil
}

// Commit writes the ChangeSet inside a single gorm transaction.
func (s *GormMembershipStore) Commit(ctx context.Context, changes *interfaces.ChangeSet) error {
	if changes.Empty() {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, member := range changes.NewMembers {
			record := memberRecord{
				FirstName: member.FirstName,
				LastName:  member.LastName,
				Birthday:  member.Birthday.UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("insert member: %w", translate(err))
			}
			member.Number = record.MemberNumber
		}

		for _, number := range changes.RemovedMembers {
			if err := removeMember(tx, number); err != nil {
				return err
			}
		}

		for _, ms := range changes.NewMemberships {
			if ms.MemberNumber == 0 && ms.Member != nil {
				ms.MemberNumber = ms.Member.Number
			}
			record := membershipRecord{
				MemberNumber: ms.MemberNumber,
				BeginAt:      ms.Begin.UTC(),
				EndAt:        ms.End.UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("insert membership: %w", translate(err))
			}
			ms.ID = record.ID
		}

		for _, ms := range changes.ClosedMemberships {
			res := tx.Model(&membershipRecord{}).
				Where("id = ?", ms.ID).
				Update("end_at", ms.End.UTC())
			if res.Error != nil {
				return fmt.Errorf("close membership %d: %w", ms.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("close membership %d: not found", ms.ID)
			}
		}

		for _, d := range changes.NewDeposits {
			if d.MembershipID == 0 && d.Membership != nil {
				d.MembershipID = d.Membership.ID
			}
			record := depositRecord{MembershipID: d.MembershipID, Amount: d.Amount}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("insert deposit: %w", translate(err))
			}
			d.ID = record.ID
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Commit rolled back", "error", err)
		return err
	}
	return nil
}

func removeMember(tx *gorm.DB, number int) error {
	var membershipIDs []int64
	if err := tx.Model(&membershipRecord{}).
		Where("member_number = ?", number).
		Pluck("id", &membershipIDs).Error; err != nil {
		return fmt.Errorf("list memberships of member %d: %w", number, err)
	}
	if len(membershipIDs) > 0 {
		if err := tx.Where("membership_id IN ?", membershipIDs).Delete(&depositRecord{}).Error; err != nil {
			return fmt.Errorf("delete deposits of member %d: %w", number, err)
		}
	}
	if err := tx.Where("member_number = ?", number).Delete(&membershipRecord{}).Error; err != nil {
		return fmt.Errorf("delete memberships of member %d: %w", number, err)
	}
	res := tx.Where("member_number = ?", number).Delete(&memberRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete member %d: %w", number, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete member %d: not found", number)
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%v: %w", err, interfaces.ErrUniqueViolation)
	}
	return err
}

// Close releases the connection pool; closing twice is a no-op.
func (s *GormMembershipStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ interfaces.MembershipStore = (*GormMembershipStore)(nil)
