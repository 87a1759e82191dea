package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

const uniqueViolation = "23505"

type PostgresMembershipStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresMembershipStore(db *sql.DB) *PostgresMembershipStore {
	return &PostgresMembershipStore{
		db:     db,
		tracer: otel.Tracer("clubledger/storage/postgres"),
	}
}

func (p *PostgresMembershipStore) FindMember(ctx context.Context, number int) (*models.Member, bool, error) {
	const query = `SELECT member_number, first_name, last_name, birthday
	FROM members WHERE member_number = $1`

	var member models.Member
	err := p.db.QueryRowContext(ctx, query, number).Scan(
		&member.Number,
		&member.FirstName,
		&member.LastName,
		&member.Birthday,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find member %d: %w", number, err)
	}
	return &member, true, nil
}

func (p *PostgresMembershipStore) LastNameTaken(ctx context.Context, lastName string) (bool, error) {
	const query = `SELECT 1 FROM members WHERE last_name = $1 LIMIT 1`

	var exists int
	err := p.db.QueryRowContext(ctx, query, lastName).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check last name: %w", err)
	}
	return true, nil
}

func (p *PostgresMembershipStore) ActiveMembership(ctx context.Context, memberNumber int, at time.Time) (*models.Membership, bool, error) {
	const query = `SELECT id, member_number, begin_at, end_at FROM memberships
	WHERE member_number = $1 AND begin_at <= $2 AND end_at > $2
	ORDER BY begin_at, id LIMIT 1`

	return p.oneMembership(ctx, query, memberNumber, at.UTC())
}

func (p *PostgresMembershipStore) OpenMembership(ctx context.Context, memberNumber int) (*models.Membership, bool, error) {
	const query = `SELECT id, member_number, begin_at, end_at FROM memberships
	WHERE member_number = $1 AND end_at = $2
	ORDER BY begin_at, id LIMIT 1`

	return p.oneMembership(ctx, query, memberNumber, models.OpenEnded)
}

func (p *PostgresMembershipStore) oneMembership(ctx context.Context, query string, args ...any) (*models.Membership, bool, error) {
	var ms models.Membership
	err := p.db.QueryRowContext(ctx, query, args...).Scan(&ms.ID, &ms.MemberNumber, &ms.Begin, &ms.End)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find membership: %w", err)
	}
	normalize(&ms)
	return &ms, true, nil
}

func (p *PostgresMembershipStore) MembershipsOf(ctx context.Context, memberNumber int) ([]models.Membership, error) {
	const query = `SELECT id, member_number, begin_at, end_at FROM memberships
	WHERE member_number = $1 ORDER BY begin_at, id`

	rows, err := p.db.QueryContext(ctx, query, memberNumber)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var result []models.Membership
	for rows.Next() {
		var ms models.Membership
		if err := rows.Scan(&ms.ID, &ms.MemberNumber, &ms.Begin, &ms.End); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		normalize(&ms)
		result = append(result, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return result, nil
}

func (p *PostgresMembershipStore) DepositsWithOwners(ctx context.Context) ([]models.Deposit, error) {
	const query = `SELECT d.id, d.amount,
		ms.id, ms.begin_at, ms.end_at,
		m.member_number, m.first_name, m.last_name, m.birthday
	FROM deposits d
	JOIN memberships ms ON ms.id = d.membership_id
	JOIN members m ON m.member_number = ms.member_number
	ORDER BY d.id`

	ctx, span := p.tracer.Start(ctx, "postgres.deposits_with_owners")
	defer span.End()

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	var deposits []models.Deposit
	for rows.Next() {
		var (
			d      models.Deposit
			ms     models.Membership
			member models.Member
		)
		err := rows.Scan(
			&d.ID,
			&d.Amount,
			&ms.ID,
			&ms.Begin,
			&ms.End,
			&member.Number,
			&member.FirstName,
			&member.LastName,
			&member.Birthday,
		)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		normalize(&ms)
		ms.MemberNumber = member.Number
		ms.Member = &member
		d.MembershipID = ms.ID
		d.Membership = &ms
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposits: %w", err)
	}

	span.SetAttributes(attribute.Int("deposits.loaded", len(deposits)))
	return deposits, nil
}

// Commit writes the ChangeSet in one transaction.
func (p *PostgresMembershipStore) Commit(ctx context.Context, changes *interfaces.ChangeSet) (err error) {
	if changes.Empty() {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "postgres.commit",
		trace.WithAttributes(
			attribute.Int("members.new", len(changes.NewMembers)),
			attribute.Int("members.removed", len(changes.RemovedMembers)),
			attribute.Int("memberships.new", len(changes.NewMemberships)),
			attribute.Int("memberships.closed", len(changes.ClosedMemberships)),
			attribute.Int("deposits.new", len(changes.NewDeposits)),
		),
	)
	defer span.End()

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
			span.RecordError(err)
		}
	}()

	for _, member := range changes.NewMembers {
		if err = insertMember(ctx, dbTx, member); err != nil {
			return err
		}
	}
	for _, number := range changes.RemovedMembers {
		if err = deleteMember(ctx, dbTx, number); err != nil {
			return err
		}
	}
	for _, ms := range changes.NewMemberships {
		if err = insertMembership(ctx, dbTx, ms); err != nil {
			return err
		}
	}
	for _, ms := range changes.ClosedMemberships {
		if err = closeMembership(ctx, dbTx, ms); err != nil {
			return err
		}
	}
	for _, d := range changes.NewDeposits {
		if err = insertDeposit(ctx, dbTx, d); err != nil {
			return err
		}
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertMember(ctx context.Context, dbTx *sql.Tx, member *models.Member) error {
	const query = `INSERT INTO members (first_name, last_name, birthday)
	VALUES ($1, $2, $3) RETURNING member_number`

	err := dbTx.QueryRowContext(ctx, query, member.FirstName, member.LastName, member.Birthday.UTC()).Scan(&member.Number)
	if err != nil {
		return fmt.Errorf("insert member: %w", translate(err))
	}
	return nil
}

func deleteMember(ctx context.Context, dbTx *sql.Tx, number int) error {
	const query = `DELETE FROM members WHERE member_number = $1`

	res, err := dbTx.ExecContext(ctx, query, number)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member %d: %w", number, err)
	}
	if n == 0 {
		return fmt.Errorf("delete member %d: no rows affected", number)
	}
	return nil
}

func insertMembership(ctx context.Context, dbTx *sql.Tx, ms *models.Membership) error {
	const query = `INSERT INTO memberships (member_number, begin_at, end_at)
	VALUES ($1, $2, $3) RETURNING id`

	if ms.MemberNumber == 0 && ms.Member != nil {
		ms.MemberNumber = ms.Member.Number
	}
	err := dbTx.QueryRowContext(ctx, query, ms.MemberNumber, ms.Begin.UTC(), ms.End.UTC()).Scan(&ms.ID)
	if err != nil {
		return fmt.Errorf("insert membership: %w", translate(err))
	}
	return nil
}

func closeMembership(ctx context.Context, dbTx *sql.Tx, ms *models.Membership) error {
	const query = `UPDATE memberships SET end_at = $1 WHERE id = $2`

	res, err := dbTx.ExecContext(ctx, query, ms.End.UTC(), ms.ID)
	if err != nil {
		return fmt.Errorf("close membership %d: %w", ms.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("close membership %d: not updated", ms.ID)
	}
	return nil
}

func insertDeposit(ctx context.Context, dbTx *sql.Tx, d *models.Deposit) error {
	const query = `INSERT INTO deposits (membership_id, amount) VALUES ($1, $2) RETURNING id`

	if d.MembershipID == 0 && d.Membership != nil {
		d.MembershipID = d.Membership.ID
	}
	if err := dbTx.QueryRowContext(ctx, query, d.MembershipID, d.Amount).Scan(&d.ID); err != nil {
		return fmt.Errorf("insert deposit: %w", translate(err))
	}
	return nil
}

// translate maps a unique constraint violation onto interfaces.ErrUniqueViolation.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, interfaces.ErrUniqueViolation)
	}
	return err
}

func normalize(ms *models.Membership) {
	ms.Begin = ms.Begin.UTC()
	ms.End = ms.End.UTC()
}

func (p *PostgresMembershipStore) Close() error {
	return p.db.Close()
}

var _ interfaces.MembershipStore = (*PostgresMembershipStore)(nil)
