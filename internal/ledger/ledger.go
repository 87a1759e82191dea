package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models/events"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

// Ledger enforces the membership rules on top of a MembershipStore session.
// Every operation validates against the current store state first and then
// writes through exactly one Commit, so a rejected operation writes nothing.
type Ledger struct {
	open      interfaces.StoreOpener
	publisher interfaces.EventPublisher
	log       *logger.Logger
	now       func() time.Time
	tracer    trace.Tracer

	mu    sync.Mutex // guards store
	store interfaces.MembershipStore
}

// NewLedger creates a ledger that opens its store session with open on Initialize.
func NewLedger(open interfaces.StoreOpener, opts ...Option) *Ledger {
	l := &Ledger{
		open:   open,
		now:    time.Now,
		tracer: otel.Tracer("clubledger/ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.NewNop()
	}
	l.log = l.log.With("service", "Ledger")
	return l
}

// Initialize opens the store session. It fails with ErrAlreadyInitialized
// while a session is open.
func (l *Ledger) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return ErrAlreadyInitialized
	}
	store, err := l.open(ctx)
	if err != nil {
		l.log.Error("Failed to open store", "error", err)
		return storeFailure("open store", err)
	}
	l.store = store
	l.log.Info("Store session opened")
	return nil
}

// Teardown closes the store session. It is safe to call repeatedly and
// before Initialize.
func (l *Ledger) Teardown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	if err != nil {
		l.log.Warn("Failed to close store", "error", err)
		return storeFailure("close store", err)
	}
	l.log.Info("Store session closed")
	return nil
}

func (l *Ledger) session() (interfaces.MembershipStore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store == nil {
		return nil, ErrNotInitialized
	}
	return l.store, nil
}

// AddMember registers a member and returns the store-assigned member number.
func (l *Ledger) AddMember(ctx context.Context, firstName, lastName string, birthday time.Time) (number int, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.add_member")
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return 0, err
	}
	if firstName == "" || lastName == "" {
		return 0, fmt.Errorf("%w: first name and last name are required", ErrInvalidArgument)
	}

	taken, err := store.LastNameTaken(ctx, lastName)
	if err != nil {
		return 0, storeFailure("check last name", err)
	}
	if taken {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, lastName)
	}

	member := &models.Member{
		FirstName: firstName,
		LastName:  lastName,
		Birthday:  birthday.UTC(),
	}
	if err := store.Commit(ctx, &interfaces.ChangeSet{NewMembers: []*models.Member{member}}); err != nil {
		if errors.Is(err, interfaces.ErrUniqueViolation) {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateName, lastName)
		}
		return 0, storeFailure("commit new member", err)
	}

	span.SetAttributes(attribute.Int("member.number", member.Number))
	l.log.Info("Member added", "member_number", member.Number, "last_name", lastName)
	l.publish(ctx, events.New(events.TypeMemberAdded, member.Number, l.clock(), events.MemberAdded{
		FirstName: member.FirstName,
		LastName:  member.LastName,
		Birthday:  member.Birthday,
	}))
	return member.Number, nil
}

// DeleteMember removes a member; the store removes its memberships and deposits with it.
func (l *Ledger) DeleteMember(ctx context.Context, memberNumber int) (err error) {
	ctx, span := l.startMemberSpan(ctx, "ledger.delete_member", memberNumber)
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return err
	}
	if _, err := findMember(ctx, store, memberNumber); err != nil {
		return err
	}

	if err := store.Commit(ctx, &interfaces.ChangeSet{RemovedMembers: []int{memberNumber}}); err != nil {
		return storeFailure("commit member removal", err)
	}

	l.log.Info("Member deleted", "member_number", memberNumber)
	l.publish(ctx, events.New(events.TypeMemberDeleted, memberNumber, l.clock(), nil))
	return nil
}

// JoinMember starts a new open-ended membership beginning now.
func (l *Ledger) JoinMember(ctx context.Context, memberNumber int) (_ *models.Membership, err error) {
	ctx, span := l.startMemberSpan(ctx, "ledger.join_member", memberNumber)
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return nil, err
	}
	member, err := findMember(ctx, store, memberNumber)
	if err != nil {
		return nil, err
	}

	now := l.clock()
	_, active, err := store.ActiveMembership(ctx, memberNumber, now)
	if err != nil {
		return nil, storeFailure("find active membership", err)
	}
	if !active {
		// An open membership that has not begun yet still counts.
		_, active, err = store.OpenMembership(ctx, memberNumber)
		if err != nil {
			return nil, storeFailure("find open membership", err)
		}
	}
	if active {
		return nil, fmt.Errorf("%w: member %d", ErrAlreadyMember, memberNumber)
	}

	membership := &models.Membership{
		MemberNumber: memberNumber,
		Member:       member,
		Begin:        now,
		End:          models.OpenEnded,
	}
	if err := store.Commit(ctx, &interfaces.ChangeSet{NewMemberships: []*models.Membership{membership}}); err != nil {
		return nil, storeFailure("commit new membership", err)
	}

	l.log.Info("Membership started", "member_number", memberNumber, "membership_id", membership.ID)
	l.publish(ctx, events.New(events.TypeMembershipStarted, memberNumber, now, events.MembershipStarted{
		MembershipID: membership.ID,
		Begin:        membership.Begin,
	}))
	return membership, nil
}

// CancelMembership closes the member's open membership as of now.
func (l *Ledger) CancelMembership(ctx context.Context, memberNumber int) (_ *models.Membership, err error) {
	ctx, span := l.startMemberSpan(ctx, "ledger.cancel_membership", memberNumber)
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return nil, err
	}
	open, found, err := store.OpenMembership(ctx, memberNumber)
	if err != nil {
		return nil, storeFailure("find open membership", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: member %d", ErrNoActiveMembership, memberNumber)
	}
	member, found, err := store.FindMember(ctx, memberNumber)
	if err != nil {
		return nil, storeFailure("find member", err)
	}
	if found {
		open.Member = member
	}

	end := l.clock()
	if end.Before(open.Begin) {
		end = open.Begin
	}
	closed := *open
	closed.End = end
	if err := store.Commit(ctx, &interfaces.ChangeSet{ClosedMemberships: []*models.Membership{&closed}}); err != nil {
		return nil, storeFailure("commit membership cancellation", err)
	}

	l.log.Info("Membership cancelled", "member_number", memberNumber, "membership_id", closed.ID)
	l.publish(ctx, events.New(events.TypeMembershipCancelled, memberNumber, end, events.MembershipCancelled{
		MembershipID: closed.ID,
		Begin:        closed.Begin,
		End:          closed.End,
	}))
	return &closed, nil
}

// Deposit books amount against the member's currently active membership.
// Amounts must be positive whole cents.
func (l *Ledger) Deposit(ctx context.Context, memberNumber int, amount decimal.Decimal) (err error) {
	ctx, span := l.startMemberSpan(ctx, "ledger.deposit", memberNumber)
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive, got %s", ErrInvalidArgument, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: deposit amount has more than two decimal places, got %s", ErrInvalidArgument, amount)
	}
	if _, err := findMember(ctx, store, memberNumber); err != nil {
		return err
	}

	now := l.clock()
	membership, found, err := store.ActiveMembership(ctx, memberNumber, now)
	if err != nil {
		return storeFailure("find active membership", err)
	}
	if !found {
		return fmt.Errorf("%w: member %d", ErrNoActiveMembership, memberNumber)
	}

	deposit := &models.Deposit{
		MembershipID: membership.ID,
		Membership:   membership,
		Amount:       amount,
	}
	if err := store.Commit(ctx, &interfaces.ChangeSet{NewDeposits: []*models.Deposit{deposit}}); err != nil {
		return storeFailure("commit deposit", err)
	}

	l.log.Info("Deposit recorded", "member_number", memberNumber, "membership_id", membership.ID, "amount", amount.String())
	l.publish(ctx, events.New(events.TypeDepositRecorded, memberNumber, now, events.DepositRecorded{
		DepositID:    deposit.ID,
		MembershipID: membership.ID,
		Amount:       amount,
	}))
	return nil
}

// GetDepositStatistics totals deposits per member and per year in which the
// owning membership began. The order of the result is not significant.
func (l *Ledger) GetDepositStatistics(ctx context.Context) (_ []models.DepositStatistic, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.deposit_statistics")
	defer func() { endSpan(span, err) }()

	store, err := l.session()
	if err != nil {
		return nil, err
	}
	deposits, err := store.DepositsWithOwners(ctx)
	if err != nil {
		return nil, storeFailure("load deposits", err)
	}

	stats := aggregateDeposits(deposits)
	span.SetAttributes(
		attribute.Int("deposits.count", len(deposits)),
		attribute.Int("statistics.count", len(stats)),
	)
	return stats, nil
}

// GetMember returns a member or ErrInvalidArgument when there is none.
func (l *Ledger) GetMember(ctx context.Context, memberNumber int) (*models.Member, error) {
	store, err := l.session()
	if err != nil {
		return nil, err
	}
	return findMember(ctx, store, memberNumber)
}

// Memberships returns the member's membership history, oldest first.
func (l *Ledger) Memberships(ctx context.Context, memberNumber int) ([]models.Membership, error) {
	store, err := l.session()
	if err != nil {
		return nil, err
	}
	if _, err := findMember(ctx, store, memberNumber); err != nil {
		return nil, err
	}
	history, err := store.MembershipsOf(ctx, memberNumber)
	if err != nil {
		return nil, storeFailure("list memberships", err)
	}
	return history, nil
}

func findMember(ctx context.Context, store interfaces.MembershipStore, memberNumber int) (*models.Member, error) {
	member, found, err := store.FindMember(ctx, memberNumber)
	if err != nil {
		return nil, storeFailure("find member", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: member %d not found", ErrInvalidArgument, memberNumber)
	}
	return member, nil
}

// clock is truncated to microseconds, the finest precision postgres keeps.
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

func (l *Ledger) publish(ctx context.Context, event events.Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.log.Warn("Failed to publish domain event",
			"event_type", string(event.Type),
			"member_number", event.MemberNumber,
			"error", err,
		)
	}
}

func (l *Ledger) startMemberSpan(ctx context.Context, name string, memberNumber int) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("member.number", memberNumber)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
