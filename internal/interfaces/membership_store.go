package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

// ErrUniqueViolation is wrapped by stores when Commit hits a uniqueness
// constraint, e.g. a second member with the same last name.
var ErrUniqueViolation = errors.New("unique constraint violated")

// MembershipStore is the durable side of the ledger. Lookups return
// (value, found, error); Commit applies a ChangeSet all-or-nothing.
type MembershipStore interface {
	FindMember(ctx context.Context, number int) (*models.Member, bool, error)
	LastNameTaken(ctx context.Context, lastName string) (bool, error)
	// ActiveMembership returns the membership of the member whose interval contains at.
	ActiveMembership(ctx context.Context, memberNumber int, at time.Time) (*models.Membership, bool, error)
	// OpenMembership returns the membership of the member whose End is models.OpenEnded.
	OpenMembership(ctx context.Context, memberNumber int) (*models.Membership, bool, error)
	MembershipsOf(ctx context.Context, memberNumber int) ([]models.Membership, error)
	// DepositsWithOwners returns every deposit with Membership and Membership.Member set.
	DepositsWithOwners(ctx context.Context) ([]models.Deposit, error)
	Commit(ctx context.Context, changes *ChangeSet) error
	Close() error
}

// StoreOpener establishes a new store session.
type StoreOpener func(ctx context.Context) (MembershipStore, error)

// ChangeSet collects the pending writes of one ledger operation. Commit
// fills in store-assigned identities on the new records.
type ChangeSet struct {
	NewMembers        []*models.Member
	RemovedMembers    []int
	NewMemberships    []*models.Membership
	ClosedMemberships []*models.Membership
	NewDeposits       []*models.Deposit
}

func (c *ChangeSet) Empty() bool {
	return c == nil ||
		len(c.NewMembers) == 0 &&
			len(c.RemovedMembers) == 0 &&
			len(c.NewMemberships) == 0 &&
			len(c.ClosedMemberships) == 0 &&
			len(c.NewDeposits) == 0
}
