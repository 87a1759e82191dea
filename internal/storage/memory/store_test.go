package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

func addMember(t *testing.T, store *MemoryMembershipStore, last string) *models.Member {
	t.Helper()
	member := &models.Member{FirstName: "A", LastName: last}
	require.NoError(t, store.Commit(context.Background(), &interfaces.ChangeSet{NewMembers: []*models.Member{member}}))
	return member
}

func TestCommitAssignsMonotonicNumbers(t *testing.T) {
	store := NewMemoryMembershipStore()

	first := addMember(t, store, "Lovelace")
	second := addMember(t, store, "Hopper")

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)

	got, found, err := store.FindMember(context.Background(), second.Number)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Hopper", got.LastName)

	_, found, err = store.FindMember(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCommitRejectsDuplicateLastNameWithoutPartialWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()
	addMember(t, store, "Lovelace")

	err := store.Commit(ctx, &interfaces.ChangeSet{NewMembers: []*models.Member{
		{FirstName: "B", LastName: "Babbage"},
		{FirstName: "C", LastName: "Lovelace"},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrUniqueViolation))

	taken, err := store.LastNameTaken(ctx, "Babbage")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestMembershipLookups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()
	member := addMember(t, store, "Lovelace")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	closed := &models.Membership{MemberNumber: member.Number, Begin: now.Add(-48 * time.Hour), End: now.Add(-24 * time.Hour)}
	open := &models.Membership{MemberNumber: member.Number, Begin: now.Add(-time.Hour), End: models.OpenEnded}
	require.NoError(t, store.Commit(ctx, &interfaces.ChangeSet{NewMemberships: []*models.Membership{closed, open}}))

	active, found, err := store.ActiveMembership(ctx, member.Number, now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, open.ID, active.ID)

	past, found, err := store.ActiveMembership(ctx, member.Number, now.Add(-30*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, closed.ID, past.ID)

	_, found, err = store.ActiveMembership(ctx, member.Number, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	gotOpen, found, err := store.OpenMembership(ctx, member.Number)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, open.ID, gotOpen.ID)

	history, err := store.MembershipsOf(ctx, member.Number)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, closed.ID, history[0].ID)
}

func TestRemoveMemberCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()
	ada := addMember(t, store, "Lovelace")
	grace := addMember(t, store, "Hopper")
	now := time.Now()

	adaMs := &models.Membership{MemberNumber: ada.Number, Begin: now, End: models.OpenEnded}
	graceMs := &models.Membership{MemberNumber: grace.Number, Begin: now, End: models.OpenEnded}
	require.NoError(t, store.Commit(ctx, &interfaces.ChangeSet{NewMemberships: []*models.Membership{adaMs, graceMs}}))
	require.NoError(t, store.Commit(ctx, &interfaces.ChangeSet{NewDeposits: []*models.Deposit{
		{MembershipID: adaMs.ID, Amount: decimal.NewFromInt(10)},
		{MembershipID: graceMs.ID, Amount: decimal.NewFromInt(20)},
	}}))

	require.NoError(t, store.Commit(ctx, &interfaces.ChangeSet{RemovedMembers: []int{ada.Number}}))

	deposits, err := store.DepositsWithOwners(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "Hopper", deposits[0].Membership.Member.LastName)

	history, err := store.MembershipsOf(ctx, ada.Number)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCommitRejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMembershipStore()

	assert.Error(t, store.Commit(ctx, &interfaces.ChangeSet{RemovedMembers: []int{1}}))
	assert.Error(t, store.Commit(ctx, &interfaces.ChangeSet{NewMemberships: []*models.Membership{{MemberNumber: 1}}}))
	assert.Error(t, store.Commit(ctx, &interfaces.ChangeSet{NewDeposits: []*models.Deposit{{MembershipID: 1}}}))
	assert.Error(t, store.Commit(ctx, &interfaces.ChangeSet{ClosedMemberships: []*models.Membership{{ID: 1}}}))
}

func TestCloseIsIdempotent(t *testing.T) {
	store := NewMemoryMembershipStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, _, err := store.FindMember(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
