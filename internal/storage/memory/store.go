package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/club-membership-ledger/internal/interfaces"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
)

var ErrClosed = errors.New("memory store is closed")

// MemoryMembershipStore keeps members, memberships and deposits in maps.
// Commit validates the whole ChangeSet before touching any map, so a
// failed commit leaves the store unchanged.
type MemoryMembershipStore struct {
	mu          sync.Mutex
	members     map[int]models.Member
	memberships map[int64]models.Membership
	deposits    map[int64]models.Deposit

	lastMember     int
	lastMembership int64
	lastDeposit    int64
	closed         bool
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{
		members:     make(map[int]models.Member),
		memberships: make(map[int64]models.Membership),
		deposits:    make(map[int64]models.Deposit),
	}
}

func (m *MemoryMembershipStore) FindMember(ctx context.Context, number int) (*models.Member, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}

	member, ok := m.members[number]
	if !ok {
		return nil, false, nil
	}
	return &member, true, nil
}

func (m *MemoryMembershipStore) LastNameTaken(ctx context.Context, lastName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	return m.lastNameTakenLocked(lastName), nil
}

func (m *MemoryMembershipStore) lastNameTakenLocked(lastName string) bool {
	for _, member := range m.members {
		if member.LastName == lastName {
			return true
		}
	}
	return false
}

func (m *MemoryMembershipStore) ActiveMembership(ctx context.Context, memberNumber int, at time.Time) (*models.Membership, bool, error) {
	return m.firstMembership(memberNumber, func(ms models.Membership) bool { return ms.ActiveAt(at) })
}

func (m *MemoryMembershipStore) OpenMembership(ctx context.Context, memberNumber int) (*models.Membership, bool, error) {
	return m.firstMembership(memberNumber, models.Membership.IsOpen)
}

func (m *MemoryMembershipStore) firstMembership(memberNumber int, match func(models.Membership) bool) (*models.Membership, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}

	for _, ms := range m.membershipsOfLocked(memberNumber) {
		if match(ms) {
			return &ms, true, nil
		}
	}
	return nil, false, nil
}

func (m *MemoryMembershipStore) MembershipsOf(ctx context.Context, memberNumber int) ([]models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.membershipsOfLocked(memberNumber), nil
}

// membershipsOfLocked returns copies ordered by Begin, then ID.
func (m *MemoryMembershipStore) membershipsOfLocked(memberNumber int) []models.Membership {
	var result []models.Membership
	for _, ms := range m.memberships {
		if ms.MemberNumber == memberNumber {
			ms.Member = nil
			result = append(result, ms)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Begin.Equal(result[j].Begin) {
			return result[i].Begin.Before(result[j].Begin)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *MemoryMembershipStore) DepositsWithOwners(ctx context.Context) ([]models.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	result := make([]models.Deposit, 0, len(m.deposits))
	for _, d := range m.deposits {
		ms := m.memberships[d.MembershipID]
		member := m.members[ms.MemberNumber]
		ms.Member = &member
		d.Membership = &ms
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryMembershipStore) Commit(ctx context.Context, changes *interfaces.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if changes.Empty() {
		return nil
	}
	if err := m.validateLocked(changes); err != nil {
		return err
	}

	for _, member := range changes.NewMembers {
		m.lastMember++
		member.Number = m.lastMember
		m.members[member.Number] = *member
	}
	for _, number := range changes.RemovedMembers {
		m.removeMemberLocked(number)
	}
	for _, ms := range changes.NewMemberships {
		if ms.MemberNumber == 0 && ms.Member != nil {
			ms.MemberNumber = ms.Member.Number
		}
		m.lastMembership++
		ms.ID = m.lastMembership
		stored := *ms
		stored.Member = nil
		m.memberships[ms.ID] = stored
	}
	for _, ms := range changes.ClosedMemberships {
		stored := m.memberships[ms.ID]
		stored.End = ms.End
		m.memberships[ms.ID] = stored
	}
	for _, d := range changes.NewDeposits {
		if d.MembershipID == 0 && d.Membership != nil {
			d.MembershipID = d.Membership.ID
		}
		m.lastDeposit++
		d.ID = m.lastDeposit
		stored := *d
		stored.Membership = nil
		m.deposits[d.ID] = stored
	}
	return nil
}

func (m *MemoryMembershipStore) validateLocked(changes *interfaces.ChangeSet) error {
	pending := make(map[string]bool)
	for _, member := range changes.NewMembers {
		if m.lastNameTakenLocked(member.LastName) || pending[member.LastName] {
			return fmt.Errorf("member last name %q: %w", member.LastName, interfaces.ErrUniqueViolation)
		}
		pending[member.LastName] = true
	}
	for _, number := range changes.RemovedMembers {
		if _, ok := m.members[number]; !ok {
			return fmt.Errorf("remove member %d: not found", number)
		}
	}
	for _, ms := range changes.NewMemberships {
		if ms.Member != nil && ms.MemberNumber == 0 {
			continue
		}
		if _, ok := m.members[ms.MemberNumber]; !ok {
			return fmt.Errorf("insert membership: member %d not found", ms.MemberNumber)
		}
	}
	for _, ms := range changes.ClosedMemberships {
		if _, ok := m.memberships[ms.ID]; !ok {
			return fmt.Errorf("close membership %d: not found", ms.ID)
		}
	}
	for _, d := range changes.NewDeposits {
		if d.Membership != nil && d.MembershipID == 0 {
			continue
		}
		if _, ok := m.memberships[d.MembershipID]; !ok {
			return fmt.Errorf("insert deposit: membership %d not found", d.MembershipID)
		}
	}
	return nil
}

func (m *MemoryMembershipStore) removeMemberLocked(number int) {
	delete(m.members, number)
	for id, ms := range m.memberships {
		if ms.MemberNumber != number {
			continue
		}
		for depositID, d := range m.deposits {
			if d.MembershipID == id {
				delete(m.deposits, depositID)
			}
		}
		delete(m.memberships, id)
	}
}

// Close marks the store unusable; calling it again is a no-op.
func (m *MemoryMembershipStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Compile-time check: ensure MemoryMembershipStore implements MembershipStore
var _ interfaces.MembershipStore = (*MemoryMembershipStore)(nil)
