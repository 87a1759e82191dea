package ledger

import "errors"

// Errors returned by Ledger operations. Match them with errors.Is; the
// returned errors wrap these sentinels with detail.
var (
	ErrNotInitialized     = errors.New("ledger store not initialized")
	ErrAlreadyInitialized = errors.New("ledger store already initialized")
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrDuplicateName      = errors.New("a member with this last name already exists")
	ErrAlreadyMember      = errors.New("member already has an active membership")
	ErrNoActiveMembership = errors.New("member has no active membership")
)

// ErrStoreFailure wraps any failure of the underlying store. After a failed
// commit the store guarantees nothing was written.
var ErrStoreFailure = errors.New("store failure")
