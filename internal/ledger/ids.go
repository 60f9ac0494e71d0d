package ledger

import (
	"crypto/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	depositReferencePrefix  = "dep_"
	transferReferencePrefix = "tx_"
	walletNumberPrefix      = "WAL-"
)

// NewDepositReference returns a fresh reference for a gateway deposit.
func NewDepositReference() string {
	return depositReferencePrefix + uuid.NewString()
}

// NewTransferReference returns a fresh reference for a wallet-to-wallet transfer.
func NewTransferReference() string {
	return transferReferencePrefix + uuid.NewString()
}

// LockOrder returns the distinct ids sorted ascending. Every unit of work
// that locks more than one wallet acquires the locks in this order, so two
// transfers in opposite directions can never wait on each other.
func LockOrder(ids ...string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// NumberAllocator hands out human-facing wallet numbers. Numbers are
// monotonic ULIDs, so two allocations in the same millisecond still differ;
// callers retry on the unique constraint for cross-process collisions.
type NumberAllocator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewNumberAllocator creates an allocator seeded from crypto/rand.
func NewNumberAllocator() *NumberAllocator {
	return &NumberAllocator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a new wallet number such as WAL-01HZX3K9Q7W8V5T4R3P2N1M0KJ.
func (a *NumberAllocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(a.now()), a.entropy)
	return walletNumberPrefix + id.String()
}
