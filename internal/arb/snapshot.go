package arb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"arbScope/internal/dex"
)

// ErrMissingAccount is cached for accounts a batch fetch reported as absent.
var ErrMissingAccount = errors.New("account missing from snapshot fetch")

type snapshotEntry struct {
	data []byte
	err  error
}

// Snapshot is a read-through account cache. Every account is fetched at most
// once; later reads return the same bytes, or the same error.
type Snapshot struct {
	source dex.AccountSource

	mu      sync.Mutex
	entries map[solana.PublicKey]snapshotEntry
}

func NewSnapshot(source dex.AccountSource) *Snapshot {
	return &Snapshot{
		source:  source,
		entries: make(map[solana.PublicKey]snapshotEntry),
	}
}

// FetchAccount implements dex.AccountSource.
func (s *Snapshot) FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[address]; ok {
		return entry.data, entry.err
	}
	if s.source == nil {
		err := fmt.Errorf("no account source for %s", address)
		s.entries[address] = snapshotEntry{err: err}
		return nil, err
	}

	data, err := s.source.FetchAccount(ctx, address)
	s.entries[address] = snapshotEntry{data: data, err: err}
	return data, err
}

// Prefetch loads addresses in one round trip when the source supports batch
// fetches. Addresses already cached are skipped. A failed batch leaves the
// snapshot untouched so single reads can still try.
func (s *Snapshot) Prefetch(ctx context.Context, addresses []solana.PublicKey) error {
	batch, ok := s.source.(dex.BatchAccountSource)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[solana.PublicKey]struct{}, len(addresses))
	pending := make([]solana.PublicKey, 0, len(addresses))
	for _, address := range addresses {
		if _, cached := s.entries[address]; cached {
			continue
		}
		if _, dup := seen[address]; dup {
			continue
		}
		seen[address] = struct{}{}
		pending = append(pending, address)
	}
	if len(pending) == 0 {
		return nil
	}

	data, err := batch.FetchAccounts(ctx, pending)
	if err != nil {
		return fmt.Errorf("prefetch %d accounts: %w", len(pending), err)
	}
	if len(data) != len(pending) {
		return fmt.Errorf("prefetch: got %d accounts for %d addresses", len(data), len(pending))
	}
	for i, address := range pending {
		if data[i] == nil {
			s.entries[address] = snapshotEntry{err: fmt.Errorf("%w: %s", ErrMissingAccount, address)}
			continue
		}
		s.entries[address] = snapshotEntry{data: data[i]}
	}
	return nil
}

// Len returns the number of cached accounts, including cached failures.
func (s *Snapshot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
