package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ggonzalez94/walletd/internal/vault"
)

// Record is one custodial wallet at rest: the derived address plus the
// encrypted private key. Exactly one record exists per session id. Records
// are never deleted; the key changes only through vault re-encryption.
type Record struct {
	Address   string
	Key       vault.Sealed
	CreatedAt time.Time
}

// Store persists wallet records keyed by session id. Implementations must
// be safe for concurrent use across sessions.
type Store interface {
	// PutIfAbsent stores rec unless the session already has a record. It
	// returns the record that owns the session after the call and whether
	// rec was the one stored. The check and insert are atomic so racing
	// creators converge on a single record.
	PutIfAbsent(ctx context.Context, sessionID string, rec Record) (Record, bool, error)
	Get(ctx context.Context, sessionID string) (Record, bool, error)
}

// MemoryStore keeps records in process memory. This is the reference
// backend; anything durable should use the sqlite store instead.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) PutIfAbsent(_ context.Context, sessionID string, rec Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[sessionID]; ok {
		return existing, false, nil
	}
	m.records[sessionID] = rec
	return rec, true, nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sessionID]
	return rec, ok, nil
}
