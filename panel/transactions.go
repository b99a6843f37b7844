package panel

import (
	"sync"
	"time"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

// Tracker keeps the session's transaction notifications. Records are created
// pending, updated once on confirmation or failure, and never persisted
// beyond the session.
type Tracker struct {
	mu        sync.RWMutex
	byHash    map[string]*types.Transaction
	order     []string
	listeners []func(types.Transaction)
}

func NewTracker() *Tracker {
	return &Tracker{byHash: make(map[string]*types.Transaction)}
}

// Add records a newly submitted transaction as pending. Re-adding a known
// hash only updates the description.
func (t *Tracker) Add(hash, description string) types.Transaction {
	t.mu.Lock()
	tx, ok := t.byHash[hash]
	if ok {
		tx.Description = description
	} else {
		tx = &types.Transaction{
			Hash:        hash,
			Description: description,
			Status:      types.TxPending,
			Timestamp:   time.Now(),
		}
		t.byHash[hash] = tx
		t.order = append(t.order, hash)
	}
	snapshot := *tx
	listeners := t.listeners
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return snapshot
}

// Resolve marks a pending transaction confirmed or failed. Resolving an
// unknown hash or a non-pending record is a no-op.
func (t *Tracker) Resolve(hash string, status types.TransactionStatus) {
	if status != types.TxSuccess && status != types.TxError {
		return
	}

	t.mu.Lock()
	tx, ok := t.byHash[hash]
	if !ok || tx.Status != types.TxPending {
		t.mu.Unlock()
		return
	}
	tx.Status = status
	snapshot := *tx
	listeners := t.listeners
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// List returns the notifications in submission order.
func (t *Tracker) List() []types.Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Transaction, 0, len(t.order))
	for _, hash := range t.order {
		out = append(out, *t.byHash[hash])
	}
	return out
}

// Pending reports how many transactions are still awaiting confirmation.
func (t *Tracker) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, tx := range t.byHash {
		if tx.Status == types.TxPending {
			n++
		}
	}
	return n
}

// Clear drops every settled notification, keeping pending ones.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	for _, hash := range t.order {
		if t.byHash[hash].Status == types.TxPending {
			kept = append(kept, hash)
			continue
		}
		delete(t.byHash, hash)
	}
	t.order = kept
}

// Subscribe registers a callback invoked on every add and resolve.
func (t *Tracker) Subscribe(fn func(types.Transaction)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}
