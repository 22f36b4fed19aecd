// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"sync"

	"github.com/iprotocol/blockchain/foundation/blockchain/database"
	"github.com/iprotocol/blockchain/foundation/blockchain/signature"
)

// ErrDuplicate is returned when a transaction with the same id is pending.
var ErrDuplicate = errors.New("transaction already in mempool")

// Mempool represents a cache of transactions waiting to be mined, kept in
// the order they arrived, with a second key on the transaction id.
type Mempool struct {
	mu    sync.RWMutex
	pool  []database.Tx
	index map[signature.Digest]struct{}
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{
		index: make(map[signature.Digest]struct{}),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add appends a transaction to the end of the mempool.
func (mp *Mempool) Add(tx database.Tx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.index[tx.ID]; exists {
		return len(mp.pool), ErrDuplicate
	}

	mp.pool = append(mp.pool, tx)
	mp.index[tx.ID] = struct{}{}

	return len(mp.pool), nil
}

// Contains reports whether a transaction with the id is pending.
func (mp *Mempool) Contains(id signature.Digest) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.index[id]
	return exists
}

// Delete removes the transactions from the mempool. The order of the
// remaining transactions is preserved.
func (mp *Mempool) Delete(trans ...database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	remove := make(map[signature.Digest]struct{}, len(trans))
	for _, tx := range trans {
		remove[tx.ID] = struct{}{}
	}

	pool := mp.pool[:0]
	for _, tx := range mp.pool {
		if _, exists := remove[tx.ID]; exists {
			delete(mp.index, tx.ID)
			continue
		}
		pool = append(pool, tx)
	}

	// Release references held past the new length.
	clear(mp.pool[len(pool):])
	mp.pool = pool
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
	mp.index = make(map[signature.Digest]struct{})
}

// PickBest returns a copy of the oldest transactions in arrival order. A
// value of -1 for howMany returns every pending transaction.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if howMany < 0 || howMany > len(mp.pool) {
		howMany = len(mp.pool)
	}

	trans := make([]database.Tx, howMany)
	copy(trans, mp.pool[:howMany])

	return trans
}

// LastNonce returns the highest nonce pending for the account and whether
// the account has any pending transaction.
func (mp *Mempool) LastNonce(accountID database.AccountID) (uint64, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var nonce uint64
	var found bool
	for _, tx := range mp.pool {
		if tx.FromAccount() != accountID {
			continue
		}
		if !found || tx.Nonce > nonce {
			nonce = tx.Nonce
		}
		found = true
	}

	return nonce, found
}
