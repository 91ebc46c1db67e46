// Package mempool is the bounded, FIFO-ordered buffer of pending
// transactions awaiting inclusion in a mined block.
package mempool

import (
	"github.com/rubinchain/chaind/consensus"
)

// DefaultCapacity is the maximum number of pending transactions held when no
// explicit capacity is configured.
const DefaultCapacity = 1000

// Pool is a bounded FIFO set of pending transactions, deduplicated by
// transaction hash. When a transaction is added at capacity, the oldest
// pending transaction is evicted to make room.
type Pool struct {
	capacity int
	order    [][32]byte
	byHash   map[[32]byte]consensus.Transaction
}

// New returns an empty Pool with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		byHash:   make(map[[32]byte]consensus.Transaction),
	}
}

// Add inserts tx if it is not already present. If the pool is at capacity,
// the oldest pending transaction is evicted first. Returns false if tx was
// already present (a no-op).
func (p *Pool) Add(tx consensus.Transaction) bool {
	hash := tx.Hash()
	if _, exists := p.byHash[hash]; exists {
		return false
	}
	if len(p.order) >= p.capacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.byHash, oldest)
	}
	p.order = append(p.order, hash)
	p.byHash[hash] = tx
	return true
}

// Take returns up to maxCount pending transactions in FIFO order, without
// removing them from the pool. A non-positive maxCount returns every pending
// transaction.
func (p *Pool) Take(maxCount int) []consensus.Transaction {
	if maxCount <= 0 || maxCount > len(p.order) {
		maxCount = len(p.order)
	}
	out := make([]consensus.Transaction, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		out = append(out, p.byHash[p.order[i]])
	}
	return out
}

// Remove deletes the given transaction hashes from the pool, silently
// ignoring hashes that are not present.
func (p *Pool) Remove(hashes [][32]byte) {
	if len(hashes) == 0 {
		return
	}
	toRemove := make(map[[32]byte]struct{}, len(hashes))
	for _, h := range hashes {
		toRemove[h] = struct{}{}
	}
	filtered := p.order[:0:0]
	for _, h := range p.order {
		if _, remove := toRemove[h]; remove {
			delete(p.byHash, h)
			continue
		}
		filtered = append(filtered, h)
	}
	p.order = filtered
}

// Size returns the number of pending transactions.
func (p *Pool) Size() int {
	return len(p.order)
}

// IsEmpty reports whether the pool holds no pending transactions.
func (p *Pool) IsEmpty() bool {
	return len(p.order) == 0
}
