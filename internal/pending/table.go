package pending

import (
	"math"
	"math/rand"
	"sync"
)

// Table maps outstanding request tokens to their futures. Tokens are random
// non-zero 31-bit integers drawn from a per-session source seeded at
// construction; a draw that collides with a token still awaiting its reply
// is re-drawn, so tokens are unique among currently outstanding requests.
//
// The table has its own lock, independent of the connection lock, so request
// bookkeeping is never serialized behind reconnects.
type Table struct {
	mu      sync.Mutex
	rng     *rand.Rand
	pending map[uint32]*Future
}

// NewTable returns an empty table with its own token source.
func NewTable(seed int64) *Table {
	return &Table{
		rng:     rand.New(rand.NewSource(seed)),
		pending: make(map[uint32]*Future),
	}
}

func (t *Table) draw() uint32 {
	for {
		tok := uint32(t.rng.Int31n(math.MaxInt32)) + 1
		if _, taken := t.pending[tok]; !taken {
			return tok
		}
	}
}

// Register draws a fresh token and records a new future under it.
func (t *Table) Register() (uint32, *Future) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok := t.draw()
	fut := NewFuture()
	t.pending[tok] = fut
	return tok, fut
}

// Token draws a fresh token without registering a future, for sends that
// expect no reply.
func (t *Table) Token() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draw()
}

// Remove looks up and unregisters the future for a token, or nil when the
// token is unknown (stale reply, or already resolved).
func (t *Table) Remove(token uint32) *Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	fut := t.pending[token]
	delete(t.pending, token)
	return fut
}

// Drop unregisters a token without completing its future. Used when
// transmission fails after registration: no caller ever waits on a request
// that was never sent.
func (t *Table) Drop(token uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, token)
}

// CancelAll cancels and unregisters every outstanding future. Called when
// the owning connection is torn down.
func (t *Table) CancelAll() {
	t.mu.Lock()
	futures := make([]*Future, 0, len(t.pending))
	for tok, fut := range t.pending {
		futures = append(futures, fut)
		delete(t.pending, tok)
	}
	t.mu.Unlock()

	// Complete outside the lock; Cancel never blocks but waiters may run
	// callbacks as soon as done closes.
	for _, fut := range futures {
		fut.Cancel()
	}
}

// Len reports how many requests are outstanding.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
