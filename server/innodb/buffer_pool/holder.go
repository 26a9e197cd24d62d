package buffer_pool

import (
	"sync"

	"github.com/naver/rye-pgbuf/server/innodb/latch"
)

// holderEntry records one thread's current latch on one BCB: the mode
// it holds and how many times it has fixed the page reentrantly.
type holderEntry struct {
	bcbIdx int
	mode   latch.Mode
	count  int
}

// holderTable is the per-thread record of which BCBs a caller currently
// holds, indexed by thread.Entry.Index() (spec.md §3 "Thread holder").
// It answers two questions the fix/unfix pipeline needs: is this
// caller's request on vpid a reentrant re-fix (grant immediately,
// bypass the wait queue), and which BCBs must be force-released when a
// session disconnects mid-transaction.
type holderTable struct {
	mu  sync.Mutex
	byT map[int]map[int]*holderEntry // thread index -> bcb index -> entry
}

func newHolderTable() *holderTable {
	return &holderTable{byT: make(map[int]map[int]*holderEntry)}
}

func (h *holderTable) find(threadIdx, bcbIdx int) *holderEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byT[threadIdx]
	if !ok {
		return nil
	}
	return m[bcbIdx]
}

func (h *holderTable) add(threadIdx, bcbIdx int, mode latch.Mode) *holderEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byT[threadIdx]
	if !ok {
		m = make(map[int]*holderEntry)
		h.byT[threadIdx] = m
	}
	e, ok := m[bcbIdx]
	if !ok {
		e = &holderEntry{bcbIdx: bcbIdx, mode: mode}
		m[bcbIdx] = e
	}
	e.count++
	return e
}

// upgrade reentrantly re-fixes an existing holder entry as a write
// latch, used when a thread that is the sole holder of a read latch
// asks to upgrade it (spec.md §4.3 "read -> write: immediate iff
// caller is the sole holder"). Caller has already verified soleness.
func (h *holderTable) upgrade(threadIdx, bcbIdx int) *holderEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.byT[threadIdx][bcbIdx]
	e.mode = latch.ModeWrite
	e.count++
	return e
}

// release decrements the reentrant count and removes the entry once it
// reaches zero. Reports the resulting count.
func (h *holderTable) release(threadIdx, bcbIdx int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byT[threadIdx]
	if !ok {
		return 0
	}
	e, ok := m[bcbIdx]
	if !ok {
		return 0
	}
	e.count--
	if e.count <= 0 {
		delete(m, bcbIdx)
		if len(m) == 0 {
			delete(h.byT, threadIdx)
		}
		return 0
	}
	return e.count
}

// all returns a stable snapshot of every holder entry a thread
// currently has; UnfixAll uses it for a forced unfix-all on session
// teardown.
func (h *holderTable) all(threadIdx int) []*holderEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byT[threadIdx]
	if !ok {
		return nil
	}
	out := make([]*holderEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}
