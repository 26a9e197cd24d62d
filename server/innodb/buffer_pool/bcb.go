package buffer_pool

import (
	"sync"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/iopage"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
)

// allocState is a BCB's slot-allocation state, independent of its latch
// mode: a BCB moves between the invalid list and a live LRU list as
// alloc changes, the way the teacher's BufferPageState tracked a
// block's membership in the free list versus the LRU list.
type allocState uint8

const (
	// allocInvalid means the slot holds no page and sits on the
	// invalid list, the first place the victim search looks.
	allocInvalid allocState = iota
	// allocValid means the slot holds a hashed-in page and sits on one
	// of the LRU lists.
	allocValid
)

// zone is which half of its LRU list a valid BCB currently occupies
// (spec.md §4.5).
type zone uint8

const (
	zoneCold zone = iota
	zoneHot
)

// bcb is one buffer control block: one fixed page-sized slot plus the
// bookkeeping the hash index, LRU lists, and latch state machine thread
// through it. All intrusive links are slab indices, not pointers —
// idiomatic Go has no raw pointer arithmetic, and indices are what the
// original's BCB* links become once BCBs live in one contiguous slab
// (spec.md §9 Design Notes).
type bcb struct {
	idx int

	mu sync.Mutex

	page *iopage.Page

	alloc allocState
	zone  zone

	// hashPrev/hashNext link this BCB within its hash bucket's chain;
	// -1 is the sentinel for "no link".
	hashPrev, hashNext int
	hashBucket         int

	// lruPrev/lruNext link this BCB within its LRU list. lruList is not
	// assigned anywhere; the pool recomputes the list from the VPID
	// (VPID.Page mod NumLRULists) in lruListFor.
	lruPrev, lruNext int
	lruList          int

	// invPrev/invNext link this BCB on the invalid list (a LIFO stack,
	// so pop only follows invNext; both are kept so invalidList.remove
	// can unlink a BCB from the middle in O(1)).
	invPrev, invNext int

	latchMode latch.Mode
	waitQ     latch.Queue
	fixCount  int

	dirty            bool
	oldestUnflushLSA common.LSA

	// avoidVictim vetoes reuse while a flush has this BCB's body
	// snapshotted outside the BCB mutex (spec.md §3, §4.7): the victim
	// sweep skips it and hash.unlinkLocked refuses to unhash it, closing
	// the TOCTOU window between "this frame looks clean and idle" and
	// "this frame is actually still reachable".
	avoidVictim bool

	// asyncFlushRequest is set by FlushCheckpoint when it finds this
	// frame write-latched and dirty; Unfix honors it once fix_count
	// reaches zero instead of the flusher blocking on the write holder
	// (spec.md §3, §4.4 step 3). flushWithWAL clears it.
	asyncFlushRequest bool

	// recentlyFreedByFlush is a reserved flag for a BCB whose flush
	// completed while holders were queued on it (spec.md §4.3 open
	// question); nothing in the package sets or reads it.
	recentlyFreedByFlush bool
}

func newBCB(idx int, pageSize int) *bcb {
	return &bcb{
		idx:       idx,
		page:      iopage.New(uint32(pageSize)),
		alloc:     allocInvalid,
		hashPrev:  -1,
		hashNext:  -1,
		lruPrev:   -1,
		lruNext:   -1,
		invPrev:   -1,
		invNext:   -1,
		latchMode: latch.ModeNone,
	}
}

// vpid reads the BCB's current identity. Caller must hold b.mu, or be
// certain no concurrent mutator can run (e.g. during Init).
func (b *bcb) vpid() common.VPID { return b.page.VPID() }
