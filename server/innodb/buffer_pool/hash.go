package buffer_pool

import (
	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
	"github.com/naver/rye-pgbuf/util"
)

// bucket is one hash bucket: its own leaf mutex (outermost in the
// hierarchy — bucket before any BCB mutex), the head of its BCB chain,
// and the buffer-lock chain: a map of in-flight disk read-ins keyed by
// VPID, distinct from any BCB's latch state machine, that serializes
// concurrent misses on the same page (spec.md §4.2 "buffer lock").
type bucket struct {
	mu       latch.Latch
	head     int // BCB index, -1 if empty
	pending  map[common.VPID]*pendingRead
}

type pendingRead struct {
	done chan struct{}
	bcb  *bcb
	err  error
}

// hashIndex maps VPID to the BCB holding it, using util.HashCode (the
// teacher's xxhash-backed in-memory index hash, util/hash_utils.go) over
// the VPID's 6-byte wire form.
type hashIndex struct {
	buckets []*bucket
	bcbs    []*bcb
}

func newHashIndex(numBuckets int, bcbs []*bcb) *hashIndex {
	h := &hashIndex{buckets: make([]*bucket, numBuckets), bcbs: bcbs}
	for i := range h.buckets {
		h.buckets[i] = &bucket{head: -1, pending: make(map[common.VPID]*pendingRead)}
	}
	return h
}

func vpidBytes(vpid common.VPID) [6]byte {
	var b [6]byte
	b[0] = byte(vpid.Volume)
	b[1] = byte(vpid.Volume >> 8)
	b[2] = byte(vpid.Page)
	b[3] = byte(vpid.Page >> 8)
	b[4] = byte(vpid.Page >> 16)
	b[5] = byte(vpid.Page >> 24)
	return b
}

func (h *hashIndex) bucketIndex(vpid common.VPID) int {
	b := vpidBytes(vpid)
	sum := util.HashCode(b[:])
	return int(sum % uint64(len(h.buckets)))
}

func (h *hashIndex) bucketFor(vpid common.VPID) *bucket {
	return h.buckets[h.bucketIndex(vpid)]
}

// lookup finds the BCB currently holding vpid. Caller must hold b.mu.
func (h *hashIndex) lookupLocked(b *bucket, vpid common.VPID) *bcb {
	for i := b.head; i != -1; {
		cand := h.bcbs[i]
		if cand.alloc == allocValid && cand.vpid() == vpid {
			return cand
		}
		i = cand.hashNext
	}
	return nil
}

// publishLocked inserts c at the head of b's chain. Caller must hold
// b.mu and c.mu.
func (h *hashIndex) publishLocked(b *bucket, bucketIdx int, c *bcb) {
	c.hashPrev = -1
	c.hashNext = b.head
	c.hashBucket = bucketIdx
	if b.head != -1 {
		h.bcbs[b.head].hashPrev = c.idx
	}
	b.head = c.idx
}

// unlinkLocked removes c from its bucket's chain. Caller must hold
// the bucket mutex for c.hashBucket and c.mu. Reports false without
// unlinking if avoid_victim has become true since the caller decided
// to reclaim c — spec.md §4.1's TOCTOU recheck: a flush in flight may
// have snapshotted this BCB's body after the caller's victim sweep saw
// it idle and before the caller got here.
func (h *hashIndex) unlinkLocked(b *bucket, c *bcb) bool {
	if c.avoidVictim {
		return false
	}
	if c.hashPrev != -1 {
		h.bcbs[c.hashPrev].hashNext = c.hashNext
	} else {
		b.head = c.hashNext
	}
	if c.hashNext != -1 {
		h.bcbs[c.hashNext].hashPrev = c.hashPrev
	}
	c.hashPrev, c.hashNext = -1, -1
	return true
}

// beginRead registers vpid as being fetched from disk by the calling
// goroutine, or reports that another goroutine already owns the fetch
// and returns a channel that closes when it's done (spec.md §4.2: a
// second thread missing on the same VPID blocks on the buffer lock
// instead of issuing a redundant read).
func (h *hashIndex) beginRead(vpid common.VPID) (owner bool, wait *pendingRead) {
	b := h.bucketFor(vpid)
	b.mu.Lock()
	defer b.mu.Unlock()
	if pr, ok := b.pending[vpid]; ok {
		return false, pr
	}
	pr := &pendingRead{done: make(chan struct{})}
	b.pending[vpid] = pr
	return true, pr
}

// endRead completes the pending fetch for vpid, handing the result (or
// error) to anyone who was waiting on beginRead.
func (h *hashIndex) endRead(vpid common.VPID, c *bcb, err error) {
	b := h.bucketFor(vpid)
	b.mu.Lock()
	pr := b.pending[vpid]
	delete(b.pending, vpid)
	b.mu.Unlock()
	if pr == nil {
		return
	}
	pr.bcb = c
	pr.err = err
	close(pr.done)
}
