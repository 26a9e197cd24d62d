package buffer_pool

import (
	"testing"
	"time"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/diskio"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
	"github.com/naver/rye-pgbuf/server/innodb/logmgr"
	"github.com/naver/rye-pgbuf/server/innodb/thread"
	"github.com/naver/rye-pgbuf/server/innodb/txnctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 256

type testCtx struct {
	wait txnctx.WaitMsec
}

func (c testCtx) TranIndex() int                 { return 1 }
func (c testCtx) WaitMsec() txnctx.WaitMsec       { return c.wait }
func (c testCtx) IsCurrentActive() bool           { return true }
func (c testCtx) ClientInfo() txnctx.ClientInfo   { return txnctx.ClientInfo{Program: "test"} }

func unconditional() testCtx { return testCtx{wait: txnctx.WaitInfinite} }
func noWait() testCtx        { return testCtx{wait: txnctx.WaitZero} }

func newTestPool(t *testing.T, numBuffers, numLRULists int) (*BufferPool, *diskio.MemDisk, *logmgr.FakeManager, *thread.Registry) {
	t.Helper()
	disk := diskio.NewMemDisk(testPageSize)
	disk.AddVolume(1, "vol1", 1000, false)
	log := logmgr.NewFakeManager()
	threads := thread.NewRegistry()
	cfg := Config{
		PageSize:           testPageSize,
		NumBuffers:         numBuffers,
		NumLRULists:        numLRULists,
		HotRatio:           0.5,
		NumHashBuckets:     31,
		FlushRatio:         0.25,
		CheckpointInterval: 20 * time.Millisecond,
	}
	pool := New(cfg, disk, log, threads, nil)
	return pool, disk, log, threads
}

// S1: miss-then-hit.
func TestFixNewThenReadHit(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 4, 1)
	th := threads.NewEntry()
	vpid := common.VPID{Volume: 1, Page: 10}

	h, err := pool.FixNew(unconditional(), th, vpid, common.PageTypeHeap)
	require.NoError(t, err)
	assert.Equal(t, vpid, h.Page().VPID())
	assert.Equal(t, common.InitPermanentLSA, h.Page().LSA())
	assert.Equal(t, common.PageTypeHeap, h.Page().Type())

	require.NoError(t, pool.Unfix(th, h, false, common.NullLSA))

	before := pool.Stats().Reads
	h2, err := pool.Fix(unconditional(), th, vpid, false, latch.ModeRead, false, common.PageTypeHeap)
	require.NoError(t, err)
	assert.Equal(t, pool.Stats().Reads, before, "hit must not perform disk IO")
	require.NoError(t, pool.Unfix(th, h2, false, common.NullLSA))
}

// S2: eviction.
func TestEvictionPicksLRUBottom(t *testing.T) {
	pool, disk, _, threads := newTestPool(t, 2, 1)
	disk.AddVolume(2, "vol2", 1000, false)
	th := threads.NewEntry()

	v1 := common.VPID{Volume: 1, Page: 1}
	v2 := common.VPID{Volume: 1, Page: 2}
	v3 := common.VPID{Volume: 2, Page: 5}

	h1, err := pool.FixNew(unconditional(), th, v1, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(th, h1, false, common.NullLSA))

	h2, err := pool.FixNew(unconditional(), th, v2, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(th, h2, false, common.NullLSA))

	before := pool.Stats().Evictions
	h3, err := pool.FixNew(unconditional(), th, v3, common.PageTypeHeap)
	require.NoError(t, err)
	assert.Equal(t, before+1, pool.Stats().Evictions)
	require.NoError(t, pool.Unfix(th, h3, false, common.NullLSA))

	// v1, the oldest untouched page, should have been reclaimed.
	b := pool.hash.bucketFor(v1)
	b.mu.Lock()
	c := pool.hash.lookupLocked(b, v1)
	b.mu.Unlock()
	assert.Nil(t, c)
}

// S3: dirty-evict triggers WAL before the disk write.
func TestDirtyEvictionFlushesWAL(t *testing.T) {
	// Two frames: the dirty one gets promoted to the hot zone on its
	// first unfix (spec.md §4.4 step 2) and a second, clean frame fills
	// the list's only remaining slot, so the victim sweep that follows
	// has exactly one cold, evictable candidate: the dirty one.
	pool, _, log, threads := newTestPool(t, 2, 1)
	th := threads.NewEntry()
	v1 := common.VPID{Volume: 1, Page: 7}

	h, err := pool.FixNew(unconditional(), th, v1, common.PageTypeHeap)
	require.NoError(t, err)
	lsa := common.LSA{PageID: 1, Offset: 42}
	pool.SetLSA(h, lsa)
	require.NoError(t, pool.Unfix(th, h, true, lsa))
	assert.True(t, pool.IsDirty(h))

	vfill := common.VPID{Volume: 1, Page: 9}
	hfill, err := pool.FixNew(unconditional(), th, vfill, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(th, hfill, false, common.NullLSA))

	v2 := common.VPID{Volume: 1, Page: 8}
	h2, err := pool.FixNew(unconditional(), th, v2, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(th, h2, false, common.NullLSA))

	require.NotEmpty(t, log.FlushCalls)
	assert.Equal(t, lsa, log.FlushCalls[0])
}

// S4: reader/writer fairness.
func TestReaderWriterFairness(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 4, 1)
	v1 := common.VPID{Volume: 1, Page: 1}

	t1, t2, t3, t4 := threads.NewEntry(), threads.NewEntry(), threads.NewEntry(), threads.NewEntry()

	h1, err := pool.FixNew(unconditional(), t1, v1, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(t1, h1, false, common.NullLSA))

	r1, err := pool.Fix(unconditional(), t1, v1, false, latch.ModeRead, false, common.PageTypeHeap)
	require.NoError(t, err)
	r2, err := pool.Fix(unconditional(), t2, v1, false, latch.ModeRead, false, common.PageTypeHeap)
	require.NoError(t, err)

	writeDone := make(chan error, 1)
	go func() {
		h, err := pool.Fix(unconditional(), t3, v1, false, latch.ModeWrite, false, common.PageTypeHeap)
		if err == nil {
			_ = pool.Unfix(t3, h, false, common.NullLSA)
		}
		writeDone <- err
	}()
	time.Sleep(30 * time.Millisecond) // let T3 queue

	readDone := make(chan error, 1)
	go func() {
		h, err := pool.Fix(unconditional(), t4, v1, false, latch.ModeRead, false, common.PageTypeHeap)
		if err == nil {
			_ = pool.Unfix(t4, h, false, common.NullLSA)
		}
		readDone <- err
	}()
	time.Sleep(30 * time.Millisecond) // let T4 queue behind the writer

	require.NoError(t, pool.Unfix(t1, r1, false, common.NullLSA))
	require.NoError(t, pool.Unfix(t2, r2, false, common.NullLSA))

	select {
	case err := <-writeDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer never granted")
	}
	select {
	case err := <-readDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reader never granted")
	}
}

// S5: conditional under no-wait.
func TestConditionalUnderNoWait(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 4, 1)
	t1, t2 := threads.NewEntry(), threads.NewEntry()
	v1 := common.VPID{Volume: 1, Page: 2}

	h1, err := pool.FixNew(unconditional(), t1, v1, common.PageTypeHeap)
	require.NoError(t, err)

	_, err = pool.Fix(noWait(), t2, v1, false, latch.ModeWrite, false, common.PageTypeHeap)
	require.Error(t, err)
	assert.True(t, IsPageTimeout(err))

	require.NoError(t, pool.Unfix(t1, h1, false, common.NullLSA))
}

// S6: checkpoint.
func TestFlushCheckpointSelectsByOldestLSA(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 8, 1)
	th := threads.NewEntry()

	mk := func(pageID common.PageID, oldest int64) {
		v := common.VPID{Volume: 1, Page: pageID}
		h, err := pool.FixNew(unconditional(), th, v, common.PageTypeHeap)
		require.NoError(t, err)
		lsa := common.LSA{PageID: oldest}
		pool.SetLSA(h, lsa)
		require.NoError(t, pool.Unfix(th, h, true, lsa))
	}
	mk(1, 10)
	mk(2, 20)
	mk(3, 30)
	mk(4, 40)

	smallest, err := pool.FlushCheckpoint(common.LSA{PageID: 25}, common.LSA{PageID: 5})
	require.NoError(t, err)
	assert.Equal(t, common.LSA{PageID: 30}, smallest)

	assert.False(t, pool.isDirtyVPID(common.VPID{Volume: 1, Page: 1}))
	assert.False(t, pool.isDirtyVPID(common.VPID{Volume: 1, Page: 2}))
	assert.True(t, pool.isDirtyVPID(common.VPID{Volume: 1, Page: 3}))
	assert.True(t, pool.isDirtyVPID(common.VPID{Volume: 1, Page: 4}))
}

func (p *BufferPool) isDirtyVPID(vpid common.VPID) bool {
	b := p.hash.bucketFor(vpid)
	b.mu.Lock()
	c := p.hash.lookupLocked(b, vpid)
	b.mu.Unlock()
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Invariant 7: same-thread read reentrancy never blocks.
func TestReadReentrancyDoesNotBlock(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 4, 1)
	th := threads.NewEntry()
	v1 := common.VPID{Volume: 1, Page: 1}

	h1, err := pool.FixNew(unconditional(), th, v1, common.PageTypeHeap)
	require.NoError(t, err)
	require.NoError(t, pool.Unfix(th, h1, false, common.NullLSA))

	r1, err := pool.Fix(unconditional(), th, v1, false, latch.ModeRead, false, common.PageTypeHeap)
	require.NoError(t, err)
	r2, err := pool.Fix(unconditional(), th, v1, false, latch.ModeRead, false, common.PageTypeHeap)
	require.NoError(t, err)

	require.NoError(t, pool.Unfix(th, r1, false, common.NullLSA))
	require.NoError(t, pool.Unfix(th, r2, false, common.NullLSA))
}

// Invariant 10: a conditional fix that fails changes no shared state.
func TestConditionalFailureLeavesFixCountUnchanged(t *testing.T) {
	pool, _, _, threads := newTestPool(t, 4, 1)
	t1, t2 := threads.NewEntry(), threads.NewEntry()
	v1 := common.VPID{Volume: 1, Page: 1}

	h1, err := pool.FixNew(unconditional(), t1, v1, common.PageTypeHeap)
	require.NoError(t, err)

	before := h1.bcb.fixCount
	_, err = pool.Fix(unconditional(), t2, v1, false, latch.ModeWrite, true, common.PageTypeHeap)
	require.Error(t, err)
	assert.True(t, IsPageTimeout(err))
	assert.Equal(t, before, h1.bcb.fixCount)

	require.NoError(t, pool.Unfix(t1, h1, false, common.NullLSA))
}
