package buffer_pool

import (
	"sort"
	"time"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
	"github.com/naver/rye-pgbuf/server/innodb/txnctx"
)

// flushWithWAL is the one primitive every flush path funnels through:
// mark the BCB avoid_victim so nothing can unhash or evict it out from
// under the snapshot, release the BCB mutex, call the log manager's
// WAL barrier, write to disk, then reacquire the mutex, clear dirty
// and avoid_victim (spec.md §4.7, §5 "WAL rule"). The mutex must never
// be held across the log call or the disk write — both can block
// arbitrarily long, and holding the BCB mutex there would stall every
// other thread latching or unlatching this page.
func (p *BufferPool) flushWithWAL(c *bcb) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	vpid := c.vpid()
	lsa := c.page.LSA()
	snapshot := make([]byte, len(c.page.Raw()))
	copy(snapshot, c.page.Raw())
	c.avoidVictim = true
	c.asyncFlushRequest = false
	c.mu.Unlock()

	flushErr := func() error {
		if p.log != nil && !lsa.IsNull() {
			if err := p.log.FlushLogUpTo(lsa); err != nil {
				return wrapIO("flush", err)
			}
		}
		if err := p.disk.Write(vpid, snapshot); err != nil {
			return wrapIO("flush", err)
		}
		p.stats.recordWrite()
		return nil
	}()

	c.mu.Lock()
	c.avoidVictim = false
	// Only clear dirty if nobody re-dirtied the page with a newer LSA
	// while we were outside the mutex.
	if flushErr == nil && c.page.LSA() == lsa {
		c.dirty = false
		c.oldestUnflushLSA = common.NullLSA
	}
	c.mu.Unlock()
	return flushErr
}

// Flush forces vpid to disk if it is currently dirty and buffered. It
// is a caller-facing operation, not a fix — it does not require the
// caller to hold a latch on the page (spec.md §4.7).
func (p *BufferPool) Flush(vpid common.VPID) error {
	b := p.hash.bucketFor(vpid)
	b.mu.Lock()
	c := p.hash.lookupLocked(b, vpid)
	b.mu.Unlock()
	if c == nil {
		return nil
	}
	return p.flushWithWAL(c)
}

// FlushAll walks every BCB and flushes the dirty ones. If unfixedOnly
// is set, a BCB currently fixed by some thread is skipped rather than
// flushed underneath its holder (spec.md §4.7 flush_all_unfixed).
func (p *BufferPool) FlushAll(unfixedOnly bool) error {
	var firstErr error
	for _, c := range p.bcbs {
		c.mu.Lock()
		dirty := c.dirty
		fixed := c.fixCount > 0
		c.mu.Unlock()
		if !dirty {
			continue
		}
		if unfixedOnly && fixed {
			continue
		}
		if err := p.flushWithWAL(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushFixedForRead flushes a dirty page that's currently latched by
// some other fixer in read mode: it re-fixes the page itself in read
// mode (compatible with the existing reader), flushes it through the
// normal avoid_victim-guarded path, then drops its own fix (spec.md
// §4.7 "mark avoid_victim, drop mutex, re-fix for read, flush, unfix").
// The re-fix is conditional — if a queued writer means it can't be
// granted immediately, the frame is left dirty for the next checkpoint
// rather than stalling this one behind that writer.
func (p *BufferPool) flushFixedForRead(vpid common.VPID) (flushed bool, err error) {
	h, ferr := p.Fix(txnctx.Background{}, p.checkpointThread, vpid, false, latch.ModeRead, true, common.PageTypeUnknown)
	if ferr != nil {
		if IsPageTimeout(ferr) {
			return false, nil
		}
		return false, ferr
	}
	flushErr := p.flushWithWAL(h.bcb)
	if uerr := p.Unfix(p.checkpointThread, h, false, common.NullLSA); uerr != nil && flushErr == nil {
		flushErr = uerr
	}
	return flushErr == nil, flushErr
}

// FlushCheckpoint flushes every dirty page whose oldest unflushed LSA
// is at or behind flushUpToLSA, first barriering the log up to that
// LSA (spec.md §4.7 flush_checkpoint). It returns the smallest
// oldest_unflush_lsa among frames left dirty afterward — the floor the
// next checkpoint's redo LSA can safely advance to — or NullLSA if
// nothing was left dirty. A frame whose oldest LSA precedes
// prevChkptRedoLSA indicates the previous checkpoint's bookkeeping was
// wrong; it is logged and reported as ErrInvariantViolated without
// aborting the rest of the sweep. A frame latched for write is never snapshotted
// concurrently — the writer may be mutating the page body — and is
// folded into the returned floor instead, with async_flush_request set
// so the Unfix that drops its last fix flushes it; a frame latched for read is
// flushed via flushFixedForRead.
func (p *BufferPool) FlushCheckpoint(flushUpToLSA, prevChkptRedoLSA common.LSA) (common.LSA, error) {
	if p.log != nil {
		if err := p.log.FlushLogUpTo(flushUpToLSA); err != nil {
			return common.NullLSA, wrapIO("flush_checkpoint", err)
		}
	}

	var firstErr error
	smallest := common.NullLSA
	fold := func(oldest common.LSA) {
		if smallest.IsNull() || oldest.Less(smallest) {
			smallest = oldest
		}
	}
	for _, c := range p.bcbs {
		c.mu.Lock()
		dirty := c.dirty
		oldest := c.oldestUnflushLSA
		fixed := c.fixCount > 0
		writeLatched := c.latchMode == latch.ModeWrite
		vpid := c.vpid()
		c.mu.Unlock()
		if !dirty {
			continue
		}
		if oldest.Less(prevChkptRedoLSA) {
			p.logger.Warnf("buffer_pool: page %s oldest unflushed LSA %s precedes previous checkpoint redo LSA %s", vpid, oldest, prevChkptRedoLSA)
			if firstErr == nil {
				firstErr = newError("flush_checkpoint", ErrInvariantViolated)
			}
		}
		if flushUpToLSA.Less(oldest) {
			fold(oldest)
			continue
		}
		if fixed && writeLatched {
			c.mu.Lock()
			c.asyncFlushRequest = true
			c.mu.Unlock()
			fold(oldest)
			continue
		}
		if fixed {
			flushed, err := p.flushFixedForRead(vpid)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if !flushed {
				fold(oldest)
			}
			continue
		}
		if err := p.flushWithWAL(c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return smallest, firstErr
}

// backgroundFlusher calls FlushVictimCandidate every
// cfg.CheckpointInterval with cfg.FlushRatio as the fraction of one LRU
// list to scan, cleaning dirty, unfixed frames near the list bottoms so
// a later Fix miss is less likely to find only dirty victims (spec.md
// §4.7, §13 flush_victim_candidate). It does not measure the dirty
// fraction of any list.
func (p *BufferPool) backgroundFlusher() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.FlushVictimCandidate(p.cfg.FlushRatio); err != nil {
				p.logger.WithError(err).Warn("buffer_pool: background flush failed")
			}
		}
	}
}

// flushCandidate pairs a dirty BCB with the (vpid, lsa) it was
// snapshotted under at scan time, so FlushVictimCandidate can sort and
// schedule the batch without re-locking each BCB to re-read them.
type flushCandidate struct {
	c    *bcb
	vpid common.VPID
	lsa  common.LSA
}

// FlushVictimCandidate scans up to max(1, per-list-capacity*flushRatio)
// frames from the bottom of one LRU list per call, round-robining
// through (last_flushed_list_idx+1) mod num_lru_lists so repeated calls
// eventually cover every list instead of always favoring list 0
// (spec.md §4.7, §6, §13 flush_victim_candidate). Frames found unfixed,
// dirty, and not already being flushed are collected and sorted by
// (volid, pageid) to amortize IO, then flushed in two passes: pages
// already durable in the log first, then the rest (forcing the WAL
// barrier), so a page already synced never pays for a barrier it
// doesn't need.
func (p *BufferPool) FlushVictimCandidate(flushRatio float64) error {
	if len(p.lru) == 0 {
		return nil
	}

	p.flushListIdxMu.Lock()
	idx := (p.lastFlushedListIdx + 1) % len(p.lru)
	p.lastFlushedListIdx = idx
	p.flushListIdxMu.Unlock()
	p.logger.WithField("lru_list", idx).Debug("buffer_pool: flush_victim_candidate start")

	perListCapacity := p.cfg.NumBuffers / len(p.lru)
	if perListCapacity < 1 {
		perListCapacity = 1
	}
	capacity := int(float64(perListCapacity) * flushRatio)
	if capacity < 1 {
		capacity = 1
	}

	list := p.lru[idx]
	var candidates []flushCandidate
	list.mu.Lock()
	checked := 0
	for i := list.tail; i != -1 && checked < capacity; checked++ {
		c := list.bcbs[i]
		i = c.lruPrev
		c.mu.Lock()
		if c.dirty && c.fixCount == 0 && c.latchMode == latch.ModeNone && !c.avoidVictim {
			candidates = append(candidates, flushCandidate{c: c, vpid: c.vpid(), lsa: c.page.LSA()})
		}
		c.mu.Unlock()
	}
	list.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].vpid.Volume != candidates[j].vpid.Volume {
			return candidates[i].vpid.Volume < candidates[j].vpid.Volume
		}
		return candidates[i].vpid.Page < candidates[j].vpid.Page
	})

	var deferred []flushCandidate
	var firstErr error
	flushOne := func(cand flushCandidate) {
		if err := p.flushWithWAL(cand.c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, cand := range candidates {
		if p.log != nil && p.log.NeedWAL(cand.lsa) {
			deferred = append(deferred, cand)
			continue
		}
		flushOne(cand)
	}
	for _, cand := range deferred {
		flushOne(cand)
	}
	p.logger.WithField("lru_list", idx).WithField("candidates", len(candidates)).Debug("buffer_pool: flush_victim_candidate end")
	return firstErr
}
