package buffer_pool

import (
	"strings"
	"time"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/diskio"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
	"github.com/naver/rye-pgbuf/server/innodb/thread"
	"github.com/naver/rye-pgbuf/server/innodb/txnctx"
)

// Fix latches vpid in the requested mode on behalf of th, reading it in
// from disk first if it isn't already buffered, or formatting a fresh
// page if isNewPage is set (spec.md §4.4 step 1, §6 `fix`). A
// conditional request returns ErrPageTimeout immediately instead of
// queuing when the latch can't be granted right away; an unconditional
// request queues and blocks for up to ctx.WaitMsec(), or indefinitely
// if ctx requests WaitInfinite, polling for interrupts at
// cfg.CheckpointInterval while it waits. On grant, expectedType is
// enforced against the page's stamped type (or stamped, for a new
// page) per the rules in §4.8.
func (p *BufferPool) Fix(ctx txnctx.Context, th *thread.Entry, vpid common.VPID, isNewPage bool, mode latch.Mode, conditional bool, expectedType common.PageType) (*PageHandle, error) {
	if mode != latch.ModeRead && mode != latch.ModeWrite {
		return nil, newError("fix", ErrInvariantViolated)
	}
	if isNewPage && (mode != latch.ModeWrite || conditional) {
		return nil, newError("fix", ErrInvariantViolated)
	}
	if ctx.WaitMsec() == txnctx.WaitZero {
		conditional = true
	}
	if th != nil && (th.IsInterrupted() || p.threads.IsInterruptPending(th)) {
		p.stats.recordInterrupt()
		return nil, newError("fix", ErrInterrupted)
	}

	h, err := p.fixLatch(ctx, th, vpid, isNewPage, mode, conditional)
	if err != nil {
		return nil, err
	}

	if isNewPage {
		p.SetPageType(h, expectedType)
		return h, nil
	}
	if !p.CheckPageType(h, expectedType) {
		_ = p.Unfix(th, h, false, common.NullLSA)
		return nil, newError("fix", ErrInvariantViolated)
	}
	return h, nil
}

// FixNew is fix_new from §6: always a write, unconditional, freshly
// formatted page.
func (p *BufferPool) FixNew(ctx txnctx.Context, th *thread.Entry, vpid common.VPID, pageType common.PageType) (*PageHandle, error) {
	return p.Fix(ctx, th, vpid, true, latch.ModeWrite, false, pageType)
}

// FixWithRetry retries Fix up to retryCount additional times on a
// timeout-class error (PageTimeout/AllBuffersFixedOrDirty), the
// retry wrapper named in §6 `fix_with_retry`.
func (p *BufferPool) FixWithRetry(ctx txnctx.Context, th *thread.Entry, vpid common.VPID, isNewPage bool, mode latch.Mode, retryCount int, pageType common.PageType) (*PageHandle, error) {
	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		h, err := p.Fix(ctx, th, vpid, isNewPage, mode, false, pageType)
		if err == nil {
			return h, nil
		}
		lastErr = err
		if !IsPageTimeout(err) && !IsAllBuffersFixedOrDirty(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// fixLatch is the latch-granting primitive: it resolves vpid to a BCB
// (reading it in on a miss) and runs the grant-rules state machine
// (spec.md §4.1-§4.3), without touching page-type stamping.
func (p *BufferPool) fixLatch(ctx txnctx.Context, th *thread.Entry, vpid common.VPID, isNewPage bool, mode latch.Mode, conditional bool) (*PageHandle, error) {
	b := p.hash.bucketFor(vpid)
	b.mu.Lock()
	c := p.hash.lookupLocked(b, vpid)
	if c == nil {
		b.mu.Unlock()
		return p.fixMiss(ctx, th, vpid, isNewPage, mode, conditional)
	}
	c.mu.Lock()
	b.mu.Unlock()
	return p.fixHit(ctx, th, c, mode, conditional)
}

// fixHit grants or queues a request against an already-buffered BCB.
// Caller passes c locked; fixHit always unlocks it before returning.
func (p *BufferPool) fixHit(ctx txnctx.Context, th *thread.Entry, c *bcb, mode latch.Mode, conditional bool) (*PageHandle, error) {
	if entry := p.holders.find(th.Index(), c.idx); entry != nil {
		// Reentrant re-fix: a thread that already holds the BCB is
		// granted immediately regardless of the queue, the way the
		// original treats a transaction's own repeated fix of a page it
		// is already touching (spec.md §4.1 "Reentrancy"). The one
		// exception is the read-to-write upgrade below.
		if mode == latch.ModeWrite && entry.mode == latch.ModeRead {
			if c.fixCount != entry.count {
				// Other threads also hold this page read-latched; an
				// upgrade here would have to wait them out like any
				// other writer, not jump the queue, so it is rejected
				// for conditional and unconditional requests alike.
				c.mu.Unlock()
				return nil, newError("fix", ErrInvariantViolated)
			}
			c.latchMode = latch.ModeWrite
			p.holders.upgrade(th.Index(), c.idx)
			c.fixCount++
			c.mu.Unlock()
			p.stats.recordFetch(true)
			return &PageHandle{bcb: c, mode: latch.ModeWrite}, nil
		}
		grantMode := entry.mode
		c.fixCount++
		p.holders.add(th.Index(), c.idx, grantMode)
		c.mu.Unlock()
		p.stats.recordFetch(true)
		return &PageHandle{bcb: c, mode: grantMode}, nil
	}

	if canGrantLocked(c, mode) {
		grantLocked(c, mode)
		c.mu.Unlock()
		p.holders.add(th.Index(), c.idx, mode)
		p.stats.recordFetch(true)
		return &PageHandle{bcb: c, mode: mode}, nil
	}

	if conditional {
		vpid := c.vpid()
		c.mu.Unlock()
		p.logPageTimeout(ctx, mode, vpid)
		return nil, newError("fix", ErrPageTimeout)
	}

	w := latch.NewWaiter(th.ID(), mode, 1)
	c.waitQ.PushBack(w)
	c.mu.Unlock()

	return p.waitForGrant(ctx, th, c, w, mode)
}

// waitForGrant blocks until w is granted, times out, or the caller is
// interrupted (spec.md §4.4 fairness, §7 Interrupted/PageTimeout).
func (p *BufferPool) waitForGrant(ctx txnctx.Context, th *thread.Entry, c *bcb, w *latch.Waiter, mode latch.Mode) (*PageHandle, error) {
	var timeoutCh <-chan time.Time
	wait := ctx.WaitMsec()
	if wait > 0 {
		timer := time.NewTimer(time.Duration(wait) * time.Millisecond)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	poll := time.NewTicker(p.cfg.CheckpointInterval)
	defer poll.Stop()

	for {
		select {
		case <-w.Ready:
			if w.Interrupt {
				p.stats.recordInterrupt()
				return nil, newError("fix", ErrInterrupted)
			}
			p.holders.add(th.Index(), c.idx, mode)
			p.stats.recordFetch(true)
			return &PageHandle{bcb: c, mode: mode}, nil

		case <-timeoutCh:
			c.mu.Lock()
			removed := c.waitQ.Remove(w)
			vpid := c.vpid()
			c.mu.Unlock()
			if removed {
				p.stats.recordTimeout()
				p.logPageTimeout(ctx, mode, vpid)
				return nil, newError("fix", ErrPageTimeout)
			}
			// Lost the race with a grant; fall through to observe Ready.

		case <-poll.C:
			if th.IsInterrupted() || p.threads.IsInterruptPending(th) {
				c.mu.Lock()
				removed := c.waitQ.Remove(w)
				c.mu.Unlock()
				if removed {
					p.stats.recordInterrupt()
					return nil, newError("fix", ErrInterrupted)
				}
			}
		}
	}
}

// canGrantLocked reports whether mode can be granted against c's
// current latch state without queuing (spec.md §4.1 grant-rules table).
// Caller holds c.mu.
func canGrantLocked(c *bcb, mode latch.Mode) bool {
	switch c.latchMode {
	case latch.ModeNone:
		return true
	case latch.ModeRead:
		if mode != latch.ModeRead {
			return false
		}
		// A read joins an existing read latch as long as no writer is
		// ahead of it in the queue (write requests aren't starved by an
		// unbounded stream of readers).
		return !c.waitQ.HasReaderOrWriter() || c.waitQ.NextIsRead()
	default:
		return false
	}
}

func grantLocked(c *bcb, mode latch.Mode) {
	c.latchMode = mode
	c.fixCount++
}

// fixMiss handles a request against a VPID not currently in the hash
// index: validate it against the disk layer, serialize concurrent
// misses on the same VPID through the buffer-lock chain, obtain a BCB
// (invalid list, else the victim sweep), read the page in (unless
// isNewPage, in which case it's simply formatted), and publish it
// (spec.md §4.2, §4.4 step 5).
func (p *BufferPool) fixMiss(ctx txnctx.Context, th *thread.Entry, vpid common.VPID, isNewPage bool, mode latch.Mode, conditional bool) (*PageHandle, error) {
	desc, err := p.disk.GetVolumeDescriptor(vpid.Volume)
	if err != nil {
		return nil, wrapIO("fix", err)
	}
	if vpid.Page < 0 || vpid.Page >= desc.NumPages {
		return nil, newError("fix", ErrBadPageID)
	}
	validity := diskio.PageValid
	if !isNewPage {
		validity, err = p.disk.IsPageValid(vpid.Volume, vpid.Page)
		if err != nil {
			return nil, wrapIO("fix", err)
		}
		if validity == diskio.PageOutOfBounds {
			return nil, newError("fix", ErrBadPageID)
		}
	}

	owner, pr := p.hash.beginRead(vpid)
	if !owner {
		if conditional {
			return nil, newError("fix", ErrPageTimeout)
		}
		<-pr.done
		if pr.err != nil {
			return nil, pr.err
		}
		// The page landed in the hash index while we waited; resolve
		// through the ordinary hit path now.
		return p.fixLatch(ctx, th, vpid, isNewPage, mode, conditional)
	}

	c, err := p.acquireSlot(vpid)
	if err != nil {
		p.hash.endRead(vpid, nil, err)
		return nil, err
	}

	c.mu.Lock()
	if isNewPage || validity == diskio.PageUnformatted {
		c.page.Reset()
		c.page.SetVPID(vpid)
		if p.IsTemporaryVolume(vpid.Volume) {
			c.page.SetLSA(common.InitTemporaryLSA)
		} else {
			c.page.SetLSA(common.InitPermanentLSA)
		}
	} else {
		if err := p.disk.Read(vpid, c.page.Raw()); err != nil {
			c.mu.Unlock()
			p.invalid.push(c)
			ioErr := wrapIO("fix", err)
			p.hash.endRead(vpid, nil, ioErr)
			return nil, ioErr
		}
		p.stats.recordRead()
	}
	c.alloc = allocValid
	c.dirty = false
	c.oldestUnflushLSA = common.NullLSA
	c.latchMode = mode
	c.fixCount = 1
	c.mu.Unlock()

	b := p.hash.bucketFor(vpid)
	bucketIdx := p.hash.bucketIndex(vpid)
	b.mu.Lock()
	c.mu.Lock()
	p.hash.publishLocked(b, bucketIdx, c)
	c.mu.Unlock()
	b.mu.Unlock()

	lru := p.lruListFor(vpid)
	lru.mu.Lock()
	lru.insertColdLocked(c)
	lru.mu.Unlock()

	p.holders.add(th.Index(), c.idx, mode)
	p.hash.endRead(vpid, c, nil)
	p.stats.recordFetch(false)
	return &PageHandle{bcb: c, mode: mode}, nil
}

// maxVictimAttempts bounds how many sweep candidates acquireSlot will
// try before giving up. A candidate that looked idle during the sweep
// can be claimed out from under it — a concurrent flush setting
// avoid_victim, or another fixer — between the sweep and the recheck
// under its own mutex (spec.md §4.1, §4.6).
const maxVictimAttempts = 8

// acquireSlot returns a BCB to house an incoming page: the invalid list
// first, the victim sweep of vpid's LRU list otherwise (spec.md §4.6).
// When a sweep finds no clean idle frame but did see dirty idle ones, it
// flushes the bottom of every LRU list and sweeps again, within the same
// maxVictimAttempts bound.
func (p *BufferPool) acquireSlot(vpid common.VPID) (*bcb, error) {
	if c := p.invalid.pop(); c != nil {
		return c, nil
	}

	lru := p.lruListFor(vpid)
	var lastDirtySeen int
	for attempt := 0; attempt < maxVictimAttempts; attempt++ {
		victim, dirtySeen := lru.sweepVictim(p.cfg.NumBuffers)
		lastDirtySeen = dirtySeen
		if victim == nil {
			if dirtySeen == 0 {
				break
			}
			// Only dirty frames were idle: clean the bottom of every list
			// (each write behind its WAL barrier) and sweep again.
			for range p.lru {
				_ = p.FlushVictimCandidate(1)
			}
			continue
		}

		ob := p.hash.bucketFor(victim.vpid())
		ob.mu.Lock()
		victim.mu.Lock()
		// Victimizing a chosen frame rechecks every condition under the
		// BCB mutex and marks it "victim" before unlinking (spec.md
		// §4.6); hash.unlinkLocked itself rechecks avoid_victim a
		// second time to close the TOCTOU window against a flush that
		// started between the sweep and this lock (spec.md §4.1).
		stillIdle := victim.latchMode == latch.ModeNone && victim.fixCount == 0 &&
			!victim.dirty && !victim.avoidVictim
		if !stillIdle {
			victim.mu.Unlock()
			ob.mu.Unlock()
			continue
		}
		victim.latchMode = latch.ModeVictim
		if !p.hash.unlinkLocked(ob, victim) {
			victim.latchMode = latch.ModeNone
			victim.mu.Unlock()
			ob.mu.Unlock()
			continue
		}
		victim.mu.Unlock()
		ob.mu.Unlock()

		lru.mu.Lock()
		lru.unlinkLocked(victim)
		lru.mu.Unlock()

		p.stats.recordEviction()
		return victim, nil
	}
	p.logger.WithField("dirty_seen", lastDirtySeen).Warn("buffer_pool: victim sweep found only dirty or fixed pages")
	return nil, newError("fix", ErrAllBuffersFixedOrDirty)
}

func (p *BufferPool) touch(c *bcb) {
	lru := p.lruListFor(c.vpid())
	lru.mu.Lock()
	lru.touchLocked(c)
	lru.mu.Unlock()
}

// logPageTimeout logs a Warn line naming the caller identity and the
// request a PageTimeout couldn't satisfy (spec.md §7, S5: "(tran, user,
// host, pid, requested mode, vpid)"). The returned error itself does not
// carry these fields.
func (p *BufferPool) logPageTimeout(ctx txnctx.Context, mode latch.Mode, vpid common.VPID) {
	ci := ctx.ClientInfo()
	p.logger.Warnf("buffer_pool: page timeout tran=%d user=%s host=%s pid=%d mode=%s vpid=(%d,%d)",
		ctx.TranIndex(), ci.User, ci.Host, ci.PID, strings.ToUpper(mode.String()), vpid.Volume, vpid.Page)
}

// Unfix releases one fix th holds on h, optionally marking the page
// dirty and stamping lsa as its newest LSA before release (spec.md
// §4.3/§4.9). Unfix never waits for a latch; when it honors an
// async_flush_request it performs that flush synchronously.
func (p *BufferPool) Unfix(th *thread.Entry, h *PageHandle, setDirty bool, lsa common.LSA) error {
	c := h.bcb
	c.mu.Lock()
	if c.fixCount <= 0 {
		c.mu.Unlock()
		return newError("unfix", ErrInvariantViolated)
	}
	if setDirty {
		if c.oldestUnflushLSA.IsNull() {
			c.oldestUnflushLSA = lsa
		}
		c.dirty = true
		if !lsa.IsNull() {
			c.page.SetLSA(lsa)
		}
	}
	p.holders.release(th.Index(), c.idx)
	c.fixCount--

	needsAsyncFlush := false
	if c.fixCount == 0 {
		// spec.md §4.4 step 2: promotion to the hot zone happens only
		// here, at unfix, and only when nobody is already queued for
		// this BCB — a queued waiter is about to take it over, so
		// relocating it now would just be undone by the very next
		// unfix once that waiter is done.
		if c.waitQ.Len() == 0 && c.zone != zoneHot {
			p.touch(c)
		}
		if c.asyncFlushRequest {
			needsAsyncFlush = true
		}
		p.wakeWaitersLocked(c)
	}
	c.mu.Unlock()

	if needsAsyncFlush {
		// spec.md §4.4 step 3: a flusher that found this BCB
		// write-latched set async_flush_request instead of blocking on
		// it; honor that request now that the last holder let go.
		if err := p.flushWithWAL(c); err != nil {
			p.logger.WithError(err).Warn("buffer_pool: async flush request failed at unfix")
		}
	}
	return nil
}

// wakeWaitersLocked grants the head of c's wait queue: a solo writer,
// or every contiguous reader at the front (spec.md §4.4). Caller holds
// c.mu and has already observed c.fixCount == 0. Reports whether
// anything was granted.
func (p *BufferPool) wakeWaitersLocked(c *bcb) bool {
	front := c.waitQ.Front()
	if front == nil {
		c.latchMode = latch.ModeNone
		return false
	}
	if front.Mode == latch.ModeWrite {
		w := c.waitQ.PopFront()
		c.latchMode = latch.ModeWrite
		c.fixCount = w.FixCount
		w.Granted = true
		close(w.Ready)
		return true
	}
	c.latchMode = latch.ModeRead
	granted := false
	for c.waitQ.NextIsRead() {
		w := c.waitQ.PopFront()
		c.fixCount += w.FixCount
		w.Granted = true
		close(w.Ready)
		granted = true
	}
	return granted
}
