package buffer_pool

import (
	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
	"github.com/naver/rye-pgbuf/server/innodb/thread"
)

// Invalidate drops h's page from the pool entirely: flushes it if
// dirty, unhashes it, and returns its BCB to the invalid list (spec.md
// §4.5 `invalidate`), scrambling the body first when
// DebugPageValidationLevel is at least 1. The caller's own fix on the
// page is released as part of the call; the caller must not use h
// afterward. If other threads still hold the page once that fix is
// released, or a concurrent flush keeps it from being unhashed, the page
// stays buffered. If the
// caller holds this page with more than one fix, Invalidate degrades
// to a plain Unfix — a thread that fixed the page twice isn't the one
// that gets to decide it's no longer needed pool-wide.
func (p *BufferPool) Invalidate(th *thread.Entry, h *PageHandle) error {
	c := h.bcb
	if entry := p.holders.find(th.Index(), c.idx); entry != nil && entry.count > 1 {
		return p.Unfix(th, h, false, common.NullLSA)
	}

	if err := p.flushWithWAL(c); err != nil {
		return err
	}

	c.mu.Lock()
	p.holders.release(th.Index(), c.idx)
	c.fixCount--
	vpid := c.vpid()
	stillFixed := c.fixCount > 0
	c.mu.Unlock()

	if stillFixed {
		return nil
	}

	b := p.hash.bucketFor(vpid)
	b.mu.Lock()
	c.mu.Lock()
	unlinked := p.hash.unlinkLocked(b, c)
	c.mu.Unlock()
	b.mu.Unlock()
	if !unlinked {
		// A flush raced us and is holding avoid_victim; the BCB stays
		// hashed and fixed-at-zero, available to be invalidated again.
		return nil
	}

	lru := p.lruListFor(vpid)
	lru.mu.Lock()
	lru.unlinkLocked(c)
	lru.mu.Unlock()

	c.mu.Lock()
	c.page.Reset()
	c.page.SetVPID(common.NullVPID)
	if p.cfg.DebugPageValidationLevel >= 1 {
		c.page.Scramble()
	}
	c.latchMode = latch.ModeNone
	c.mu.Unlock()

	p.invalid.push(c)
	return nil
}

// InvalidateVolume invalidates every unfixed BCB belonging to volid,
// flushing dirty ones first (spec.md §4.5 `invalidate_volume`). Fixed
// frames are skipped without error — callers are expected to quiesce
// writers on the target volume first.
func (p *BufferPool) InvalidateVolume(volid common.VolumeID) error {
	return p.invalidateMatching(func(vpid common.VPID) bool { return vpid.Volume == volid })
}

// InvalidateAll invalidates every unfixed BCB in the pool (spec.md §4.5
// `invalidate_all`).
func (p *BufferPool) InvalidateAll() error {
	return p.invalidateMatching(func(common.VPID) bool { return true })
}

// InvalidateTemporaryFile invalidates the npages pages starting at
// firstPage on volid, the range a dropped temporary file's pages occupy
// (spec.md §6 `invalidate_temporary_file`). Best-effort: a page currently
// fixed by some thread is skipped without error rather than aborting the
// whole range.
func (p *BufferPool) InvalidateTemporaryFile(volid common.VolumeID, firstPage common.PageID, npages int) error {
	last := firstPage + common.PageID(npages)
	return p.invalidateMatching(func(vpid common.VPID) bool {
		return vpid.Volume == volid && vpid.Page >= firstPage && vpid.Page < last
	})
}

func (p *BufferPool) invalidateMatching(match func(common.VPID) bool) error {
	var firstErr error
	for _, c := range p.bcbs {
		c.mu.Lock()
		if c.alloc != allocValid {
			c.mu.Unlock()
			continue
		}
		vpid := c.vpid()
		fixed := c.fixCount > 0
		dirty := c.dirty
		c.mu.Unlock()
		if !match(vpid) || fixed {
			continue
		}
		if dirty {
			if err := p.flushWithWAL(c); err != nil && firstErr == nil {
				firstErr = err
				continue
			}
		}

		b := p.hash.bucketFor(vpid)
		b.mu.Lock()
		c.mu.Lock()
		if c.fixCount > 0 {
			c.mu.Unlock()
			b.mu.Unlock()
			continue
		}
		unlinked := p.hash.unlinkLocked(b, c)
		c.mu.Unlock()
		b.mu.Unlock()
		if !unlinked {
			continue
		}

		lru := p.lruListFor(vpid)
		lru.mu.Lock()
		lru.unlinkLocked(c)
		lru.mu.Unlock()

		c.mu.Lock()
		c.page.Reset()
		c.page.SetVPID(common.NullVPID)
		c.latchMode = latch.ModeNone
		c.mu.Unlock()

		p.invalid.push(c)
	}
	return firstErr
}
