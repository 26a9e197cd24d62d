package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/common"

// SetDirty marks h's page dirty without releasing the latch — used by
// a caller applying several in-place edits under one Write fix before
// eventually Unfix(dirty=true) (spec.md §4.9). Idempotent. On the first
// clean-to-dirty transition, oldest_unflush_lsa is seeded from the
// page's current LSA; if that LSA precedes the log manager's current
// checkpoint redo LSA, the previous checkpoint's bookkeeping was wrong,
// the same invariant FlushCheckpoint enforces on the other end.
func (p *BufferPool) SetDirty(h *PageHandle) error {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	if h.bcb.dirty {
		return nil
	}
	lsa := h.bcb.page.LSA()
	if p.log != nil && lsa.Less(p.log.CheckpointRedoLSA()) {
		p.logger.Warnf("buffer_pool: set_dirty on page %s with LSA %s before checkpoint redo LSA", h.bcb.vpid(), lsa)
		return newError("set_dirty", ErrInvariantViolated)
	}
	h.bcb.dirty = true
	if h.bcb.oldestUnflushLSA.IsNull() {
		h.bcb.oldestUnflushLSA = lsa
	}
	return nil
}

// SetLSA stamps h's page with lsa (the redo record's end LSA, written
// before the page is marked dirty) — the two are separate calls
// because recovery redo apply sometimes sets the LSA on a page it
// deliberately leaves clean (spec.md §4.9). A page belonging to a
// temporary/auxiliary volume never tracks the log, so the set is
// ignored rather than drifting it off InitTemporaryLSA.
func (p *BufferPool) SetLSA(h *PageHandle, lsa common.LSA) {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	if p.IsTemporaryVolume(h.bcb.vpid().Volume) {
		return
	}
	h.bcb.page.SetLSA(lsa)
}

// GetLSA reads h's page's current LSA.
func (p *BufferPool) GetLSA(h *PageHandle) common.LSA {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	return h.bcb.page.LSA()
}

// IsDirty reports h's page's current dirty bit.
func (p *BufferPool) IsDirty(h *PageHandle) bool {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	return h.bcb.dirty
}

// OldestUnflushLSA is the LSA recorded when h's page first went dirty
// since its last flush — the value FlushCheckpoint compares against a
// checkpoint's target LSA (spec.md §4.9).
func (p *BufferPool) OldestUnflushLSA(h *PageHandle) common.LSA {
	h.bcb.mu.Lock()
	defer h.bcb.mu.Unlock()
	return h.bcb.oldestUnflushLSA
}
