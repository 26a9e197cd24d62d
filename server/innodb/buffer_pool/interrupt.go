package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/thread"

// ForceInterruptPolling flips every blocked unconditional Fix's next
// poll tick into an interrupt check, used to unstick waiters during an
// emergency shutdown without waiting for each one's own timeout
// (spec.md §6 pgbuf_force_to_check_for_interrupts).
func (p *BufferPool) ForceInterruptPolling() {
	p.threads.ForceInterruptPolling()
}

// IsInterruptPending reports whether th should abandon a blocking wait,
// either because it was individually interrupted or because
// ForceInterruptPolling was called pool-wide.
func (p *BufferPool) IsInterruptPending(th *thread.Entry) bool {
	return p.threads.IsInterruptPending(th)
}

// UnfixAll force-releases every BCB th currently holds, used on session
// teardown when a client disconnects mid-transaction without unwinding
// its own fix/unfix pairs (spec.md §3 "Thread holder").
func (p *BufferPool) UnfixAll(th *thread.Entry) {
	for _, e := range p.holders.all(th.Index()) {
		c := p.bcbs[e.bcbIdx]
		c.mu.Lock()
		count := e.count
		c.fixCount -= count
		if c.fixCount < 0 {
			c.fixCount = 0
		}
		woke := false
		if c.fixCount == 0 {
			woke = p.wakeWaitersLocked(c)
		}
		_ = woke
		c.mu.Unlock()
	}
	p.holders.mu.Lock()
	delete(p.holders.byT, th.Index())
	p.holders.mu.Unlock()
}
