package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/common"

// BCBSnapshot is one BCB's state as seen by DebugSnapshot, a
// serializable stand-in for the original's pgbuf_dump text report
// (spec.md original_source pgbuf_bcb_str), used as a test oracle for
// the universal invariants rather than printed to a log.
type BCBSnapshot struct {
	Index     int
	VPID      common.VPID
	Allocated bool
	LatchMode string
	FixCount  int
	Dirty     bool
	Hot       bool
}

// DebugSnapshot returns a point-in-time view of every allocated BCB,
// for invariant assertions in tests and offline diagnosis of a stuck
// fixer — never consulted by the fix/unfix pipeline itself.
func (p *BufferPool) DebugSnapshot() []BCBSnapshot {
	out := make([]BCBSnapshot, 0, len(p.bcbs))
	for _, c := range p.bcbs {
		c.mu.Lock()
		if c.alloc != allocValid {
			c.mu.Unlock()
			continue
		}
		out = append(out, BCBSnapshot{
			Index:     c.idx,
			VPID:      c.vpid(),
			Allocated: true,
			LatchMode: c.latchMode.String(),
			FixCount:  c.fixCount,
			Dirty:     c.dirty,
			Hot:       c.zone == zoneHot,
		})
		c.mu.Unlock()
	}
	return out
}
