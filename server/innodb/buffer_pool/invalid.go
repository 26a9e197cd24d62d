package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/latch"

// invalidList is the LIFO stack of BCBs holding no page, the first
// place a miss looks for a slot before falling back to the victim sweep
// (spec.md §4.6). Pushed BCBs are popped most-recently-freed-first,
// which keeps a hot cache line warm across rapid alloc/free churn.
type invalidList struct {
	mu   latch.Latch
	top  int
	bcbs []*bcb
}

func newInvalidList(bcbs []*bcb) *invalidList {
	return &invalidList{top: -1, bcbs: bcbs}
}

func (il *invalidList) push(c *bcb) {
	il.mu.Lock()
	defer il.mu.Unlock()
	c.mu.Lock()
	c.alloc = allocInvalid
	c.invPrev = -1
	c.invNext = il.top
	c.mu.Unlock()
	if il.top != -1 {
		il.bcbs[il.top].invPrev = c.idx
	}
	il.top = c.idx
}

func (il *invalidList) pop() *bcb {
	il.mu.Lock()
	defer il.mu.Unlock()
	if il.top == -1 {
		return nil
	}
	c := il.bcbs[il.top]
	il.top = c.invNext
	if il.top != -1 {
		il.bcbs[il.top].invPrev = -1
	}
	c.invPrev, c.invNext = -1, -1
	return c
}

// remove de-links c from wherever it sits on the stack, out of LIFO
// order. Nothing in the package calls it.
func (il *invalidList) remove(c *bcb) {
	il.mu.Lock()
	defer il.mu.Unlock()
	if c.invPrev == -1 && c.invNext == -1 && il.top != c.idx {
		return // not on the list
	}
	if c.invPrev != -1 {
		il.bcbs[c.invPrev].invNext = c.invNext
	} else if il.top == c.idx {
		il.top = c.invNext
	}
	if c.invNext != -1 {
		il.bcbs[c.invNext].invPrev = c.invPrev
	}
	c.invPrev, c.invNext = -1, -1
}
