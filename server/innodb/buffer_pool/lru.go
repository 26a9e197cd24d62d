package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/latch"

// lruList is one of the pool's NumLRULists independent two-zone LRU
// lists (spec.md §4.5). Nodes run head (MRU) to tail (LRU, the victim
// end); mid is the index of the first cold-zone node — everything from
// head up to (not including) mid is the hot zone. A freshly read-in
// page enters at mid; Unfix promotes it to the head of the hot zone once
// its fix count drops to zero with nobody queued, so a page reaches the
// hot zone at its first such unfix, and rebalanceLocked caps the hot
// zone's share of the list.
type lruList struct {
	mu latch.Latch

	head, tail, mid int
	length, hotLen  int
	hotRatio        float64

	bcbs []*bcb
}

func newLRUList(bcbs []*bcb, hotRatio float64) *lruList {
	return &lruList{head: -1, tail: -1, mid: -1, bcbs: bcbs, hotRatio: hotRatio}
}

func (l *lruList) targetHotLen() int {
	t := int(float64(l.length) * l.hotRatio)
	if t < 1 && l.length > 0 {
		t = 1
	}
	return t
}

// unlinkLocked splices c out of the list. Caller holds l.mu.
func (l *lruList) unlinkLocked(c *bcb) {
	if c.lruPrev != -1 {
		l.bcbs[c.lruPrev].lruNext = c.lruNext
	} else {
		l.head = c.lruNext
	}
	if c.lruNext != -1 {
		l.bcbs[c.lruNext].lruPrev = c.lruPrev
	} else {
		l.tail = c.lruPrev
	}
	if l.mid == c.idx {
		l.mid = c.lruNext
	}
	if c.zone == zoneHot {
		l.hotLen--
	}
	l.length--
	c.lruPrev, c.lruNext = -1, -1
}

// insertAtHeadLocked links c as the new MRU node. Caller holds l.mu.
func (l *lruList) insertAtHeadLocked(c *bcb, z zone) {
	c.lruPrev = -1
	c.lruNext = l.head
	if l.head != -1 {
		l.bcbs[l.head].lruPrev = c.idx
	}
	l.head = c.idx
	if l.tail == -1 {
		l.tail = c.idx
	}
	c.zone = z
	l.length++
	if z == zoneHot {
		l.hotLen++
	}
	if l.mid == -1 && z == zoneCold {
		l.mid = c.idx
	}
}

// insertColdLocked links c as the new mid node: the most-recently-seen
// member of the cold zone, ahead of every older cold entry. Caller
// holds l.mu.
func (l *lruList) insertColdLocked(c *bcb) {
	oldMid := l.mid
	c.zone = zoneCold
	c.lruNext = oldMid
	if oldMid == -1 {
		// List was empty or entirely hot: append at tail.
		c.lruPrev = l.tail
		if l.tail != -1 {
			l.bcbs[l.tail].lruNext = c.idx
		}
		if l.head == -1 {
			l.head = c.idx
		}
		l.tail = c.idx
	} else {
		prevOfMid := l.bcbs[oldMid].lruPrev
		c.lruPrev = prevOfMid
		if prevOfMid != -1 {
			l.bcbs[prevOfMid].lruNext = c.idx
		} else {
			l.head = c.idx
		}
		l.bcbs[oldMid].lruPrev = c.idx
	}
	l.mid = c.idx
	l.length++
}

// touchLocked records an access to c, promoting it to the hot zone's
// MRU position if it was cold, or just refreshing its MRU position if
// already hot. Caller holds l.mu.
func (l *lruList) touchLocked(c *bcb) {
	wasHot := c.zone == zoneHot
	l.unlinkLocked(c)
	l.insertAtHeadLocked(c, zoneHot)
	if !wasHot {
		l.rebalanceLocked()
	}
}

// rebalanceLocked demotes the coldest hot-zone member back to cold
// whenever the hot zone has grown past its target share of the list
// (spec.md §4.5 "hot_count" bookkeeping).
func (l *lruList) rebalanceLocked() {
	target := l.targetHotLen()
	for l.hotLen > target {
		boundary := l.mid
		var demote int
		if boundary == -1 {
			demote = l.tail
		} else {
			demote = l.bcbs[boundary].lruPrev
		}
		if demote == -1 {
			break
		}
		c := l.bcbs[demote]
		c.zone = zoneCold
		l.hotLen--
		l.mid = demote
	}
}

// sweepVictim walks the list from the cold (tail) end looking for a
// BCB that is unlatched, unfixed, and clean — the eviction candidate
// (spec.md §4.6). maxCheck bounds how many nodes it will examine before
// giving up, mirroring the original's check_count guard against an
// unbounded scan when every page in the list is pinned. It returns the
// first clean victim found, or nil with the count of dirty candidates
// seen (so the caller can decide whether to clean dirty frames and
// sweep again).
func (l *lruList) sweepVictim(maxCheck int) (victim *bcb, dirtySeen int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	checked := 0
	for i := l.tail; i != -1 && checked < maxCheck; checked++ {
		c := l.bcbs[i]
		i = c.lruPrev
		if c.zone == zoneHot {
			// spec.md §4.6: the sweep never considers LRU-1 (hot zone)
			// frames — only the cold zone is eviction-eligible.
			continue
		}
		c.mu.Lock()
		isIdle := c.latchMode == latch.ModeNone && c.fixCount == 0 && !c.avoidVictim
		isDirty := c.dirty
		c.mu.Unlock()
		if !isIdle {
			continue
		}
		if isDirty {
			dirtySeen++
			continue
		}
		return c, dirtySeen
	}
	return nil, dirtySeen
}
