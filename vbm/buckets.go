package vbm

import (
	"fmt"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
)

// PutVictim appends block to the tail of victim[die][k] (spec §4.3 Put).
// The caller supplies k; it must equal the block's current InvalidSlices.
func (m *Map) PutVictim(die addr.DieID, block addr.BlockID, k int) {
	d := &m.dies[die]
	l := &d.victim[k]
	blk := &d.blocks[block]
	blk.prev = l.tail
	blk.next = addr.BlockNone
	if l.tail != addr.BlockNone {
		d.blocks[l.tail].next = block
	} else {
		l.head = block
	}
	l.tail = block
	l.size++
	blk.bucketed = true
}

// RemoveVictim detaches block from victim[die][k], where k is the bucket
// the caller believes currently holds it (spec §4.3 Remove).
func (m *Map) RemoveVictim(die addr.DieID, block addr.BlockID, k int) {
	d := &m.dies[die]
	l := &d.victim[k]
	blk := &d.blocks[block]

	if block == l.head {
		l.head = blk.next
	}
	if block == l.tail {
		l.tail = blk.prev
	}
	if blk.prev != addr.BlockNone {
		d.blocks[blk.prev].next = blk.next
	}
	if blk.next != addr.BlockNone {
		d.blocks[blk.next].prev = blk.prev
	}
	blk.prev = addr.BlockNone
	blk.next = addr.BlockNone
	l.size--
	blk.bucketed = false
}

// PopBest scans k from SlicesPerBlock down to 1 and returns (detaching) the
// head of the first non-empty bucket — the greedy victim selection of spec
// §4.3/§4.4. Returns ftlerr.NoVictim if every bucket is empty.
func (m *Map) PopBest(die addr.DieID) (addr.BlockID, error) {
	d := &m.dies[die]
	for k := d.slicesPerBlock; k >= 1; k-- {
		l := &d.victim[k]
		if l.size == 0 {
			continue
		}
		b := l.head
		m.RemoveVictim(die, b, k)
		return b, nil
	}
	return addr.BlockNone, ftlerr.New(ftlerr.NoVictim, fmt.Sprintf("die %d", die), nil)
}

// Rebucket implements the §4.3 re-bucketing rule: when a bucketed block's
// invalid-slice count crosses a boundary, it must be removed from its old
// bucket and put into the new one. The bucket structure itself never
// observes the counter; callers of map mutations (slicemap) invoke this
// explicitly after incrementing InvalidSlices.
func (m *Map) Rebucket(die addr.DieID, block addr.BlockID, oldK, newK int) {
	blk := m.Block(die, block)
	if blk.Free || block == m.CurrentBlock(die) || !blk.bucketed {
		// Free blocks, the die's current-write block, and blocks that are
		// mid-reclaim (popped by GC, not yet bucketed, free, or current)
		// are in no victim bucket (spec I3); nothing to rebucket.
		return
	}
	m.RemoveVictim(die, block, oldK)
	m.PutVictim(die, block, newK)
}

// VictimBucketSize reports how many blocks sit in victim[die][k]; exposed
// for property tests (P3) and debugapi occupancy stats.
func (m *Map) VictimBucketSize(die addr.DieID, k int) int {
	return m.dies[die].victim[k].size
}

// IsBucketed reports whether block currently sits in a victim bucket.
func (m *Map) IsBucketed(die addr.DieID, block addr.BlockID) bool {
	return m.dies[die].blocks[block].bucketed
}
