package fdp

import (
	"fmt"

	"github.com/openssd-go/ftlcore/ftlerr"
)

// pushFreeTail/popFreeHead are RG's free-RU FIFO primitives, the same
// intrusive-list idiom vbm's Die uses for its free-block FIFO, addressed by
// RUGID instead of addr.BlockID.
func (g *RG) pushFreeTail(rugID RUGID) {
	ru := &g.RUs[rugID]
	ru.Free = true
	ru.InvalidSlices = 0
	ru.SliceCursor = 0
	ru.prev = g.free.tail
	ru.next = RUNone
	if g.free.tail != RUNone {
		g.RUs[g.free.tail].next = rugID
	} else {
		g.free.head = rugID
	}
	g.free.tail = rugID
	g.free.size++
}

func (g *RG) popFreeHead() (RUGID, bool) {
	if g.free.size == 0 {
		return RUNone, false
	}
	rugID := g.free.head
	ru := &g.RUs[rugID]
	g.free.head = ru.next
	if g.free.head == RUNone {
		g.free.tail = RUNone
	} else {
		g.RUs[g.free.head].prev = RUNone
	}
	ru.next = RUNone
	ru.prev = RUNone
	ru.Free = false
	g.free.size--
	return rugID, true
}

// GetFreeRU detaches and returns a free RU from rg's FIFO (spec §4.6's
// Free→Active transition). With forGc false (ForUse) it honors the group's
// reserved-free-RU threshold (I4's FDP analogue); with forGc true (ForGc)
// it only fails when the queue is genuinely empty.
func (g *RG) GetFreeRU(forGc bool) (RUGID, error) {
	if !forGc && g.free.size <= g.reservedFreeRuCount {
		return RUNone, ftlerr.New(ftlerr.NoFreeSlot, fmt.Sprintf("rg %d free RU count at reserve", g.RGID), nil)
	}
	rugID, ok := g.popFreeHead()
	if !ok {
		return RUNone, ftlerr.New(ftlerr.NoFreeSlot, fmt.Sprintf("rg %d has no free RU", g.RGID), nil)
	}
	return rugID, nil
}

// PutFreeRU returns an erased RU to rg's free FIFO.
func (g *RG) PutFreeRU(rugID RUGID) {
	g.pushFreeTail(rugID)
}

// PutVictimRU appends rugId to victim[ruhId][k] (spec §4.6's bucket
// structure, the FDP analogue of vbm's victim buckets).
func (g *RG) PutVictimRU(ruhID RUHID, rugID RUGID, k int) {
	l := &g.victim[ruhID][k]
	ru := &g.RUs[rugID]
	ru.prev = l.tail
	ru.next = RUNone
	if l.tail != RUNone {
		g.RUs[l.tail].next = rugID
	} else {
		l.head = rugID
	}
	l.tail = rugID
	l.size++
	ru.bucketed = true
}

// RemoveVictimRU detaches rugId from victim[ruhId][k].
func (g *RG) RemoveVictimRU(ruhID RUHID, rugID RUGID, k int) {
	l := &g.victim[ruhID][k]
	ru := &g.RUs[rugID]

	if rugID == l.head {
		l.head = ru.next
	}
	if rugID == l.tail {
		l.tail = ru.prev
	}
	if ru.prev != RUNone {
		g.RUs[ru.prev].next = ru.next
	}
	if ru.next != RUNone {
		g.RUs[ru.next].prev = ru.prev
	}
	ru.prev = RUNone
	ru.next = RUNone
	l.size--
	ru.bucketed = false
}

// RebucketRU is PopVictimRU's companion to vbm.Rebucket: called after an
// RU's InvalidSlices changes, it moves a bucketed RU to the bucket matching
// its new count. Free and active (non-bucketed) RUs are left untouched.
func (g *RG) RebucketRU(ruhID RUHID, rugID RUGID, oldK, newK int) {
	ru := &g.RUs[rugID]
	if ru.Free || !ru.bucketed {
		return
	}
	g.RemoveVictimRU(ruhID, rugID, oldK)
	g.PutVictimRU(ruhID, rugID, newK)
}

// PopVictimRU selects the greediest victim RU for ruhId (spec §4.6's
// selection rule): scan ruhId's own buckets from full down to 1. If none
// are bucketed and ruhId is InitiallyIsolated, fall back to scanning every
// other handle's buckets — PersistentlyIsolated handles never borrow
// another handle's RUs (spec §4.6/§9). No explicit check excludes a
// handle's current (still-active) RU: an active RU is never bucketed, so
// it cannot be selected.
func (g *RG) PopVictimRU(ruhID RUHID, ruhType RUHType) (RUGID, RUHID, error) {
	if rugID, ok := g.popBucketed(ruhID); ok {
		return rugID, ruhID, nil
	}
	if ruhType == InitiallyIsolated {
		for other := range g.victim {
			if RUHID(other) == ruhID {
				continue
			}
			if rugID, ok := g.popBucketed(RUHID(other)); ok {
				return rugID, RUHID(other), nil
			}
		}
	}
	return RUNone, 0, ftlerr.New(ftlerr.NoVictim, fmt.Sprintf("rg %d ruh %d", g.RGID, ruhID), nil)
}

// popBucketed scans ruhId's buckets from fullest to least-full and pops the
// head of the first non-empty one (FIFO tie-break within a bucket).
func (g *RG) popBucketed(ruhID RUHID) (RUGID, bool) {
	buckets := g.victim[ruhID]
	for k := len(buckets) - 1; k >= 1; k-- {
		l := &buckets[k]
		if l.size == 0 {
			continue
		}
		rugID := l.head
		g.RemoveVictimRU(ruhID, rugID, k)
		return rugID, true
	}
	return RUNone, false
}

// VictimBucketSize reports how many RUs sit in victim[ruhId][k]; exposed
// for property tests and debugapi occupancy stats.
func (g *RG) VictimBucketSize(ruhID RUHID, k int) int {
	return g.victim[ruhID][k].size
}
