// Package slicemap implements the Logical Slice Map and Virtual Slice Map
// (spec §4.2): two direct-addressed, bidirectional tables with stale-entry
// semantics. A write completion atomically updates both tables and, when it
// invalidates a previously-occupied VSA, increments and re-buckets the
// owning block's invalid-slice counter (spec §4.3's re-bucketing rule).
package slicemap

import (
	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/vbm"
)

// FDPInvalidator receives the FDP-side half of invalidation (spec §4.6):
// an Endurance Group wires itself in via SetFDPInvalidator so a slice
// invalidation ages its owning Reclaim Unit, not just its owning block.
type FDPInvalidator interface {
	Invalidate(die addr.DieID, block addr.BlockID)
}

// Maps bundles the Logical and Virtual Slice Maps with the Virtual Block
// Map they invalidate into, so write-completion and trim can perform the
// invalidate-then-rebucket step atomically (with respect to other mutators,
// per the single-executor model of spec §5).
type Maps struct {
	geo     addr.Geometry
	lsa2vsa []addr.VSA
	vsa2lsa []addr.LSA
	vb      *vbm.Map
	fdp     FDPInvalidator
}

// New allocates a Logical Slice Map sized for nLSA entries and a Virtual
// Slice Map sized by geo, both initialized to their NONE sentinels.
func New(geo addr.Geometry, nLSA int64, vb *vbm.Map) *Maps {
	m := &Maps{geo: geo, vb: vb}
	m.lsa2vsa = make([]addr.VSA, nLSA)
	m.vsa2lsa = make([]addr.LSA, geo.NumVSA())
	for i := range m.lsa2vsa {
		m.lsa2vsa[i] = addr.VSANone
	}
	for i := range m.vsa2lsa {
		m.vsa2lsa[i] = addr.LSANone
	}
	return m
}

// SetFDPInvalidator wires in the Endurance Group so that invalidation also
// ages the Reclaim Unit owning v, in addition to the classic per-block
// counter every block carries regardless of FDP (spec §4.6). Pass nil to
// run as a classic, non-FDP FTL.
func (m *Maps) SetFDPInvalidator(fdp FDPInvalidator) {
	m.fdp = fdp
}

// VSAOf returns the current mapping of an LSA, or VSANone.
func (m *Maps) VSAOf(l addr.LSA) addr.VSA {
	return m.lsa2vsa[l]
}

// LSAOf returns the LSA a VSA currently carries data for, or LSANone.
func (m *Maps) LSAOf(v addr.VSA) addr.LSA {
	return m.vsa2lsa[v]
}

// IsValid implements the GC validity test of spec §4.2/§4.4:
// valid ⇔ LSA[VSA[v].lsa].vsa == v.
func (m *Maps) IsValid(v addr.VSA) bool {
	l := m.vsa2lsa[v]
	if l == addr.LSANone {
		return false
	}
	return m.lsa2vsa[l] == v
}

// CompleteWrite executes the write-completion contract of spec §4.2: a
// write of LSA l into VSA v has completed. Let v' = LSA[l].vsa; set
// LSA[l].vsa := v; set VSA[v].lsa := l; if v' != NONE, invalidate it.
func (m *Maps) CompleteWrite(l addr.LSA, v addr.VSA) {
	old := m.lsa2vsa[l]
	m.lsa2vsa[l] = v
	m.vsa2lsa[v] = l
	if old != addr.VSANone {
		m.invalidate(old)
	}
}

// Trim implements spec §4.2's trim/deallocate: set LSA[l].vsa := NONE,
// invalidating the old VSA if one existed.
func (m *Maps) Trim(l addr.LSA) {
	old := m.lsa2vsa[l]
	m.lsa2vsa[l] = addr.VSANone
	if old != addr.VSANone {
		m.invalidate(old)
	}
}

// invalidate increments the invalid-slice counter of the block containing v
// and re-buckets it per spec §4.3. v is guaranteed stale by the caller: it
// no longer satisfies the valid-live predicate once this returns.
func (m *Maps) invalidate(v addr.VSA) {
	die, block, _, ok := m.geo.VSAToVOrg(v)
	if !ok {
		return
	}
	blk := m.vb.Block(die, block)
	oldK := blk.InvalidSlices
	blk.InvalidSlices++
	m.vb.Rebucket(die, block, oldK, blk.InvalidSlices)
	if m.fdp != nil {
		m.fdp.Invalidate(die, block)
	}
}
