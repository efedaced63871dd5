package gc

import (
	"fmt"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
	"github.com/openssd-go/ftlcore/vbm"
)

// Allocator hands out destination VSAs from a die's current-write block,
// rotating in a fresh free block when the current one fills. Both normal
// host writes and GC migrations draw from the same per-die current block
// (spec §2's data flow: the write path "calls the core to obtain a
// destination VSA"; GC's `FindFreeVirtualSliceForGc` is the same
// allocation primitive restricted to the die being collected — spec §9's
// Open Question, resolved same-die).
type Allocator struct {
	geo addr.Geometry
	vb  *vbm.Map
}

// NewAllocator builds an Allocator over the given geometry and Virtual
// Block Map.
func NewAllocator(geo addr.Geometry, vb *vbm.Map) *Allocator {
	return &Allocator{geo: geo, vb: vb}
}

// NextVSA returns the next destination VSA on die, used by both the host
// write path and FindFreeVirtualSliceForGc. It advances the die's current
// block's page cursor, rotating in a new free block (via mode) when full.
func (a *Allocator) NextVSA(die addr.DieID, mode vbm.Mode) (addr.VSA, error) {
	cur := a.vb.CurrentBlock(die)
	if cur == addr.BlockNone {
		b, ok := a.vb.GetFreeBlock(die, mode)
		if !ok {
			return addr.VSANone, ftlerr.New(ftlerr.NoFreeSlot, fmt.Sprintf("die %d has no free block to rotate in", die), nil)
		}
		a.vb.SetCurrentBlock(die, b)
		cur = b
	}

	blk := a.vb.Block(die, cur)
	page := blk.PageCursor
	v := a.geo.VOrgToVSA(die, cur, page)
	blk.PageCursor++

	if int(blk.PageCursor) >= a.geo.SlicesPerBlock {
		// Block is full: it leaves the "current" role and, per spec I3,
		// must now sit in the victim bucket matching its invalid count
		// (0 immediately after a full sequential fill).
		a.vb.SetCurrentBlock(die, addr.BlockNone)
		a.vb.PutVictim(die, cur, blk.InvalidSlices)
	}
	return v, nil
}

// FindFreeVirtualSliceForGc is NextVSA restricted to dieForCopy, matching
// the spec §9 Open Question resolution: GC copies within the same die,
// never across dies. victimBlock is accepted only to make that same-die
// intent explicit at call sites; it does not otherwise constrain the
// returned VSA.
func (a *Allocator) FindFreeVirtualSliceForGc(dieForCopy addr.DieID, victimBlock addr.BlockID) (addr.VSA, error) {
	return a.NextVSA(dieForCopy, vbm.ForGc)
}
