package fdp

import (
	"fmt"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
)

// NextVSA returns the next destination VSA for a write placed via ruhId in
// rgId (spec §4.5/§6): it advances the handle's current RU's slice cursor,
// rotating in a fresh RU from the free queue when the current one fills
// (mirroring gc.Allocator.NextVSA's classic-FTL counterpart, one layer up
// at RU rather than block granularity). mode controls whether a fresh RU
// draw honors the group's reserved-free-RU threshold: ForUse (host writes)
// enforces it, ForGc (FDP GC migration destinations, spec §4.7 step 1)
// bypasses it per I4's analogue and scenario 6.
func (eg *EnduranceGroup) NextVSA(rgID RGID, ruhID RUHID, mode Mode) (addr.VSA, error) {
	g := &eg.RGs[rgID]
	ruh := &eg.RUHs[ruhID]
	forGc := mode == ForGc

	rugID := ruh.Rus[rgID]
	if rugID == RUNone {
		fresh, err := g.GetFreeRU(forGc)
		if err != nil {
			return addr.VSANone, err
		}
		g.RUs[fresh].RUHID = ruhID
		ruh.Rus[rgID] = fresh
		rugID = fresh
	}

	ru := &g.RUs[rugID]
	v, ok := eg.sliceAt(ru, ru.SliceCursor)
	if !ok {
		return addr.VSANone, ftlerr.New(ftlerr.Unknown, fmt.Sprintf("rg %d ru %d: slice cursor out of range", rgID, rugID), nil)
	}
	ru.SliceCursor++

	if ru.SliceCursor >= g.slicesPerRU {
		// RU is full: leave the Active role and enter the victim bucket
		// matching its invalid count (0, immediately after a full
		// sequential fill) — the RU state machine's Active→Victim edge
		// (spec §4.6).
		ruh.Rus[rgID] = RUNone
		g.PutVictimRU(ruhID, rugID, ru.InvalidSlices)

		fresh, err := g.GetFreeRU(forGc)
		if err != nil {
			return v, err
		}
		g.RUs[fresh].RUHID = ruhID
		ruh.Rus[rgID] = fresh
	}
	return v, nil
}

// sliceAt maps an RU-relative slice offset to its backing VSA via the RU's
// block vector: offset = blockIndex*UserPagesPerBlock + pageIndex.
func (eg *EnduranceGroup) sliceAt(ru *RU, offset int) (addr.VSA, bool) {
	ppb := eg.geo.UserPagesPerBlock
	if offset < 0 || offset >= len(ru.BlockAddrs)*ppb {
		return addr.VSANone, false
	}
	blockIdx := offset / ppb
	pageIdx := offset % ppb
	ba := ru.BlockAddrs[blockIdx]
	return eg.geo.VOrgToVSA(ba.Die, ba.Block, addr.PageID(pageIdx)), true
}

// Invalidate records that the slice at (rgId implied by die/block, via
// BlockRUInfo) holding a now-overwritten or trimmed LSA has gone stale: it
// increments the owning RU's InvalidSlices and rebuckets it if it is
// currently sitting in a victim bucket. Called by the slicemap's
// invalidation hook so FDP-managed slices participate in the same
// write/trim invalidation path as classic-FTL ones (spec §4.2/§4.6).
func (eg *EnduranceGroup) Invalidate(die addr.DieID, block addr.BlockID) {
	rugID, rgID := eg.BlockRUInfo.Decode(die, block)
	g := &eg.RGs[rgID]
	ru := &g.RUs[rugID]
	oldK := ru.InvalidSlices
	ru.InvalidSlices++
	if ru.bucketed {
		g.RebucketRU(ru.RUHID, rugID, oldK, ru.InvalidSlices)
	}
}

// RUHForPH resolves namespace nsID's placement handle ph to its bound RUH,
// honoring spec §4.5/§6's placement-identifier indirection: the host names
// a PH index local to its namespace, which the Namespace table maps to a
// device-global RUHID.
func (eg *EnduranceGroup) RUHForPH(nsID int, ph int) (RUHID, error) {
	for i := range eg.NSs {
		ns := &eg.NSs[i]
		if ns.NSID != nsID {
			continue
		}
		if ph < 0 || ph >= len(ns.PHs) {
			return 0, ftlerr.New(ftlerr.InvalidHandle, fmt.Sprintf("namespace %d has no PH %d", nsID, ph), nil)
		}
		return ns.PHs[ph], nil
	}
	return 0, ftlerr.New(ftlerr.InvalidHandle, fmt.Sprintf("unknown namespace %d", nsID), nil)
}
