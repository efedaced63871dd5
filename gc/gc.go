// Package gc implements the classic (non-FDP) garbage collector of spec
// §4.4: per-die victim selection, per-page valid-data migration, and erase.
package gc

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/google/uuid"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
	"github.com/openssd-go/ftlcore/reqpool"
	"github.com/openssd-go/ftlcore/slicemap"
	"github.com/openssd-go/ftlcore/tempbuf"
	"github.com/openssd-go/ftlcore/vbm"
)

// maxAdmitRetries bounds the yield-and-retry loop at the two suspension
// points named in spec §5 before giving up as NoFreeSlot.
const maxAdmitRetries = 8

// GC drives the classic garbage collector for one die's Virtual Block Map.
type GC struct {
	geo   addr.Geometry
	vb    *vbm.Map
	maps  *slicemap.Maps
	alloc *Allocator
	tmp   *tempbuf.Pool
	sched reqpool.Scheduler
}

// New builds a classic GC instance wired to the core's shared state.
func New(geo addr.Geometry, vb *vbm.Map, maps *slicemap.Maps, alloc *Allocator, tmp *tempbuf.Pool, sched reqpool.Scheduler) *GC {
	return &GC{geo: geo, vb: vb, maps: maps, alloc: alloc, tmp: tmp, sched: sched}
}

// Gc runs one victim pass on die (spec §4.4):
//  1. Pop the best (greediest) victim block.
//  2. If every slice is already invalid, skip migration — there is nothing
//     to save.
//  3. Otherwise, for every page: migrate the slice if it is still valid,
//     skip it silently if it is stale (spec's StaleSlice — not an error).
//  4. Erase the victim and return it to the free pool, or mark it bad and
//     let the caller retry with the next victim.
func (g *GC) Gc(ctx context.Context, die addr.DieID) error {
	victim, err := g.vb.PopBest(die)
	if err != nil {
		return err
	}

	blk := g.vb.Block(die, victim)
	if blk.InvalidSlices != g.geo.SlicesPerBlock {
		if err := g.migrate(ctx, die, victim); err != nil {
			return err
		}
	}

	return g.erase(ctx, die, victim)
}

// migrate copies every still-valid slice out of victim into a freshly
// allocated destination on the same die, updating the maps on each
// completion (spec §4.2's write-completion contract).
func (g *GC) migrate(ctx context.Context, die addr.DieID, victim addr.BlockID) error {
	for p := 0; p < g.geo.UserPagesPerBlock; p++ {
		v := g.geo.VOrgToVSA(die, victim, addr.PageID(p))
		l := g.maps.LSAOf(v)
		if l == addr.LSANone || g.maps.VSAOf(l) != v {
			// StaleSlice: not an error, skip silently.
			continue
		}

		bufIdx, err := g.allocTempBuf(ctx)
		if err != nil {
			return err
		}

		readDesc := reqpool.Descriptor{
			ID:   uuid.New(),
			Type: reqpool.NAND,
			Code: reqpool.Read,
			LSA:  l,
			VSA:  v,
			Die:  die,
			Data: g.tmp.Data(bufIdx),
		}
		readTag, err := g.sched.Submit(ctx, readDesc)
		if err != nil {
			g.tmp.Release(bufIdx)
			return err
		}
		data, err := g.sched.Await(ctx, readTag)
		if err != nil {
			g.tmp.Release(bufIdx)
			return err
		}
		copy(g.tmp.Data(bufIdx), data)

		newVSA, err := g.alloc.FindFreeVirtualSliceForGc(die, victim)
		if err != nil {
			g.tmp.Release(bufIdx)
			return err
		}

		readID := readDesc.ID
		g.tmp.UpdateTempDataBufEntryInfoBlockingReq(bufIdx, readID)
		writeDesc := reqpool.Descriptor{
			Type:        reqpool.NAND,
			Code:        reqpool.Write,
			LSA:         l,
			VSA:         newVSA,
			Die:         die,
			Data:        g.tmp.Data(bufIdx),
			BlockingReq: &readID,
		}
		writeTag, err := g.sched.Submit(ctx, writeDesc)
		if err != nil {
			g.tmp.Release(bufIdx)
			return err
		}
		if _, err := g.sched.Await(ctx, writeTag); err != nil {
			g.tmp.Release(bufIdx)
			return err
		}

		g.maps.CompleteWrite(l, newVSA)
		g.tmp.Release(bufIdx)
	}
	return nil
}

// erase reclaims victim. On success it is returned to the free pool; on
// failure it is marked bad and excluded from circulation, and BadBlock is
// returned so the caller retries GC with the next victim.
func (g *GC) erase(ctx context.Context, die addr.DieID, victim addr.BlockID) error {
	eraseDesc := reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Erase, Die: die, Block: victim}
	tag, err := g.sched.Submit(ctx, eraseDesc)
	if err != nil {
		blk := g.vb.Block(die, victim)
		blk.Bad = true
		log.Warn("gc: erase failed, marking block bad", "die", die, "block", victim, "error", err)
		return ftlerr.New(ftlerr.BadBlock, fmt.Sprintf("die %d block %d", die, victim), err)
	}
	if _, err := g.sched.Await(ctx, tag); err != nil {
		blk := g.vb.Block(die, victim)
		blk.Bad = true
		return ftlerr.New(ftlerr.BadBlock, fmt.Sprintf("die %d block %d", die, victim), err)
	}

	blk := g.vb.Block(die, victim)
	blk.EraseCount++
	g.vb.PutFreeBlock(die, victim)

	if g.vb.FreeCount(die) <= g.vb.ReservedFreeCount(die) {
		log.Warn("gc: free block count at or below reserve", "die", die, "free", g.vb.FreeCount(die), "reserved", g.vb.ReservedFreeCount(die))
	}
	return nil
}

func (g *GC) allocTempBuf(ctx context.Context) (int, error) {
	var idx int
	err := ftlerr.Retry(ctx, maxAdmitRetries, func(ctx context.Context) error {
		i, err := g.tmp.AllocateTempDataBuf()
		if err != nil {
			return err
		}
		idx = i
		return nil
	}, nil)
	return idx, err
}
