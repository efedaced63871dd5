// Package gc implements the FDP garbage collector of spec §4.7: victim RU
// selection honoring isolation policy, per-slice valid-data migration, and
// erase — the Reclaim Unit analogue of package gc's classic, per-block
// collector.
package gc

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/google/uuid"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/fdp"
	"github.com/openssd-go/ftlcore/ftlerr"
	"github.com/openssd-go/ftlcore/reqpool"
	"github.com/openssd-go/ftlcore/slicemap"
	"github.com/openssd-go/ftlcore/tempbuf"
)

const maxAdmitRetries = 8

// GC drives the FDP garbage collector over one Endurance Group.
type GC struct {
	geo  addr.Geometry
	eg   *fdp.EnduranceGroup
	maps *slicemap.Maps
	tmp  *tempbuf.Pool
	sched reqpool.Scheduler
}

// New builds an FDP GC instance wired to the core's shared state.
func New(geo addr.Geometry, eg *fdp.EnduranceGroup, maps *slicemap.Maps, tmp *tempbuf.Pool, sched reqpool.Scheduler) *GC {
	return &GC{geo: geo, eg: eg, maps: maps, tmp: tmp, sched: sched}
}

// GarbageCollectionFDP runs one victim-RU reclaim pass for requesting
// handle ruhId in group rgId (spec §4.7):
//  1. Select a victim RU — ruhId's own greediest bucket, or (only for
//     InitiallyIsolated handles) another handle's, per spec §4.6/§9.
//  2. Migrate every still-valid slice to a freshly allocated destination,
//     keeping it under the victim's original owning handle.
//  3. Erase every block in the victim RU.
//  4. Return the RU to the free pool; rebind the RUH if the victim's
//     original owner differs from ruhId and that owner's active RU has
//     since gone idle is out of scope here — the RUH state machine only
//     changes when NextVSA itself rotates a handle's current RU.
//
// Returns the reclaimed RUGID.
func (g *GC) GarbageCollectionFDP(ctx context.Context, rgID fdp.RGID, ruhID fdp.RUHID) (fdp.RUGID, error) {
	rg := &g.eg.RGs[rgID]
	ruhType := g.eg.RUHs[ruhID].Type

	rugID, victimOwner, err := rg.PopVictimRU(ruhID, ruhType)
	if err != nil {
		return fdp.RUNone, err
	}

	ru := &rg.RUs[rugID]
	if ru.InvalidSlices < g.slicesPerRU(rg) {
		if err := g.migrate(ctx, rgID, rugID, victimOwner); err != nil {
			return fdp.RUNone, err
		}
	}

	if err := g.erase(ctx, rgID, rugID); err != nil {
		return fdp.RUNone, err
	}

	log.Debug("fdp gc: reclaimed ru", "rg", rgID, "ru", rugID, "requestingRuh", ruhID, "victimOwner", victimOwner)
	return rugID, nil
}

func (g *GC) slicesPerRU(rg *fdp.RG) int {
	return rg.SlicesPerRU()
}

// migrate copies every still-valid slice out of the victim RU, writing each
// one to a fresh destination under its original owning handle victimOwner
// so FDP migration never changes a living slice's placement identity.
// targetLSA is bound explicitly to the slice's current LSA (spec §9's
// Open Question #2: no reproduction of the apparent source ambiguity
// between the victim's and target's LSA).
func (g *GC) migrate(ctx context.Context, rgID fdp.RGID, rugID fdp.RUGID, victimOwner fdp.RUHID) error {
	rg := &g.eg.RGs[rgID]
	ru := &rg.RUs[rugID]
	ppb := g.geo.UserPagesPerBlock

	for _, ba := range ru.BlockAddrs {
		for p := 0; p < ppb; p++ {
			v := g.geo.VOrgToVSA(ba.Die, ba.Block, addr.PageID(p))
			l := g.maps.LSAOf(v)
			if l == addr.LSANone || g.maps.VSAOf(l) != v {
				continue // StaleSlice: not an error, skip silently.
			}
			targetLSA := l

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
				Die:  ba.Die,
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

			newVSA, err := g.eg.NextVSA(rgID, victimOwner, fdp.ForGc)
			if err != nil {
				g.tmp.Release(bufIdx)
				return err
			}

			readID := readDesc.ID
			g.tmp.UpdateTempDataBufEntryInfoBlockingReq(bufIdx, readID)
			newDie, newBlock, _, _ := g.geo.VSAToVOrg(newVSA)
			writeDesc := reqpool.Descriptor{
				Type:        reqpool.NAND,
				Code:        reqpool.Write,
				LSA:         targetLSA,
				VSA:         newVSA,
				Die:         newDie,
				Block:       newBlock,
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

			g.maps.CompleteWrite(targetLSA, newVSA)
			g.tmp.Release(bufIdx)
		}
	}
	return nil
}

// erase reclaims every block of the victim RU. The first erase failure
// aborts the RU's reclaim with BadBlock. Nothing is marked bad: the RU,
// already detached from its victim bucket, is simply not returned to the
// free queue, so it leaves circulation. This is the FDP analogue of
// classic gc.erase, widened to a block vector.
func (g *GC) erase(ctx context.Context, rgID fdp.RGID, rugID fdp.RUGID) error {
	rg := &g.eg.RGs[rgID]
	ru := &rg.RUs[rugID]

	for _, ba := range ru.BlockAddrs {
		eraseDesc := reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Erase, Die: ba.Die, Block: ba.Block}
		tag, err := g.sched.Submit(ctx, eraseDesc)
		if err != nil {
			log.Warn("fdp gc: erase failed, ru left out of circulation", "rg", rgID, "ru", rugID, "die", ba.Die, "block", ba.Block, "error", err)
			return ftlerr.New(ftlerr.BadBlock, fmt.Sprintf("rg %d ru %d die %d block %d", rgID, rugID, ba.Die, ba.Block), err)
		}
		if _, err := g.sched.Await(ctx, tag); err != nil {
			return ftlerr.New(ftlerr.BadBlock, fmt.Sprintf("rg %d ru %d die %d block %d", rgID, rugID, ba.Die, ba.Block), err)
		}
	}

	ru.EraseCount++
	ru.InvalidSlices = 0
	ru.SliceCursor = 0
	ru.RUHID = -1
	rg.PutFreeRU(rugID)

	if rg.FreeCount() <= rg.ReservedFreeRUCount() {
		log.Warn("fdp gc: free RU count at or below reserve", "rg", rgID, "free", rg.FreeCount(), "reserved", rg.ReservedFreeRUCount())
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
