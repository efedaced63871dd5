// Package core wires the Virtual Block Map, Logical/Virtual Slice Maps,
// classic and FDP garbage collectors, request pool, and temp-buffer pool
// into the single top-level "core context" value spec §9 calls for: no
// process-wide singletons, every operation takes the context explicitly.
package core

import (
	"context"
	"fmt"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/fdp"
	fdpgc "github.com/openssd-go/ftlcore/fdp/gc"
	"github.com/openssd-go/ftlcore/ftlerr"
	"github.com/openssd-go/ftlcore/gc"
	"github.com/openssd-go/ftlcore/reqpool"
	"github.com/openssd-go/ftlcore/slicemap"
	"github.com/openssd-go/ftlcore/tempbuf"
	"github.com/openssd-go/ftlcore/vbm"
)

// maxAdmitRetries bounds the yield-and-retry loop spec §5 describes for
// GetFromFreeReqQ before an entrypoint gives up and surfaces NoFreeSlot.
const maxAdmitRetries = 8

// PlacementHint names the (namespace, placement handle) pair a host write
// may carry (spec §6); nil means "classic, non-FDP destination".
type PlacementHint struct {
	NSID int
	PH   int
}

// Core is the FTL core context: it owns every arena and exposes spec §6's
// external interface. It is not safe for concurrent use — per spec §5 it is
// driven by a single cooperative executor.
type Core struct {
	geo   addr.Geometry
	vb    *vbm.Map
	maps  *slicemap.Maps
	alloc *gc.Allocator
	gc    *gc.GC
	eg    *fdp.EnduranceGroup
	fgc   *fdpgc.GC
	tmp   *tempbuf.Pool
	sched reqpool.Scheduler
}

// New builds a Core over geo and nLSA logical slices, wiring the classic
// GC always and the FDP overlay when eg is non-nil (spec §6's "fdp.enabled"
// gate). sched is the NAND scheduler the core submits requests to; the
// core observes each request's completion through sched.Await.
func New(geo addr.Geometry, nLSA int64, reservedFreeBlockCount int, badBlocks map[addr.DieID][]addr.BlockID, tempBufCapacity int, eg *fdp.EnduranceGroup, sched reqpool.Scheduler) *Core {
	vb := vbm.New(geo, reservedFreeBlockCount, badBlocks)
	maps := slicemap.New(geo, nLSA, vb)
	if eg != nil {
		maps.SetFDPInvalidator(eg)
	}

	alloc := gc.NewAllocator(geo, vb)
	tmp := tempbuf.New(tempBufCapacity, geo.SlicesPerBlock*512)

	c := &Core{
		geo:   geo,
		vb:    vb,
		maps:  maps,
		alloc: alloc,
		gc:    gc.New(geo, vb, maps, alloc, tmp, sched),
		eg:    eg,
		tmp:   tmp,
		sched: sched,
	}
	if eg != nil {
		c.fgc = fdpgc.New(geo, eg, maps, tmp, sched)
	}
	return c
}

// FtlRead submits a NAND read for l's current VSA into buf (spec §6). Reads
// of a trimmed or never-written LSA return ftlerr.Unknown with the LSA as
// UserData; the command layer is expected to translate that into whatever
// NVMe deallocated-read-behavior policy applies.
func (c *Core) FtlRead(ctx context.Context, l addr.LSA, buf []byte) error {
	v := c.maps.VSAOf(l)
	if v == addr.VSANone {
		return ftlerr.New(ftlerr.Unknown, l, fmt.Errorf("lsa %d has no mapping", l))
	}
	die, _, _, _ := c.geo.VSAToVOrg(v)

	desc := reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Read, LSA: l, VSA: v, Die: die, Data: buf}
	tag, err := c.admit(ctx, desc)
	if err != nil {
		return err
	}
	data, err := c.sched.Await(ctx, tag)
	if err != nil {
		return err
	}
	copy(buf, data)
	return nil
}

// FtlWrite allocates a destination VSA for l — FDP-aware when hint is
// non-nil — submits the NAND write, and arranges the map update on
// completion (spec §6). A nil hint places the write through the classic
// per-die allocator; a hint on a core with no enabled Endurance Group
// fails with ftlerr.FdpDisabled.
func (c *Core) FtlWrite(ctx context.Context, l addr.LSA, buf []byte, hint *PlacementHint) error {
	v, die, err := c.allocateDestination(ctx, l, hint)
	if err != nil {
		return err
	}

	desc := reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Write, LSA: l, VSA: v, Die: die, Data: buf}
	tag, err := c.admit(ctx, desc)
	if err != nil {
		return err
	}
	if _, err := c.sched.Await(ctx, tag); err != nil {
		return err
	}

	c.maps.CompleteWrite(l, v)
	return nil
}

// allocateDestination resolves hint, if present, to an RUH via the
// namespace's placement-handle table and draws the next VSA from its
// current RU; otherwise it draws from the die holding l's previous mapping
// (or die 0 for a first write), the classic allocator's rotation.
func (c *Core) allocateDestination(ctx context.Context, l addr.LSA, hint *PlacementHint) (addr.VSA, addr.DieID, error) {
	if hint != nil {
		if c.eg == nil || !c.eg.Enabled {
			return addr.VSANone, 0, ftlerr.New(ftlerr.FdpDisabled, hint, nil)
		}
		ruhID, err := c.eg.RUHForPH(hint.NSID, hint.PH)
		if err != nil {
			return addr.VSANone, 0, err
		}
		rgID := fdp.RGID(0)
		v, err := c.eg.NextVSA(rgID, ruhID, fdp.ForUse)
		if err != nil {
			return addr.VSANone, 0, err
		}
		die, _, _, _ := c.geo.VSAToVOrg(v)
		return v, die, nil
	}

	die := addr.DieID(0)
	if old := c.maps.VSAOf(l); old != addr.VSANone {
		die, _, _, _ = c.geo.VSAToVOrg(old)
	}
	v, err := c.alloc.NextVSA(die, vbm.ForUse)
	return v, die, err
}

// FtlTrim invalidates the mapping for every LSA in [first, first+count)
// (spec §6).
func (c *Core) FtlTrim(first addr.LSA, count int64) {
	for i := int64(0); i < count; i++ {
		c.maps.Trim(first + addr.LSA(i))
	}
}

// FtlFlush is a no-op in this simulated core: nandsim.Scheduler executes
// requests synchronously on Submit, so nothing is ever left
// queued-but-not-admitted (spec §6 names this operation for a real,
// polling NAND scheduler; the simulator has no such backlog to drain).
func (c *Core) FtlFlush() {}

// GcIfNeeded runs one victim pass: on (die) for the classic collector, or
// on (rgId, ruhId) for the FDP collector when useFDP is true.
func (c *Core) GcIfNeeded(ctx context.Context, die addr.DieID, useFDP bool, rgID fdp.RGID, ruhID fdp.RUHID) error {
	if useFDP {
		if c.fgc == nil {
			return ftlerr.New(ftlerr.FdpDisabled, nil, nil)
		}
		_, err := c.fgc.GarbageCollectionFDP(ctx, rgID, ruhID)
		return err
	}
	return c.gc.Gc(ctx, die)
}

// admit submits desc, retrying on NoFreeSlot per spec §5's suspension-point
// contract: the caller yields back to the outer loop (here, a bounded
// retry with backoff) rather than blocking.
func (c *Core) admit(ctx context.Context, desc reqpool.Descriptor) (int, error) {
	var tag int
	err := ftlerr.Retry(ctx, maxAdmitRetries, func(ctx context.Context) error {
		t, err := c.sched.Submit(ctx, desc)
		if err != nil {
			return err
		}
		tag = t
		return nil
	}, nil)
	return tag, err
}

// EnduranceGroup exposes the wired FDP overlay, or nil if none was
// configured, for debugapi's occupancy introspection.
func (c *Core) EnduranceGroup() *fdp.EnduranceGroup { return c.eg }

// VBM exposes the classic Virtual Block Map for debugapi's occupancy
// introspection.
func (c *Core) VBM() *vbm.Map { return c.vb }

// Geometry returns the core's slice-address geometry.
func (c *Core) Geometry() addr.Geometry { return c.geo }
