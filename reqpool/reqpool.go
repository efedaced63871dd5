// Package reqpool models the request-slot pool and request descriptor the
// FTL core consumes from the (out-of-scope) NAND scheduler, per spec §6 and
// the request-descriptor design note of §9: a tagged variant over
// reqType × reqCode, with the hardware's flat option field-set reduced to
// an explicit, finite configuration record. Grounded on the file-handle
// pool bookkeeping idiom of sop's fs/hashmap.go, adapted from a map of
// open files to a fixed slot arena, and on google/uuid for request
// correlation identity (mirroring sop's Handle UUID fields).
package reqpool

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
)

// ReqType distinguishes the two request origins the scheduler handles.
type ReqType int

const (
	NAND ReqType = iota
	NVMeDMA
)

// ReqCode distinguishes the NAND operation a request performs.
type ReqCode int

const (
	Read ReqCode = iota
	Write
	Erase
)

// BlockSpace selects main vs. spare area addressing.
type BlockSpace int

const (
	Main BlockSpace = iota
	Spare
)

// BufferFormat selects whether the data buffer is addressed by pool entry
// or by an explicit caller-owned buffer.
type BufferFormat int

const (
	EntryFormat BufferFormat = iota
	ExplicitFormat
)

// AddressMode selects whether the descriptor's address field is a VSA or a
// raw physical (die, block, page) address.
type AddressMode int

const (
	AddressVSA AddressMode = iota
	AddressPhysical
)

// Options is the finite, explicit configuration a hardware request carries
// (spec §9): ECC on/off, ECC-warning on/off, row-address-dependency check
// on/off, block-space, buffer format, and address mode.
type Options struct {
	ECC                       bool
	ECCWarning                bool
	RowAddressDependencyCheck bool
	BlockSpace                BlockSpace
	BufferFormat              BufferFormat
	AddressMode               AddressMode
}

// Descriptor is a fully-populated, slot-indexed request ready to hand to
// SelectLowLevelReqQ (spec §6). BlockingReq, when non-nil, names another
// in-flight request's ID this one may not start ahead of — the mechanism
// GC uses to keep a migration WRITE from starting before its paired READ
// completes (spec §4.4/§5).
type Descriptor struct {
	ID   uuid.UUID
	Type ReqType
	Code ReqCode
	LSA  addr.LSA
	VSA  addr.VSA
	// Die/Block address an Erase request, which has no single VSA.
	Die         addr.DieID
	Block       addr.BlockID
	Data        []byte
	Options     Options
	BlockingReq *uuid.UUID
	// Done is set by Pool.MarkDone and read by Pool.IsDone. The FTL core
	// does not read it; it observes completion through Scheduler.Await.
	Done bool
}

// slot holds one pool entry: either free or occupied by a Descriptor.
type slot struct {
	occupied bool
	desc     Descriptor
}

// Pool is a bounded arena of request slots, the FTL-side half of the
// interface consumed from the NAND scheduler (spec §6).
type Pool struct {
	slots   []slot
	freeIdx []int // stack of free slot indices
}

// New creates a Pool with the given slot capacity.
func New(capacity int) *Pool {
	p := &Pool{
		slots:   make([]slot, capacity),
		freeIdx: make([]int, capacity),
	}
	for i := range p.freeIdx {
		p.freeIdx[i] = capacity - 1 - i
	}
	return p
}

// GetFromFreeReqQ allocates a slot and populates it with desc, returning the
// slot tag. It is one of the two suspension points named in spec §5: when
// the pool is exhausted it returns ftlerr.NoFreeSlot rather than blocking,
// so the caller can yield back to the outer loop and retry.
func (p *Pool) GetFromFreeReqQ(desc Descriptor) (slotTag int, err error) {
	n := len(p.freeIdx)
	if n == 0 {
		return -1, ftlerr.New(ftlerr.NoFreeSlot, fmt.Sprintf("pool capacity %d exhausted", len(p.slots)), nil)
	}
	tag := p.freeIdx[n-1]
	p.freeIdx = p.freeIdx[:n-1]
	if desc.ID == uuid.Nil {
		desc.ID = uuid.New()
	}
	p.slots[tag] = slot{occupied: true, desc: desc}
	return tag, nil
}

// SelectLowLevelReqQ hands a fully-populated request to the scheduler. In
// this simulated core the scheduler is nandsim.Scheduler; callers pass the
// slot tag through to it.
func (p *Pool) SelectLowLevelReqQ(slotTag int) (Descriptor, bool) {
	if slotTag < 0 || slotTag >= len(p.slots) || !p.slots[slotTag].occupied {
		return Descriptor{}, false
	}
	return p.slots[slotTag].desc, true
}

// MarkDone flags slotTag's request as complete, observable by polling.
func (p *Pool) MarkDone(slotTag int) {
	if slotTag >= 0 && slotTag < len(p.slots) && p.slots[slotTag].occupied {
		p.slots[slotTag].desc.Done = true
	}
}

// IsDone polls a slot's completion status.
func (p *Pool) IsDone(slotTag int) bool {
	return slotTag >= 0 && slotTag < len(p.slots) && p.slots[slotTag].occupied && p.slots[slotTag].desc.Done
}

// Release returns slotTag to the free-list. The caller must have observed
// completion first.
func (p *Pool) Release(slotTag int) {
	if slotTag < 0 || slotTag >= len(p.slots) || !p.slots[slotTag].occupied {
		return
	}
	p.slots[slotTag] = slot{}
	p.freeIdx = append(p.freeIdx, slotTag)
}

// Capacity returns the pool's total slot count.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Available returns the number of currently-free slots.
func (p *Pool) Available() int {
	return len(p.freeIdx)
}
