// Package vbm implements the Virtual Block Map and its per-die free-block
// FIFO and invalid-slice-indexed victim buckets (spec §4.3). Every "pointer"
// here is an index into a fixed-size arena slice, never an owning
// reference — §9's design note — so the structure mirrors sop's
// doubly-linked-list/MRU bucket idiom (cache/doublylinkedlist.go,
// cache/mru.go) with nodes addressed by BlockID instead of *node[T].
package vbm

import (
	"github.com/openssd-go/ftlcore/addr"
)

// list is an intrusive, index-addressed doubly linked list of blocks within
// one die. head/tail are BlockID, BlockNone when empty.
type list struct {
	head, tail addr.BlockID
	size       int
}

// Block is the per-(die, block) metadata of spec §3's Data Model table.
type Block struct {
	Free          bool
	Bad           bool
	EraseCount    int
	PageCursor    addr.PageID
	InvalidSlices int
	prev, next    addr.BlockID
	// bucketed is true while the block is linked into a victim bucket list;
	// used only to make Remove/re-bucket a cheap no-op check.
	bucketed bool
}

// Die holds one die's block arena, free-block FIFO, and victim buckets.
type Die struct {
	blocks           []Block
	free             list
	reservedFreeCnt  int
	victim           []list // indexed by invalid-slice count k in [0, SlicesPerBlock]
	current          addr.BlockID
	slicesPerBlock   int
}

// Map is the Virtual Block Map across all dies.
type Map struct {
	geo  addr.Geometry
	dies []Die
}

// New creates a Virtual Block Map for the given geometry. badBlocks seeds
// factory bad-block bits (spec §4's original_source supplement); blocks
// named there never enter the free pool.
func New(geo addr.Geometry, reservedFreeBlockCount int, badBlocks map[addr.DieID][]addr.BlockID) *Map {
	m := &Map{geo: geo, dies: make([]Die, geo.Dies)}
	for d := 0; d < geo.Dies; d++ {
		die := &m.dies[d]
		die.blocks = make([]Block, geo.BlocksPerDie)
		die.victim = make([]list, geo.SlicesPerBlock+1)
		die.current = addr.BlockNone
		die.reservedFreeCnt = reservedFreeBlockCount
		die.slicesPerBlock = geo.SlicesPerBlock
		for k := range die.blocks {
			die.blocks[k].prev = addr.BlockNone
			die.blocks[k].next = addr.BlockNone
		}
		bad := map[addr.BlockID]bool{}
		for _, b := range badBlocks[addr.DieID(d)] {
			bad[b] = true
		}
		for b := 0; b < geo.BlocksPerDie; b++ {
			bid := addr.BlockID(b)
			if bad[bid] {
				die.blocks[b].Bad = true
				continue
			}
			die.pushFreeTail(bid)
		}
	}
	return m
}

// Block returns a pointer to the (die, block) metadata.
func (m *Map) Block(die addr.DieID, block addr.BlockID) *Block {
	return &m.dies[die].blocks[block]
}

// FreeCount returns the number of blocks currently in the die's free FIFO.
func (m *Map) FreeCount(die addr.DieID) int {
	return m.dies[die].free.size
}

// ReservedFreeCount returns the die's reserve threshold (spec I4).
func (m *Map) ReservedFreeCount(die addr.DieID) int {
	return m.dies[die].reservedFreeCnt
}

// CurrentBlock returns the die's current-write block, or BlockNone.
func (m *Map) CurrentBlock(die addr.DieID) addr.BlockID {
	return m.dies[die].current
}

// SetCurrentBlock designates block as the die's current-write block. A
// block must be detached from the free list (via GetFreeBlock) before becoming
// current; the die's current block is in no victim bucket per spec I3.
func (m *Map) SetCurrentBlock(die addr.DieID, block addr.BlockID) {
	m.dies[die].current = block
}

// mode controls whether GetFreeBlock enforces the reserve threshold.
type Mode int

const (
	// ForUse is a normal host write; it must not consume the pool below
	// the reserve threshold (spec I4).
	ForUse Mode = iota
	// ForGc may dip into the reserve; only a truly empty free list fails.
	ForGc
)

// GetFreeBlock detaches and returns the head of the die's free FIFO. With
// mode ForUse it refuses (returns ok=false) once the free count is at or
// below the reserve, so host writes never take it below the reserve;
// GC-issued requests (ForGc) only fail when the free list is genuinely
// empty.
func (m *Map) GetFreeBlock(die addr.DieID, mode Mode) (addr.BlockID, bool) {
	d := &m.dies[die]
	if mode == ForUse && d.free.size <= d.reservedFreeCnt {
		return addr.BlockNone, false
	}
	if d.free.size == 0 {
		return addr.BlockNone, false
	}
	return d.popFreeHead(), true
}

// PutFreeBlock returns an erased, non-bad block to the die's free FIFO.
func (m *Map) PutFreeBlock(die addr.DieID, block addr.BlockID) {
	m.dies[die].pushFreeTail(block)
}

func (d *Die) pushFreeTail(b addr.BlockID) {
	blk := &d.blocks[b]
	blk.Free = true
	blk.InvalidSlices = 0
	blk.PageCursor = 0
	blk.prev = d.free.tail
	blk.next = addr.BlockNone
	if d.free.tail != addr.BlockNone {
		d.blocks[d.free.tail].next = b
	} else {
		d.free.head = b
	}
	d.free.tail = b
	d.free.size++
}

func (d *Die) popFreeHead() addr.BlockID {
	b := d.free.head
	blk := &d.blocks[b]
	d.free.head = blk.next
	if d.free.head == addr.BlockNone {
		d.free.tail = addr.BlockNone
	} else {
		d.blocks[d.free.head].prev = addr.BlockNone
	}
	blk.next = addr.BlockNone
	blk.prev = addr.BlockNone
	blk.Free = false
	d.free.size--
	return b
}
