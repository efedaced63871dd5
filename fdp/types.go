// Package fdp implements the NVMe Flexible Data Placement overlay of spec
// §4.5: Endurance Group, Reclaim Groups, Reclaim Units, Reclaim Unit
// Handles, the Namespace placement-handle view, and the Block-RU info
// table. As with vbm, every "pointer" is an arena index, never an owning
// reference (spec §9) — grounded on the same index-addressed doubly
// linked list idiom sop uses for its MRU caches (cache/doublylinkedlist.go,
// cache/mru.go), and on sop's hash/stripe addressing idiom
// (fs/registry_map.go, fs/tofilepath.go) for the Block→RU inverse table.
package fdp

import "github.com/openssd-go/ftlcore/addr"

// RUHType distinguishes the two Reclaim Unit Handle isolation policies of
// spec §4.6/§9 — modeled as a small variant, not as RUH subclasses.
type RUHType int

const (
	InitiallyIsolated RUHType = iota
	PersistentlyIsolated
)

// Mode controls whether NextVSA/GetFreeRU enforce a group's reserved-free-RU
// threshold, mirroring vbm.Mode one layer up at RU granularity (spec §4.6's
// I4 analogue, scenario 6).
type Mode int

const (
	// ForUse is a normal host write; it must not drain a group's free-RU
	// queue below the reserve.
	ForUse Mode = iota
	// ForGc is an FDP GC migration destination; it may dip into the
	// reserve and only fails when the free queue is genuinely empty.
	ForGc
)

// RUHID identifies a Reclaim Unit Handle.
type RUHID int

// RGID identifies a Reclaim Group.
type RGID int

// RUGID identifies a Reclaim Unit within its Reclaim Group.
type RUGID int

// RUNone is the sentinel for "no RU".
const RUNone RUGID = -1

// BlockAddr is one (die, block) pair belonging to an RU.
type BlockAddr struct {
	Die   addr.DieID
	Block addr.BlockID
}

// RU is a Reclaim Unit: a collection of blocks erased together.
type RU struct {
	RUHID         RUHID
	InvalidSlices int
	// SliceCursor is the next slice offset to write within the RU's
	// block vector (ruamw/current-slice cursor in spec's Data Model table).
	SliceCursor int
	BlockAddrs  []BlockAddr
	Free        bool
	EraseCount  int
	prev, next  RUGID
	bucketed    bool
}

// list is an intrusive, index-addressed doubly linked list of RUs within
// one Reclaim Group.
type list struct {
	head, tail RUGID
	size       int
}

// RG is a Reclaim Group: an array of Reclaim Units, a free-RU FIFO, and
// victim-RU buckets indexed by [RUHID][invalid-slice count] (spec §4.6).
type RG struct {
	RGID                RGID
	RUs                 []RU
	free                list
	victim              [][]list // victim[ruhId][k]
	reservedFreeRuCount int
	ruSize              int // blocks per RU
	slicesPerRU         int // FDP_C_SLICE_PER_RU
}

// RUH is a Reclaim Unit Handle: a writer identity binding to one current
// RU per RG at a time (spec §4.5's init paragraph, §4.6, I7).
type RUH struct {
	ID   RUHID
	Type RUHType
	// Rus[rgId] is the RUGID currently acting as this handle's destination
	// in that RG.
	Rus []RUGID
}

// Namespace is the FDP view of one NVMe namespace: its placement-handle
// list mapping PH index to RUH index.
type Namespace struct {
	NSID int
	PHs  []RUHID
}

// RUAddr is the encoded (rugId ⧺ rgId) address named in spec §4.5, using
// the Reclaim-Group-Identifier-Format shift to pack rugId into the high
// bits and rgId into the low `rgif` bits.
type RUAddr int64

// EncodeRUAddr packs rugId and rgId into one RUAddr using shift rgif.
func EncodeRUAddr(rugID RUGID, rgID RGID, rgif int) RUAddr {
	return RUAddr(int64(rugID)<<uint(rgif) | int64(rgID))
}

// DecodeRUAddr is the inverse of EncodeRUAddr.
func DecodeRUAddr(a RUAddr, rgif int) (rugID RUGID, rgID RGID) {
	mask := int64(1)<<uint(rgif) - 1
	rgID = RGID(int64(a) & mask)
	rugID = RUGID(int64(a) >> uint(rgif))
	return
}

// BlockRUInfoTable is the O(1) inverse of the default block→RU mapping:
// (die, block) → ru_addr (spec §4.5).
type BlockRUInfoTable struct {
	rgif int
	info [][]RUAddr // info[die][block]
}

// RUAddr looks up the encoded RU address owning (die, block).
func (t *BlockRUInfoTable) RUAddr(die addr.DieID, block addr.BlockID) RUAddr {
	return t.info[die][block]
}

// Decode decodes (die, block)'s owning (rugId, rgId).
func (t *BlockRUInfoTable) Decode(die addr.DieID, block addr.BlockID) (RUGID, RGID) {
	return DecodeRUAddr(t.info[die][block], t.rgif)
}

// EnduranceGroup is the FDP subsystem's singleton root (spec §3's Data
// Model table): endurance-wide counters, the RUH table, the RG array, the
// namespace array, the Block-RU inverse table, and the enable flag.
type EnduranceGroup struct {
	Enabled bool

	// Endurance-wide byte/erase counters (hbmw/mbmw/mbe in spec's Data
	// Model table), kept faithful to the data model. No operation in this
	// module updates or reads them, and debugapi does not expose them.
	HostBytesMetWritten int64
	MediaBytesWritten   int64
	MediaByteErased     int64

	RUHs        []RUH
	RGs         []RG
	NSs         []Namespace
	BlockRUInfo *BlockRUInfoTable

	geo  addr.Geometry
	rgif int
}
