// Package addr implements the FTL core's slice-address arithmetic (spec
// §4.1): pure, total translations between the logical slice address space
// (LSA), the virtual slice address space (VSA), and the physical-origin
// (die, block, page) triple. Translations never silently wrap; out-of-range
// inputs return the sentinel values below.
package addr

// LSA is a logical slice address, host-visible.
type LSA int64

// VSA is a virtual slice address, abstract device-level.
type VSA int64

// DieID identifies an independently-schedulable NAND die.
type DieID int

// BlockID identifies a block within a die (the erase granularity).
type BlockID int

// PageID identifies a page within a block.
type PageID int

const (
	// LSANone is the sentinel for "no mapping", outside [0, N_LSA).
	LSANone LSA = -1
	// VSANone is the sentinel for "no mapping", outside [0, N_VSA).
	VSANone VSA = -1
	// BlockNone is the sentinel for "no block", outside a die's block range.
	BlockNone BlockID = -1
)

// Geometry carries the fixed topology needed to translate between address
// spaces: how many dies, blocks per die, and slices (== pages, one slice
// per page per spec §6) per block.
type Geometry struct {
	Dies            int
	BlocksPerDie    int
	SlicesPerBlock  int
	UserPagesPerBlock int
}

// NumVSA returns the total virtual slice address space size, N_VSA.
func (g Geometry) NumVSA() int64 {
	return int64(g.Dies) * int64(g.BlocksPerDie) * int64(g.SlicesPerBlock)
}

// VOrgToVSA returns the VSA that holds page 0 of the virtual page (slice)
// addressed by (die, block, page). It is the core primitive named
// `Vorg2VsaTranslation` in spec §4.1.
func (g Geometry) VOrgToVSA(die DieID, block BlockID, page PageID) VSA {
	if !g.validOrigin(die, block, page) {
		return VSANone
	}
	perDie := int64(g.BlocksPerDie) * int64(g.SlicesPerBlock)
	return VSA(int64(die)*perDie + int64(block)*int64(g.SlicesPerBlock) + int64(page))
}

// VSAToVOrg is the inverse of VOrgToVSA: it decomposes a VSA back into its
// (die, block, page) origin triple.
func (g Geometry) VSAToVOrg(v VSA) (die DieID, block BlockID, page PageID, ok bool) {
	if v < 0 || int64(v) >= g.NumVSA() {
		return 0, BlockNone, 0, false
	}
	perDie := int64(g.BlocksPerDie) * int64(g.SlicesPerBlock)
	d := int64(v) / perDie
	rem := int64(v) % perDie
	b := rem / int64(g.SlicesPerBlock)
	p := rem % int64(g.SlicesPerBlock)
	return DieID(d), BlockID(b), PageID(p), true
}

func (g Geometry) validOrigin(die DieID, block BlockID, page PageID) bool {
	return die >= 0 && int(die) < g.Dies &&
		block >= 0 && int(block) < g.BlocksPerDie &&
		page >= 0 && int(page) < g.SlicesPerBlock
}

// ValidLSA reports whether l falls within [0, nLSA).
func ValidLSA(l LSA, nLSA int64) bool {
	return l >= 0 && int64(l) < nLSA
}
