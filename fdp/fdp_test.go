package fdp

import (
	"testing"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
)

func testGeo() addr.Geometry {
	return addr.Geometry{Dies: 4, BlocksPerDie: 8, SlicesPerBlock: 4, UserPagesPerBlock: 4}
}

func testConfig() Config {
	return Config{
		NRUH:                  2,
		NRG:                   2,
		RGIF:                  0,
		RUSizeInBlocks:        4,
		DefaultRUHType:        PersistentlyIsolated,
		DefaultReservedFreeRU: 1,
	}
}

func TestNewRejectsOversizedHandleSpace(t *testing.T) {
	cfg := testConfig()
	cfg.NRUH = 1 << 8
	cfg.NRG = 1 << 8
	if _, err := New(testGeo(), cfg); err == nil {
		t.Fatalf("expected NRUH*NRG >= 2^15 to be rejected")
	}
}

func TestNewStripesRUAcrossDies(t *testing.T) {
	// I6: every RU's blocks are drawn from distinct dies when RUSize <= Dies.
	geo := testGeo()
	eg, err := New(geo, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for rg := range eg.RGs {
		for ru := range eg.RGs[rg].RUs {
			seen := map[addr.DieID]bool{}
			for _, ba := range eg.RGs[rg].RUs[ru].BlockAddrs {
				if seen[ba.Die] {
					t.Fatalf("rg %d ru %d: duplicate die %d within one RU", rg, ru, ba.Die)
				}
				seen[ba.Die] = true
			}
		}
	}
}

func TestNewSeedsInitialRUHBinding(t *testing.T) {
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for h := range eg.RUHs {
		for rg := range eg.RGs {
			rugID := eg.RUHs[h].Rus[rg]
			if rugID == RUNone {
				t.Fatalf("ruh %d: expected an initial bound RU in rg %d", h, rg)
			}
			if eg.RGs[rg].RUs[rugID].RUHID != RUHID(h) {
				t.Fatalf("ruh %d: bound ru %d does not point back to it", h, rugID)
			}
		}
	}
}

func TestBlockRUInfoIsConsistentWithDefaultChunks(t *testing.T) {
	// P5: the Block→RU inverse table agrees with the forward chunk layout.
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for rg := range eg.RGs {
		for ru := range eg.RGs[rg].RUs {
			for _, ba := range eg.RGs[rg].RUs[ru].BlockAddrs {
				gotRU, gotRG := eg.BlockRUInfo.Decode(ba.Die, ba.Block)
				if gotRU != RUGID(ru) || gotRG != RGID(rg) {
					t.Fatalf("BlockRUInfo.Decode(%d,%d) = (%d,%d), want (%d,%d)", ba.Die, ba.Block, gotRU, gotRG, ru, rg)
				}
			}
		}
	}
}

func TestGetFreeRUHonorsReserve(t *testing.T) {
	geo := testGeo()
	cfg := testConfig()
	eg, err := New(geo, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := &eg.RGs[0]
	// ruCountPerGroup = (4*8)/(4*2) = 4, minus 2 already bound to RUHs = 2 free.
	if got := g.FreeCount(); got != 2 {
		t.Fatalf("FreeCount() = %d, want 2", got)
	}
	// reservedFreeRuCount = 1: ForUse can drain free count 2 -> 1, then refuses.
	if _, err := g.GetFreeRU(false); err != nil {
		t.Fatalf("first GetFreeRU(false): %v", err)
	}
	if _, err := g.GetFreeRU(false); !ftlerr.Is(err, ftlerr.NoFreeSlot) {
		t.Fatalf("expected NoFreeSlot once at reserve, got %v", err)
	}
	// GC callers are exempt from the reserve.
	if _, err := g.GetFreeRU(true); err != nil {
		t.Fatalf("GetFreeRU(true) at reserve: %v", err)
	}
}

func TestPutAndPopVictimRU(t *testing.T) {
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := &eg.RGs[0]
	rugID, ok := g.popFreeHead()
	if !ok {
		t.Fatalf("expected a free RU to pop")
	}
	g.PutVictimRU(0, rugID, 3)
	if got := g.VictimBucketSize(0, 3); got != 1 {
		t.Fatalf("VictimBucketSize(0,3) = %d, want 1", got)
	}

	got, owner, err := g.PopVictimRU(0, PersistentlyIsolated)
	if err != nil {
		t.Fatalf("PopVictimRU: %v", err)
	}
	if got != rugID || owner != 0 {
		t.Fatalf("PopVictimRU() = (%d,%d), want (%d,0)", got, owner, rugID)
	}
	if g.VictimBucketSize(0, 3) != 0 {
		t.Fatalf("expected bucket to be empty after pop")
	}
}

func TestPopVictimRUPersistentlyIsolatedNeverBorrows(t *testing.T) {
	// Scenario 4 (spec §8): a PersistentlyIsolated RUH with no victims of
	// its own must not fall back to another handle's buckets.
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := &eg.RGs[0]
	rugID, ok := g.popFreeHead()
	if !ok {
		t.Fatalf("expected a free RU to pop")
	}
	g.PutVictimRU(1, rugID, 2) // only RUH 1 has a victim

	if _, _, err := g.PopVictimRU(0, PersistentlyIsolated); !ftlerr.Is(err, ftlerr.NoVictim) {
		t.Fatalf("expected NoVictim for a PersistentlyIsolated handle with no victims of its own, got %v", err)
	}
}

func TestPopVictimRUInitiallyIsolatedBorrowsCrossRUH(t *testing.T) {
	// Scenario 5 (spec §8): an InitiallyIsolated RUH falls back to another
	// handle's bucket when its own are empty.
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := &eg.RGs[0]
	rugID, ok := g.popFreeHead()
	if !ok {
		t.Fatalf("expected a free RU to pop")
	}
	g.PutVictimRU(1, rugID, 2)

	got, owner, err := g.PopVictimRU(0, InitiallyIsolated)
	if err != nil {
		t.Fatalf("expected cross-RUH fallback to succeed, got %v", err)
	}
	if got != rugID || owner != 1 {
		t.Fatalf("PopVictimRU() = (%d,%d), want (%d,1)", got, owner, rugID)
	}
}

func TestRebucketRUMovesBuckets(t *testing.T) {
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := &eg.RGs[0]
	rugID, _ := g.popFreeHead()
	g.PutVictimRU(0, rugID, 1)
	g.RebucketRU(0, rugID, 1, 3)

	if g.VictimBucketSize(0, 1) != 0 {
		t.Fatalf("expected bucket 1 empty after rebucket")
	}
	if g.VictimBucketSize(0, 3) != 1 {
		t.Fatalf("expected bucket 3 to hold the rebucketed RU")
	}
}

func TestNextVSAAdvancesAndRotates(t *testing.T) {
	geo := testGeo()
	eg, err := New(geo, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	slicesPerRU := eg.RGs[0].SlicesPerRU()

	seen := map[addr.VSA]bool{}
	for i := 0; i < slicesPerRU; i++ {
		v, err := eg.NextVSA(0, 0, ForUse)
		if err != nil {
			t.Fatalf("NextVSA[%d]: %v", i, err)
		}
		if seen[v] {
			t.Fatalf("NextVSA returned duplicate VSA %v at iteration %d", v, i)
		}
		seen[v] = true
	}
	// The RU is now full: it should have rotated to a fresh RU without error.
	if _, err := eg.NextVSA(0, 0, ForUse); err != nil {
		t.Fatalf("NextVSA after rotation: %v", err)
	}
}

func TestInvalidateIncrementsInvalidSlices(t *testing.T) {
	geo := testGeo()
	eg, err := New(geo, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ba := eg.RGs[0].RUs[eg.RUHs[0].Rus[0]].BlockAddrs[0]

	eg.Invalidate(ba.Die, ba.Block)

	rugID, rgID := eg.BlockRUInfo.Decode(ba.Die, ba.Block)
	if got := eg.RGs[rgID].RUs[rugID].InvalidSlices; got != 1 {
		t.Fatalf("InvalidSlices = %d, want 1", got)
	}
}

func TestRUHForPH(t *testing.T) {
	eg, err := New(testGeo(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eg.NSs = []Namespace{{NSID: 7, PHs: []RUHID{1, 0}}}

	got, err := eg.RUHForPH(7, 0)
	if err != nil {
		t.Fatalf("RUHForPH: %v", err)
	}
	if got != 1 {
		t.Fatalf("RUHForPH(7,0) = %d, want 1", got)
	}

	if _, err := eg.RUHForPH(7, 5); !ftlerr.Is(err, ftlerr.InvalidHandle) {
		t.Fatalf("expected InvalidHandle for an out-of-range PH, got %v", err)
	}
	if _, err := eg.RUHForPH(99, 0); !ftlerr.Is(err, ftlerr.InvalidHandle) {
		t.Fatalf("expected InvalidHandle for an unknown namespace, got %v", err)
	}
}
