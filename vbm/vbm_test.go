package vbm

import (
	"testing"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/ftlerr"
)

func testGeo() addr.Geometry {
	return addr.Geometry{Dies: 1, BlocksPerDie: 4, SlicesPerBlock: 4, UserPagesPerBlock: 4}
}

func TestNewSeedsFreePool(t *testing.T) {
	g := testGeo()
	m := New(g, 1, nil)
	if got := m.FreeCount(0); got != 4 {
		t.Fatalf("FreeCount() = %d, want 4", got)
	}
}

func TestNewSkipsBadBlocks(t *testing.T) {
	g := testGeo()
	bad := map[addr.DieID][]addr.BlockID{0: {2}}
	m := New(g, 0, bad)
	if got := m.FreeCount(0); got != 3 {
		t.Fatalf("FreeCount() = %d, want 3 with one bad block seeded", got)
	}
	if !m.Block(0, 2).Bad {
		t.Fatalf("expected block 2 to be marked bad")
	}
}

func TestGetFreeBlockHonorsReserve(t *testing.T) {
	g := addr.Geometry{Dies: 1, BlocksPerDie: 2, SlicesPerBlock: 4, UserPagesPerBlock: 4}
	m := New(g, 1, nil)

	if _, ok := m.GetFreeBlock(0, ForUse); !ok {
		t.Fatalf("expected first GetFreeBlock(ForUse) to succeed")
	}
	// Free count is now 1, equal to the reserve: ForUse must refuse.
	if _, ok := m.GetFreeBlock(0, ForUse); ok {
		t.Fatalf("expected GetFreeBlock(ForUse) to refuse at the reserve threshold")
	}
	if _, ok := m.GetFreeBlock(0, ForGc); !ok {
		t.Fatalf("expected GetFreeBlock(ForGc) to dip into the reserve")
	}
	if _, ok := m.GetFreeBlock(0, ForGc); ok {
		t.Fatalf("expected GetFreeBlock(ForGc) to fail once genuinely empty")
	}
}

func TestPutFreeBlockResetsMetadata(t *testing.T) {
	g := testGeo()
	m := New(g, 0, nil)
	b, _ := m.GetFreeBlock(0, ForUse)
	blk := m.Block(0, b)
	blk.InvalidSlices = 3
	blk.PageCursor = 2

	m.PutFreeBlock(0, b)
	if blk.InvalidSlices != 0 || blk.PageCursor != 0 || !blk.Free {
		t.Fatalf("PutFreeBlock did not reset metadata: %+v", blk)
	}
}

func TestVictimBucketsGreedySelection(t *testing.T) {
	// Scenario 3 (spec §8): three non-free blocks with invalid counts
	// {1, 3, 2}; Pop-best must return the one with count 3.
	g := addr.Geometry{Dies: 1, BlocksPerDie: 4, SlicesPerBlock: 4, UserPagesPerBlock: 4}
	m := New(g, 0, nil)

	b0, _ := m.GetFreeBlock(0, ForUse)
	b1, _ := m.GetFreeBlock(0, ForUse)
	b2, _ := m.GetFreeBlock(0, ForUse)

	m.Block(0, b0).InvalidSlices = 1
	m.PutVictim(0, b0, 1)
	m.Block(0, b1).InvalidSlices = 3
	m.PutVictim(0, b1, 3)
	m.Block(0, b2).InvalidSlices = 2
	m.PutVictim(0, b2, 2)

	best, err := m.PopBest(0)
	if err != nil {
		t.Fatalf("PopBest: %v", err)
	}
	if best != b1 {
		t.Fatalf("PopBest() = %v, want %v (invalid count 3)", best, b1)
	}
	if m.IsBucketed(0, b1) {
		t.Fatalf("expected PopBest to detach the victim from its bucket")
	}
}

func TestPopBestNoVictim(t *testing.T) {
	g := testGeo()
	m := New(g, 0, nil)
	if _, err := m.PopBest(0); !ftlerr.Is(err, ftlerr.NoVictim) {
		t.Fatalf("expected NoVictim, got %v", err)
	}
}

func TestRebucketMovesBetweenBuckets(t *testing.T) {
	g := testGeo()
	m := New(g, 0, nil)
	b, _ := m.GetFreeBlock(0, ForUse)
	m.PutVictim(0, b, 0)

	m.Rebucket(0, b, 0, 2)
	if got := m.VictimBucketSize(0, 0); got != 0 {
		t.Fatalf("bucket 0 size = %d, want 0 after rebucket", got)
	}
	if got := m.VictimBucketSize(0, 2); got != 1 {
		t.Fatalf("bucket 2 size = %d, want 1 after rebucket", got)
	}
}

func TestRebucketNoopForCurrent(t *testing.T) {
	g := testGeo()
	m := New(g, 0, nil)
	b, _ := m.GetFreeBlock(0, ForUse)
	m.SetCurrentBlock(0, b)

	m.Rebucket(0, b, 0, 1) // must not panic or bucket the current block
	if m.IsBucketed(0, b) {
		t.Fatalf("expected current block to remain unbucketed")
	}
}
