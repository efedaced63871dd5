package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func geo() Geometry {
	return Geometry{Dies: 2, BlocksPerDie: 4, SlicesPerBlock: 8, UserPagesPerBlock: 8}
}

func TestVOrgToVSARoundTrip(t *testing.T) {
	g := geo()
	cases := []struct {
		die  DieID
		blk  BlockID
		page PageID
	}{
		{0, 0, 0},
		{0, 3, 7},
		{1, 0, 0},
		{1, 3, 7},
	}
	for _, c := range cases {
		v := g.VOrgToVSA(c.die, c.blk, c.page)
		require.NotEqual(t, VSANone, v)
		die, blk, page, ok := g.VSAToVOrg(v)
		require.True(t, ok)
		require.Equal(t, c.die, die)
		require.Equal(t, c.blk, blk)
		require.Equal(t, c.page, page)
	}
}

func TestVOrgToVSAOutOfRange(t *testing.T) {
	g := geo()
	if v := g.VOrgToVSA(2, 0, 0); v != VSANone {
		t.Fatalf("expected VSANone for out-of-range die, got %d", v)
	}
	if v := g.VOrgToVSA(0, 4, 0); v != VSANone {
		t.Fatalf("expected VSANone for out-of-range block, got %d", v)
	}
	if v := g.VOrgToVSA(0, 0, 8); v != VSANone {
		t.Fatalf("expected VSANone for out-of-range page, got %d", v)
	}
}

func TestVSAToVOrgOutOfRange(t *testing.T) {
	g := geo()
	if _, _, _, ok := g.VSAToVOrg(-1); ok {
		t.Fatalf("expected ok=false for negative VSA")
	}
	if _, _, _, ok := g.VSAToVOrg(VSA(g.NumVSA())); ok {
		t.Fatalf("expected ok=false for VSA at N_VSA")
	}
}

func TestNumVSA(t *testing.T) {
	g := geo()
	if got, want := g.NumVSA(), int64(2*4*8); got != want {
		t.Fatalf("NumVSA() = %d, want %d", got, want)
	}
}

func TestValidLSA(t *testing.T) {
	if !ValidLSA(0, 10) {
		t.Fatalf("expected 0 valid for nLSA=10")
	}
	if ValidLSA(10, 10) {
		t.Fatalf("expected 10 invalid for nLSA=10")
	}
	if ValidLSA(-1, 10) {
		t.Fatalf("expected -1 invalid")
	}
}
