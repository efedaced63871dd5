package tempbuf

import (
	"testing"

	"github.com/google/uuid"

	"github.com/openssd-go/ftlcore/ftlerr"
)

func TestAllocateTempDataBufExhaustion(t *testing.T) {
	p := New(1, 16)
	if _, err := p.AllocateTempDataBuf(); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	if _, err := p.AllocateTempDataBuf(); !ftlerr.Is(err, ftlerr.NoFreeSlot) {
		t.Fatalf("expected NoFreeSlot once exhausted, got %v", err)
	}
}

func TestBlockingReqLinkage(t *testing.T) {
	p := New(1, 16)
	idx, _ := p.AllocateTempDataBuf()
	if _, ok := p.BlockingReq(idx); ok {
		t.Fatalf("expected no blocking request before it is set")
	}

	readID := uuid.New()
	p.UpdateTempDataBufEntryInfoBlockingReq(idx, readID)
	got, ok := p.BlockingReq(idx)
	if !ok {
		t.Fatalf("expected a blocking request after UpdateTempDataBufEntryInfoBlockingReq")
	}
	if got != readID {
		t.Fatalf("BlockingReq() = %v, want %v", got, readID)
	}
}

func TestReleaseReturnsBufferToPool(t *testing.T) {
	p := New(1, 16)
	idx, _ := p.AllocateTempDataBuf()
	if p.Available() != 0 {
		t.Fatalf("Available() = %d, want 0 while the only buffer is busy", p.Available())
	}
	p.Release(idx)
	if p.Available() != 1 {
		t.Fatalf("Available() = %d, want 1 after release", p.Available())
	}
}

func TestDataIsSizedToBufSize(t *testing.T) {
	p := New(2, 32)
	idx, _ := p.AllocateTempDataBuf()
	if got := len(p.Data(idx)); got != 32 {
		t.Fatalf("len(Data()) = %d, want 32", got)
	}
}
