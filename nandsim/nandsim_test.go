package nandsim

import (
	"bytes"
	"context"
	"testing"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/reqpool"
)

func testGeo() addr.Geometry {
	return addr.Geometry{Dies: 1, BlocksPerDie: 2, SlicesPerBlock: 4, UserPagesPerBlock: 4}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	g := testGeo()
	store, err := NewStore(g, 64, 4, 2)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sched := NewScheduler(store, 4)
	ctx := context.Background()

	v := g.VOrgToVSA(0, 0, 0)
	payload := []byte("hello-slice")
	writeTag, err := sched.Submit(ctx, reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Write, VSA: v, Die: 0, Data: payload})
	if err != nil {
		t.Fatalf("submit write: %v", err)
	}
	if _, err := sched.Await(ctx, writeTag); err != nil {
		t.Fatalf("await write: %v", err)
	}

	buf := make([]byte, 64)
	readTag, err := sched.Submit(ctx, reqpool.Descriptor{Type: reqpool.NAND, Code: reqpool.Read, VSA: v, Die: 0, Data: buf})
	if err != nil {
		t.Fatalf("submit read: %v", err)
	}
	data, err := sched.Await(ctx, readTag)
	if err != nil {
		t.Fatalf("await read: %v", err)
	}
	if !bytes.Equal(data[:len(payload)], payload) {
		t.Fatalf("read back %q, want %q", data[:len(payload)], payload)
	}
}

func TestEraseBlockClearsSlices(t *testing.T) {
	g := testGeo()
	store, _ := NewStore(g, 64, 4, 2)
	sched := NewScheduler(store, 4)
	ctx := context.Background()

	v := g.VOrgToVSA(0, 0, 0)
	payload := []byte("payload")
	writeTag, _ := sched.Submit(ctx, reqpool.Descriptor{Code: reqpool.Write, VSA: v, Die: 0, Data: payload})
	sched.Await(ctx, writeTag)

	eraseTag, err := sched.Submit(ctx, reqpool.Descriptor{Code: reqpool.Erase, Die: 0, Block: 0})
	if err != nil {
		t.Fatalf("submit erase: %v", err)
	}
	if _, err := sched.Await(ctx, eraseTag); err != nil {
		t.Fatalf("await erase: %v", err)
	}

	buf := make([]byte, 64)
	readTag, _ := sched.Submit(ctx, reqpool.Descriptor{Code: reqpool.Read, VSA: v, Die: 0, Data: buf})
	data, err := sched.Await(ctx, readTag)
	if err != nil {
		t.Fatalf("await read after erase: %v", err)
	}
	for _, b := range data {
		if b != 0 {
			t.Fatalf("expected erased slice to read back zeroed, got %v", data)
		}
	}
}

func TestInjectedEraseFailureMarksNothingButReturnsError(t *testing.T) {
	g := testGeo()
	store, _ := NewStore(g, 64, 4, 2)
	sched := NewScheduler(store, 4)
	ctx := context.Background()

	store.InjectEraseFailure(0, 1)
	if _, err := sched.Submit(ctx, reqpool.Descriptor{Code: reqpool.Erase, Die: 0, Block: 1}); err == nil {
		t.Fatalf("expected injected erase failure to surface an error")
	}
}

func TestWriteBlockedOnIncompleteReadRejected(t *testing.T) {
	g := testGeo()
	store, _ := NewStore(g, 64, 4, 2)
	sched := NewScheduler(store, 4)
	ctx := context.Background()

	fakeReadID := reqpool.Descriptor{Code: reqpool.Read}.ID // nil UUID: never completed
	_, err := sched.Submit(ctx, reqpool.Descriptor{Code: reqpool.Write, VSA: 0, Data: []byte("x"), BlockingReq: &fakeReadID})
	if err == nil {
		t.Fatalf("expected write blocked on an incomplete request to be rejected")
	}
}
