// Package tempbuf implements the temp-data-buffer pool GC uses to stage a
// valid slice's payload between its READ off the victim and its WRITE to a
// freshly-allocated destination (spec §4.4, §5). A buffer occupied by an
// in-flight GC read is not reusable until its paired write also retires —
// modeled here as the "blocking request" linkage named in spec §9
// (`UpdateTempDataBufEntryInfoBlockingReq`). Grounded on the same
// index-addressed MRU/free-list idiom used in vbm and fdp (itself
// adapted from sop's cache/doublylinkedlist.go and cache/mru.go).
package tempbuf

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openssd-go/ftlcore/ftlerr"
)

// Entry is one temp buffer slot.
type Entry struct {
	ID          uuid.UUID
	Data        []byte
	busy        bool
	blockingReq *uuid.UUID
}

// Pool is a bounded arena of temp data buffers with LRU-style reuse.
type Pool struct {
	entries  []Entry
	freeIdx  []int // FIFO of available (non-busy) buffer indices, least recently released first
	bufSize  int
}

// New creates a Pool of capacity buffers, each bufSize bytes.
func New(capacity, bufSize int) *Pool {
	p := &Pool{
		entries: make([]Entry, capacity),
		freeIdx: make([]int, capacity),
		bufSize: bufSize,
	}
	for i := range p.entries {
		p.entries[i].Data = make([]byte, bufSize)
		p.freeIdx[i] = capacity - 1 - i
	}
	return p
}

// AllocateTempDataBuf is the second of the two suspension points named in
// spec §5: it returns ftlerr.NoFreeSlot rather than blocking when every
// buffer is either occupied or still blocked on a paired write, so the
// caller yields and retries.
func (p *Pool) AllocateTempDataBuf() (idx int, err error) {
	n := len(p.freeIdx)
	if n == 0 {
		return -1, ftlerr.New(ftlerr.NoFreeSlot, fmt.Sprintf("temp buf pool capacity %d exhausted", len(p.entries)), nil)
	}
	i := p.freeIdx[0]
	p.freeIdx = p.freeIdx[1:]
	p.entries[i].busy = true
	p.entries[i].blockingReq = nil
	p.entries[i].ID = uuid.New()
	return i, nil
}

// UpdateTempDataBufEntryInfoBlockingReq marks entry idx as blocked on the
// given in-flight request ID (typically the victim-slice READ); the
// scheduler must not start the paired WRITE until that request completes.
func (p *Pool) UpdateTempDataBufEntryInfoBlockingReq(idx int, blockingReqID uuid.UUID) {
	id := blockingReqID
	p.entries[idx].blockingReq = &id
}

// BlockingReq returns the request ID entry idx is blocked on, if any.
func (p *Pool) BlockingReq(idx int) (uuid.UUID, bool) {
	b := p.entries[idx].blockingReq
	if b == nil {
		return uuid.Nil, false
	}
	return *b, true
}

// Data returns the backing buffer for entry idx.
func (p *Pool) Data(idx int) []byte {
	return p.entries[idx].Data
}

// Release returns buffer idx to the free pool once both the READ and its
// paired WRITE have retired.
func (p *Pool) Release(idx int) {
	p.entries[idx].busy = false
	p.entries[idx].blockingReq = nil
	p.freeIdx = append(p.freeIdx, idx)
}

// Available returns the number of buffers not currently busy.
func (p *Pool) Available() int {
	return len(p.freeIdx)
}
