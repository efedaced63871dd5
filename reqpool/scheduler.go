package reqpool

import "context"

// Scheduler is the interface the FTL core consumes from the low-level NAND
// scheduler (spec §6): submit a fully-populated request and, on a later
// yield boundary, observe its completion. The scheduler itself — its
// request queue, its ECC engine — is an external collaborator out of this
// core's scope; nandsim.Scheduler is the in-module simulator standing in
// for it in tests and the demo binary.
type Scheduler interface {
	// Submit hands desc to the scheduler, returning the slot tag it was
	// admitted into. Returns ftlerr.NoFreeSlot if the scheduler's own
	// admission queue is exhausted.
	Submit(ctx context.Context, desc Descriptor) (slotTag int, err error)
	// Await blocks the simulated caller until slotTag's request completes
	// (in the real system this would be a poll loop; the in-module
	// simulator executes requests synchronously), returning the data read
	// for a Read request. The slot is released back to the scheduler's
	// pool before Await returns.
	Await(ctx context.Context, slotTag int) (data []byte, err error)
}
