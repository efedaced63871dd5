package nandsim

import (
	"context"
	"fmt"

	"github.com/openssd-go/ftlcore/reqpool"
)

// Scheduler simulates the low-level NAND request queue/scheduler (spec §1,
// §6): it admits Descriptors into a request-slot pool and executes them.
// The real scheduler is async and polled; this simulator executes
// synchronously (there being no real hardware to wait on) but still
// enforces the one ordering guarantee spec §5 assigns to it: a WRITE
// naming a BlockingReq may not execute before that request has completed.
type Scheduler struct {
	pool  *reqpool.Pool
	store *Store
	// completed tracks which request IDs have finished, so a later WRITE's
	// BlockingReq dependency can be checked even across Await calls.
	completed map[string]bool
}

// NewScheduler builds a Scheduler with its own request-slot pool of the
// given capacity, executing requests against store.
func NewScheduler(store *Store, slotCapacity int) *Scheduler {
	return &Scheduler{
		pool:      reqpool.New(slotCapacity),
		store:     store,
		completed: map[string]bool{},
	}
}

// Submit admits desc into the pool and executes it immediately.
func (s *Scheduler) Submit(ctx context.Context, desc reqpool.Descriptor) (int, error) {
	if desc.Code == reqpool.Write && desc.BlockingReq != nil && !s.completed[desc.BlockingReq.String()] {
		return -1, fmt.Errorf("nandsim: write %s blocked on incomplete request %s", desc.ID, desc.BlockingReq)
	}

	tag, err := s.pool.GetFromFreeReqQ(desc)
	if err != nil {
		return -1, err
	}

	if err := s.execute(tag); err != nil {
		s.pool.Release(tag)
		return -1, err
	}
	s.pool.MarkDone(tag)
	return tag, nil
}

func (s *Scheduler) execute(tag int) error {
	d, _ := s.pool.SelectLowLevelReqQ(tag)
	switch d.Code {
	case reqpool.Read:
		data, err := s.store.ReadSlice(d.VSA)
		if err != nil {
			return err
		}
		copy(d.Data, data)
	case reqpool.Write:
		if err := s.store.WriteSlice(d.VSA, d.Data); err != nil {
			return err
		}
	case reqpool.Erase:
		if err := s.store.EraseBlock(d.Die, d.Block); err != nil {
			return err
		}
	}
	return nil
}

// Await returns the data produced by a Read request (nil otherwise),
// records the request as completed for BlockingReq dependency checks, and
// releases the slot.
func (s *Scheduler) Await(ctx context.Context, slotTag int) ([]byte, error) {
	d, ok := s.pool.SelectLowLevelReqQ(slotTag)
	if !ok {
		return nil, fmt.Errorf("nandsim: await on unknown slot %d", slotTag)
	}
	s.completed[d.ID.String()] = true
	var out []byte
	if d.Code == reqpool.Read {
		out = d.Data
	}
	s.pool.Release(slotTag)
	return out, nil
}
