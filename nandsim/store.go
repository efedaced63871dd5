// Package nandsim simulates the raw NAND die array and low-level scheduler
// the FTL core treats as an external collaborator (spec §1, §6). It is not
// part of the specified core; it exists so the core's tests and demo binary
// have something to read and write against. Grounded on sop's in-memory
// file-IO simulator (fs/fileiosim.go: a lookup map standing in for real
// storage, with injectable failure flags for tests) and, for the "one
// slice per VSA with an ECC region" on-media layout named in spec §6, on
// sop's erasure-coding blob durability layer (fs/erasure_coding_config.go),
// adapted from Reed-Solomon-over-blobs to Reed-Solomon-over-slices.
package nandsim

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"

	"github.com/openssd-go/ftlcore/addr"
)

// Store is an in-memory simulated NAND die array: one payload record per
// VSA, each protected by a Reed-Solomon-encoded ECC region.
type Store struct {
	geo           addr.Geometry
	sliceSize     int
	dataShards    int
	parityShards  int
	enc           reedsolomon.Encoder
	mu            sync.Mutex
	records       [][]byte // per-VSA shard-concatenated record; nil if never written
	failEraseOnce map[addr.DieID]map[addr.BlockID]bool
}

// NewStore builds a simulated die array sized for geo, storing sliceSize
// bytes of payload per VSA protected by dataShards data + parityShards
// parity Reed-Solomon shards.
func NewStore(geo addr.Geometry, sliceSize, dataShards, parityShards int) (*Store, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("nandsim: building reed-solomon encoder: %w", err)
	}
	n := geo.NumVSA()
	return &Store{
		geo:           geo,
		sliceSize:     sliceSize,
		dataShards:    dataShards,
		parityShards:  parityShards,
		enc:           enc,
		records:       make([][]byte, n),
		failEraseOnce: map[addr.DieID]map[addr.BlockID]bool{},
	}, nil
}

// InjectEraseFailure arranges for the next Erase of (die, block) to fail,
// exercising the BadBlock path (spec §4.4/§4.7 failure semantics).
func (s *Store) InjectEraseFailure(die addr.DieID, block addr.BlockID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEraseOnce[die] == nil {
		s.failEraseOnce[die] = map[addr.BlockID]bool{}
	}
	s.failEraseOnce[die][block] = true
}

// shardSize returns the per-shard byte count: sliceSize divided by
// dataShards, rounded up.
func (s *Store) shardSize() int {
	sz := (s.sliceSize + s.dataShards - 1) / s.dataShards
	return sz
}

// WriteSlice encodes data's ECC parity shards and stores the record at v.
func (s *Store) WriteSlice(v addr.VSA, data []byte) error {
	if len(data) > s.sliceSize {
		return fmt.Errorf("nandsim: payload %d exceeds slice size %d", len(data), s.sliceSize)
	}
	padded := make([]byte, s.shardSize()*s.dataShards)
	copy(padded, data)

	shards, err := s.enc.Split(padded)
	if err != nil {
		return fmt.Errorf("nandsim: splitting shards: %w", err)
	}
	if err := s.enc.Encode(shards); err != nil {
		return fmt.Errorf("nandsim: encoding parity: %w", err)
	}

	rec := make([]byte, 0, s.shardSize()*(s.dataShards+s.parityShards))
	for _, sh := range shards {
		rec = append(rec, sh...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[v] = rec
	return nil
}

// ReadSlice reconstructs and verifies the ECC-protected record at v,
// returning the original payload trimmed to sliceSize.
func (s *Store) ReadSlice(v addr.VSA) ([]byte, error) {
	s.mu.Lock()
	rec := s.records[v]
	s.mu.Unlock()
	if rec == nil {
		return make([]byte, s.sliceSize), nil
	}

	shardSz := s.shardSize()
	total := s.dataShards + s.parityShards
	shards := make([][]byte, total)
	for i := 0; i < total; i++ {
		shards[i] = rec[i*shardSz : (i+1)*shardSz]
	}

	ok, err := s.enc.Verify(shards)
	if err != nil {
		return nil, fmt.Errorf("nandsim: verifying ecc at vsa %d: %w", v, err)
	}
	if !ok {
		if err := s.enc.Reconstruct(shards); err != nil {
			return nil, fmt.Errorf("nandsim: ecc reconstruction failed at vsa %d: %w", v, err)
		}
	}

	payload := make([]byte, 0, shardSz*s.dataShards)
	for i := 0; i < s.dataShards; i++ {
		payload = append(payload, shards[i]...)
	}
	return payload[:s.sliceSize], nil
}

// EraseBlock clears every VSA record in (die, block) so the block can
// re-enter the free pool. It fails (simulating a develop-bad-block event)
// when a failure was injected via InjectEraseFailure.
func (s *Store) EraseBlock(die addr.DieID, block addr.BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEraseOnce[die] != nil && s.failEraseOnce[die][block] {
		delete(s.failEraseOnce[die], block)
		return fmt.Errorf("nandsim: erase failed on die %d block %d", die, block)
	}
	for p := 0; p < s.geo.SlicesPerBlock; p++ {
		v := s.geo.VOrgToVSA(die, block, addr.PageID(p))
		if v == addr.VSANone {
			continue
		}
		s.records[v] = nil
	}
	return nil
}
