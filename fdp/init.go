package fdp

import (
	"fmt"

	"github.com/openssd-go/ftlcore/addr"
)

// Config carries the FDP compile-time parameters of spec §6: number of
// Reclaim Unit Handles, number of Reclaim Groups, the Reclaim-Group-
// Identifier-Format shift, RU size in blocks, the default RUH type, and
// the default reserved free-RU count.
type Config struct {
	NRUH                  int
	NRG                   int
	RGIF                  int
	RUSizeInBlocks        int
	DefaultRUHType        RUHType
	DefaultReservedFreeRU int
}

// minRGIF returns the smallest shift satisfying RGIF >= ceil(log2(NRG)).
func minRGIF(nrg int) int {
	shift := 0
	for (1 << shift) < nrg {
		shift++
	}
	return shift
}

// New constructs the Endurance Group: builds NRG Reclaim Groups each
// holding RUCNT_PER_GROUP = total_blocks / (rusize * NRG) Reclaim Units,
// applies the default striped block→RU mapping (spec §4.5, I6), builds the
// Block-RU inverse table, and binds each RUH to a starting RU per RG
// (spec §4.5's init paragraph, I7). Validates NRUH*NRG < 2^15 (spec §6).
func New(geo addr.Geometry, cfg Config) (*EnduranceGroup, error) {
	if cfg.NRUH*cfg.NRG >= 1<<15 {
		return nil, fmt.Errorf("fdp: NRUH(%d) * NRG(%d) must be < 2^15", cfg.NRUH, cfg.NRG)
	}
	rgif := cfg.RGIF
	if min := minRGIF(cfg.NRG); rgif < min {
		rgif = min
	}

	totalBlocks := geo.Dies * geo.BlocksPerDie
	ruCountPerGroup := totalBlocks / (cfg.RUSizeInBlocks * cfg.NRG)
	if ruCountPerGroup == 0 {
		return nil, fmt.Errorf("fdp: geometry too small for %d RGs of RU size %d", cfg.NRG, cfg.RUSizeInBlocks)
	}
	slicesPerRU := cfg.RUSizeInBlocks * geo.UserPagesPerBlock

	chunks := defaultStripedChunks(geo, cfg.RUSizeInBlocks)

	eg := &EnduranceGroup{
		geo:  geo,
		rgif: rgif,
		RGs:  make([]RG, cfg.NRG),
		BlockRUInfo: &BlockRUInfoTable{
			rgif: rgif,
			info: make([][]RUAddr, geo.Dies),
		},
	}
	for d := 0; d < geo.Dies; d++ {
		eg.BlockRUInfo.info[d] = make([]RUAddr, geo.BlocksPerDie)
	}

	chunkIdx := 0
	for rg := 0; rg < cfg.NRG; rg++ {
		g := &eg.RGs[rg]
		g.RGID = RGID(rg)
		g.ruSize = cfg.RUSizeInBlocks
		g.slicesPerRU = slicesPerRU
		g.reservedFreeRuCount = cfg.DefaultReservedFreeRU
		g.RUs = make([]RU, ruCountPerGroup)
		g.victim = make([][]list, cfg.NRUH)
		for h := range g.victim {
			g.victim[h] = make([]list, slicesPerRU+1)
		}

		for ru := 0; ru < ruCountPerGroup; ru++ {
			blocks := chunks[chunkIdx]
			chunkIdx++
			g.RUs[ru] = RU{
				RUHID:      -1,
				BlockAddrs: blocks,
				Free:       true,
				prev:       RUNone,
				next:       RUNone,
			}
			for _, ba := range blocks {
				eg.BlockRUInfo.info[ba.Die][ba.Block] = EncodeRUAddr(RUGID(ru), RGID(rg), rgif)
			}
			g.pushFreeTail(RUGID(ru))
		}
	}

	eg.RUHs = make([]RUH, cfg.NRUH)
	for h := 0; h < cfg.NRUH; h++ {
		ruh := &eg.RUHs[h]
		ruh.ID = RUHID(h)
		ruh.Type = cfg.DefaultRUHType
		ruh.Rus = make([]RUGID, cfg.NRG)
		for rg := range eg.RGs {
			g := &eg.RGs[rg]
			rugID, ok := g.popFreeHead()
			if !ok {
				return nil, fmt.Errorf("fdp: not enough RUs in RG %d to seed %d RUHs", rg, cfg.NRUH)
			}
			g.RUs[rugID].RUHID = ruh.ID
			ruh.Rus[rg] = rugID
		}
	}

	return eg, nil
}

// defaultStripedChunks returns totalBlocks/ruSize chunks, each ruSize
// (die, block) pairs drawn from distinct dies where possible, satisfying
// spec I6 (one RU's blocks lie on different dies for I/O parallelism).
// Blocks are enumerated column-major (all dies' block 0, then all dies'
// block 1, ...) so consecutive runs of `ruSize` entries span distinct
// dies whenever ruSize <= Dies.
func defaultStripedChunks(geo addr.Geometry, ruSize int) [][]BlockAddr {
	ordered := make([]BlockAddr, 0, geo.Dies*geo.BlocksPerDie)
	for b := 0; b < geo.BlocksPerDie; b++ {
		for d := 0; d < geo.Dies; d++ {
			ordered = append(ordered, BlockAddr{Die: addr.DieID(d), Block: addr.BlockID(b)})
		}
	}
	var chunks [][]BlockAddr
	for i := 0; i+ruSize <= len(ordered); i += ruSize {
		chunks = append(chunks, ordered[i:i+ruSize])
	}
	return chunks
}

// SlicesPerRU returns rg's FDP_C_SLICE_PER_RU constant.
func (g *RG) SlicesPerRU() int { return g.slicesPerRU }

// RUSize returns rg's blocks-per-RU.
func (g *RG) RUSize() int { return g.ruSize }

// ReservedFreeRUCount returns rg's configured reserve threshold.
func (g *RG) ReservedFreeRUCount() int { return g.reservedFreeRuCount }

// FreeCount returns the number of RUs currently in rg's free queue.
func (g *RG) FreeCount() int { return g.free.size }

// Geometry returns the Endurance Group's underlying slice-address geometry.
func (eg *EnduranceGroup) Geometry() addr.Geometry { return eg.geo }

// RGIF returns the configured Reclaim-Group-Identifier-Format shift.
func (eg *EnduranceGroup) RGIF() int { return eg.rgif }
