// Package config loads the FTL core's geometry and FDP parameters from a
// JSON file, the same shape as sop's own config.go: a plain struct decoded
// with encoding/json, no configuration library.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openssd-go/ftlcore/addr"
	"github.com/openssd-go/ftlcore/fdp"
)

// NamespaceConfig is one NVMe namespace's placement-handle table (spec §9's
// Open Question 3: externally supplied, not a hard-coded formula).
type NamespaceConfig struct {
	NSID             int   `json:"nsid"`
	PlacementHandles []int `json:"placementHandles"`
}

// Config is the FTL core's full startup configuration: die/block/page
// geometry, the classic Virtual Block Map's reserve threshold, and the
// optional FDP overlay parameters.
type Config struct {
	Geometry               addr.Geometry     `json:"geometry"`
	ReservedFreeBlockCount int               `json:"reservedFreeBlockCount"`
	RequestPoolCapacity    int               `json:"requestPoolCapacity"`
	TempBufCapacity        int               `json:"tempBufCapacity"`

	FDPEnabled bool              `json:"fdpEnabled"`
	FDP        fdp.Config        `json:"fdp"`
	Namespaces []NamespaceConfig `json:"namespaces"`
}

// Load reads filename as JSON and decodes it into a Config.
func Load(filename string) (Config, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", filename, err)
	}

	var c Config
	if err := json.Unmarshal(bytes, &c); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", filename, err)
	}
	return c, nil
}
