// Package scenario drives a block pool through scripted operations read from
// YAML and checks the results against expectations.
package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yanishalloum/memoryAllocation/internal/blockpool"
	"gopkg.in/yaml.v3"
)

type Op string

const (
	OpInit      Op = "init"
	OpAllocate  Op = "allocate"
	OpFree      Op = "free"
	OpRunLength Op = "run_length"
	OpReorder   Op = "reorder"
	OpPrint     Op = "print"
)

// Scenario is one pool and the steps applied to it.
type Scenario struct {
	Name      string `yaml:"name"`
	// Capacity and BlockSize fall back to the run options when absent. An
	// explicit capacity of 0 scripts an empty pool.
	Capacity  *int `yaml:"capacity"`
	BlockSize *int `yaml:"block_size"`
	// FreeList seeds the pool in list order. When absent the pool starts
	// fully free; an empty list starts it fully allocated.
	FreeList *[]int64 `yaml:"free_list"`
	Steps    []Step   `yaml:"steps"`
}

type Step struct {
	Op     Op      `yaml:"op"`
	Size   uint64  `yaml:"size"`
	Start  int64   `yaml:"start"`
	Expect *Expect `yaml:"expect"`
}

// Expect lists the observations a step must produce. Unset fields are not
// checked.
type Expect struct {
	Index     *int64   `yaml:"index"`
	Error     *string  `yaml:"error"`
	Length    *int     `yaml:"length"`
	Available *int     `yaml:"available"`
	Head      *int64   `yaml:"head"`
	FreeList  *[]int64 `yaml:"free_list"`
}

// Error names used in expectations.
const (
	ErrNameSuccess    = "success"
	ErrNameNoMem      = "nomem"
	ErrNameShouldPack = "should_pack"
	ErrNameOutOfRange = "out_of_range"
)

var validOps = map[Op]bool{
	OpInit: true, OpAllocate: true, OpFree: true,
	OpRunLength: true, OpReorder: true, OpPrint: true,
}

var validErrNames = map[string]bool{
	ErrNameSuccess: true, ErrNameNoMem: true,
	ErrNameShouldPack: true, ErrNameOutOfRange: true,
}

//go:embed reference.yaml
var referenceYAML string

// Reference returns the built-in scenarios exercising the reference
// fragmented 16 block pool.
func Reference() ([]*Scenario, error) {
	return LoadAll(strings.NewReader(referenceYAML))
}

// LoadAll decodes every YAML document in r as a scenario.
func LoadAll(r io.Reader) ([]*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []*Scenario
	for {
		var sc Scenario
		err := dec.Decode(&sc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode scenario %d: %w", len(out)+1, err)
		}
		if err := sc.validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		out = append(out, &sc)
	}
	return out, nil
}

func LoadFile(path string) ([]*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()

	scenarios, err := LoadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, sc := range scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("%s#%d", path, i+1)
		}
	}
	return scenarios, nil
}

func (sc *Scenario) validate() error {
	if sc.Capacity != nil && *sc.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0, got %d", *sc.Capacity)
	}
	if sc.BlockSize != nil && *sc.BlockSize < blockpool.MinBlockSize {
		return fmt.Errorf("block_size must be >= %d, got %d", blockpool.MinBlockSize, *sc.BlockSize)
	}
	for i, st := range sc.Steps {
		if !validOps[st.Op] {
			return fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		if st.Expect != nil && st.Expect.Error != nil && !validErrNames[*st.Expect.Error] {
			return fmt.Errorf("step %d: unknown error name %q", i+1, *st.Expect.Error)
		}
	}
	return nil
}

func (sc *Scenario) seed() []blockpool.BlockIndex {
	if sc.FreeList == nil {
		return nil
	}
	out := make([]blockpool.BlockIndex, len(*sc.FreeList))
	for i, b := range *sc.FreeList {
		out[i] = blockpool.BlockIndex(b)
	}
	return out
}

func errName(err error) string {
	switch {
	case err == nil:
		return ErrNameSuccess
	case errors.Is(err, blockpool.ErrNoMem):
		return ErrNameNoMem
	case errors.Is(err, blockpool.ErrShouldPack):
		return ErrNameShouldPack
	case errors.Is(err, blockpool.ErrOutOfRange):
		return ErrNameOutOfRange
	default:
		return err.Error()
	}
}
