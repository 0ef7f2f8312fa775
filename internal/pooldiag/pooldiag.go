// Package pooldiag renders read-only summaries of a block pool.
package pooldiag

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/yanishalloum/memoryAllocation/internal/blockpool"
)

const rule = "---------------------------------"

// View is the read access diagnostics need. *blockpool.Pool and
// *blockpool.LockedPool both satisfy it.
type View interface {
	Capacity() int
	BlockSize() int
	Available() int
	Head() blockpool.BlockIndex
	LastError() blockpool.Errno
	FreeList() iter.Seq[blockpool.BlockIndex]
}

var (
	_ View = (*blockpool.Pool)(nil)
	_ View = (*blockpool.LockedPool)(nil)
)

type RunReport struct {
	Start int64 `json:"start"`
	Len   int   `json:"len"`
}

// Report is a point-in-time summary of a pool.
type Report struct {
	Capacity   int         `json:"capacity"`
	BlockSize  int         `json:"block_size"`
	Available  int         `json:"available"`
	Head       int64       `json:"head"`
	Status     string      `json:"status"`
	FreeList   []int64     `json:"free_list"`
	Runs       []RunReport `json:"runs"`
	LongestRun int         `json:"longest_run"`
	// Digest fingerprints the free list order; two pools with the same free
	// blocks linked in the same order share a digest.
	Digest string `json:"digest"`
}

func Snapshot(v View) Report {
	list := slices.Collect(v.FreeList())
	r := Report{
		Capacity:  v.Capacity(),
		BlockSize: v.BlockSize(),
		Available: v.Available(),
		Head:      int64(v.Head()),
		Status:    v.LastError().String(),
		FreeList:  make([]int64, len(list)),
		Digest:    fmt.Sprintf("%016x", Digest(slices.Values(list))),
	}
	for i, b := range list {
		r.FreeList[i] = int64(b)
	}
	r.Runs = runs(list)
	for _, run := range r.Runs {
		r.LongestRun = max(r.LongestRun, run.Len)
	}
	return r
}

// runs splits a free list into maximal stretches where each entry is one
// more than the previous.
func runs(list []blockpool.BlockIndex) []RunReport {
	var out []RunReport
	for i, b := range list {
		if i > 0 && b == list[i-1]+1 {
			out[len(out)-1].Len++
			continue
		}
		out = append(out, RunReport{Start: int64(b), Len: 1})
	}
	return out
}

// Digest hashes a free list in order with xxhash64.
func Digest(list iter.Seq[blockpool.BlockIndex]) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for b := range list {
		binary.LittleEndian.PutUint64(buf[:], uint64(b))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Render writes a human-readable summary of the pool to w.
func Render(w io.Writer, v View) error {
	var sb strings.Builder
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "\tBlock size: %d\n", v.BlockSize())
	fmt.Fprintf(&sb, "\tAvailable blocks: %d\n", v.Available())
	fmt.Fprintf(&sb, "\tFirst free: %s\n", formatIndex(v.Head()))
	fmt.Fprintf(&sb, "\tStatus: %s\n", v.LastError())
	sb.WriteString("\tContent:  ")
	for b := range v.FreeList() {
		fmt.Fprintf(&sb, "%d -> ", b)
	}
	sb.WriteString("NULL_BLOCK\n")
	sb.WriteString(rule + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatIndex(b blockpool.BlockIndex) string {
	if b == blockpool.NullBlock {
		return "NULL_BLOCK"
	}
	return fmt.Sprintf("%d", b)
}
