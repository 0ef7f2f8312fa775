package blockpool

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allocation struct {
	start BlockIndex
	size  uint64
}

// poolModel tracks which blocks are free, independently of list order.
type poolModel struct {
	free []bool
}

func newPoolModel(capacity int) *poolModel {
	m := &poolModel{free: make([]bool, capacity)}
	for i := range m.free {
		m.free[i] = true
	}
	return m
}

func (m *poolModel) set(start BlockIndex, count int, free bool) {
	for i := int(start); i < int(start)+count; i++ {
		m.free[i] = free
	}
}

// longestRun returns the longest stretch of index-adjacent free blocks.
func (m *poolModel) longestRun() int {
	longest, cur := 0, 0
	for _, f := range m.free {
		if f {
			cur++
			longest = max(longest, cur)
		} else {
			cur = 0
		}
	}
	return longest
}

func (m *poolModel) freeIndices() []BlockIndex {
	var out []BlockIndex
	for i, f := range m.free {
		if f {
			out = append(out, BlockIndex(i))
		}
	}
	return out
}

func (m *poolModel) check(t *testing.T, p *Pool) {
	t.Helper()
	require.NoError(t, p.Validate())
	expected := m.freeIndices()
	assert.Equal(t, len(expected), p.Available(), "available mismatch")
	assert.Equal(t, expected, slices.Sorted(p.FreeList()), "free set mismatch")
}

func FuzzPool(f *testing.F) {
	f.Add(16, 100, int64(1))
	f.Add(64, 500, int64(1700000000))

	f.Fuzz(func(t *testing.T, capacity int, numOps int, seed int64) {
		if capacity < 1 || capacity > 4096 {
			t.Skip()
		}
		if numOps > 1000 {
			numOps = 1000
		}

		rng := rand.New(rand.NewSource(seed))
		p, err := New(capacity)
		require.NoError(t, err)
		model := newPoolModel(capacity)
		var live []allocation

		for i := 0; i < numOps; i++ {
			switch rng.Intn(4) {
			case 0, 1: // Allocate
				size := uint64(rng.Intn(capacity*p.BlockSize()/4+1) + 1)
				needed := int(p.blocksFor(size))
				idx, err := p.Allocate(size)
				if err == nil {
					for b := int(idx); b < int(idx)+needed; b++ {
						require.True(t, model.free[b], "allocated block %d was not free", b)
					}
					model.set(idx, needed, false)
					live = append(live, allocation{start: idx, size: size})
					assert.Equal(t, Success, p.LastError())
				} else {
					require.ErrorIs(t, err, ErrShouldPack)
					assert.Equal(t, ShouldPack, p.LastError())
					// Reordering exposes every index-adjacent run, so failure
					// means no such run exists.
					assert.Less(t, model.longestRun(), needed)
				}

			case 2: // Free
				if len(live) > 0 {
					j := rng.Intn(len(live))
					a := live[j]
					require.NoError(t, p.Free(a.start, a.size))
					model.set(a.start, int(p.blocksFor(a.size)), true)
					live = append(live[:j], live[j+1:]...)
				}

			case 3: // Reorder
				p.Reorder()
				assert.True(t, slices.IsSorted(slices.Collect(p.FreeList())))
			}

			model.check(t, p)
		}
	})
}
