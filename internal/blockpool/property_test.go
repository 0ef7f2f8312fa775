package blockpool

import (
	"errors"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// drawFragmentedPool seeds a pool with a random subset of free blocks in a
// random list order.
func drawFragmentedPool(t *rapid.T) *Pool {
	capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
	p, err := New(capacity)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	all := make([]BlockIndex, capacity)
	for i := range all {
		all[i] = BlockIndex(i)
	}
	free := rapid.Permutation(all).Draw(t, "order")
	n := rapid.IntRange(0, capacity).Draw(t, "free")
	if err := p.Seed(free[:n]); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return p
}

func checkInvariants(t *rapid.T, p *Pool) {
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid pool: %v", err)
	}
	if got := len(slices.Collect(p.FreeList())); got != p.Available() {
		t.Fatalf("free list has %d blocks, available is %d", got, p.Available())
	}
}

func TestProperty_ReorderIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := drawFragmentedPool(t)
		before := slices.Sorted(p.FreeList())

		p.Reorder()
		once := slices.Collect(p.FreeList())
		p.Reorder()
		twice := slices.Collect(p.FreeList())

		if !slices.Equal(once, twice) {
			t.Fatalf("second reorder changed list: %v -> %v", once, twice)
		}
		if !slices.Equal(before, once) {
			t.Fatalf("reorder changed free set: %v -> %v", before, once)
		}
		checkInvariants(t, p)
	})
}

func TestProperty_AllocateFreeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := drawFragmentedPool(t)
		before := slices.Sorted(p.FreeList())
		size := rapid.Uint64Range(0, uint64(p.Capacity()*p.BlockSize())).Draw(t, "size")

		idx, err := p.Allocate(size)
		if err != nil {
			if !errors.Is(err, ErrShouldPack) {
				t.Fatalf("unexpected error: %v", err)
			}
			if after := slices.Sorted(p.FreeList()); !slices.Equal(before, after) {
				t.Fatalf("failed allocation changed free set: %v -> %v", before, after)
			}
			checkInvariants(t, p)
			return
		}
		checkInvariants(t, p)

		if err := p.Free(idx, size); err != nil {
			t.Fatalf("free: %v", err)
		}
		if after := slices.Sorted(p.FreeList()); !slices.Equal(before, after) {
			t.Fatalf("round trip changed free set: %v -> %v", before, after)
		}
		checkInvariants(t, p)
	})
}

func TestProperty_OversizedRequestIsNoMem(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := drawFragmentedPool(t)
		before := slices.Collect(p.FreeList())
		extra := rapid.Uint64Range(1, 1<<20).Draw(t, "extra")

		_, err := p.Allocate(uint64(p.Capacity()*p.BlockSize()) + extra)
		if !errors.Is(err, ErrNoMem) || p.LastError() != NoMem {
			t.Fatalf("expected NoMem, got %v (%v)", err, p.LastError())
		}
		if after := slices.Collect(p.FreeList()); !slices.Equal(before, after) {
			t.Fatalf("NoMem mutated free list: %v -> %v", before, after)
		}
	})
}

func TestProperty_NeverExceedsAvailable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := drawFragmentedPool(t)
		if p.Available() == p.Capacity() {
			return
		}
		blocks := rapid.IntRange(p.Available()+1, p.Capacity()).Draw(t, "blocks")

		if _, err := p.Allocate(uint64(blocks * p.BlockSize())); err == nil {
			t.Fatalf("allocated %d blocks with only %d free", blocks, p.Available())
		}
		checkInvariants(t, p)
	})
}

// TestProperty_Partition runs random operation sequences and checks that free
// and allocated blocks always partition the pool.
func TestProperty_Partition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 48).Draw(t, "capacity")
		p, err := New(capacity)
		if err != nil {
			t.Fatalf("new pool: %v", err)
		}
		var live []allocation

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				size := rapid.Uint64Range(0, uint64(capacity*p.BlockSize())).Draw(t, "size")
				if idx, err := p.Allocate(size); err == nil {
					live = append(live, allocation{start: idx, size: size})
				}
			case 1:
				if len(live) > 0 {
					j := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
					if err := p.Free(live[j].start, live[j].size); err != nil {
						t.Fatalf("free: %v", err)
					}
					live = append(live[:j], live[j+1:]...)
				}
			case 2:
				p.Reorder()
			}

			owner := make([]int, capacity)
			for b := range p.FreeList() {
				owner[b]++
			}
			for _, a := range live {
				for b := a.start; b < a.start+BlockIndex(p.blocksFor(a.size)); b++ {
					owner[b]++
				}
			}
			for b, n := range owner {
				if n != 1 {
					t.Fatalf("block %d owned %d times", b, n)
				}
			}
			checkInvariants(t, p)
		}
	})
}
