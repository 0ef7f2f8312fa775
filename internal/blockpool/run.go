package blockpool

import (
	"fmt"
	"iter"
)

// Run is a span of blocks with consecutive indices.
type Run struct {
	Start BlockIndex // inclusive
	End   BlockIndex // exclusive
}

func (r Run) Size() int {
	return int(r.End - r.Start)
}

func (r Run) Contains(idx BlockIndex) bool {
	return idx >= r.Start && idx < r.End
}

func (r Run) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// RunLength returns how many blocks, starting at start, the free list visits
// in consecutive index order. It returns 0 when start is not on the free list.
//
// Contiguity is measured along list order only: two free blocks that are
// adjacent in index space but not adjacent in the list are not counted
// together until Reorder links them.
func (p *Pool) RunLength(start BlockIndex) (int, error) {
	if !p.inRange(start) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, start, p.capacity)
	}
	if !p.isFree(start) {
		return 0, nil
	}
	return p.runFrom(start), nil
}

// runFrom measures the run at a block already known to be on the free list.
func (p *Pool) runFrom(start BlockIndex) int {
	n := 1
	for cur := start; p.next(cur) == cur+1; cur++ {
		n++
	}
	return n
}

func (p *Pool) isFree(idx BlockIndex) bool {
	for b := range p.FreeList() {
		if b == idx {
			return true
		}
	}
	return false
}

// FreeRuns yields the maximal runs of the free list in list order.
func (p *Pool) FreeRuns() iter.Seq[Run] {
	return func(yield func(Run) bool) {
		cur := p.head
		for steps := 0; cur != NullBlock && steps < p.capacity; {
			n := p.runFrom(cur)
			if !yield(Run{Start: cur, End: cur + BlockIndex(n)}) {
				return
			}
			steps += n
			cur = p.next(cur + BlockIndex(n) - 1)
		}
	}
}
