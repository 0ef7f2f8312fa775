package blockpool

import (
	"fmt"

	"github.com/google/btree"
)

// Validate walks the free list and checks the pool invariants: every link is
// in range, the list has no cycle, its length matches Available, and the head
// is NullBlock exactly when nothing is free.
func (p *Pool) Validate() error {
	if (p.head == NullBlock) != (p.available == 0) {
		return fmt.Errorf("head %d inconsistent with %d available blocks", p.head, p.available)
	}

	seen := btree.NewOrderedG[BlockIndex](32)
	for cur := p.head; cur != NullBlock; cur = p.next(cur) {
		if !p.inRange(cur) {
			return fmt.Errorf("free list link %d outside [0, %d)", cur, p.capacity)
		}
		if _, dup := seen.ReplaceOrInsert(cur); dup {
			return fmt.Errorf("free list revisits block %d", cur)
		}
	}

	if seen.Len() != p.available {
		return fmt.Errorf("free list has %d blocks but %d are counted available", seen.Len(), p.available)
	}
	return nil
}
