package blockpool

import "github.com/google/btree"

// Reorder relinks the free list in ascending index order so that every run of
// index-adjacent free blocks is also adjacent in the list. The set of free
// blocks and the available count do not change, and no allocated data moves.
func (p *Pool) Reorder() {
	if p.head == NullBlock {
		return
	}

	sorted := btree.NewOrderedG[BlockIndex](32)
	for b := range p.FreeList() {
		sorted.ReplaceOrInsert(b)
	}

	prev := NullBlock
	sorted.Ascend(func(b BlockIndex) bool {
		if prev == NullBlock {
			p.head = b
		} else {
			p.setNext(prev, b)
		}
		prev = b
		return true
	})
	p.setNext(prev, NullBlock)

	p.log.Debug().Int("free", sorted.Len()).Int64("head", int64(p.head)).Msg("reordered free list")
}
