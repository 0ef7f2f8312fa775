package blockpool

// Allocate reserves enough consecutive blocks to hold size bytes and returns
// the index of the first one. The returned blocks read as zero. A zero-byte
// request takes one block, so every successful Allocate has a distinct start.
//
// The search is first fit along the free list. If nothing fits, the free list
// is reordered once and searched again. A request larger than the whole pool
// fails with ErrNoMem; a request that still finds no run after reordering
// fails with ErrShouldPack. Either way the set of free blocks is unchanged.
func (p *Pool) Allocate(size uint64) (BlockIndex, error) {
	needed := p.blocksFor(size)
	p.log.Debug().Uint64("size", size).Uint64("blocks", needed).Msg("allocate")

	if needed > uint64(p.capacity) {
		p.lastErr = NoMem
		return NullBlock, ErrNoMem
	}

	if idx, ok := p.firstFit(int(needed)); ok {
		return idx, nil
	}

	p.log.Debug().Uint64("blocks", needed).Msg("no run found, reordering free list")
	p.Reorder()
	if idx, ok := p.firstFit(int(needed)); ok {
		return idx, nil
	}

	p.log.Debug().Uint64("blocks", needed).Int("available", p.available).Msg("allocation failed after reorder")
	p.lastErr = ShouldPack
	return NullBlock, ErrShouldPack
}

// firstFit takes the first run along the free list that is at least needed
// blocks long.
func (p *Pool) firstFit(needed int) (BlockIndex, bool) {
	prev := NullBlock
	for cur := p.head; cur != NullBlock; cur = p.next(cur) {
		if p.runFrom(cur) < needed {
			prev = cur
			continue
		}

		end := cur + BlockIndex(needed) - 1
		succ := p.next(end)
		// A run extends forward in list order and the head has no
		// predecessor, so the run holds the head exactly when it starts there.
		if prev == NullBlock {
			p.head = succ
		} else {
			p.setNext(prev, succ)
		}
		p.available -= needed

		clear(p.arena[int(cur)*p.blockSize : int(end+1)*p.blockSize])
		p.lastErr = Success
		return cur, true
	}
	return NullBlock, false
}
