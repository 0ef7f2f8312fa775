package blockpool

import "fmt"

// Free returns the blocks backing an allocation of size bytes at start to the
// pool. They are prepended to the free list as one run, in ascending order;
// they are not merged with neighbouring free blocks until a Reorder.
//
// The range must come from a previous Allocate with a size covering the same
// number of blocks; as in Allocate, a size of zero covers one block. Freeing a
// range that is already free corrupts the pool.
func (p *Pool) Free(start BlockIndex, size uint64) error {
	count := p.blocksFor(size)
	if !p.rangeInBounds(start, count) {
		return fmt.Errorf("%w: %d blocks at %d in pool of %d", ErrOutOfRange, count, start, p.capacity)
	}

	end := start + BlockIndex(count) - 1
	for i := start; i < end; i++ {
		p.setNext(i, i+1)
	}
	p.setNext(end, p.head)
	p.head = start
	p.available += int(count)
	return nil
}
