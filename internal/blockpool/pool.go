// Package blockpool implements a fixed-capacity block allocator whose free
// list lives inside the free blocks themselves.
//
// Each free block stores, in its first eight bytes, the index of the next free
// block or NullBlock. Allocated blocks belong to the caller and are never read
// as links; every traversal starts at the head of the free list.
//
// A Pool is not safe for concurrent use. See LockedPool.
package blockpool

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/google/btree"
	"github.com/rs/zerolog"
)

const (
	// cellSize is the number of leading bytes of a free block used for the link.
	cellSize = 8

	DefaultCapacity  = 16
	DefaultBlockSize = 8
	// MinBlockSize is the smallest block that can hold a free list link.
	MinBlockSize = cellSize

	// allocatedFill is written over blocks that Seed marks as allocated.
	allocatedFill byte = 0xA5
)

// BlockIndex identifies a block in the pool.
type BlockIndex int64

// NullBlock terminates the free list.
const NullBlock BlockIndex = -1

type Pool struct {
	arena     []byte
	capacity  int
	blockSize int

	head      BlockIndex
	available int
	lastErr   Errno

	log zerolog.Logger
}

type Option func(*Pool)

// WithBlockSize sets the size of one block in bytes. It must be at least
// MinBlockSize.
func WithBlockSize(size int) Option {
	return func(p *Pool) {
		p.blockSize = size
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Pool) {
		p.log = log
	}
}

// New creates a pool of capacity blocks, all free and linked in ascending order.
func New(capacity int, opts ...Option) (*Pool, error) {
	p := &Pool{
		capacity:  capacity,
		blockSize: DefaultBlockSize,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("capacity must be >= 0, got %d", capacity)
	}
	if p.blockSize < MinBlockSize {
		return nil, fmt.Errorf("block size must be >= %d bytes, got %d", MinBlockSize, p.blockSize)
	}
	p.log = p.log.With().Str("component", "blockpool").Logger()
	p.arena = make([]byte, capacity*p.blockSize)
	p.Init()
	return p, nil
}

// Init resets the pool so that every block is free and the free list runs
// 0 -> 1 -> ... -> N-1 -> NullBlock.
func (p *Pool) Init() {
	for i := 0; i < p.capacity-1; i++ {
		p.setNext(BlockIndex(i), BlockIndex(i+1))
	}
	if p.capacity > 0 {
		p.setNext(BlockIndex(p.capacity-1), NullBlock)
		p.head = 0
	} else {
		p.head = NullBlock
	}
	p.available = p.capacity
	p.lastErr = Success
}

// Seed replaces the pool state with the given free list, in list order.
// Blocks absent from freeList become allocated and are filled with a marker
// pattern. Indices must be in range and unique.
func (p *Pool) Seed(freeList []BlockIndex) error {
	seen := btree.NewOrderedG[BlockIndex](32)
	for _, idx := range freeList {
		if !p.inRange(idx) {
			return fmt.Errorf("%w: index %d outside [0, %d)", ErrInvalidSeed, idx, p.capacity)
		}
		if _, dup := seen.ReplaceOrInsert(idx); dup {
			return fmt.Errorf("%w: index %d listed twice", ErrInvalidSeed, idx)
		}
	}

	for i := range p.arena {
		p.arena[i] = allocatedFill
	}
	p.head = NullBlock
	for i := len(freeList) - 1; i >= 0; i-- {
		p.setNext(freeList[i], p.head)
		p.head = freeList[i]
	}
	p.available = len(freeList)
	p.lastErr = Success
	return nil
}

func (p *Pool) Capacity() int {
	return p.capacity
}

func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Available reports the number of free blocks.
func (p *Pool) Available() int {
	return p.available
}

// Head returns the first block of the free list, or NullBlock.
func (p *Pool) Head() BlockIndex {
	return p.head
}

// LastError returns the outcome of the most recent Allocate.
func (p *Pool) LastError() Errno {
	return p.lastErr
}

// FreeList yields the free blocks in list order.
func (p *Pool) FreeList() iter.Seq[BlockIndex] {
	return func(yield func(BlockIndex) bool) {
		cur := p.head
		// Bounded by capacity so a corrupted list cannot loop forever.
		for steps := 0; cur != NullBlock && steps < p.capacity; steps++ {
			if !yield(cur) {
				return
			}
			cur = p.next(cur)
		}
	}
}

// Bytes returns the storage backing an allocation of size bytes starting at
// block start. The slice aliases the pool and is valid until the blocks are
// freed.
func (p *Pool) Bytes(start BlockIndex, size uint64) ([]byte, error) {
	count := p.blocksFor(size)
	if !p.rangeInBounds(start, count) {
		return nil, fmt.Errorf("%w: %d blocks at %d in pool of %d", ErrOutOfRange, count, start, p.capacity)
	}
	lo := int(start) * p.blockSize
	hi := lo + int(size)
	return p.arena[lo:hi:hi], nil
}

// blocksFor returns the number of blocks covering size bytes. A zero-byte
// request still occupies one block.
func (p *Pool) blocksFor(size uint64) uint64 {
	bs := uint64(p.blockSize)
	n := size / bs
	if size%bs != 0 || size == 0 {
		n++
	}
	return n
}

func (p *Pool) inRange(idx BlockIndex) bool {
	return idx >= 0 && int64(idx) < int64(p.capacity)
}

func (p *Pool) rangeInBounds(start BlockIndex, count uint64) bool {
	return p.inRange(start) && count <= uint64(p.capacity)-uint64(start)
}

func (p *Pool) cell(idx BlockIndex) []byte {
	off := int(idx) * p.blockSize
	return p.arena[off : off+cellSize]
}

func (p *Pool) next(idx BlockIndex) BlockIndex {
	return BlockIndex(int64(binary.LittleEndian.Uint64(p.cell(idx))))
}

func (p *Pool) setNext(idx, next BlockIndex) {
	binary.LittleEndian.PutUint64(p.cell(idx), uint64(next))
}
