package blockpool

import (
	"iter"
	"slices"
	"sync"
)

// LockedPool serializes every operation on a Pool behind one mutex. Allocate
// may search, reorder and search again; holding the lock for the whole call
// keeps other operations from running between those passes.
type LockedPool struct {
	mu   sync.Mutex
	pool *Pool
}

func NewLocked(capacity int, opts ...Option) (*LockedPool, error) {
	p, err := New(capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &LockedPool{pool: p}, nil
}

func (l *LockedPool) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool.Init()
}

func (l *LockedPool) Seed(freeList []BlockIndex) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Seed(freeList)
}

func (l *LockedPool) Allocate(size uint64) (BlockIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Allocate(size)
}

func (l *LockedPool) Free(start BlockIndex, size uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Free(start, size)
}

func (l *LockedPool) RunLength(start BlockIndex) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.RunLength(start)
}

func (l *LockedPool) Reorder() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pool.Reorder()
}

func (l *LockedPool) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Validate()
}

// Do runs fn with exclusive access to the underlying pool, for callers that
// need several operations to appear atomic, such as allocating and then
// writing through Bytes.
func (l *LockedPool) Do(fn func(p *Pool) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.pool)
}

func (l *LockedPool) Capacity() int {
	return l.pool.Capacity()
}

func (l *LockedPool) BlockSize() int {
	return l.pool.BlockSize()
}

func (l *LockedPool) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Available()
}

func (l *LockedPool) Head() BlockIndex {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Head()
}

func (l *LockedPool) LastError() Errno {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.LastError()
}

// FreeList yields a copy of the free list taken under the lock.
func (l *LockedPool) FreeList() iter.Seq[BlockIndex] {
	l.mu.Lock()
	list := slices.Collect(l.pool.FreeList())
	l.mu.Unlock()
	return slices.Values(list)
}
