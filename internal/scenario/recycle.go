package scenario

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/yanishalloum/memoryAllocation/internal/blockpool"
)

type geometry struct {
	capacity  int
	blockSize int
}

// poolCache hands out pools by geometry and keeps up to size idle pools of
// each geometry for reuse. Returned pools are reset with Init.
type poolCache struct {
	mu   sync.Mutex
	idle map[geometry]chan *blockpool.Pool
	size int
	log  zerolog.Logger
}

func newPoolCache(size int, log zerolog.Logger) *poolCache {
	return &poolCache{
		idle: make(map[geometry]chan *blockpool.Pool),
		size: size,
		log:  log,
	}
}

func (c *poolCache) slot(g geometry) chan *blockpool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.idle[g]
	if !ok {
		ch = make(chan *blockpool.Pool, c.size)
		c.idle[g] = ch
	}
	return ch
}

func (c *poolCache) Get(g geometry) (*blockpool.Pool, error) {
	select {
	case p := <-c.slot(g):
		return p, nil
	default:
		return blockpool.New(g.capacity, blockpool.WithBlockSize(g.blockSize), blockpool.WithLogger(c.log))
	}
}

func (c *poolCache) Put(p *blockpool.Pool) {
	p.Init()
	select {
	case c.slot(geometry{capacity: p.Capacity(), blockSize: p.BlockSize()}) <- p:
	default:
	}
}
