// Package cache remembers engine answers by position, so a bot serving
// many games doesn't search the same opening positions over and over.
package cache

import (
	"context"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/difficulty"
	"github.com/domino14/gambit/game"
)

func key(fen string, level difficulty.Level) uint64 {
	return xxhash.Sum64String(string(level) + "|" + fen)
}

// MoveCache is a bounded map from (position, difficulty) to move. When it
// is full the oldest entry is evicted.
type MoveCache struct {
	sync.Mutex
	size    int
	objects map[uint64]string
	order   []uint64
}

func NewMoveCache(size int) *MoveCache {
	return &MoveCache{size: size, objects: make(map[uint64]string, size)}
}

func (c *MoveCache) Get(fen string, level difficulty.Level) (string, bool) {
	c.Lock()
	defer c.Unlock()
	mv, ok := c.objects[key(fen, level)]
	return mv, ok
}

func (c *MoveCache) Put(fen string, level difficulty.Level, mv string) {
	if c.size <= 0 {
		return
	}
	k := key(fen, level)
	c.Lock()
	defer c.Unlock()
	if _, ok := c.objects[k]; ok {
		c.objects[k] = mv
		return
	}
	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.objects, oldest)
	}
	c.objects[k] = mv
	c.order = append(c.order, k)
}

// Forget drops an entry, e.g. one the rules rejected.
func (c *MoveCache) Forget(fen string, level difficulty.Level) {
	k := key(fen, level)
	c.Lock()
	defer c.Unlock()
	if _, ok := c.objects[k]; !ok {
		return
	}
	delete(c.objects, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *MoveCache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.objects)
}

// Requester answers from the cache and asks the wrapped engine on a miss.
type Requester struct {
	*MoveCache
	inner game.MoveRequester
}

func NewRequester(inner game.MoveRequester, size int) *Requester {
	return &Requester{MoveCache: NewMoveCache(size), inner: inner}
}

func (r *Requester) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	if mv, ok := r.Get(fen, level); ok {
		log.Debug().Str("fen", fen).Str("move", mv).Msg("getting move from cache")
		return mv, nil
	}
	mv, err := r.inner.RequestMove(ctx, fen, level)
	if err != nil {
		return "", err
	}
	r.Put(fen, level, mv)
	return mv, nil
}
