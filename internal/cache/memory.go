package cache

import (
	"context"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is a size-bounded LRU with per-entry expiry. Expired entries are
// dropped lazily on read.
type Memory struct {
	size int
	lru  *lru.Cache[string, entry]
	now  func() time.Time
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{
		size: size,
		lru:  c,
		now:  time.Now,
	}, nil
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return clone(e.value), true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *Memory) Remove(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// RemoveByPattern deletes every key matching a glob pattern (path.Match syntax).
func (c *Memory) RemoveByPattern(_ context.Context, pattern string) error {
	for _, k := range c.lru.Keys() {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return err
		}
		if ok {
			c.lru.Remove(k)
		}
	}
	return nil
}

func (c *Memory) Len() int { return c.lru.Len() }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
