package cache

import (
	"sync"
)

// last encoding seen per address
type cached struct {
	key  Digest
	data []uint32
}

// Tokens is a two-level cache for encoded semantic tokens: the last result
// per address in memory, backed by an optional DiskCache.
type Tokens struct {
	mu     sync.RWMutex
	byAddr map[string]cached
	disk   *DiskCache
}

// NewTokens creates a Tokens cache. disk may be nil.
func NewTokens(disk *DiskCache) *Tokens {
	return &Tokens{byAddr: make(map[string]cached), disk: disk}
}

// Get returns the data stored for key. Disk errors are reported but the
// lookup still counts as a miss.
func (c *Tokens) Get(address string, key Digest) ([]uint32, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	rec, ok := c.byAddr[address]
	c.mu.RUnlock()
	if ok && rec.key == key {
		return rec.data, true, nil
	}

	var payload DiskPayload
	hit, err := c.disk.Get(key, &payload)
	if err != nil || !hit || payload.Address != address {
		return nil, false, err
	}
	c.remember(address, key, payload.Data)
	return payload.Data, true, nil
}

// Put records data for key in memory and on disk.
func (c *Tokens) Put(address string, key Digest, data []uint32) error {
	if c == nil {
		return nil
	}
	c.remember(address, key, data)
	return c.disk.Put(key, &DiskPayload{Address: address, Data: data})
}

// Forget drops the in-memory entry for address, e.g. when it is closed.
func (c *Tokens) Forget(address string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.byAddr, address)
	c.mu.Unlock()
}

func (c *Tokens) remember(address string, key Digest, data []uint32) {
	c.mu.Lock()
	c.byAddr[address] = cached{key: key, data: data}
	c.mu.Unlock()
}
