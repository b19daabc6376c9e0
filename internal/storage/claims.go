package storage

import "sync"

// claims tracks the keys this process is writing right now. The zero value is ready to use.
type claims struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// claim marks key as taken and reports whether it was free.
func (c *claims) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, taken := c.keys[key]; taken {
		return false
	}

	if c.keys == nil {
		c.keys = make(map[string]struct{})
	}

	c.keys[key] = struct{}{}

	return true
}

func (c *claims) release(key string) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}
