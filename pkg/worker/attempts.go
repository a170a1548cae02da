package worker

import "sync"

type attemptCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newAttemptCounter() *attemptCounter {
	return &attemptCounter{counts: make(map[string]int)}
}

func (c *attemptCounter) incr(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key]
}

func (c *attemptCounter) reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
}
