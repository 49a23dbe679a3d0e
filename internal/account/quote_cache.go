package account

import "sync"

// QuoteCache is the live last-traded-price map. The streaming
// callback writes it, synchronous poll loops read it. A 0.0 entry
// means "subscribed, no tick yet".
type QuoteCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewQuoteCache() *QuoteCache {
	return &QuoteCache{prices: make(map[string]float64)}
}

// Seen reports whether the key was ever subscribed.
func (c *QuoteCache) Seen(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.prices[key]
	return ok
}

// Seed registers a key with the "no tick yet" sentinel. An existing
// price is not overwritten.
func (c *QuoteCache) Seed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.prices[key]; !ok {
		c.prices[key] = 0.0
	}
}

func (c *QuoteCache) Set(key string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[key] = price
}

func (c *QuoteCache) Get(key string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prices[key]
}

// Keys returns every subscribed key.
func (c *QuoteCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.prices))
	for k := range c.prices {
		keys = append(keys, k)
	}
	return keys
}

// Reset drops all prices, keeping nothing. Used when a stream
// reconnects and stale prices must not satisfy poll loops.
func (c *QuoteCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = make(map[string]float64)
}
