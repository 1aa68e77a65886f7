package memory

import (
	"context"
	"sync"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// FxRateCache keeps the last accepted rate per pair key. Entries are only
// replaced, never evicted, so the map grows with the number of distinct pairs.
type FxRateCache struct {
	mu    sync.RWMutex
	rates map[string]domain.FxRate
}

func NewFxRateCache() *FxRateCache {
	return &FxRateCache{
		rates: make(map[string]domain.FxRate),
	}
}

func (c *FxRateCache) Get(ctx context.Context, key string) (domain.FxRate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate, exists := c.rates[key]
	return rate, exists
}

func (c *FxRateCache) Save(ctx context.Context, key string, rate domain.FxRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates[key] = rate
	return nil
}

func (c *FxRateCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates = make(map[string]domain.FxRate)
	return nil
}

func (c *FxRateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rates)
}

var _ domain.FxRateCache = (*FxRateCache)(nil)
