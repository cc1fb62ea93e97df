package swap

import (
	"strings"
	"sync"
	"time"

	"github.com/ggonzalez94/walletd/internal/model"
)

// quoteTTL is how long a cached quote stays servable.
const quoteTTL = 30 * time.Second

func cacheKey(from, to, amount string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + ":" +
		strings.ToUpper(strings.TrimSpace(to)) + ":" +
		strings.TrimSpace(amount)
}

type cachedQuote struct {
	quote     model.Quote
	fetchedAt time.Time
}

// quoteCache holds recent quotes. Purely a latency optimization; a quote is
// never trusted for execution decisions. Stale entries fall out lazily on
// read and on sweep.
type quoteCache struct {
	mu      sync.Mutex
	entries map[string]cachedQuote
	now     func() time.Time
}

func newQuoteCache() *quoteCache {
	return &quoteCache{
		entries: make(map[string]cachedQuote),
		now:     time.Now,
	}
}

func (c *quoteCache) get(key string) (model.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return model.Quote{}, false
	}
	if c.now().Sub(entry.fetchedAt) > quoteTTL {
		delete(c.entries, key)
		return model.Quote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) put(key string, q model.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedQuote{quote: q, fetchedAt: c.now()}
}

func (c *quoteCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now()
	for key, entry := range c.entries {
		if cutoff.Sub(entry.fetchedAt) > quoteTTL {
			delete(c.entries, key)
		}
	}
}

func (c *quoteCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// startSweeper evicts stale quotes on a ticker until the returned stop
// function is called.
func (c *quoteCache) startSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
