package compute

import (
	"context"
	"sync"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Cache memoizes values by key for as long as its owner keeps it.
//
// Concurrent calls for the same key share one computation. Failed
// computations are not cached. The zero value is ready to use.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[V]
}

type cacheEntry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// GetOrCompute returns the cached value for key, calling fn to produce it on a
// miss.
func (c *Cache[K, V]) GetOrCompute(key K, fn func() (V, error)) (V, error) {
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[K]*cacheEntry[V])
	}
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		<-e.done
		return e.value, e.err
	}
	e := &cacheEntry[V]{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.value, e.err = fn()
	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	close(e.done)
	return e.value, e.err
}

// Len returns the number of cached or in-flight keys.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every cached value. In-flight computations finish normally but
// their results are not kept.
func (c *Cache[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// Memoize returns a Computation that shares results through cache. Results
// are keyed by the fingerprints of the run and system params, so equal params
// compute once. Params that cannot be fingerprinted bypass the cache.
func Memoize[A any](comp Computation[A], cache *Cache[string, A]) Computation[A] {
	return Func[A](func(ctx context.Context, run, sys params.Params) (A, error) {
		key, err := memoKey(run, sys)
		if err != nil {
			return comp.Compute(ctx, run, sys)
		}
		return cache.GetOrCompute(key, func() (A, error) {
			return comp.Compute(ctx, run, sys)
		})
	})
}

func memoKey(run, sys params.Params) (string, error) {
	r, err := params.Fingerprint(run)
	if err != nil {
		return "", err
	}
	s, err := params.Fingerprint(sys)
	if err != nil {
		return "", err
	}
	return r + ":" + s, nil
}
