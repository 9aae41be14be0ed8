package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// ResultCache is a TTL cache of raw provider output keyed by request identity.
// Concurrent misses for the same key share one upstream call.
type ResultCache struct {
	cache *ttlcache.Cache[string, string]
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of a shared upstream call. It is cancelled only
// once every caller waiting on it has gone away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewResultCache creates a ResultCache whose entries expire after ttl.
func NewResultCache(ttl time.Duration) *ResultCache {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &ResultCache{cache: c, flights: make(map[string]*flight)}
}

// Close stops the cache expiration loop.
func (rc *ResultCache) Close() {
	rc.cache.Stop()
}

// Get returns the cached raw output for key.
func (rc *ResultCache) Get(key string) (string, bool) {
	item := rc.cache.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Len returns the number of live entries.
func (rc *ResultCache) Len() int {
	return rc.cache.Len()
}

// Do returns the cached value for key, or runs fn and caches its result.
// Errors are not cached.
//
// fn receives a context that carries ctx's values but not its cancellation:
// a caller giving up only stops waiting, and the upstream call is cancelled
// when the last waiter leaves.
func (rc *ResultCache) Do(ctx context.Context, key string, fn func(context.Context) (string, error)) (value string, cached bool, err error) {
	for {
		if v, ok := rc.Get(key); ok {
			return v, true, nil
		}

		f := rc.join(ctx, key)
		ch := rc.group.DoChan(key, func() (any, error) {
			raw, err := fn(f.ctx)
			if err != nil {
				return "", err
			}
			rc.cache.Set(key, raw, ttlcache.DefaultTTL)
			return raw, nil
		})

		select {
		case <-ctx.Done():
			rc.leave(key, f)
			return "", false, ctx.Err()
		case res := <-ch:
			rc.leave(key, f)
			if res.Err != nil {
				// Abandoned by its other waiters just as we joined.
				if ctx.Err() == nil && errors.Is(res.Err, context.Canceled) {
					continue
				}
				return "", false, res.Err
			}
			return res.Val.(string), false, nil
		}
	}
}

func (rc *ResultCache) join(ctx context.Context, key string) *flight {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	f, ok := rc.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		rc.flights[key] = f
	}
	f.waiters++
	return f
}

func (rc *ResultCache) leave(key string, f *flight) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if rc.flights[key] == f {
		delete(rc.flights, key)
		// A later caller must start a fresh call rather than join a cancelled one.
		rc.group.Forget(key)
	}
}

// cacheKey identifies a request by everything that influences the raw output.
func cacheKey(provider, model string, maxTokens int, temperature float64, parts ...string) string {
	h := sha256.New()
	for _, s := range append([]string{provider, model, strconv.Itoa(maxTokens), strconv.FormatFloat(temperature, 'g', -1, 64)}, parts...) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
