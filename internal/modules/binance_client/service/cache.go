package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"
)

// TTL classes per endpoint family. Real-time position/order data goes stale
// fast; symbol metadata barely moves.
const (
	ttlRealtime = 5 * time.Second
	ttlMeta     = time.Hour
	ttlTime     = 5 * time.Minute
	ttlDefault  = 10 * time.Second
)

func ttlFor(path string) time.Duration {
	switch {
	case strings.HasSuffix(path, "/positionRisk"),
		strings.HasSuffix(path, "/openOrders"),
		strings.HasSuffix(path, "/premiumIndex"),
		strings.HasSuffix(path, "/ticker/price"):
		return ttlRealtime
	case strings.HasSuffix(path, "/exchangeInfo"):
		return ttlMeta
	case strings.HasSuffix(path, "/time"):
		return ttlTime
	default:
		return ttlDefault
	}
}

// cacheKey is endpoint + sorted query parameters. Signing params are added
// after key construction, so identical logical reads share a key.
func cacheKey(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type inflightCall struct {
	done    chan struct{}
	payload []byte
	err     error
}

// readCache is a TTL cache plus an in-flight map. At most one network call
// per key is outstanding at any instant; joiners share the leader's result.
type readCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	inflight map[string]*inflightCall
}

func newReadCache() *readCache {
	return &readCache{
		entries:  make(map[string]cacheEntry),
		inflight: make(map[string]*inflightCall),
	}
}

// Do returns a cached payload when fresh, joins an outstanding call when one
// exists, and otherwise runs fetch and populates the cache with ttl.
// Only the leader's fetch error is cached-nothing; errors are never stored.
func (rc *readCache) Do(ctx context.Context, key string, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	rc.mu.Lock()

	if e, ok := rc.entries[key]; ok && time.Now().Before(e.expiresAt) {
		rc.mu.Unlock()
		metrics.CacheHits.Inc()
		return e.payload, nil
	}

	if call, ok := rc.inflight[key]; ok {
		rc.mu.Unlock()
		metrics.CoalescedCalls.Inc()
		select {
		case <-call.done:
			return call.payload, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	rc.inflight[key] = call
	rc.mu.Unlock()

	metrics.CacheMisses.Inc()
	call.payload, call.err = fetch()

	rc.mu.Lock()
	delete(rc.inflight, key)
	if call.err == nil {
		rc.entries[key] = cacheEntry{payload: call.payload, expiresAt: time.Now().Add(ttl)}
	}
	rc.mu.Unlock()

	close(call.done)
	return call.payload, call.err
}

// Invalidate drops every cached entry whose key starts with prefix. Called
// after mutations (order placed/canceled, leverage changed) so the next
// read sees fresh state.
func (rc *readCache) Invalidate(prefix string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for k := range rc.entries {
		if strings.HasPrefix(k, prefix) {
			delete(rc.entries, k)
		}
	}
}
