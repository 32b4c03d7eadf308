package service

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheServesUntilTTL(t *testing.T) {
	rc := newReadCache()
	var calls atomic.Int32
	fetch := func() ([]byte, error) {
		calls.Add(1)
		return []byte("payload"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := rc.Do(context.Background(), "k", time.Minute, fetch)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		if string(got) != "payload" {
			t.Fatalf("Do = %q", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}
}

func TestCacheExpires(t *testing.T) {
	rc := newReadCache()
	var calls atomic.Int32
	fetch := func() ([]byte, error) {
		calls.Add(1)
		return []byte("x"), nil
	}

	_, _ = rc.Do(context.Background(), "k", 10*time.Millisecond, fetch)
	time.Sleep(25 * time.Millisecond)
	_, _ = rc.Do(context.Background(), "k", 10*time.Millisecond, fetch)

	if n := calls.Load(); n != 2 {
		t.Errorf("fetch ran %d times, want 2 after expiry", n)
	}
}

func TestInflightCoalescing(t *testing.T) {
	rc := newReadCache()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func() ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := rc.Do(context.Background(), "k", time.Minute, fetch)
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = string(got)
		}(i)
	}

	// let the joiners queue up behind the leader, then release it
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("%d network calls for %d concurrent readers, want 1", got, n)
	}
	for i, r := range results {
		if r != "shared" {
			t.Errorf("reader %d got %q, want shared result", i, r)
		}
	}
}

func TestCacheErrorsNotStored(t *testing.T) {
	rc := newReadCache()
	var calls atomic.Int32
	fetch := func() ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, context.DeadlineExceeded
		}
		return []byte("ok"), nil
	}

	if _, err := rc.Do(context.Background(), "k", time.Minute, fetch); err == nil {
		t.Fatal("first Do should fail")
	}
	got, err := rc.Do(context.Background(), "k", time.Minute, fetch)
	if err != nil || string(got) != "ok" {
		t.Fatalf("second Do = %q, %v; errors must not be cached", got, err)
	}
}

func TestCacheKeySortsParams(t *testing.T) {
	a := url.Values{}
	a.Set("symbol", "BTCUSDT")
	a.Set("limit", "10")
	b := url.Values{}
	b.Set("limit", "10")
	b.Set("symbol", "BTCUSDT")

	if cacheKey("/x", a) != cacheKey("/x", b) {
		t.Error("cache key must not depend on parameter insertion order")
	}
}

func TestTTLClasses(t *testing.T) {
	tests := []struct {
		path string
		want time.Duration
	}{
		{"/fapi/v2/positionRisk", ttlRealtime},
		{"/fapi/v1/openOrders", ttlRealtime},
		{"/fapi/v1/premiumIndex", ttlRealtime},
		{"/fapi/v1/exchangeInfo", ttlMeta},
		{"/fapi/v1/time", ttlTime},
		{"/fapi/v1/somethingElse", ttlDefault},
	}
	for _, tt := range tests {
		if got := ttlFor(tt.path); got != tt.want {
			t.Errorf("ttlFor(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}
