package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_cache_hits_total",
		Help: "REST reads answered from the TTL cache.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_cache_misses_total",
		Help: "REST reads that went to the network.",
	})
	CoalescedCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_coalesced_calls_total",
		Help: "REST reads that joined an already in-flight request.",
	})
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_orders_placed_total",
		Help: "Orders accepted by the exchange, by type.",
	}, []string{"type"})
	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_orders_rejected_total",
		Help: "Order placements rejected client- or exchange-side.",
	})
	SanitizerRewrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_sanitizer_rewrites_total",
		Help: "Order payloads rewritten by the pre-send sanitizer.",
	})
	WatchdogActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchdog_actions_total",
		Help: "Watchdog outcomes: ok, emergency_stop, flatten, cancel_all.",
	}, []string{"action"})
	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_stream_reconnects_total",
		Help: "User-data stream reconnect attempts.",
	})
)

// Handler serves the default registry; the health module mounts it.
func Handler() http.Handler {
	return promhttp.Handler()
}
