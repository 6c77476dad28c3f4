package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canteen_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// OrdersCreated counts successfully placed orders.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_orders_created_total",
		Help: "Orders created.",
	})

	// OrdersCancelled counts cancellations from both the self-service and
	// staff paths.
	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_orders_cancelled_total",
		Help: "Orders cancelled.",
	})

	// OrdersSweptReady counts preparing orders promoted to ready by the
	// sweeper or the manual admin sweep.
	OrdersSweptReady = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_orders_swept_ready_total",
		Help: "Orders promoted from preparing to ready.",
	})

	// StockRejections counts order attempts refused for insufficient stock.
	StockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canteen_order_stock_rejections_total",
		Help: "Order attempts rejected for insufficient stock.",
	})
)

// Middleware records request counts and latencies per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
