// Package metrics exposes the exchange layer's Prometheus collectors.
package metrics

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exchange_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "exchange_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	buys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "pool",
			Name:      "buys_total",
			Help:      "Total number of completed buy operations.",
		},
		[]string{"pool"},
	)

	redeems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "pool",
			Name:      "redeems_total",
			Help:      "Total number of completed redeem operations.",
		},
		[]string{"pool"},
	)

	buyVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "pool",
			Name:      "buy_volume_units",
			Help:      "Cumulative issued-unit volume minted through buys.",
		},
		[]string{"pool"},
	)

	redeemVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "pool",
			Name:      "redeem_volume_units",
			Help:      "Cumulative issued-unit volume burned through redeems.",
		},
		[]string{"pool"},
	)

	mints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "mints_total",
			Help:      "Total number of mint operations.",
		},
	)

	burns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "burns_total",
			Help:      "Total number of burn operations.",
		},
	)

	mintVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "mint_volume_units",
			Help:      "Cumulative issued-unit volume minted.",
		},
	)

	burnVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "burn_volume_units",
			Help:      "Cumulative issued-unit volume burned.",
		},
	)

	totalSupply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "total_supply_units",
			Help:      "Outstanding issued-unit supply.",
		},
	)

	supplyDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "exchange_layer",
			Subsystem: "ledger",
			Name:      "supply_drift_units",
			Help:      "Difference between ledger supply and summed unit balances.",
		},
	)

	poolsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "exchange_layer",
			Subsystem: "registry",
			Name:      "pools_created_total",
			Help:      "Total number of pools created.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		buys,
		redeems,
		buyVolume,
		redeemVolume,
		mints,
		burns,
		mintVolume,
		burnVolume,
		totalSupply,
		supplyDrift,
		poolsCreated,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordBuy records a completed buy and its issued-unit volume.
func RecordBuy(poolID string, unitsOut *big.Int) {
	buys.WithLabelValues(poolID).Inc()
	buyVolume.WithLabelValues(poolID).Add(units(unitsOut))
}

// RecordRedeem records a completed redeem and its issued-unit volume.
func RecordRedeem(poolID string, unitsIn *big.Int) {
	redeems.WithLabelValues(poolID).Inc()
	redeemVolume.WithLabelValues(poolID).Add(units(unitsIn))
}

// RecordMint records a mint operation and its issued-unit volume.
func RecordMint(amount *big.Int) {
	mints.Inc()
	mintVolume.Add(units(amount))
}

// RecordBurn records a burn operation and its issued-unit volume.
func RecordBurn(amount *big.Int) {
	burns.Inc()
	burnVolume.Add(units(amount))
}

// SetTotalSupply publishes the current outstanding supply.
func SetTotalSupply(supply *big.Int) { totalSupply.Set(units(supply)) }

// SetSupplyDrift publishes the reconciler's measured drift.
func SetSupplyDrift(drift *big.Int) { supplyDrift.Set(units(drift)) }

// RecordPoolCreated counts a pool creation.
func RecordPoolCreated() { poolsCreated.Inc() }

// units converts a 1e18-scaled integer amount to a float in whole units.
// Precision loss is acceptable for monitoring.
func units(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(1e18)).Float64()
	return f
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "pools":
		if len(parts) == 1 {
			return "/pools"
		}
		if len(parts) == 2 {
			return "/pools/:pool"
		}
		if parts[2] == "merchants" && len(parts) > 3 {
			return "/pools/:pool/merchants/:merchant"
		}
		return "/pools/:pool/" + strings.Join(parts[2:], "/")
	case "assets":
		if len(parts) < 3 {
			return "/assets/:asset"
		}
		if parts[2] == "balances" {
			return "/assets/:asset/balances/:account"
		}
		return "/assets/:asset/" + parts[2]
	case "minters":
		if len(parts) > 1 {
			return "/minters/:principal"
		}
		return "/minters"
	default:
		return "/" + parts[0]
	}
}
