package metrics

import (
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
			Namespace: "token_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "token_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "token_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "token_ledger",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome code.",
		},
		[]string{"op", "code"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "token_ledger",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger operations including the store commit.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"op"},
	)

	totalSupply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "token_ledger",
			Subsystem: "ledger",
			Name:      "total_supply",
			Help:      "Total supply in base units.",
		},
	)

	accountsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "token_ledger",
			Subsystem: "ledger",
			Name:      "accounts",
			Help:      "Accounts holding a non-zero balance.",
		},
	)

	stakesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "token_ledger",
			Subsystem: "staking",
			Name:      "active_positions",
			Help:      "Active staking positions.",
		},
	)

	rewardRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "token_ledger",
			Subsystem: "staking",
			Name:      "reward_runs_total",
			Help:      "Scheduled reward distribution runs.",
		},
		[]string{"success"},
	)

	rewardsDistributed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "token_ledger",
			Subsystem: "staking",
			Name:      "rewards_distributed_total",
			Help:      "Base units minted by scheduled reward distribution.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerOperations,
		ledgerDuration,
		totalSupply,
		accountsGauge,
		stakesGauge,
		rewardRuns,
		rewardsDistributed,
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

// LedgerObserver feeds ledger service callbacks into the collectors above.
type LedgerObserver struct{}

// OperationCompleted counts op by outcome code and records its duration.
func (LedgerObserver) OperationCompleted(op, code string, d time.Duration) {
	if d <= 0 {
		d = time.Microsecond
	}
	ledgerOperations.WithLabelValues(op, code).Inc()
	ledgerDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SupplyChanged updates the supply and population gauges.
func (LedgerObserver) SupplyChanged(total uint64, accounts, stakes int) {
	totalSupply.Set(float64(total))
	accountsGauge.Set(float64(accounts))
	stakesGauge.Set(float64(stakes))
}

// RecordRewardRun records one scheduled distribution.
func RecordRewardRun(distributed uint64, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	rewardRuns.WithLabelValues(result).Inc()
	rewardsDistributed.Add(float64(distributed))
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

// canonicalPath collapses identity segments so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "accounts", "activity":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		out := "/" + parts[0] + "/:owner"
		if len(parts) > 2 {
			out += "/" + parts[2]
		}
		return out
	case "staking", "economy", "faucet":
		if len(parts) == 1 {
			return "/" + parts[0]
		}
		if isStaticSegment(parts[0], parts[1]) {
			return "/" + parts[0] + "/" + parts[1]
		}
		out := "/" + parts[0] + "/:owner"
		if len(parts) > 2 {
			out += "/" + parts[2]
		}
		return out
	case "admin":
		if len(parts) >= 2 {
			return "/admin/" + parts[1]
		}
		return "/admin"
	default:
		return "/" + parts[0]
	}
}

func isStaticSegment(group, segment string) bool {
	switch group + "/" + segment {
	case "staking/stake", "staking/claim", "staking/unstake", "staking/distribute", "staking/info",
		"economy/earn", "economy/spend", "economy/rates",
		"faucet/claim", "faucet/stats", "faucet/settings":
		return true
	}
	return false
}
