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
	// Registry holds the scratch service collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scratch",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scratch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	cardsPurchased = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "cards",
			Name:      "purchased_total",
			Help:      "Cards sold, by card type, currency and outcome.",
		},
		[]string{"card_type", "currency", "winner"},
	)

	areasScratched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "cards",
			Name:      "areas_scratched_total",
			Help:      "Scratch areas revealed.",
		},
	)

	cardsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "cards",
			Name:      "completed_total",
			Help:      "Cards fully revealed.",
		},
	)

	cardsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "cards",
			Name:      "expired_total",
			Help:      "Cards retired unfinished at expiry.",
		},
	)

	prizesClaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "settlement",
			Name:      "payout_total",
			Help:      "Amount paid out through prize claims, by currency.",
		},
		[]string{"currency"},
	)

	supplyExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scratch",
			Subsystem: "prizes",
			Name:      "supply_exhausted_total",
			Help:      "Draws that landed on a prize tier with no supply left.",
		},
		[]string{"tier"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cardsPurchased,
		areasScratched,
		cardsCompleted,
		cardsExpired,
		prizesClaimed,
		supplyExhausted,
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

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// Recorder feeds the domain counters. The zero value is ready to use.
type Recorder struct{}

func (Recorder) CardPurchased(cardTypeID int64, currency string, winner bool) {
	cardsPurchased.WithLabelValues(strconv.FormatInt(cardTypeID, 10), currency, strconv.FormatBool(winner)).Inc()
}

func (Recorder) AreasScratched(n int, completed bool) {
	areasScratched.Add(float64(n))
	if completed {
		cardsCompleted.Inc()
	}
}

func (Recorder) CardsExpired(n int) {
	cardsExpired.Add(float64(n))
}

func (Recorder) PrizeClaimed(coins, gems float64) {
	prizesClaimed.WithLabelValues("coins").Add(coins)
	prizesClaimed.WithLabelValues("gems").Add(gems)
}

func (Recorder) SupplyExhausted(tierID int64) {
	supplyExhausted.WithLabelValues(strconv.FormatInt(tierID, 10)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses card ids so every card shares one label.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "cards" {
		parts[2] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}
