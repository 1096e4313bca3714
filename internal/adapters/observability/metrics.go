package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"binmaps/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "binmaps", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	StreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "binmaps", Name: "http_stream_duration_seconds",
			Help:    "Lifetime of server-sent event streams.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
		},
		[]string{"route"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "binmaps", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	QueryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "term_queries_total", Help: "Per-term provider queries by outcome."},
		[]string{"term", "outcome"}, // outcome: ok|error|dropped
	)
	CycleCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "cycle_completions_total", Help: "Search cycles by completion reason."},
		[]string{"reason"},
	)
	AcceptedPlaces = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "binmaps", Name: "accepted_places_total", Help: "Places accepted by the classifier."},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "binmaps", Name: "cycle_duration_seconds",
			Help:    "Time from cycle start to completion signal.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 20},
		},
	)
)

func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	reg := InitRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, StreamDuration, ExternalRequests, ExternalLatency, CacheEvents,
		QueryOutcomes, CycleCompletions, AcceptedPlaces, CycleDuration,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveStream counts a finished event stream. Its lifetime follows the search
// cycle, so it is kept out of the request latency histogram.
func ObserveStream(route string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, http.MethodGet, strconv.Itoa(status)).Inc()
	StreamDuration.WithLabelValues(route).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveQuery(term, outcome string) {
	QueryOutcomes.WithLabelValues(term, outcome).Inc()
}

func ObserveAccepted() { AcceptedPlaces.Inc() }

func ObserveCycle(reason string, dur time.Duration) {
	CycleCompletions.WithLabelValues(reason).Inc()
	CycleDuration.Observe(dur.Seconds())
}

// LabelErr names the kind of a provider error for logs and labels. Errors are
// wrapped on the way up, so the sentinels are matched rather than the type.
func LabelErr(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, domain.ErrProviderDenied):
		return "denied"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "other"
	}
}
