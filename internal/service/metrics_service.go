package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	schedulingOps   *prometheus.CounterVec
	slotsCreated    prometheus.Counter
	slotsCancelled  prometheus.Counter
	eventQueueDrops prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	schedulingOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_operations_total",
		Help: "Scheduling engine operations by action and outcome",
	}, []string{"action", "outcome"})

	slotsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slots_created_total",
		Help: "Total slots created",
	})

	slotsCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slots_cancelled_total",
		Help: "Total slots cancelled",
	})

	eventQueueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_queue_drops_total",
		Help: "Domain events dropped because the queue was unavailable",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, schedulingOps, slotsCreated, slotsCancelled, eventQueueDrops, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		schedulingOps:   schedulingOps,
		slotsCreated:    slotsCreated,
		slotsCancelled:  slotsCancelled,
		eventQueueDrops: eventQueueDrops,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSchedulingOp counts one scheduling engine action by outcome.
func (m *MetricsService) RecordSchedulingOp(action, outcome string) {
	if m == nil {
		return
	}
	m.schedulingOps.WithLabelValues(action, outcome).Inc()
}

// RecordSlotCreated increments the created-slot counter.
func (m *MetricsService) RecordSlotCreated() {
	if m == nil {
		return
	}
	m.slotsCreated.Inc()
}

// RecordSlotCancelled increments the cancelled-slot counter.
func (m *MetricsService) RecordSlotCancelled() {
	if m == nil {
		return
	}
	m.slotsCancelled.Inc()
}

// RecordEventDrop counts a dropped domain event.
func (m *MetricsService) RecordEventDrop() {
	if m == nil {
		return
	}
	m.eventQueueDrops.Inc()
}
