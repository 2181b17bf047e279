package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cropadvisor"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestTotal    *prometheus.CounterVec
	predictionTotal     *prometheus.CounterVec
	cacheLookupTotal    *prometheus.CounterVec
	exploreQueryTotal   *prometheus.CounterVec
	wsClients           prometheus.Gauge
	datasetRecords      prometheus.Gauge
	datasetLabels       prometheus.Gauge
	modelNodes          prometheus.Gauge
	modelDepth          prometheus.Gauge
	trainingDuration    prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		predictionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Recommendations served by predicted crop",
			},
			[]string{"label"},
		),
		cacheLookupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Prediction cache lookups",
			},
			[]string{"hit"},
		),
		exploreQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "explore_queries_total",
				Help:      "Dataset exploration queries by transport and outcome",
			},
			[]string{"transport", "status"},
		),
		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected exploration websocket clients",
		}),
		datasetRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Records loaded from the dataset",
		}),
		datasetLabels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_labels",
			Help:      "Distinct crop labels in the dataset",
		}),
		modelNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_nodes",
			Help:      "Nodes in the trained decision tree",
		}),
		modelDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_depth",
			Help:      "Depth of the trained decision tree",
		}),
		trainingDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_training_seconds",
			Help:      "Wall time spent training the model at startup",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	m.httpRequestTotal.WithLabelValues(method, endpoint, status).Inc()
}

func (m *Metrics) RecordPrediction(label string) {
	if m == nil {
		return
	}
	m.predictionTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookupTotal.WithLabelValues("true").Inc()
	} else {
		m.cacheLookupTotal.WithLabelValues("false").Inc()
	}
}

func (m *Metrics) RecordExplore(transport, status string) {
	if m == nil {
		return
	}
	m.exploreQueryTotal.WithLabelValues(transport, status).Inc()
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.wsClients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.wsClients.Dec()
	}
}

// SetDataset records the size of the loaded table.
func (m *Metrics) SetDataset(records, labels int) {
	if m == nil {
		return
	}
	m.datasetRecords.Set(float64(records))
	m.datasetLabels.Set(float64(labels))
}

func (m *Metrics) SetModel(nodes, depth int, took time.Duration) {
	if m == nil {
		return
	}
	m.modelNodes.Set(float64(nodes))
	m.modelDepth.Set(float64(depth))
	m.trainingDuration.Set(took.Seconds())
}
