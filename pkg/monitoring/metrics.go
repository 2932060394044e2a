/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics.go
Description: Prometheus metrics for model evaluation. Metrics observes executors directly,
so every calculation made through the engine, the batch runner or the HTTP API is counted.
*/

package monitoring

import (
	"context"
	"net/http"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fuzzylogic"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the engine collectors on its own registry
type Metrics struct {
	registry *prometheus.Registry

	evaluations  *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	rulesFired   *prometheus.CounterVec
	unfired      *prometheus.CounterVec
	modelsLoaded prometheus.Gauge
	reloads      *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// NewMetrics creates the collectors. Process and Go runtime collectors are included
// when withRuntime is set.
func NewMetrics(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Model calculations by outcome",
		}, []string{"model", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in one model calculation",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
		}, []string{"model"}),
		rulesFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_fired_total",
			Help:      "Rules with a non-zero firing strength",
		}, []string{"model"}),
		unfired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_unfired_total",
			Help:      "Outputs that fell back to the range midpoint because no rule fired",
		}, []string{"model", "variable"}),
		modelsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_loaded",
			Help:      "Models currently registered",
		}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Model file reloads by outcome",
		}, []string{"status"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests",
		}, []string{"route", "method", "code"}),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvaluation counts one calculation
func (m *Metrics) ObserveEvaluation(_ context.Context, model string, res *execution.Result, err error) {
	if err != nil {
		m.evaluations.WithLabelValues(model, StatusError).Inc()
		return
	}
	m.evaluations.WithLabelValues(model, StatusOK).Inc()
	m.duration.WithLabelValues(model).Observe(res.Duration.Seconds())

	fired := 0
	for _, s := range res.Strengths {
		if s.Strength > 0 {
			fired++
		}
	}
	m.rulesFired.WithLabelValues(model).Add(float64(fired))
	for variable, ok := range res.Fired {
		if !ok {
			m.unfired.WithLabelValues(model, variable).Inc()
		}
	}
}

// SetModelsLoaded sets the registered model gauge
func (m *Metrics) SetModelsLoaded(n int) {
	m.modelsLoaded.Set(float64(n))
}

// RecordReload counts a reload attempt
func (m *Metrics) RecordReload(err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.reloads.WithLabelValues(status).Inc()
}

// RecordRequest counts an HTTP request
func (m *Metrics) RecordRequest(route, method, code string) {
	m.requests.WithLabelValues(route, method, code).Inc()
}
