// Package metrics provides Prometheus instrumentation for the simulated
// system.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajaxzhan/simos/pkg/types"
)

// Metrics tracks command, mutation and permission counters.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// CommandsTotal counts terminal commands by status
	CommandsTotal *prometheus.CounterVec

	// MutationsTotal counts filesystem mutations by operation and result
	MutationsTotal *prometheus.CounterVec

	// PermissionDenials counts denied operations, sticky-bit denials included
	PermissionDenials *prometheus.CounterVec

	// TreeNodes tracks the number of nodes in the current tree
	TreeNodes prometheus.Gauge
}

// New creates the metrics and registers them on reg.
// Panics if registration fails (expected during initialization only).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simos_commands_total",
				Help: "Total terminal commands by status",
			},
			[]string{"status"}, // "ok", "error", "denied", "not_found", "cancelled"
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simos_mutations_total",
				Help: "Total filesystem mutations by operation and result",
			},
			[]string{"op", "result"},
		),
		PermissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simos_permission_denials_total",
				Help: "Total permission denials by operation",
			},
			[]string{"op"},
		),
		TreeNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simos_tree_nodes",
				Help: "Number of nodes in the current filesystem tree",
			},
		),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.MutationsTotal,
		m.PermissionDenials,
		m.TreeNodes,
	)
	return m
}

// Result classifies err into a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case types.IsPermission(err):
		return "denied"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrNameCollision):
		return "collision"
	case errors.Is(err, types.ErrReadOnly):
		return "read_only"
	default:
		return "error"
	}
}

// RecordCommand records a finished terminal command.
func (m *Metrics) RecordCommand(status string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(status).Inc()
}

// RecordMutation records a mutation attempt and, for denials, the denial.
func (m *Metrics) RecordMutation(op string, err error) {
	if m == nil {
		return
	}
	result := Result(err)
	m.MutationsTotal.WithLabelValues(op, result).Inc()
	if result == "denied" {
		m.PermissionDenials.WithLabelValues(op).Inc()
	}
}

// RecordDenial records a denied read-side operation.
func (m *Metrics) RecordDenial(op string) {
	if m == nil {
		return
	}
	m.PermissionDenials.WithLabelValues(op).Inc()
}

// SetTreeNodes updates the node gauge.
func (m *Metrics) SetTreeNodes(n int) {
	if m == nil {
		return
	}
	m.TreeNodes.Set(float64(n))
}

// Handler returns the HTTP handler serving metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
