// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the daemon's Prometheus collectors on a
// private registry (never the global default registry), the same
// pattern the teacher's internal/metrics package used for its own
// collector set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this daemon exports.
type Metrics struct {
	Registry *prometheus.Registry

	Neighbors              prometheus.Gauge
	LFDBEntries            prometheus.Gauge
	ForwardingTableEntries prometheus.Gauge
	EnrollmentTotal        *prometheus.CounterVec
}

// New builds a Metrics with every collector registered on a fresh,
// private prometheus.Registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Neighbors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipcpd",
			Name:      "neighbors",
			Help:      "Number of neighbors currently known to this IPCP.",
		}),
		LFDBEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipcpd",
			Name:      "lfdb_entries",
			Help:      "Number of lower flow database entries.",
		}),
		ForwardingTableEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipcpd",
			Name:      "forwarding_table_entries",
			Help:      "Number of PDU forwarding table entries programmed into the kernel.",
		}),
		EnrollmentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipcpd",
			Name:      "enrollment_total",
			Help:      "Count of enrollment attempts by outcome.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Neighbors, m.LFDBEntries, m.ForwardingTableEntries, m.EnrollmentTotal)
	return m
}

// Handler serves this Metrics' collectors in the Prometheus exposition
// format, for mounting under the daemon's diagnostic HTTP endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordEnrollment increments the enrollment_total counter for result,
// which should be one of "success", "timeout", "rejected".
func (m *Metrics) RecordEnrollment(result string) {
	m.EnrollmentTotal.WithLabelValues(result).Inc()
}
