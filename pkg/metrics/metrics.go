// Package metrics records per-run statistics in the Prometheus text format so
// node_exporter's textfile collector can pick them up.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the collectors of one planning run. It is safe for concurrent
// use by the year workers.
type Run struct {
	registry *prometheus.Registry

	YearsTotal     *prometheus.CounterVec
	YearDuration   prometheus.Histogram
	LOLE           *prometheus.GaugeVec
	UnservedEnergy *prometheus.GaugeVec
	BuildWarnings  *prometheus.CounterVec
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Run{
		registry: reg,
		YearsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerlole_years_total",
				Help: "Planning years processed, by outcome",
			},
			[]string{"status"},
		),
		YearDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powerlole_year_duration_seconds",
				Help:    "Wall time to build, solve and analyze one planning year",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
		),
		LOLE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "powerlole_lole",
				Help: "Loss of load expectation in snapshot units",
			},
			[]string{"year", "region"},
		),
		UnservedEnergy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "powerlole_unserved_energy",
				Help: "System unserved energy in MWh-equivalent snapshot units",
			},
			[]string{"year"},
		),
		BuildWarnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powerlole_build_warnings_total",
				Help: "Data gaps found while assembling networks, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Run) Registry() *prometheus.Registry { return r.registry }

// YearDone records the outcome and duration of one year.
func (r *Run) YearDone(ok bool, elapsed time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	r.YearsTotal.WithLabelValues(status).Inc()
	r.YearDuration.Observe(elapsed.Seconds())
}

func (r *Run) Warning(kind string) {
	r.BuildWarnings.WithLabelValues(kind).Inc()
}

// Reliability records the LOLE of one region. The system aggregate is
// recorded under its own region label.
func (r *Run) Reliability(year int, region string, lole float64) {
	r.LOLE.WithLabelValues(strconv.Itoa(year), region).Set(lole)
}

func (r *Run) Unserved(year int, energy float64) {
	r.UnservedEnergy.WithLabelValues(strconv.Itoa(year)).Set(energy)
}

// WriteFile writes every collector to path atomically.
func (r *Run) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
