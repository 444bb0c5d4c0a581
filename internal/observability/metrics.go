package observability

import (
	"time"

	"github.com/danmuck/provisionctl/internal/provision"
	"github.com/prometheus/client_golang/prometheus"
)

// EnvMetricsFile names an optional node_exporter textfile to write after a run.
const EnvMetricsFile = "PROVISIONCTL_METRICS_FILE"

// RunMetrics holds the gauges describing the latest provisioning run.
type RunMetrics struct {
	registry *prometheus.Registry

	requirementStatus *prometheus.GaugeVec
	runDuration       prometheus.Gauge
	lastRun           prometheus.Gauge
	runSuccess        prometheus.Gauge
	pathAdditions     prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		requirementStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "provisionctl",
				Subsystem: "requirement",
				Name:      "status",
				Help:      "1 for the status each requirement ended the last run in.",
			},
			[]string{"tool", "status"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provisionctl",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run in seconds.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provisionctl",
			Subsystem: "run",
			Name:      "last_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provisionctl",
			Subsystem: "run",
			Name:      "success",
			Help:      "1 if the last run provisioned every requirement.",
		}),
		pathAdditions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "provisionctl",
			Subsystem: "run",
			Name:      "path_additions",
			Help:      "Directories the operator still has to add to PATH.",
		}),
	}
	m.registry.MustRegister(m.requirementStatus, m.runDuration, m.lastRun, m.runSuccess, m.pathAdditions)
	return m
}

// Record replaces the gauges with the state of report.
func (m *RunMetrics) Record(report provision.Report, duration time.Duration, finished time.Time) {
	m.requirementStatus.Reset()
	for _, outcome := range report.Outcomes {
		m.requirementStatus.WithLabelValues(outcome.Name, string(outcome.Status)).Set(1)
	}
	m.runDuration.Set(duration.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
	m.pathAdditions.Set(float64(len(report.PathAdditions)))
	if report.ExitCode() == 0 {
		m.runSuccess.Set(1)
	} else {
		m.runSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in text exposition format, atomically.
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
