package output

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaunagostinho/relalt/internal/pipeline"
)

// Metrics exposes pipeline counters and the latest readings to Prometheus.
// It uses its own registry so several instances can coexist.
type Metrics struct {
	registry *prometheus.Registry

	baseReadings prometheus.Counter
	readings     prometheus.Counter
	warnings     *prometheus.CounterVec
	baseTarget   prometheus.Gauge
	baseline     *prometheus.GaugeVec
	relative     prometheus.Gauge
	satellites   prometheus.Gauge
	quality      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		baseReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relalt_base_readings_total",
			Help: "Accepted GGA records used for the ground baseline.",
		}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relalt_readings_total",
			Help: "Relative altitude readings reported.",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relalt_warnings_total",
			Help: "Recoverable per-frame problems by kind.",
		}, []string{"kind"}),
		baseTarget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relalt_base_target",
			Help: "Number of base readings required for calibration.",
		}),
		baseline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relalt_baseline_meters",
			Help: "Ground baseline statistics (mean, stddev) in meters.",
		}, []string{"stat"}),
		relative: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relalt_relative_altitude_meters",
			Help: "Latest altitude above the ground baseline.",
		}),
		satellites: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relalt_satellites",
			Help: "Satellites in use in the latest accepted record.",
		}),
		quality: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relalt_fix_quality",
			Help: "GGA fix quality of the latest accepted record.",
		}),
	}

	m.registry.MustRegister(
		m.baseReadings,
		m.readings,
		m.warnings,
		m.baseTarget,
		m.baseline,
		m.relative,
		m.satellites,
		m.quality,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Handle(ev pipeline.Event) {
	switch ev := ev.(type) {
	case pipeline.CalibrationStarted:
		m.baseTarget.Set(float64(ev.Target))
	case pipeline.CalibrationProgress:
		m.baseReadings.Inc()
		m.satellites.Set(float64(ev.Record.Satellites))
		m.quality.Set(float64(ev.Record.Quality))
	case pipeline.BaselineReady:
		m.baseline.WithLabelValues("mean").Set(ev.Baseline.Mean)
		m.baseline.WithLabelValues("stddev").Set(ev.Baseline.StdDev)
	case pipeline.Reading:
		m.readings.Inc()
		m.relative.Set(ev.Report.Relative)
		m.satellites.Set(float64(ev.Report.Satellites))
		m.quality.Set(float64(ev.Report.Quality))
	case pipeline.Warning:
		m.warnings.WithLabelValues(ev.Kind.String()).Inc()
	}
}
