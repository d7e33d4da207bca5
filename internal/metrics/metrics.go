// Package metrics exports the latest ring readings as Prometheus gauges.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/reading"
)

// Sink records every reading event into a registry.
type Sink struct {
	Registry *prometheus.Registry

	spo2       *prometheus.GaugeVec
	heartRate  *prometheus.GaugeVec
	perfusion  *prometheus.GaugeVec
	motion     *prometheus.GaugeVec
	battery    *prometheus.GaugeVec
	readings   *prometheus.CounterVec
	parseFails prometheus.Counter
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"device_id"},
	)
}

// New creates a sink with its own registry.
func New() *Sink {
	s := &Sink{
		Registry:  prometheus.NewRegistry(),
		spo2:      newGauge("o2ring_spo2_percent", "Peripheral oxygen saturation (units: %)"),
		heartRate: newGauge("o2ring_heart_rate_bpm", "Heart rate (units: beats per minute)"),
		perfusion: newGauge("o2ring_perfusion_index", "Perfusion index reported by the ring (unitless)"),
		motion:    newGauge("o2ring_motion", "Motion indicator"),
		battery:   newGauge("o2ring_battery_percent", "Ring battery level (units: %)"),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "o2ring_readings_total",
			Help: "Readings received",
		}, []string{"device_id"}),
		parseFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "o2ring_parse_failures_total",
			Help: "Status lines that did not match the expected format",
		}),
	}
	s.Registry.MustRegister(s.spo2, s.heartRate, s.perfusion, s.motion, s.battery, s.readings, s.parseFails)
	s.Registry.MustRegister(collectors.NewBuildInfoCollector())
	return s
}

// Deliver implements feed.Sink.
func (s *Sink) Deliver(e feed.Event) {
	if e.HasReading {
		s.Observe(e.Reading)
		return
	}
	var pf *reading.ParseFailure
	if errors.As(e.Err, &pf) {
		s.parseFails.Inc()
	}
}

// Observe sets the gauges for r.
func (s *Sink) Observe(r reading.Reading) {
	id := r.DeviceID
	s.spo2.WithLabelValues(id).Set(float64(r.SpO2))
	s.heartRate.WithLabelValues(id).Set(float64(r.HeartRate))
	s.perfusion.WithLabelValues(id).Set(float64(r.PerfusionIndex))
	s.motion.WithLabelValues(id).Set(float64(r.Motion))
	s.battery.WithLabelValues(id).Set(float64(r.BatteryPercent))
	s.readings.WithLabelValues(id).Inc()
}

// Handler exposes the registry over HTTP.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	})
}

// Serve listens on addr until ctx is cancelled.
func (s *Sink) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("serving metrics")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
