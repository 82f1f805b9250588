// Package metrics exports pass and frame statistics for Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imgmon/internal/pixstats"
	"imgmon/internal/timing"
)

const namespace = "imgmon"

// Metrics holds the collectors of one monitored stream on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	passes       prometheus.Counter
	samples      prometheus.Counter
	missed       prometheus.Counter
	signalErrors prometheus.Counter
	interval     *prometheus.GaugeVec
	landmarks    *prometheus.GaugeVec

	pixels *prometheus.GaugeVec
	bins   *prometheus.GaugeVec
}

// New registers the collectors for stream.
func New(stream string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"stream": stream}

	return &Metrics{
		registry: reg,
		passes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "passes_total",
			Help:        "Completed timing passes.",
			ConstLabels: labels,
		}),
		samples: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "samples_total",
			Help:        "Frame intervals measured.",
			ConstLabels: labels,
		}),
		missed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "missed_frames_total",
			Help:        "Frames posted by the producer but not observed as an interval.",
			ConstLabels: labels,
		}),
		signalErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "signal_errors_total",
			Help:        "Passes aborted because the frame signal was unavailable.",
			ConstLabels: labels,
		}),
		interval: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "interval_seconds",
			Help:        "Frame interval statistics of the last pass.",
			ConstLabels: labels,
		}, []string{"stat"}),
		landmarks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "timing",
			Name:        "interval_quantile_seconds",
			Help:        "Frame interval at each landmark rank of the last pass.",
			ConstLabels: labels,
		}, []string{"rank"}),
		pixels: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pixels",
			Name:        "value",
			Help:        "Pixel value statistics of the last frame.",
			ConstLabels: labels,
		}, []string{"stat"}),
		bins: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pixels",
			Name:        "histogram_count",
			Help:        "Elements per histogram bin of the last frame.",
			ConstLabels: labels,
		}, []string{"bin"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchProducer exports producer counters read on every scrape.
func (m *Metrics) WatchProducer(frames, dropped func() uint64) {
	factory := promauto.With(m.registry)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Frames written by the producer (cnt0).",
	}, func() float64 { return float64(frames()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "dropped_posts_total",
		Help:      "Semaphore posts dropped because the semaphore was full.",
	}, func() float64 { return float64(dropped()) })
}

// ObserveReport records one timing pass.
func (m *Metrics) ObserveReport(r *timing.Report) {
	m.passes.Inc()
	m.samples.Add(float64(r.Summary.Count))
	if missed := r.Pass.Missed(); missed > 0 {
		m.missed.Add(float64(missed))
	}

	m.interval.WithLabelValues("mean").Set(r.Summary.Mean)
	m.interval.WithLabelValues("rms").Set(r.Summary.RMS)
	m.interval.WithLabelValues("min").Set(r.Summary.Min)
	m.interval.WithLabelValues("max").Set(r.Summary.Max)

	// Ranks move with the sample count, so stale ones are dropped.
	m.landmarks.Reset()
	for _, l := range r.Landmarks {
		m.landmarks.WithLabelValues(strconv.FormatFloat(l.Rank, 'g', 6, 64)).Set(r.Value(l))
	}
}

// SignalError counts a pass lost to an unavailable signal.
func (m *Metrics) SignalError() {
	m.signalErrors.Inc()
}

// ObservePixels records the statistics of one frame.
func (m *Metrics) ObservePixels(s pixstats.Stats) {
	m.pixels.WithLabelValues("min").Set(s.Min)
	m.pixels.WithLabelValues("max").Set(s.Max)
	m.pixels.WithLabelValues("mean").Set(s.Mean)
	m.pixels.WithLabelValues("median").Set(s.Median)
	m.pixels.WithLabelValues("rms").Set(s.RMS)
	m.pixels.WithLabelValues("total").Set(s.Total)

	m.bins.Reset()
	for h, c := range s.Bins {
		m.bins.WithLabelValues(strconv.Itoa(h)).Set(float64(c))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "metrics shutdown")
		}

		return nil
	}
}
