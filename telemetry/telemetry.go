package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Collector captures telemetry events emitted by the engine.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with the producer and worker loops.
type Collector interface {
	IncLinesProduced(count uint64)
	IncLinesDropped(count uint64)
	AddMatches(worker int, count uint64)
	SetQueueOccupancy(occupancy int)
	SetWorkers(count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncLinesProduced(uint64) {}
func (noopCollector) IncLinesDropped(uint64)  {}
func (noopCollector) AddMatches(int, uint64)  {}
func (noopCollector) SetQueueOccupancy(int)   {}
func (noopCollector) SetWorkers(int)          {}

// PrometheusCollector exposes engine counters and gauges via Prometheus.
type PrometheusCollector struct {
	linesProduced  prometheus.Counter
	linesDropped   prometheus.Counter
	matches        *prometheus.CounterVec
	queueOccupancy prometheus.Gauge
	workers        prometheus.Gauge
}

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	linesProduced, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "logsift_lines_produced_total",
		Help: "Number of lines handed to the queue by the producer.",
	})
	if err != nil {
		return nil, err
	}
	linesDropped, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "logsift_lines_dropped_total",
		Help: "Number of lines read from the source but never processed by a worker.",
	})
	if err != nil {
		return nil, err
	}
	matches, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "logsift_matches_total",
		Help: "Number of matched lines per worker.",
	}, []string{"worker"})
	if err != nil {
		return nil, err
	}
	queueOccupancy, err := registerGauge(reg, prometheus.GaugeOpts{
		Name: "logsift_queue_occupancy",
		Help: "Number of lines resident in the queue at the last observation.",
	})
	if err != nil {
		return nil, err
	}
	workers, err := registerGauge(reg, prometheus.GaugeOpts{
		Name: "logsift_workers",
		Help: "Number of workers consuming from the queue.",
	})
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		linesProduced:  linesProduced,
		linesDropped:   linesDropped,
		matches:        matches,
		queueOccupancy: queueOccupancy,
		workers:        workers,
	}, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) (prometheus.Counter, error) {
	counter := prometheus.NewCounter(opts)
	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) (prometheus.Gauge, error) {
	gauge := prometheus.NewGauge(opts)
	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return gauge, nil
}

// IncLinesProduced records lines accepted by the queue.
func (p *PrometheusCollector) IncLinesProduced(count uint64) {
	if p == nil || p.linesProduced == nil || count == 0 {
		return
	}
	p.linesProduced.Add(float64(count))
}

// IncLinesDropped records lines that were read but never processed.
func (p *PrometheusCollector) IncLinesDropped(count uint64) {
	if p == nil || p.linesDropped == nil || count == 0 {
		return
	}
	p.linesDropped.Add(float64(count))
}

// AddMatches records matched lines for one worker.
func (p *PrometheusCollector) AddMatches(worker int, count uint64) {
	if p == nil || p.matches == nil {
		return
	}
	p.matches.WithLabelValues(strconv.Itoa(worker)).Add(float64(count))
}

// SetQueueOccupancy updates the gauge tracking queued lines.
func (p *PrometheusCollector) SetQueueOccupancy(occupancy int) {
	if p == nil || p.queueOccupancy == nil {
		return
	}
	p.queueOccupancy.Set(float64(occupancy))
}

// SetWorkers records the size of the worker pool.
func (p *PrometheusCollector) SetWorkers(count int) {
	if p == nil || p.workers == nil {
		return
	}
	p.workers.Set(float64(count))
}

// Listener serves the metrics endpoint until closed.
type Listener struct {
	logger zerolog.Logger
	server *http.Server
	ln     net.Listener
}

// NewListener exposes the gatherer's metrics over HTTP on the given address.
func NewListener(listen string, gatherer prometheus.Gatherer, logger zerolog.Logger) (*Listener, error) {
	if listen == "" {
		return nil, errors.New("telemetry listen address must not be empty")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux}
	listener := &Listener{logger: logger, server: srv, ln: ln}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("telemetry listener stopped")
		}
	}()

	logger.Info().Str("listen", ln.Addr().String()).Msg("telemetry listener started")
	return listener, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() string {
	if l == nil || l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Close stops serving metrics.
func (l *Listener) Close() {
	if l == nil || l.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.server.Shutdown(ctx); err != nil && err != context.Canceled {
		l.logger.Error().Err(err).Msg("shutdown telemetry listener")
	}
}
