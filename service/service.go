package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/logsift/logsift/config"
	"github.com/logsift/logsift/matcher"
	"github.com/logsift/logsift/report"
	"github.com/logsift/logsift/runtime/barrier"
	"github.com/logsift/logsift/runtime/queue"
	"github.com/logsift/logsift/runtime/source"
	"github.com/logsift/logsift/telemetry"
)

// ErrSourceUnavailable marks a run whose input could not be opened. The
// run still completes its shutdown protocol and returns a summary with
// zero counts alongside this error.
var ErrSourceUnavailable = errors.New("source unavailable")

type settings struct {
	collector  telemetry.Collector
	openSource func() (*source.Source, error)
}

// Option adjusts engine construction.
type Option func(*settings)

// WithCollector routes engine metrics to the provided collector.
func WithCollector(c telemetry.Collector) Option {
	return func(s *settings) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithSourceOpener replaces how the engine opens its line source. Tests
// use this to feed lines from an in-memory reader.
func WithSourceOpener(open func() (*source.Source, error)) Option {
	return func(s *settings) {
		if open != nil {
			s.openSource = open
		}
	}
}

// Engine coordinates one producer and a fixed set of workers over a
// bounded queue. It is single use: construct, Run once, read the summary.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	match    matcher.Matcher
	queue    *queue.Queue
	barrier  *barrier.Barrier
	results  []uint64
	workers  int
	throttle time.Duration

	telemetry  telemetry.Collector
	openSource func() (*source.Source, error)

	phase      phaseTracker
	aggregated atomic.Bool
	total      uint64
}

// New validates the configuration and assembles the engine. Nothing is
// started and no file is opened; failures here leave nothing to release.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := matcher.ParseKind(cfg.Matcher.Kind)
	if err != nil {
		return nil, err
	}
	match, err := matcher.New(kind, cfg.Term)
	if err != nil {
		return nil, err
	}
	q, err := queue.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	bar, err := barrier.New(cfg.Workers)
	if err != nil {
		return nil, err
	}

	applied := settings{collector: telemetry.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&applied)
		}
	}

	eng := &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		match:     match,
		queue:     q,
		barrier:   bar,
		results:   make([]uint64, cfg.Workers),
		workers:   cfg.Workers,
		throttle:  cfg.Throttle.Duration,
		telemetry: applied.collector,
	}
	eng.openSource = applied.openSource
	if eng.openSource == nil {
		path := cfg.Source
		eng.openSource = func() (*source.Source, error) {
			return source.Open(path)
		}
	}
	return eng, nil
}

// Validate performs a dry-run construction so configuration problems
// surface without opening the source or starting any goroutine.
func Validate(cfg *config.Config, logger zerolog.Logger) error {
	_, err := New(cfg, logger)
	return err
}

// State reports the engine's current lifecycle phase.
func (e *Engine) State() Phase {
	if e == nil {
		return PhaseIdle
	}
	return e.phase.current()
}

// Run executes one full pass: the calling goroutine produces, N workers
// consume, a watcher translates context cancellation into a queue
// shutdown. Run joins every goroutine it started before returning, so
// the summary is stable once it is in the caller's hands.
func (e *Engine) Run(ctx context.Context) (report.Summary, error) {
	if e == nil {
		return report.Summary{}, errors.New("engine must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !e.phase.advance(PhaseRunning) {
		return report.Summary{}, errors.New("engine has already run")
	}

	e.telemetry.SetWorkers(e.workers)
	e.logger.Info().
		Int("workers", e.workers).
		Int("capacity", e.queue.Cap()).
		Str("matcher", e.match.Describe()).
		Msg("run started")

	// Cancellation is observed here and turned into a queue-level
	// shutdown; nothing touches the queue from signal-handler context.
	watchDone := make(chan struct{})
	var watch sync.WaitGroup
	watch.Add(1)
	go func() {
		defer watch.Done()
		select {
		case <-ctx.Done():
			e.queue.SignalShutdown()
		case <-watchDone:
		}
	}()

	var workers sync.WaitGroup
	for id := 0; id < e.workers; id++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			e.runWorker(id)
		}(id)
	}

	res := e.produce(ctx)

	workers.Wait()
	close(watchDone)
	watch.Wait()

	var leftover uint64
	for _, it := range e.queue.Drain() {
		if !it.EndOfStream() {
			leftover++
		}
	}
	if leftover > 0 {
		res.linesDropped += leftover
		e.telemetry.IncLinesDropped(leftover)
		e.logger.Debug().Uint64("dropped", leftover).Msg("queue drained with unprocessed lines")
	}
	e.telemetry.SetQueueOccupancy(0)

	summary := report.Summary{
		PerWorker:    append([]uint64(nil), e.results...),
		LinesRead:    res.linesRead,
		LinesDropped: res.linesDropped,
		Interrupted:  res.interrupted || ctx.Err() != nil,
	}
	if e.aggregated.Load() {
		summary.Total = e.total
	} else {
		e.logger.Error().Msg("no aggregation winner emerged, total left at zero")
	}

	e.phase.advance(PhaseDone)
	e.logger.Info().
		Uint64("total", summary.Total).
		Uint64("lines", summary.LinesRead).
		Uint64("dropped", summary.LinesDropped).
		Bool("interrupted", summary.Interrupted).
		Msg("run finished")
	return summary, res.err
}
