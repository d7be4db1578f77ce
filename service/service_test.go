package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"

	"github.com/logsift/logsift/config"
	"github.com/logsift/logsift/report"
	"github.com/logsift/logsift/runtime/source"
)

func testConfig(capacity, workers int, term string) *config.Config {
	cfg := config.Default()
	cfg.Capacity = capacity
	cfg.Workers = workers
	cfg.Source = "unused.log"
	cfg.Term = term
	return cfg
}

func readerOpener(input string) Option {
	return WithSourceOpener(func() (*source.Source, error) {
		return source.FromReader(strings.NewReader(input)), nil
	})
}

type recordingCollector struct {
	produced atomic.Uint64
	dropped  atomic.Uint64
	matches  atomic.Uint64
	workers  atomic.Int64
}

func (c *recordingCollector) IncLinesProduced(count uint64)  { c.produced.Add(count) }
func (c *recordingCollector) IncLinesDropped(count uint64)   { c.dropped.Add(count) }
func (c *recordingCollector) AddMatches(_ int, count uint64) { c.matches.Add(count) }
func (c *recordingCollector) SetQueueOccupancy(int)          {}
func (c *recordingCollector) SetWorkers(count int)           { c.workers.Store(int64(count)) }

func TestRunCountsMatches(t *testing.T) {
	cfg := testConfig(2, 2, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener("alpha\nbeta\nalphabet\ngamma\n"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", summary.Total)
	}
	if summary.LinesRead != 4 {
		t.Fatalf("expected 4 lines read, got %d", summary.LinesRead)
	}
	if summary.LinesDropped != 0 {
		t.Fatalf("expected no dropped lines, got %d", summary.LinesDropped)
	}
	if summary.Interrupted {
		t.Fatal("run should not be marked interrupted")
	}
	if len(summary.PerWorker) != 2 {
		t.Fatalf("expected 2 worker slots, got %d", len(summary.PerWorker))
	}
	var sum uint64
	for _, count := range summary.PerWorker {
		sum += count
	}
	if sum != summary.Total {
		t.Fatalf("per-worker counts sum to %d, total is %d", sum, summary.Total)
	}
}

func TestAggregateIndependentOfWorkerCount(t *testing.T) {
	input := strings.Repeat("error one\nall good\nerror two\n", 5)
	for workers := 1; workers <= 4; workers++ {
		cfg := testConfig(2, workers, "error")
		eng, err := New(cfg, zerolog.New(io.Discard), readerOpener(input))
		if err != nil {
			t.Fatalf("workers=%d: new engine: %v", workers, err)
		}
		summary, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("workers=%d: run: %v", workers, err)
		}
		if summary.Total != 10 {
			t.Fatalf("workers=%d: expected 10 matches, got %d", workers, summary.Total)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	cfg := testConfig(1, 4, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener(""))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 0 || summary.LinesRead != 0 {
		t.Fatalf("empty input should yield zero counts, got %+v", summary)
	}
	if summary.Interrupted {
		t.Fatal("empty input is not an interruption")
	}
}

func TestRunMissingSource(t *testing.T) {
	cfg := testConfig(4, 3, "alpha")
	cfg.Source = filepath.Join(t.TempDir(), "absent.log")
	eng, err := New(cfg, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	summary, err := eng.Run(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("expected zero total, got %d", summary.Total)
	}
	for id, count := range summary.PerWorker {
		if count != 0 {
			t.Fatalf("worker %d should report zero matches, got %d", id, count)
		}
	}
}

func TestRunSourceReadFailure(t *testing.T) {
	readErr := errors.New("disk fault")
	cfg := testConfig(2, 2, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), WithSourceOpener(func() (*source.Source, error) {
		return source.FromReader(iotest.ErrReader(readErr)), nil
	}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	summary, err := eng.Run(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("expected zero total, got %d", summary.Total)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg := testConfig(2, 2, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener("alpha\n"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Interrupted {
		t.Fatal("summary should be marked interrupted")
	}
	if summary.LinesRead != 0 {
		t.Fatalf("producer should not read after cancellation, got %d lines", summary.LinesRead)
	}
	if summary.Total != 0 {
		t.Fatalf("expected zero total, got %d", summary.Total)
	}
}

func TestRunInterruptMidStream(t *testing.T) {
	pr, pw := io.Pipe()
	cfg := testConfig(2, 2, "needle")
	eng, err := New(cfg, zerolog.New(io.Discard), WithSourceOpener(func() (*source.Source, error) {
		return source.FromReader(pr), nil
	}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		summary report.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := eng.Run(ctx)
		done <- result{summary, err}
	}()

	if _, err := io.WriteString(pw, "plain line\nanother line\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	cancel()
	if err := pw.Close(); err != nil {
		t.Fatalf("close pipe: %v", err)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("run: %v", res.err)
	}
	if !res.summary.Interrupted {
		t.Fatal("summary should be marked interrupted")
	}
	if res.summary.Total != 0 {
		t.Fatalf("no line matches the term, got total %d", res.summary.Total)
	}
}

func TestRunTwiceFails(t *testing.T) {
	cfg := testConfig(2, 1, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener("alpha\n"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := eng.Run(context.Background()); err == nil {
		t.Fatal("second run should fail")
	}
}

func TestStateLifecycle(t *testing.T) {
	cfg := testConfig(2, 2, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener("alpha\n"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if eng.State() != PhaseIdle {
		t.Fatalf("fresh engine should be idle, got %s", eng.State())
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if eng.State() != PhaseDone {
		t.Fatalf("finished engine should be done, got %s", eng.State())
	}
}

func TestRunReportsTelemetry(t *testing.T) {
	collector := &recordingCollector{}
	cfg := testConfig(2, 3, "alpha")
	eng, err := New(cfg, zerolog.New(io.Discard), readerOpener("alpha\nbeta\nalpha\n"), WithCollector(collector))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := collector.produced.Load(); got != summary.LinesRead {
		t.Fatalf("collector saw %d produced lines, summary says %d", got, summary.LinesRead)
	}
	if got := collector.matches.Load(); got != summary.Total {
		t.Fatalf("collector saw %d matches, summary says %d", got, summary.Total)
	}
	if got := collector.workers.Load(); got != 3 {
		t.Fatalf("collector saw %d workers, want 3", got)
	}
	if got := collector.dropped.Load(); got != 0 {
		t.Fatalf("collector saw %d dropped lines, want 0", got)
	}
}

func TestValidate(t *testing.T) {
	logger := zerolog.New(io.Discard)
	if err := Validate(nil, logger); err == nil {
		t.Fatal("nil config should fail validation")
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero capacity", func(c *config.Config) { c.Capacity = 0 }},
		{"zero workers", func(c *config.Config) { c.Workers = 0 }},
		{"missing term", func(c *config.Config) { c.Term = "" }},
		{"unknown matcher", func(c *config.Config) { c.Matcher.Kind = "glob" }},
		{"bad regexp", func(c *config.Config) { c.Matcher.Kind = "regexp"; c.Term = "(" }},
	}
	for _, tc := range cases {
		cfg := testConfig(2, 2, "alpha")
		tc.mutate(cfg)
		if err := Validate(cfg, logger); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	if err := Validate(testConfig(2, 2, "alpha"), logger); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
