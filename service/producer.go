package service

import (
	"context"
	"fmt"
	"time"

	"github.com/logsift/logsift/runtime/queue"
)

type produceResult struct {
	linesRead    uint64
	linesDropped uint64
	interrupted  bool
	err          error
}

// produce reads the source line by line and feeds the queue. It owns the
// shutdown ordering: on normal end of input the end markers go in before
// the shutdown flag flips, so workers see the whole stream; on
// cancellation or source failure the flag flips first and the markers
// are best effort.
func (e *Engine) produce(ctx context.Context) produceResult {
	var res produceResult

	src, err := e.openSource()
	if err != nil {
		e.logger.Error().Err(err).Msg("source unavailable")
		res.err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		e.phase.advance(PhaseDraining)
		e.queue.SignalShutdown()
		e.pushEndMarkers()
		return res
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			e.logger.Warn().Err(cerr).Msg("close source")
		}
	}()

	for {
		if ctx.Err() != nil {
			res.interrupted = true
			break
		}
		line, ok := src.Next()
		if !ok {
			break
		}
		res.linesRead++
		if !e.queue.Push(queue.NewItem(line)) {
			// Push only fails after a shutdown signal; the line was
			// read but never reached a worker.
			res.linesDropped++
			e.telemetry.IncLinesDropped(1)
			e.logger.Debug().Msg("push rejected during shutdown, line dropped")
			res.interrupted = true
			break
		}
		e.telemetry.IncLinesProduced(1)
		e.telemetry.SetQueueOccupancy(e.queue.Len())

		if e.throttle > 0 && !e.sleep(ctx) {
			res.interrupted = true
			break
		}
	}

	if rerr := src.Err(); rerr != nil {
		res.err = fmt.Errorf("read source: %w", rerr)
	}

	e.phase.advance(PhaseDraining)
	if res.interrupted || res.err != nil {
		e.queue.SignalShutdown()
		e.pushEndMarkers()
		return res
	}
	e.pushEndMarkers()
	e.queue.SignalShutdown()
	return res
}

// sleep pauses for the configured throttle and reports false when the
// context was cancelled while waiting.
func (e *Engine) sleep(ctx context.Context) bool {
	timer := time.NewTimer(e.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// pushEndMarkers enqueues one end marker per worker so each can observe
// end-of-stream. After a shutdown signal these pushes fail fast, which
// is fine: the remaining workers leave through the drained-and-closed
// pop path instead.
func (e *Engine) pushEndMarkers() {
	for i := 0; i < e.workers; i++ {
		if !e.queue.Push(queue.EndMarker()) {
			return
		}
	}
}
