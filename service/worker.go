package service

// runWorker consumes items until it sees an end marker or the queue
// reports end-of-queue, then parks at the barrier. The last arrival
// becomes the winner and sums every result slot into the aggregate.
func (e *Engine) runWorker(id int) {
	logger := e.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("worker started")

	var matches uint64
	for {
		it, ok := e.queue.Pop()
		if !ok || it.EndOfStream() {
			break
		}
		if e.match.Match(it.Text()) {
			matches++
		}
	}

	e.phase.advance(PhaseTerminating)
	e.results[id] = matches
	e.telemetry.AddMatches(id, matches)
	logger.Info().Uint64("matches", matches).Msg("worker finished")

	if !e.barrier.Wait() {
		return
	}

	e.phase.advance(PhaseAggregating)
	if !e.aggregated.CompareAndSwap(false, true) {
		// A second winner would mean the barrier released two arrivals
		// as serial; recompute nothing rather than corrupt the total.
		logger.Error().Msg("aggregate already computed, skipping summation")
		return
	}
	var total uint64
	for _, count := range e.results {
		total += count
	}
	e.total = total
	logger.Info().Uint64("total", total).Msg("aggregate computed")
}
