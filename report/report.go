package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Summary holds the result of a completed run.
type Summary struct {
	// PerWorker lists the local match count of each worker, indexed by
	// worker identity.
	PerWorker []uint64
	// Total is the aggregate computed by the barrier winner.
	Total uint64
	// LinesRead counts lines the producer read from the source.
	LinesRead uint64
	// LinesDropped counts lines that never reached a worker.
	LinesDropped uint64
	// Interrupted reports whether the run was cut short, in which case
	// the counts cover only the lines processed before shutdown.
	Interrupted bool
}

// Render writes the per-worker breakdown followed by the aggregate total.
func Render(w io.Writer, s Summary) error {
	if s.Interrupted {
		if _, err := fmt.Fprintln(w, "Run interrupted; results are partial."); err != nil {
			return err
		}
	}
	for id, count := range s.PerWorker {
		if _, err := fmt.Fprintf(w, "Worker %d found %d matches (%s%% of total).\n", id, count, share(count, s.Total)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total matches found: %d\n", s.Total)
	return err
}

// share returns count/total as a percentage string with two decimal
// places. A zero total yields "0.00" rather than a division error.
func share(count, total uint64) string {
	if total == 0 {
		return "0.00"
	}
	part := decimal.NewFromUint64(count).Mul(decimal.NewFromInt(100))
	return part.Div(decimal.NewFromUint64(total)).StringFixed(2)
}
