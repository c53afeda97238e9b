package trainer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

type ProgressKind string

const (
	ProgressIndividual ProgressKind = "individual"
	ProgressGeneration ProgressKind = "generation"
)

// Progress is reported after every individual's evaluation and after every
// generation. Generation and Individual are 1-based.
type Progress struct {
	Kind             ProgressKind `json:"kind"`
	Generation       int          `json:"generation"`
	Generations      int          `json:"generations"`
	Individual       int          `json:"individual"`
	PopulationSize   int          `json:"population_size"`
	Fitness          float64      `json:"fitness"`
	BestInGeneration float64      `json:"best_in_generation"`
	BestOverall      float64      `json:"best_overall"`
	Percent          float64      `json:"percent"`
}

func (p Progress) String() string {
	return fmt.Sprintf("gen %d/%d ind %d/%d best_gen=%.2f best=%.2f (%.1f%%)",
		p.Generation, p.Generations, p.Individual, p.PopulationSize,
		p.BestInGeneration, p.BestOverall, p.Percent)
}

// ProgressFunc observes training. It is called from a single goroutine, in
// order, and never on the evaluation path; if it falls more than
// progressBuffer records behind, further records are dropped.
type ProgressFunc func(Progress)

// ChannelSink forwards progress to ch without ever blocking; updates that do
// not fit in the buffer are dropped.
func ChannelSink(ch chan<- Progress) ProgressFunc {
	return func(p Progress) {
		select {
		case ch <- p:
		default:
		}
	}
}

// Tee fans one progress stream out to several observers. Nil entries are
// skipped.
func Tee(fns ...ProgressFunc) ProgressFunc {
	return func(p Progress) {
		for _, fn := range fns {
			if fn != nil {
				fn(p)
			}
		}
	}
}

const (
	// progressBuffer is how many records may queue behind a slow observer
	// before further records are dropped.
	progressBuffer = 1024
	// flushTimeout bounds how long Run waits for queued records to be
	// delivered before returning.
	flushTimeout = 2 * time.Second
)

// reporter hands records to the observer on its own goroutine. Workers only
// enqueue, so a slow or stuck observer never holds up evaluation. A panicking
// observer is recovered and keeps receiving later records.
type reporter struct {
	ch      chan Progress
	done    chan struct{}
	dropped atomic.Int64
}

func newReporter(fn ProgressFunc) *reporter {
	r := &reporter{}
	if fn == nil {
		return r
	}
	r.ch = make(chan Progress, progressBuffer)
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		for p := range r.ch {
			deliver(fn, p)
		}
	}()
	return r
}

func deliver(fn ProgressFunc, p Progress) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("progress observer panicked", "panic", rec, "kind", p.Kind)
		}
	}()
	fn(p)
}

// emit never blocks.
func (r *reporter) emit(p Progress) {
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- p:
	default:
		r.dropped.Add(1)
	}
}

// close stops intake and waits up to flushTimeout for the observer to drain
// the queue. It must be called once, after the last emit.
func (r *reporter) close() {
	if r.ch == nil {
		return
	}
	close(r.ch)
	select {
	case <-r.done:
	case <-time.After(flushTimeout):
		slog.Warn("progress observer still busy after run", "timeout", flushTimeout)
	}
	if n := r.dropped.Load(); n > 0 {
		slog.Warn("progress updates dropped for a slow observer", "dropped", n)
	}
}
