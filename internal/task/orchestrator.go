// Package task fans registration attempts out over a fixed-width pool
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/internal/ratelimit"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

// DefaultStagger is the delay between successive submissions
const DefaultStagger = 3 * time.Second

// Unit runs one attempt. idx starts at 1.
type Unit func(ctx context.Context, idx int, opts models.RunOptions) models.WorkerResult

// Sink receives each result as it completes
type Sink func(models.WorkerResult)

// Stats is a snapshot of the orchestrator's counters
type Stats struct {
	Submitted int64 `json:"submitted"`
	Running   int64 `json:"running"`
	Peak      int64 `json:"peak"`
	Completed int64 `json:"completed"`
	Crashed   int64 `json:"crashed"`
}

// Orchestrator runs units with bounded parallelism
type Orchestrator struct {
	unit    Unit
	stagger time.Duration
	log     logging.Sink

	submitted atomic.Int64
	running   atomic.Int64
	peak      atomic.Int64
	completed atomic.Int64
	crashed   atomic.Int64
}

// New creates an orchestrator. A zero stagger disables submission spacing.
func New(unit Unit, stagger time.Duration, log logging.Sink) *Orchestrator {
	if log == nil {
		log = logging.Discard
	}
	return &Orchestrator{unit: unit, stagger: stagger, log: log}
}

// Stats returns the counters accumulated over every run
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Submitted: o.submitted.Load(),
		Running:   o.running.Load(),
		Peak:      o.peak.Load(),
		Completed: o.completed.Load(),
		Crashed:   o.crashed.Load(),
	}
}

type outcome struct {
	result  models.WorkerResult
	crashed bool
}

// Run submits opts.Count units, at most opts.Concurrency at a time, spaced by
// the stagger. Results are returned and streamed to sink in completion
// order. Cancelling ctx stops further submissions; units already started
// run to completion. Run returns once every started unit has finished and
// the sink has seen every result.
func (o *Orchestrator) Run(ctx context.Context, opts models.RunOptions, sink Sink) []models.WorkerResult {
	width := opts.Concurrency
	if width <= 0 {
		width = 1
	}
	if opts.Count <= 0 {
		return nil
	}

	log := logging.ForWorker(o.log, 0)
	log.Info("run", "starting: count=%d, width=%d", opts.Count, width)

	sem := semaphore.NewWeighted(int64(width))
	stagger := ratelimit.NewStagger(o.stagger)
	workCtx := context.WithoutCancel(ctx)

	outcomes := make(chan outcome, opts.Count)
	sinkQueue := make(chan models.WorkerResult, opts.Count)
	collected := make(chan []models.WorkerResult, 1)
	sinkDone := make(chan struct{})

	go func() {
		defer close(sinkDone)
		for r := range sinkQueue {
			o.deliver(sink, r)
		}
	}()

	go func() {
		defer close(sinkQueue)
		results := make([]models.WorkerResult, 0, opts.Count)
		for out := range outcomes {
			if out.crashed {
				continue
			}
			results = append(results, out.result)
			if sink != nil {
				sinkQueue <- out.result
			}
		}
		collected <- results
	}()

	var wg sync.WaitGroup
	for idx := 1; idx <= opts.Count; idx++ {
		if ctx.Err() != nil {
			log.Warn("stop", "stopped before submitting unit %d", idx)
			break
		}
		if err := stagger.Wait(ctx); err != nil {
			log.Warn("stop", "stopped before submitting unit %d", idx)
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn("stop", "stopped before submitting unit %d", idx)
			break
		}

		o.submitted.Inc()
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			result, ok := o.invoke(workCtx, idx, opts)
			outcomes <- outcome{result: result, crashed: !ok}
		}(idx)
	}

	wg.Wait()
	close(outcomes)
	results := <-collected
	<-sinkDone

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	log.Info("run", "finished: %d/%d succeeded", succeeded, len(results))
	return results
}

// invoke runs one unit behind a recover boundary
func (o *Orchestrator) invoke(ctx context.Context, idx int, opts models.RunOptions) (result models.WorkerResult, ok bool) {
	n := o.running.Inc()
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}

	defer func() {
		o.running.Dec()
		if r := recover(); r != nil {
			o.crashed.Inc()
			o.log.Log(logging.Record{
				Level:  logging.LevelError,
				Worker: idx,
				Action: "crash",
				Msg:    fmt.Sprintf("worker %d crashed: %v", idx, r),
			})
			ok = false
			return
		}
		o.completed.Inc()
	}()

	return o.unit(ctx, idx, opts), true
}

// deliver hands one result to the sink; a panicking sink loses that result only
func (o *Orchestrator) deliver(sink Sink, r models.WorkerResult) {
	defer func() {
		if p := recover(); p != nil {
			o.log.Log(logging.Record{
				Level:  logging.LevelError,
				Action: "sink",
				Msg:    fmt.Sprintf("result sink failed for unit %d: %v", r.Index, p),
			})
		}
	}()
	sink(r)
}
