package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// Runner executes one run to completion
type Runner interface {
	Run(ctx context.Context, opts models.RunOptions, sink Sink) []models.WorkerResult
}

type runEntry struct {
	run    models.Run
	cancel context.CancelFunc
	done   chan struct{}
}

// Runs tracks background runs started over the API
type Runs struct {
	runner Runner
	sink   Sink
	mu     sync.Mutex
	runs   map[string]*runEntry
	now    func() time.Time
}

// NewRuns creates a registry. Every result is also forwarded to sink, which
// may be nil.
func NewRuns(runner Runner, sink Sink) *Runs {
	return &Runs{
		runner: runner,
		sink:   sink,
		runs:   make(map[string]*runEntry),
		now:    time.Now,
	}
}

// Start launches a run in the background and returns its first snapshot
func (r *Runs) Start(opts models.RunOptions) (models.Run, error) {
	if opts.Count <= 0 {
		return models.Run{}, fmt.Errorf("count must be positive")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &runEntry{
		run: models.Run{
			ID:        uuid.New().String(),
			Options:   opts,
			Status:    models.RunRunning,
			StartedAt: r.now(),
			Results:   []models.WorkerResult{},
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.runs[entry.run.ID] = entry
	snapshot := snapshotOf(entry)
	r.mu.Unlock()

	go func() {
		defer close(entry.done)
		defer cancel()

		r.runner.Run(ctx, opts, func(res models.WorkerResult) {
			r.record(entry, res)
			if r.sink != nil {
				r.sink(res)
			}
		})

		r.mu.Lock()
		finished := r.now()
		if entry.run.Status == models.RunStopping && len(entry.run.Results) < entry.run.Options.Count {
			entry.run.Status = models.RunStopped
		} else {
			entry.run.Status = models.RunCompleted
		}
		entry.run.FinishedAt = &finished
		r.mu.Unlock()
	}()

	return snapshot, nil
}

func (r *Runs) record(entry *runEntry, res models.WorkerResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.run.Results = append(entry.run.Results, res)
	if res.Succeeded() {
		entry.run.Succeeded++
	} else {
		entry.run.Failed++
	}
}

// Get returns a snapshot of a run
func (r *Runs) Get(id string) (models.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[id]
	if !ok {
		return models.Run{}, false
	}
	return snapshotOf(entry), true
}

// List returns snapshots of every known run
func (r *Runs) List() []models.Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	runs := make([]models.Run, 0, len(r.runs))
	for _, entry := range r.runs {
		runs = append(runs, snapshotOf(entry))
	}
	return runs
}

// Stop prevents further submissions. Attempts already started finish.
func (r *Runs) Stop(id string) (models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[id]
	if !ok {
		return models.Run{}, fmt.Errorf("run not found")
	}
	if entry.run.Status == models.RunRunning {
		entry.run.Status = models.RunStopping
		entry.cancel()
	}
	return snapshotOf(entry), nil
}

// Done returns a channel closed when the run has finished
func (r *Runs) Done(id string) (<-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[id]
	if !ok {
		return nil, false
	}
	return entry.done, true
}

// StopAll stops every run and waits for in-flight attempts to finish
func (r *Runs) StopAll(ctx context.Context) error {
	r.mu.Lock()
	var pending []chan struct{}
	for _, entry := range r.runs {
		if entry.run.Status == models.RunRunning {
			entry.run.Status = models.RunStopping
			entry.cancel()
		}
		pending = append(pending, entry.done)
	}
	r.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func snapshotOf(entry *runEntry) models.Run {
	run := entry.run
	run.Results = append([]models.WorkerResult(nil), entry.run.Results...)
	if run.Results == nil {
		run.Results = []models.WorkerResult{}
	}
	return run
}
