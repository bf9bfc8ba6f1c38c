package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

func sleepingUnit(d func(idx int) time.Duration) Unit {
	return func(_ context.Context, idx int, _ models.RunOptions) models.WorkerResult {
		time.Sleep(d(idx))
		return models.WorkerResult{Index: idx, Status: models.ResultSuccess}
	}
}

func TestRunRespectsWidth(t *testing.T) {
	var running, peak atomic.Int64
	unit := func(_ context.Context, idx int, _ models.RunOptions) models.WorkerResult {
		n := running.Inc()
		for p := peak.Load(); n > p && !peak.CompareAndSwap(p, n); p = peak.Load() {
		}
		time.Sleep(20 * time.Millisecond)
		running.Dec()
		return models.WorkerResult{Index: idx, Status: models.ResultFailed}
	}

	var (
		mu   sync.Mutex
		sunk []int
	)
	o := New(unit, 0, nil)
	results := o.Run(context.Background(), models.RunOptions{Count: 5, Concurrency: 2}, func(r models.WorkerResult) {
		mu.Lock()
		sunk = append(sunk, r.Index)
		mu.Unlock()
	})

	require.Len(t, results, 5)
	seen := map[int]bool{}
	for _, r := range results {
		assert.False(t, seen[r.Index], "duplicate index %d", r.Index)
		seen[r.Index] = true
	}
	for idx := 1; idx <= 5; idx++ {
		assert.True(t, seen[idx], "missing index %d", idx)
	}

	assert.LessOrEqual(t, peak.Load(), int64(2))
	stats := o.Stats()
	assert.LessOrEqual(t, stats.Peak, int64(2))
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Completed)
	assert.Zero(t, stats.Running)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, sunk, 5, "sink is drained before Run returns")
}

func TestRunCollectsInCompletionOrder(t *testing.T) {
	o := New(sleepingUnit(func(idx int) time.Duration {
		if idx == 1 {
			return 100 * time.Millisecond
		}
		return time.Millisecond
	}), 0, nil)

	var sunk []int
	results := o.Run(context.Background(), models.RunOptions{Count: 2, Concurrency: 2}, func(r models.WorkerResult) {
		sunk = append(sunk, r.Index)
	})

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, []int{2, 1}, sunk)
}

func TestRunStaggersSubmissions(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	unit := func(_ context.Context, idx int, _ models.RunOptions) models.WorkerResult {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return models.WorkerResult{Index: idx}
	}

	o := New(unit, 40*time.Millisecond, nil)
	o.Run(context.Background(), models.RunOptions{Count: 3, Concurrency: 3}, nil)

	require.Len(t, starts, 3)
	assert.GreaterOrEqual(t, starts[2].Sub(starts[0]), 70*time.Millisecond)
}

func TestRunSurvivesWorkerCrash(t *testing.T) {
	var (
		mu      sync.Mutex
		records []logging.Record
	)
	sink := logging.SinkFunc(func(r logging.Record) {
		mu.Lock()
		records = append(records, r)
		mu.Unlock()
	})

	unit := func(_ context.Context, idx int, _ models.RunOptions) models.WorkerResult {
		if idx == 3 {
			panic("boom")
		}
		return models.WorkerResult{Index: idx, Status: models.ResultSuccess}
	}

	o := New(unit, 0, sink)
	results := o.Run(context.Background(), models.RunOptions{Count: 5, Concurrency: 2}, nil)

	assert.Len(t, results, 4)
	stats := o.Stats()
	assert.Equal(t, int64(1), stats.Crashed)
	assert.Equal(t, int64(4), stats.Completed)

	mu.Lock()
	defer mu.Unlock()
	var crash *logging.Record
	for i := range records {
		if records[i].Action == "crash" {
			crash = &records[i]
		}
	}
	require.NotNil(t, crash)
	assert.Equal(t, logging.LevelError, crash.Level)
	assert.Equal(t, 3, crash.Worker)
	assert.Contains(t, crash.Msg, "boom")
}

func TestRunStopsSubmittingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unit := func(unitCtx context.Context, idx int, _ models.RunOptions) models.WorkerResult {
		cancel()
		// started attempts are not cancelled
		assert.NoError(t, unitCtx.Err())
		return models.WorkerResult{Index: idx}
	}

	o := New(unit, 50*time.Millisecond, nil)
	results := o.Run(ctx, models.RunOptions{Count: 5, Concurrency: 5}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, int64(1), o.Stats().Submitted)
}

func TestRunAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := atomic.NewBool(false)
	o := New(func(context.Context, int, models.RunOptions) models.WorkerResult {
		called.Store(true)
		return models.WorkerResult{}
	}, 0, nil)

	assert.Empty(t, o.Run(ctx, models.RunOptions{Count: 3, Concurrency: 1}, nil))
	assert.False(t, called.Load())
}

func TestRunPanickingSinkDoesNotStopCollection(t *testing.T) {
	o := New(sleepingUnit(func(int) time.Duration { return 0 }), 0, nil)

	calls := atomic.NewInt64(0)
	results := o.Run(context.Background(), models.RunOptions{Count: 3, Concurrency: 1}, func(models.WorkerResult) {
		calls.Inc()
		panic("sink down")
	})

	assert.Len(t, results, 3)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRunZeroCount(t *testing.T) {
	o := New(sleepingUnit(func(int) time.Duration { return 0 }), 0, nil)
	assert.Empty(t, o.Run(context.Background(), models.RunOptions{Count: 0}, nil))
}
