package screener

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TargetRun is the screening outcome for one target price.
type TargetRun struct {
	Target   float64
	Screener *Screener
	Results  []ShapeResult
	Ranking  Ranking
	Err      error
}

// workerPool runs submitted tasks on a fixed set of goroutines.
type workerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	tasksDone atomic.Uint64
}

// newWorkerPool starts workers goroutines. If workers is 0, it defaults to
// runtime.NumCPU().
func newWorkerPool(workers, queue int) *workerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &workerPool{tasks: make(chan func(), queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
		p.tasksDone.Add(1)
	}
}

func (p *workerPool) submit(task func()) {
	p.tasks <- task
}

// wait closes the queue, waits for the workers and returns the number of
// tasks run.
func (p *workerPool) wait() uint64 {
	close(p.tasks)
	p.wg.Wait()
	return p.tasksDone.Load()
}

// ScreenTargets screens every target price against one source on a pool of
// workers. The source must be safe for concurrent reads. Runs keep the order
// of targets; a target that cannot be screened records its error in its run.
// Only context cancellation fails the whole batch.
func ScreenTargets(ctx context.Context, source ChainSource, targets []float64, targetDays, workers int, logger zerolog.Logger) ([]TargetRun, error) {
	start := time.Now()
	runs := make([]TargetRun, len(targets))

	pool := newWorkerPool(workers, len(targets))
	for i, target := range targets {
		pool.submit(func() {
			runs[i] = screenTarget(ctx, source, target, targetDays, logger)
		})
	}
	done := pool.wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug().
		Int("targets", len(targets)).
		Uint64("runs", done).
		Dur("duration", time.Since(start)).
		Msg("Screening batch finished")
	return runs, nil
}

func screenTarget(ctx context.Context, source ChainSource, target float64, targetDays int, logger zerolog.Logger) TargetRun {
	run := TargetRun{Target: target}
	if err := ctx.Err(); err != nil {
		run.Err = err
		return run
	}

	s, err := New(ctx, source, target, targetDays, logger)
	if err != nil {
		run.Err = err
		return run
	}
	results, err := s.ScreenAll(ctx)
	if err != nil {
		run.Err = err
		return run
	}

	run.Screener = s
	run.Results = results
	run.Ranking = TopByShape(results, s.TargetPrice())
	return run
}
