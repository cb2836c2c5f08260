package gopool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

var minNumberPerTask = 5

// logger routes ants diagnostics into the root logger.
type logger struct{}

func (logger) Printf(format string, args ...interface{}) {
	log.Debug(fmt.Sprintf(format, args...), "module", "gopool")
}

// Threads returns a worker count for the given number of tasks: one worker
// per minNumberPerTask tasks, capped at the number of CPUs.
func Threads(tasks int) int {
	threads := tasks / minNumberPerTask
	if threads > runtime.NumCPU() {
		threads = runtime.NumCPU()
	} else if threads == 0 {
		threads = 1
	}
	return threads
}

// Run calls fn(i) for every i in [0, n) on a dedicated pool of workers
// goroutines (Threads(n) when workers <= 0) and waits for all of them.
// After the first failure no further tasks are started; the first error is
// returned. A panicking task is reported as an error.
func Run(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = Threads(n)
	}
	pool, err := ants.NewPool(workers, ants.WithLogger(logger{}))
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		failed   atomic.Bool
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			failed.Store(true)
		})
	}
	for i := 0; i < n; i++ {
		if failed.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}
		i := i
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("task %d panicked: %v", i, r))
				}
			}()
			if err := fn(i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}
