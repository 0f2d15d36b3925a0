package service

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrEngineStopped is returned for work submitted after Stop.
var ErrEngineStopped = fmt.Errorf("%w: engine stopped", core.ErrInternal)

type job struct {
	ctx   context.Context
	fn    func(*core.Graph) error
	write bool
	done  chan error
}

// Engine owns the document graph. Every operation runs on a single worker
// goroutine as one load, mutate, save cycle, so callers in this process never
// interleave. A writer in another process is detected by the store's version
// check and surfaces as core.ErrVersionConflict.
type Engine struct {
	store core.GraphStore

	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup

	stopOnce sync.Once
}

func NewEngine(store core.GraphStore) *Engine {
	e := &Engine{
		store: store,
		jobs:  make(chan job),
		quit:  make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Update loads the graph, applies fn and saves the result. If fn returns an
// error nothing is saved and the error is returned unchanged. ctx only
// matters until the worker picks the job up; after that the cycle completes
// and Update reports its outcome.
func (e *Engine) Update(ctx context.Context, fn func(*core.Graph) error) error {
	return e.submit(ctx, fn, true)
}

// View loads the graph and hands it to fn. Changes made by fn are discarded.
func (e *Engine) View(ctx context.Context, fn func(*core.Graph) error) error {
	return e.submit(ctx, fn, false)
}

// Stop waits for the in-flight job and shuts the worker down.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.quit)
		e.wg.Wait()
	})
}

func (e *Engine) submit(ctx context.Context, fn func(*core.Graph) error, write bool) error {
	j := job{ctx: ctx, fn: fn, write: write, done: make(chan error, 1)}

	select {
	case e.jobs <- j:
	case <-e.quit:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the job runs to completion; its result is the only answer.
	return <-j.done
}

func (e *Engine) run() {
	defer e.wg.Done()

	for {
		select {
		case j := <-e.jobs:
			j.done <- e.process(j)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) process(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Engine job panicked", zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", core.ErrInternal, r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		return err
	}
	ctx := context.WithoutCancel(j.ctx)

	g, version, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := j.fn(g); err != nil {
		return err
	}
	if !j.write {
		return nil
	}

	if _, err := e.store.Save(ctx, g, version); err != nil {
		logger.Log.Error("Failed to save graph", zap.Int64("version", version), zap.Error(err))
		return err
	}
	return nil
}
