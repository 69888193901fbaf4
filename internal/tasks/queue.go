// Package tasks runs deferred work on a fixed worker pool.
//
// Enqueue is fire-and-forget with bounded retries. Submit hands back a Result the caller
// can Await, for the few call sites that must block on the outcome.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"tenantauth-backend/internal/logger"
)

var (
	ErrQueueFull    = errors.New("task queue is full")
	ErrQueueStopped = errors.New("task queue is stopped")
)

// Func is a unit of work; the returned value is delivered to Await
type Func func(ctx context.Context) (any, error)

type job struct {
	id       string
	name     string
	ctx      context.Context
	fn       Func
	retries  int
	maxRetry int
	result   *Result
}

// Result is the eventual outcome of a submitted task
type Result struct {
	id    string
	done  chan struct{}
	value any
	err   error
}

func (r *Result) ID() string {
	return r.id
}

// Await blocks until the task finished or ctx is done
func (r *Result) Await(ctx context.Context) (any, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Queue struct {
	jobs       chan job
	workers    int
	maxRetries int
	backoff    func(attempt int) time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	quit    chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

type Option func(*Queue)

// WithBackoff overrides the retry delay; attempt starts at 1
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(q *Queue) { q.backoff = fn }
}

func NewQueue(workers, queueSize, maxRetries int, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	q := &Queue{
		jobs:       make(chan job, queueSize),
		quit:       make(chan struct{}),
		workers:    workers,
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. Stop drains what is buffered; cancelling ctx instead abandons
// it, failing any pending Results with ErrQueueStopped.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	logger.Info("Task queue started", "workers", q.workers, "capacity", cap(q.jobs))
}

// Stop refuses new work, runs every buffered task to completion and then waits for the
// workers to exit. Failed tasks are not retried once stopping.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.ctx != nil
	cancel := q.cancel
	q.mu.Unlock()

	if !started {
		q.abandon()
		logger.Info("Task queue stopped before it started")
		return
	}
	close(q.quit)
	q.wg.Wait()
	cancel()
	logger.Info("Task queue stopped")
}

// Enqueue schedules fn without waiting for it. Failures are retried with backoff up to the
// configured limit and then logged.
func (q *Queue) Enqueue(name string, fn func(ctx context.Context) error) (string, error) {
	j := job{
		id:       ulid.Make().String(),
		name:     name,
		maxRetry: q.maxRetries,
		fn: func(ctx context.Context) (any, error) {
			return nil, fn(ctx)
		},
	}
	return j.id, q.push(j)
}

// Submit schedules fn once and returns a Result to wait on. fn receives ctx.
func (q *Queue) Submit(ctx context.Context, name string, fn Func) (*Result, error) {
	res := &Result{id: ulid.Make().String(), done: make(chan struct{})}
	j := job{id: res.id, name: name, ctx: ctx, fn: fn, result: res}
	if err := q.push(j); err != nil {
		return nil, err
	}
	return res, nil
}

// push holds mu across the send so Stop and abandon observe every accepted job
func (q *Queue) push(j job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed() {
		return ErrQueueStopped
	}

	select {
	case q.jobs <- j:
		logger.Debug("Task enqueued", "task_id", j.id, "task", j.name)
		return nil
	default:
		return ErrQueueFull
	}
}

// closed reports whether new work must be refused; callers hold mu
func (q *Queue) closed() bool {
	return q.stopped || (q.ctx != nil && q.ctx.Err() != nil)
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	logger.Debug("Task worker started", "worker", n)
	for {
		select {
		case <-q.ctx.Done():
			logger.Debug("Task worker cancelled", "worker", n)
			q.abandon()
			return
		case <-q.quit:
			q.drain()
			logger.Debug("Task worker drained", "worker", n)
			return
		case j := <-q.jobs:
			q.process(j)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			q.process(j)
		default:
			return
		}
	}
}

// abandon empties the buffer without running it
func (q *Queue) abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case j := <-q.jobs:
			if j.result != nil {
				j.result.err = ErrQueueStopped
				close(j.result.done)
				continue
			}
			logger.Error("Task dropped, queue cancelled", "task_id", j.id, "task", j.name)
		default:
			return
		}
	}
}

func (q *Queue) process(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = q.ctx
	}
	value, err := run(ctx, j)

	if j.result != nil {
		j.result.value, j.result.err = value, err
		close(j.result.done)
		return
	}
	if err == nil {
		logger.Debug("Task completed", "task_id", j.id, "task", j.name)
		return
	}

	if j.retries >= j.maxRetry {
		logger.Error("Task failed, giving up", "task_id", j.id, "task", j.name, "attempts", j.retries+1, "error", err)
		return
	}
	j.retries++
	delay := q.backoff(j.retries)
	logger.Warn("Task failed, retrying", "task_id", j.id, "task", j.name, "attempt", j.retries, "delay", delay, "error", err)
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed() {
			logger.Error("Task dropped on retry, queue stopped", "task_id", j.id, "task", j.name)
			return
		}
		select {
		case q.jobs <- j:
		default:
			logger.Error("Task dropped on retry, queue full", "task_id", j.id, "task", j.name)
		}
	})
}

func run(ctx context.Context, j job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}
