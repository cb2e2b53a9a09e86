package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of deferred work.
type Task struct {
	ID      string
	Kind    string
	Payload interface{}
}

// TaskFunc processes a task. A non-nil error triggers a retry.
type TaskFunc func(context.Context, Task) error

// Config tunes the worker pool.
type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Queue runs tasks on a pool of goroutines behind a buffered channel. Failed
// tasks are retried in place by the worker that picked them up, so ordering
// within a worker is preserved and a poisoned task never floods the channel.
type Queue struct {
	name        string
	run         TaskFunc
	workers     int
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue that feeds tasks to run.
func NewQueue(name string, run TaskFunc, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:        name,
		run:         run,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      cfg.Logger,
		tasks:       make(chan Task, cfg.BufferSize),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started",
		zap.String("queue", q.name),
		zap.Int("workers", q.workers))
}

// Stop cancels the workers and waits for them to exit. Buffered tasks that
// no worker picked up before cancellation are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue hands a task to the pool, blocking while the buffer is full.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.process(task)
		}
	}
}

func (q *Queue) process(task Task) {
	var err error
	for attempt := 1; attempt <= q.maxAttempts; attempt++ {
		if err = q.run(q.ctx, task); err == nil {
			return
		}
		if attempt == q.maxAttempts {
			break
		}
		q.logger.Warn("task failed, retrying",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Int("attempt", attempt),
			zap.Error(err))

		timer := time.NewTimer(q.retryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	q.logger.Error("task abandoned",
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int("attempts", q.maxAttempts),
		zap.Error(err))
}
