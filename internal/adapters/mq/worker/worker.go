// Package worker runs asynchronous evaluation jobs off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Job is one evaluation request.
type Job struct {
	RequestID  string        `json:"request_id"`
	Subject    string        `json:"subject"`
	Profile    model.Profile `json:"profile"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Evaluator turns a profile into an assessment. It must not fail: a broken
// collaborator yields a fallback assessment.
type Evaluator interface {
	Analyze(ctx context.Context, subject string, p model.Profile) model.Assessment
}

// Updater receives the computed snapshot.
type Updater interface {
	Apply(ctx context.Context, snap model.ScoreSnapshot) (repository.Outcome, error)
	Get(ctx context.Context, subject string) (model.ScoreSnapshot, error)
}

// ResultHook observes finished jobs.
type ResultHook func(ctx context.Context, job Job, a model.Assessment)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	updater   Updater
	hook      ResultHook
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, evaluator Evaluator, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		evaluator: evaluator,
		updater:   updater,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes jobs until ctx ends, Shutdown is called or the queue closes.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "evaluation failed",
					logger.String("worker", w.name),
					logger.String("request_id", job.RequestID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	a := w.evaluator.Analyze(ctx, job.Subject, job.Profile)
	snap := a.Snapshot
	snap.Subject = job.Subject

	prev, err := w.updater.Get(ctx, job.Subject)
	switch {
	case err == nil:
		snap = scoring.ApplyTrend(&prev, snap)
	case errors.Is(err, repository.ErrNotFound):
		snap = scoring.ApplyTrend(nil, snap)
	default:
		metrics.RecordWorkerError()
		return fmt.Errorf("read previous snapshot %s: %w", job.Subject, err)
	}
	a.Snapshot = snap

	outcome, err := w.updater.Apply(ctx, snap)
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("apply snapshot %s: %w", job.Subject, err)
	}

	w.logger.Debug(ctx, "evaluation done",
		logger.Subject(job.Subject),
		logger.String("request_id", job.RequestID),
		logger.Int("composite", snap.Composite),
		logger.String("source", string(snap.Source)),
		logger.String("outcome", outcome.String()),
	)
	if w.hook != nil {
		w.hook(ctx, job, a)
	}
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. A count below one means 2×NumCPU.
func NewPool(workerCount int, queue Queue, evaluator Evaluator, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, evaluator, updater, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue when it can be closed, then waits for every
// worker or the timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(sctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
