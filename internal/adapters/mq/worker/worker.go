// Package worker runs store writes on a bounded pool while keeping writes to
// the same natural key in submission order.
package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tourneyrank/internal/adapters/mq/queue"
	"github.com/okian/tourneyrank/pkg/logger"
	"github.com/okian/tourneyrank/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue() <-chan queue.Task
}

// Worker drains one queue.
type Worker interface {
	// Run processes tasks until the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs tasks from a single queue, one at a time.
type InMemoryWorker struct {
	queue Queue
	name  string
	done  chan struct{}

	// afterTask is called once per task, success or not.
	afterTask func()

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		name:      "worker",
		done:      make(chan struct{}),
		afterTask: func() {},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop. Queued tasks are always drained so a
// submitted write is never silently dropped; a cancelled ctx makes them
// fail fast inside the store client instead.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for t := range w.queue.Dequeue() {
		w.process(ctx, t)
	}
}

// Shutdown waits for the worker to finish.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) {
	defer w.afterTask()
	if err := t.Run(ctx); err != nil {
		w.logger.Error(ctx, "store write failed",
			logger.String("key", t.Key),
			logger.Error(err),
		)
	}
}

// Pool shards tasks over workers by key hash. Each shard is a FIFO drained
// by one worker, so two tasks with the same key never run concurrently or
// out of order. A pool of one worker or less runs tasks inline.
type Pool struct {
	workers []*InMemoryWorker
	queues  []*queue.InMemoryQueue
	inline  bool

	pending   sync.WaitGroup
	inFlight  atomic.Int64
	bufSize   int
	logger    logger.Logger
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, opts ...PoolOption) *Pool {
	p := &Pool{inline: workerCount <= 1}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	if p.inline {
		return p
	}

	p.workers = make([]*InMemoryWorker, workerCount)
	p.queues = make([]*queue.InMemoryQueue, workerCount)
	for i := 0; i < workerCount; i++ {
		qOpts := []queue.Option{}
		if p.bufSize > 0 {
			qOpts = append(qOpts, queue.WithBufferSize(p.bufSize))
		}
		p.queues[i] = queue.NewInMemoryQueue(qOpts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i],
			WithName("writer-"+strconv.Itoa(i)),
			WithLogger(p.logger.Named("writer-"+strconv.Itoa(i))),
			withAfterTask(p.taskDone),
		)
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		metrics.UpdateWriterWorkers(len(p.workers))
	})
}

// Size returns the number of workers; 0 when running inline.
func (p *Pool) Size() int {
	return len(p.workers)
}

func (p *Pool) taskDone() {
	metrics.UpdateWriterQueueDepth(int(p.inFlight.Add(-1)))
	p.pending.Done()
}

func (p *Pool) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Submit hands a task to its shard, waiting for room. Inline pools run it
// before returning. Submit and Flush must be called from one goroutine.
func (p *Pool) Submit(ctx context.Context, t queue.Task) error {
	if p.inline {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("submit %s: %w", t.Key, err)
		}
		if err := t.Run(ctx); err != nil {
			p.logger.Error(ctx, "store write failed", logger.String("key", t.Key), logger.Error(err))
		}
		return nil
	}

	p.pending.Add(1)
	metrics.UpdateWriterQueueDepth(int(p.inFlight.Add(1)))
	if err := p.queues[p.shard(t.Key)].Enqueue(ctx, t); err != nil {
		p.taskDone()
		return fmt.Errorf("submit %s: %w", t.Key, err)
	}
	return nil
}

// Flush waits until every submitted task has finished.
func (p *Pool) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush: %w", ctx.Err())
	}
}

// Shutdown closes every shard and waits for workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		for _, q := range p.queues {
			if cerr := q.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
		defer cancel()
		for i, w := range p.workers {
			if werr := w.Shutdown(shutdownCtx); werr != nil {
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = werr
			}
		}
		metrics.UpdateWriterWorkers(0)
	})
	return err
}
