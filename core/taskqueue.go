package core

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of best-effort background work.  Its error is logged and
// never retried.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// QueueOptions sizes a TaskQueue.
type QueueOptions struct {
	Workers int           // default: runtime.NumCPU()
	Size    int           // buffered tasks before Submit starts dropping; default 256
	Timeout time.Duration // per-task deadline; 0 = none
}

// TaskQueue is a bounded worker pool for fire-and-forget work.  Submit never
// blocks: when the buffer is full the task is dropped and Submit returns false.
// It is safe for concurrent use.
type TaskQueue struct {
	opts    QueueOptions
	logger  Logger
	metrics MetricsCollector

	mu     sync.RWMutex
	closed bool
	tasks  chan Task
	wg     sync.WaitGroup
	once   sync.Once

	done    int64
	failed  int64
	dropped int64
}

// NewTaskQueue creates a queue.  Call Start before submitting and Stop when done.
func NewTaskQueue(opts QueueOptions) *TaskQueue {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	return &TaskQueue{
		opts:   opts,
		logger: NopLogger{},
		tasks:  make(chan Task, opts.Size),
	}
}

// SetLogger attaches a structured logger.
func (q *TaskQueue) SetLogger(l Logger) {
	if l != nil {
		q.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (q *TaskQueue) SetMetrics(m MetricsCollector) { q.metrics = m }

// Start launches the workers.  It is idempotent.
func (q *TaskQueue) Start() {
	q.once.Do(func() {
		for i := 0; i < q.opts.Workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Submit enqueues t without blocking.  It returns false when the queue is
// full or stopped; the task is then dropped.
func (q *TaskQueue) Submit(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(t, "closed")
		return false
	}
	select {
	case q.tasks <- t:
		return true
	default:
		q.drop(t, "full")
		return false
	}
}

// Stop refuses new tasks, runs the ones already queued and waits for the
// workers to exit.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.Start() // drain even if never started
	q.wg.Wait()
}

// Stats returns completed, failed and dropped task counts.
func (q *TaskQueue) Stats() (done, failed, dropped int64) {
	return atomic.LoadInt64(&q.done), atomic.LoadInt64(&q.failed), atomic.LoadInt64(&q.dropped)
}

// ── worker internals ──────────────────────────────────────────────────────────

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t Task) {
	ctx := context.Background()
	if q.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Error("task.panic", "task", t.Name, "panic", r)
		}
	}()

	start := time.Now()
	err := t.Run(ctx)
	if q.metrics != nil {
		q.metrics.RecordProcessingTime("task."+t.Name, time.Since(start))
	}
	if err != nil {
		atomic.AddInt64(&q.failed, 1)
		q.logger.Warn("task.failed", "task", t.Name, "error", err.Error())
		if q.metrics != nil {
			q.metrics.RecordError("task."+t.Name, "storage")
		}
		return
	}
	atomic.AddInt64(&q.done, 1)
}

func (q *TaskQueue) drop(t Task, why string) {
	atomic.AddInt64(&q.dropped, 1)
	q.logger.Warn("task.dropped", "task", t.Name, "reason", why)
	if q.metrics != nil {
		q.metrics.RecordEvent("task_dropped")
	}
}
