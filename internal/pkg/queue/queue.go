package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrClosed 队列已关闭。
var ErrClosed = errors.New("queue closed")

// Job 表示一个可执行的异步任务。
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats 队列统计信息快照。
type Stats struct {
	Submitted int64 // 入队任务数
	Succeeded int64 // 成功任务数
	Failed    int64 // 失败或 panic 的任务数
	Dropped   int64 // 队列满或已关闭时被拒绝的任务数
}

// Queue 是带固定 worker 池的内存任务队列。
//
// 用于处理请求之外的副作用（例如发送邮件），任务失败只记录日志。
type Queue struct {
	logger  *slog.Logger
	workers int
	jobs    chan Job

	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started atomic.Bool

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewQueue 创建任务队列，workers 与 capacity 至少为 1。
func NewQueue(logger *slog.Logger, workers int, capacity int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		logger:  logger,
		workers: workers,
		jobs:    make(chan Job, capacity),
	}
}

// Start 启动 worker 池，重复调用无效。ctx 会传给每个任务。
func (q *Queue) Start(ctx context.Context) {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.execute(ctx, job, id)
	}
}

func (q *Queue) execute(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("job panic recovered",
				slog.String("job", job.Name),
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if err := job.Run(ctx); err != nil {
		q.failed.Add(1)
		q.logger.Warn("job failed",
			slog.String("job", job.Name),
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
		return
	}
	q.succeeded.Add(1)
}

// Submit 非阻塞入队。队列已满或已关闭时返回 false。
func (q *Queue) Submit(job Job) bool {
	if job.Run == nil {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		q.logger.Warn("queue is closed, reject job", slog.String("job", job.Name))
		return false
	}

	select {
	case q.jobs <- job:
		q.submitted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		q.logger.Warn("queue full, drop job",
			slog.String("job", job.Name),
			slog.Int("capacity", cap(q.jobs)))
		return false
	}
}

// Shutdown 停止接收新任务并等待已入队的任务执行完，ctx 到期时返回 ctx.Err()。
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.logger.Error("queue shutdown timeout", slog.Int("pending", len(q.jobs)))
		return ctx.Err()
	}
}

// Stats 返回统计快照。
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}
