package notify

import (
	"context"
	"errors"
	"time"

	"todolist/internal/pkg/queue"
)

// ErrQueueFull 后台队列已满或已关闭，通知被丢弃。
var ErrQueueFull = errors.New("notify queue full")

// AsyncNotifier 将通知放入后台队列发送，调用方不等待 SMTP。
type AsyncNotifier struct {
	next    Notifier
	queue   *queue.Queue
	timeout time.Duration
}

// NewAsyncNotifier 包装 next。timeout 限制单次发送耗时，<=0 时使用 30s。
func NewAsyncNotifier(next Notifier, q *queue.Queue, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncNotifier{next: next, queue: q, timeout: timeout}
}

// SendWelcome 入队后立即返回。请求的 ctx 不会传给后台任务。
func (a *AsyncNotifier) SendWelcome(_ context.Context, toEmail string) error {
	ok := a.queue.Submit(queue.Job{
		Name: "welcome_email",
		Run: func(ctx context.Context) error {
			sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			return a.next.SendWelcome(sendCtx, toEmail)
		},
	})
	if !ok {
		return ErrQueueFull
	}
	return nil
}
