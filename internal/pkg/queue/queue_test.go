package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"todolist/internal/pkg/logger"
)

func TestQueue_RunsSubmittedJobs(t *testing.T) {
	q := NewQueue(logger.Discard(), 3, 10)
	q.Start(context.Background())

	var completed atomic.Int32
	for i := 0; i < 5; i++ {
		ok := q.Submit(Job{Name: "count", Run: func(ctx context.Context) error {
			completed.Add(1)
			return nil
		}})
		if !ok {
			t.Fatalf("failed to submit job %d", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if completed.Load() != 5 {
		t.Fatalf("expected 5 completed jobs, got %d", completed.Load())
	}
	stats := q.Stats()
	if stats.Submitted != 5 || stats.Succeeded != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestQueue_FailuresAndPanicsAreCounted(t *testing.T) {
	q := NewQueue(logger.Discard(), 1, 5)
	q.Start(context.Background())

	q.Submit(Job{Name: "fail", Run: func(ctx context.Context) error { return errors.New("smtp down") }})
	q.Submit(Job{Name: "panic", Run: func(ctx context.Context) error { panic("boom") }})
	q.Submit(Job{Name: "ok", Run: func(ctx context.Context) error { return nil }})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	stats := q.Stats()
	if stats.Failed != 2 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(logger.Discard(), 1, 1)
	// 不启动 worker，第二个任务必然被丢弃
	if !q.Submit(Job{Name: "a", Run: func(ctx context.Context) error { return nil }}) {
		t.Fatalf("first submit should succeed")
	}
	if q.Submit(Job{Name: "b", Run: func(ctx context.Context) error { return nil }}) {
		t.Fatalf("second submit should be dropped")
	}
	if q.Stats().Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Stats().Dropped)
	}
}

func TestQueue_RejectsAfterShutdown(t *testing.T) {
	q := NewQueue(logger.Discard(), 1, 1)
	q.Start(context.Background())
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if q.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }}) {
		t.Fatalf("submit after shutdown should fail")
	}
	if err := q.Shutdown(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_ShutdownTimeout(t *testing.T) {
	q := NewQueue(logger.Discard(), 1, 1)
	q.Start(context.Background())

	release := make(chan struct{})
	defer close(release)
	q.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-release
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
