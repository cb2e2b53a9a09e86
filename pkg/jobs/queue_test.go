package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make([]string, 0, 2)
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		seen = append(seen, task.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, Config{Workers: 1, Logger: zap.NewNop()})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "a", Kind: "noop"}))
	require.NoError(t, q.Enqueue(Task{ID: "b", Kind: "noop"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task was not processed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{}, 1)

	q := NewQueue("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	}, Config{Workers: 1, MaxAttempts: 3, RetryDelay: time.Millisecond, Logger: zap.NewNop()})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "flaky", Kind: "noop"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, task Task) error { return nil }, Config{})
	err := q.Enqueue(Task{ID: "early"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}
