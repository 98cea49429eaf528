package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_SerialRunsInline(t *testing.T) {
	p := NewWorkerPool(1)
	var order []int

	err := p.Run(context.Background(), 5, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "nthreads=1 must run tasks in submission order on the caller goroutine")
}

func TestWorkerPool_ConcurrentCompletesAll(t *testing.T) {
	p := NewWorkerPool(4)
	var count int64

	err := p.Run(context.Background(), 100, func(_ context.Context, _ int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(100), count)
}

func TestWorkerPool_PropagatesFirstError(t *testing.T) {
	p := NewWorkerPool(4)
	boom := errors.New("boom")

	err := p.Run(context.Background(), 20, func(_ context.Context, i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestWorkerPool_ZeroTasksIsNoop(t *testing.T) {
	p := NewWorkerPool(4)

	err := p.Run(context.Background(), 0, func(context.Context, int) error {
		t.Fatal("should not be called")
		return nil
	})

	require.NoError(t, err)
}

func TestNewWorkerPool_ClampsBelowOne(t *testing.T) {
	p := NewWorkerPool(0)
	assert.Equal(t, 1, p.NThreads())

	p = NewWorkerPool(-3)
	assert.Equal(t, 1, p.NThreads())
}
