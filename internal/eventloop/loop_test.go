package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, opts ...Option) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopConfinesConcurrentPosts(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	var final int
	require.NoError(t, l.Do(context.Background(), func(context.Context) error {
		final = counter
		return nil
	}))
	assert.Equal(t, 50, final)
}

func TestLoopDoReturnsErrors(t *testing.T) {
	l, _ := startLoop(t)
	sentinel := errors.New("unknown layer")

	err := l.Do(context.Background(), func(context.Context) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	err = l.Do(context.Background(), func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.NoError(t, l.Post(func() { panic("posted") }))
	assert.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }), "loop survives a panicking task")
}

func TestLoopDoHonoursContext(t *testing.T) {
	l, _ := startLoop(t)
	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopStop(t *testing.T) {
	l := New()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()

	require.NoError(t, l.Do(context.Background(), func(context.Context) error {
		l.Stop()
		return nil
	}))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func(context.Context) error { return nil }), ErrStopped)
	l.Stop()
}

func TestLoopRunTwice(t *testing.T) {
	l, _ := startLoop(t)
	require.NoError(t, l.Do(context.Background(), func(context.Context) error { return nil }))
	assert.ErrorIs(t, l.Run(context.Background()), ErrRunning)
}
