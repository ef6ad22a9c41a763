// Package eventloop confines work to a single goroutine.
//
// The layer collection and every association model built on it are not safe
// for concurrent use. The daemon owns them from one Loop; watcher and HTTP
// goroutines hand work to it with Post or Do.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrStopped = errors.New("event loop stopped")
	ErrRunning = errors.New("event loop already running")
)

const defaultQueueSize = 64

// Loop executes posted functions one at a time, in posting order.
type Loop struct {
	tasks    chan func()
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	running  atomic.Bool
	logger   zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets how many tasks may wait before Post blocks.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.tasks = make(chan func(), n)
		}
	}
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  make(chan func(), defaultQueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "eventloop").Logger()
	return l
}

// Post queues fn. It blocks while the queue is full and fails once the loop
// is stopped.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stop:
		return ErrStopped
	}
}

// Do runs fn on the loop and waits for its result. A panic in fn is returned
// as an error. If ctx ends first, Do returns ctx.Err() and fn may still run.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	err := l.Post(func() {
		result <- l.call(ctx, fn)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Run executes tasks until ctx is done or Stop is called. Tasks still queued
// at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(l.done)

	l.logger.Debug().Msg("Event loop started")
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

// Stop ends Run. It is safe to call from any goroutine, including the loop's
// own, and more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Recovered panic in event loop task")
		}
	}()
	fn()
}

func (l *Loop) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event loop task panicked: %v", r)
		}
	}()
	return fn(ctx)
}
