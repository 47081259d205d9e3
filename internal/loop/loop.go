// Package loop runs callbacks one at a time on a single goroutine, with
// blocking work pushed to a worker pool and resumed back on the loop.
package loop

import (
	"context"
	"errors"
	"sync"

	"openorders/internal/utils"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultWorkers = 4
)

var (
	ErrImproperTask = errors.New("improper task type")
)

// Executor serialises callbacks (Post) and runs blocking work elsewhere (Go).
type Executor interface {
	Post(fn func())
	Go(fn func(ctx context.Context))
}

// Await runs work off the loop and resumes with then on the loop.
func Await[T any](ex Executor, work func(ctx context.Context) (T, error), then func(T, error)) {
	ex.Go(func(ctx context.Context) {
		v, err := work(ctx)
		ex.Post(func() { then(v, err) })
	})
}

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	pool    *utils.WorkerPool
	stopped chan struct{}
}

func New(workers int) *Loop {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Loop{
		wake:    make(chan struct{}, 1),
		pool:    utils.NewWorkerPool(workers),
		stopped: make(chan struct{}),
	}
}

// Post queues fn to run on the loop without blocking. Callbacks posted
// after the loop has stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.stopped:
		log.Debug().Msg("loop stopped, dropping callback")
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain takes every queued callback in posting order.
func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

// Go runs fn on the worker pool.
func (l *Loop) Go(fn func(ctx context.Context)) {
	if err := l.pool.AddTask(fn); err != nil {
		log.Debug().Err(err).Msg("dropping async task")
	}
}

// Run processes callbacks until ctx is cancelled. A Loop runs only once.
func (l *Loop) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	// Start the worker pool.
	l.pool.Setup(t, func(_ *tomb.Tomb, task any) error {
		fn, ok := task.(func(context.Context))
		if !ok {
			return ErrImproperTask
		}
		fn(ctx)
		return nil
	})

	// Release a loop callback blocked on a full pool.
	t.Go(func() error {
		<-t.Dying()
		l.pool.Close()
		return nil
	})

	// Start the callback loop.
	t.Go(func() error {
		defer close(l.stopped)
		for {
			select {
			case <-t.Dying():
				return nil
			case <-l.wake:
				for _, fn := range l.drain() {
					fn()
				}
			}
		}
	})

	log.Debug().Msg("loop running")
	err := t.Wait()
	l.pool.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
