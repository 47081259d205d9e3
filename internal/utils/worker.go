package utils

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
)

type WorkerFunction = func(t *tomb.Tomb, task any) error
type WorkerPool struct {
	n     int           // number of workers
	tasks chan any      // queued tasks
	quit  chan struct{} // closed by Close
	once  sync.Once
}

func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, TASK_CHAN_SIZE),
		quit:  make(chan struct{}),
	}
}

// Setup starts the workers under t. Workers exit when t is dying, the pool
// is closed, or work returns an error.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for id := 0; id < pool.n; id++ {
		id := id
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask queues a task, blocking while the queue is full.
func (pool *WorkerPool) AddTask(task any) error {
	select {
	case <-pool.quit:
		return ErrPoolClosed
	default:
	}
	select {
	case <-pool.quit:
		return ErrPoolClosed
	case pool.tasks <- task:
		return nil
	}
}

// Close stops accepting tasks and lets idle workers exit.
func (pool *WorkerPool) Close() {
	pool.once.Do(func() { close(pool.quit) })
}

// Workers wait on tasks in the task pool and action them.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case <-pool.quit:
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
