package utils

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(4)

	var (
		mu   sync.Mutex
		seen []int
		wg   sync.WaitGroup
	)
	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, task.(int))
		return nil
	})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, pool.AddTask(i))
	}
	wg.Wait()

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestWorkerPool_ErrorKillsTomb(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(1)
	boom := errors.New("boom")
	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error {
		return boom
	})

	require.NoError(t, pool.AddTask("task"))

	select {
	case <-tb.Dead():
	case <-time.After(time.Second):
		t.Fatal("pool did not stop")
	}
	assert.ErrorIs(t, tb.Err(), boom)
}

func TestWorkerPool_Close(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(2)
	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error { return nil })

	pool.Close()
	pool.Close()

	assert.ErrorIs(t, pool.AddTask("late"), ErrPoolClosed)
	assert.NoError(t, tb.Wait())
}
