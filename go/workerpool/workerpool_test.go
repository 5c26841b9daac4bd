package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils/unittest"
)

func TestWorkerPool(t *testing.T) {
	unittest.SmallTest(t)

	// Basic functionality.
	p := New(3)
	count := 0
	mtx := sync.Mutex{}
	for i := 0; i < 5; i++ {
		p.Go(func() {
			mtx.Lock()
			defer mtx.Unlock()
			count++
		})
	}
	p.Wait()
	assert.Equal(t, 5, count)

	// After Wait(), p.Go(), p.Fork() and p.Wait() should panic.
	assert.Panics(t, func() {
		p.Go(func() {
			return
		})
	})
	assert.Panics(t, func() {
		p.Fork(func() {})
	})
	assert.Panics(t, func() {
		p.Wait()
	})
}

func TestNew_NonPositiveSize_UsesOneWorker(t *testing.T) {
	unittest.SmallTest(t)
	p := New(0)
	defer p.Wait()
	assert.Equal(t, 1, p.Size())
}

func TestFork_Join_RunsExactlyOnce(t *testing.T) {
	unittest.SmallTest(t)
	p := New(2)
	defer p.Wait()

	var ran atomic.Int32
	task, ok := p.Fork(func() { ran.Add(1) })
	require.True(t, ok)
	if !task.Reclaim() {
		task.Join()
	}
	assert.Equal(t, int32(1), ran.Load())
	assert.False(t, task.Cancelled())

	// Once finished, neither Reclaim nor Cancel has any effect.
	assert.False(t, task.Reclaim())
	assert.False(t, task.Cancel())
	assert.Equal(t, int32(1), ran.Load())
}

func TestFork_QueueFull_ReturnsFalse(t *testing.T) {
	unittest.SmallTest(t)
	p := New(1)
	defer p.Wait()

	// Occupy the only worker so that forked tasks stay queued.
	started := make(chan struct{})
	release := make(chan struct{})
	p.Go(func() {
		close(started)
		<-release
	})
	<-started

	var ran atomic.Int32
	queued, ok := p.Fork(func() { ran.Add(1) })
	require.True(t, ok)
	assert.False(t, p.HasCapacity())

	_, ok = p.Fork(func() { ran.Add(1) })
	assert.False(t, ok)

	// The queued task has not been picked up, so we can take it back.
	assert.True(t, queued.Reclaim())
	assert.Equal(t, int32(1), ran.Load())
	close(release)
}

func TestCancel_PendingTask_NeverRuns(t *testing.T) {
	unittest.SmallTest(t)
	p := New(1)

	started := make(chan struct{})
	release := make(chan struct{})
	p.Go(func() {
		close(started)
		<-release
	})
	<-started

	var ran atomic.Int32
	task, ok := p.Fork(func() { ran.Add(1) })
	require.True(t, ok)
	assert.True(t, task.Cancel())
	assert.True(t, task.Cancelled())
	assert.False(t, task.Reclaim())
	task.Join()

	close(release)
	p.Wait()
	assert.Equal(t, int32(0), ran.Load())
}

func TestFork_NestedSplitting_SumsRange(t *testing.T) {
	unittest.MediumTest(t)
	p := New(4)
	defer p.Wait()

	var sum atomic.Int64
	var compute func(lo, hi int)
	compute = func(lo, hi int) {
		var forked []*Task
		for hi-lo > 8 && p.HasCapacity() {
			mid := lo + (hi-lo)/2
			l, h := mid, hi
			task, ok := p.Fork(func() { compute(l, h) })
			if !ok {
				break
			}
			forked = append(forked, task)
			hi = mid
		}
		for i := lo; i < hi; i++ {
			sum.Add(int64(i))
		}
		for i := len(forked) - 1; i >= 0; i-- {
			if !forked[i].Reclaim() {
				forked[i].Join()
			}
		}
	}
	compute(0, 10000)
	assert.Equal(t, int64(10000*9999/2), sum.Load())
}
