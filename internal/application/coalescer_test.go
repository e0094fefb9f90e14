package application

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goSpawn(wg *sync.WaitGroup) func(func()) bool {
	return func(job func()) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job()
		}()
		return true
	}
}

func TestCoalescerSignalsDuringPassCollapseIntoOneFollowUp(t *testing.T) {
	var passes atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	var wg sync.WaitGroup
	c := newCoalescer(func() {
		n := passes.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release
		}
	}, goSpawn(&wg))

	c.Signal()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}

	for i := 0; i < 5; i++ {
		c.Signal()
	}
	close(release)

	c.waitIdle()
	wg.Wait()

	assert.Equal(t, int32(2), passes.Load())
}

func TestCoalescerNeverRunsPassesConcurrently(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	c := newCoalescer(func() {
		current := inFlight.Add(1)
		for {
			seen := maxInFlight.Load()
			if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	}, goSpawn(&wg))

	var signals sync.WaitGroup
	for i := 0; i < 50; i++ {
		signals.Add(1)
		go func() {
			defer signals.Done()
			c.Signal()
		}()
	}
	signals.Wait()

	c.waitIdle()
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestCoalescerSignalAfterIdleStartsNewPass(t *testing.T) {
	var passes atomic.Int32
	var wg sync.WaitGroup
	c := newCoalescer(func() { passes.Add(1) }, goSpawn(&wg))

	c.Signal()
	c.waitIdle()
	c.Signal()
	c.waitIdle()
	wg.Wait()

	assert.Equal(t, int32(2), passes.Load())
}

func TestCoalescerRejectedSpawnLeavesItIdle(t *testing.T) {
	var passes atomic.Int32
	c := newCoalescer(func() { passes.Add(1) }, func(func()) bool { return false })

	c.Signal()
	c.waitIdle()

	require.Zero(t, passes.Load())
}
