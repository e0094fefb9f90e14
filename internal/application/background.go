package application

import (
	"context"
	"sync"
)

// background tracks jobs that run off the owner lock. Close cancels them and waits.
type background struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	idle   *sync.Cond
	active int
	closed bool
}

func newBackground() *background {
	ctx, cancel := context.WithCancel(context.Background())
	b := &background{ctx: ctx, cancel: cancel}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Go starts job unless the tracker is closed.
func (b *background) Go(job func(ctx context.Context)) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.active++
	b.mu.Unlock()

	go func() {
		defer b.done()
		job(b.ctx)
	}()

	return true
}

func (b *background) done() {
	b.mu.Lock()
	b.active--
	if b.active == 0 {
		b.idle.Broadcast()
	}
	b.mu.Unlock()
}

// Wait blocks until no job is running. Jobs started by jobs are waited for too.
func (b *background) Wait() {
	b.mu.Lock()
	for b.active > 0 {
		b.idle.Wait()
	}
	b.mu.Unlock()
}

func (b *background) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.Wait()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.Wait()
}
