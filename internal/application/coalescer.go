package application

import "sync"

// coalescer runs at most one worker at a time. Signals that arrive while a
// pass is running collapse into a single follow-up pass.
type coalescer struct {
	run   func()
	spawn func(func()) bool

	mu      sync.Mutex
	pending bool
	running bool
	idle    *sync.Cond
}

func newCoalescer(run func(), spawn func(func()) bool) *coalescer {
	c := &coalescer{run: run, spawn: spawn}
	c.idle = sync.NewCond(&c.mu)
	return c
}

func (c *coalescer) Signal() {
	c.mu.Lock()
	c.pending = true
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	if !c.spawn(c.loop) {
		c.mu.Lock()
		c.running = false
		c.pending = false
		c.idle.Broadcast()
		c.mu.Unlock()
	}
}

func (c *coalescer) loop() {
	for {
		c.mu.Lock()
		if !c.pending {
			c.running = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()

		c.run()
	}
}

func (c *coalescer) waitIdle() {
	c.mu.Lock()
	for c.running {
		c.idle.Wait()
	}
	c.mu.Unlock()
}
