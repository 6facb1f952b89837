// Package syncx provides the locking primitives the embedding layer uses to
// keep one operation per container handle: a condition variable with a
// timed wait and a gate built on it.
package syncx

import (
	"sync"
	"time"
)

// Locker is the mutex side of a condition variable.
type Locker = sync.Locker

// Cond is a condition variable whose waits can time out. Its zero value is
// not usable; create one with NewCond.
type Cond struct {
	L Locker

	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCond returns a condition variable bound to l.
func NewCond(l Locker) *Cond {
	return &Cond{L: l}
}

func (c *Cond) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

func (c *Cond) remove(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Wait unlocks c.L, blocks until signalled and locks c.L again.
func (c *Cond) Wait() {
	ch := c.enqueue()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout is Wait bounded by d. It returns false when d elapsed first.
// c.L is held again on return either way.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	ch := c.enqueue()
	c.L.Unlock()
	defer c.L.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		if c.remove(ch) {
			return false
		}
		// signalled between the timer firing and removal
		<-ch
		return true
	}
}

// Signal wakes one waiter, if any.
func (c *Cond) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	close(c.waiters[0])
	c.waiters = c.waiters[1:]
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}
