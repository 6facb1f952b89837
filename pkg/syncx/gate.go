package syncx

import (
	"sync"
	"time"
)

// Gate admits one holder at a time. Acquire can give up after a timeout,
// which a plain sync.Mutex cannot.
type Gate struct {
	mu   sync.Mutex
	cond *Cond
	held bool
}

// NewGate returns an open gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = NewCond(&g.mu)
	return g
}

// Acquire waits up to timeout for the gate. A non-positive timeout waits
// forever.
func (g *Gate) Acquire(timeout time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for g.held {
		if timeout <= 0 {
			g.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 || !g.cond.WaitTimeout(remaining) {
			if g.held {
				return false
			}
		}
	}
	g.held = true
	return true
}

// Release reopens the gate and wakes one waiter.
func (g *Gate) Release() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
	g.cond.Signal()
}

// Held reports whether someone holds the gate.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
