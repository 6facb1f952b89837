package syncx

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCond_WaitTimeoutExpires(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)

	mu.Lock()
	start := time.Now()
	ok := c.WaitTimeout(20 * time.Millisecond)
	mu.Unlock()

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCond_Signal(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)
	ready := false

	done := make(chan bool)
	go func() {
		mu.Lock()
		defer mu.Unlock()
		for !ready {
			if !c.WaitTimeout(5 * time.Second) {
				done <- false
				return
			}
		}
		done <- true
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	ready = true
	mu.Unlock()
	c.Signal()

	assert.True(t, <-done)
}

func TestCond_Broadcast(t *testing.T) {
	var mu sync.Mutex
	c := NewCond(&mu)
	released := false
	var woke int32

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			for !released {
				c.Wait()
			}
			mu.Unlock()
			atomic.AddInt32(&woke, 1)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	released = true
	mu.Unlock()
	c.Broadcast()
	wg.Wait()

	assert.Equal(t, int32(4), atomic.LoadInt32(&woke))
}

func TestGate_Exclusive(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Acquire(time.Second))
	assert.True(t, g.Held())

	assert.False(t, g.Acquire(10*time.Millisecond))

	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.Acquire(10*time.Millisecond))
	g.Release()
}

func TestGate_HandOff(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Acquire(0))

	got := make(chan bool)
	go func() {
		got <- g.Acquire(5 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	g.Release()
	assert.True(t, <-got)
	assert.True(t, g.Held())
}

func TestGate_SerializesHolders(t *testing.T) {
	g := NewGate()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !g.Acquire(0) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			g.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}
