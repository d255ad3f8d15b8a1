// Package threadgroup provides a ThreadGroup primitive used by every
// background loop in the chunkserver (folder scan threads, the tester
// thread, both rebalancers, the delayed-ops thread) to support coordinated,
// bounded-time shutdown: §5's "Shutdown (term)" behavior.
package threadgroup

import (
	"errors"
	"sync"
)

// ErrStopped is returned by Add if the ThreadGroup has already been stopped.
var ErrStopped = errors.New("threadgroup: already stopped")

// ThreadGroup is a one-shot wait-group-with-cancellation. Every goroutine a
// package spawns calls Add before starting and Done when it exits; Stop
// closes a channel every such goroutine should select on and then blocks
// until they have all called Done.
type ThreadGroup struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopChan chan struct{}
	once     sync.Once
	after    []func()
}

func (tg *ThreadGroup) init() {
	if tg.stopChan == nil {
		tg.stopChan = make(chan struct{})
	}
}

// Add registers a new goroutine with the group. It returns ErrStopped if the
// group has already begun stopping.
func (tg *ThreadGroup) Add() error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.init()
	select {
	case <-tg.stopChan:
		return ErrStopped
	default:
	}
	tg.wg.Add(1)
	return nil
}

// Done marks a previously Add'ed goroutine as finished.
func (tg *ThreadGroup) Done() {
	tg.wg.Done()
}

// StopChan returns a channel that closes when Stop is called. Long-running
// loops select on this channel at every suspension point named in §5.
func (tg *ThreadGroup) StopChan() <-chan struct{} {
	tg.mu.Lock()
	tg.init()
	c := tg.stopChan
	tg.mu.Unlock()
	return c
}

// AfterStop registers a function to run after all goroutines have finished,
// in the order registered; used to close loggers and flush final state only
// once nothing else can touch them.
func (tg *ThreadGroup) AfterStop(f func()) {
	tg.mu.Lock()
	tg.after = append(tg.after, f)
	tg.mu.Unlock()
}

// Stop closes the stop channel and blocks until every Add'ed goroutine has
// called Done, then runs the AfterStop callbacks in registration order.
func (tg *ThreadGroup) Stop() error {
	tg.mu.Lock()
	tg.init()
	tg.mu.Unlock()
	tg.once.Do(func() { close(tg.stopChan) })
	tg.wg.Wait()
	tg.mu.Lock()
	after := tg.after
	tg.mu.Unlock()
	for _, f := range after {
		f()
	}
	return nil
}

// IsStopped reports whether Stop has been called.
func (tg *ThreadGroup) IsStopped() bool {
	tg.mu.Lock()
	tg.init()
	c := tg.stopChan
	tg.mu.Unlock()
	select {
	case <-c:
		return true
	default:
		return false
	}
}
