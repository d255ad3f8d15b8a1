package iostore

import "sync"

// OpenFileBudget is the process-wide open-file-descriptor limiter of §4.C:
// "Single process-wide counter guarded by its own mutex/condvar. BEFORE_OPEN
// waits when count >= limit; AFTER_CLOSE decrements and signals one waiter."
// Go's sync.Cond is the idiomatic analogue of the teacher's condvar-based
// waiters (Sia's ThreadGroup uses channels for shutdown fan-out, but a
// bounded resource count with many waiters maps directly onto sync.Cond).
type OpenFileBudget struct {
	mu    sync.Mutex
	cond  *sync.Cond
	limit int
	count int
}

// NewOpenFileBudget constructs a budget capped at limit concurrently open
// chunk file descriptors.
func NewOpenFileBudget(limit int) *OpenFileBudget {
	b := &OpenFileBudget{limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// BeforeOpen blocks until a slot is available, then reserves it.
func (b *OpenFileBudget) BeforeOpen() {
	b.mu.Lock()
	for b.count >= b.limit {
		b.cond.Wait()
	}
	b.count++
	b.mu.Unlock()
}

// AfterClose releases a slot and wakes one waiter.
func (b *OpenFileBudget) AfterClose() {
	b.mu.Lock()
	if b.count > 0 {
		b.count--
	}
	b.mu.Unlock()
	b.cond.Signal()
}

// InUse reports the current reservation count (for stats/diagnostics).
func (b *OpenFileBudget) InUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
