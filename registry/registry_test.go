package registry

import (
	"testing"
	"time"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/status"
)

func TestGetNewOrExistingCreatesLocked(t *testing.T) {
	r := New()
	c, err := r.Get(chunkid.ID(1), ModeNewOrExisting)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.state != StateLocked {
		t.Fatalf("state = %v, want StateLocked", c.state)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
}

func TestGetExistingOnlyMissingIsErrNoChunk(t *testing.T) {
	r := New()
	_, err := r.Get(chunkid.ID(99), ModeExistingOnly)
	if err != status.ErrNoChunk {
		t.Fatalf("err = %v, want ErrNoChunk", err)
	}
}

func TestGetNewOnlyExistingIsErrChunkExists(t *testing.T) {
	r := New()
	c, err := r.Get(chunkid.ID(1), ModeNewOnly)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.Release(c)

	_, err = r.Get(chunkid.ID(1), ModeNewOnly)
	if err != status.ErrChunkExists {
		t.Fatalf("err = %v, want ErrChunkExists", err)
	}
}

func TestReleaseReturnsToAvailAndWakesWaiter(t *testing.T) {
	r := New()
	c, err := r.Get(chunkid.ID(1), ModeNewOrExisting)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(chunkid.ID(1), ModeExistingOnly)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.Release(c)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter Get: %v", err)
		}
	case <-time.After(LockedChunkWait):
		t.Fatal("waiter never woke after Release")
	}
}

func TestDeleteWakesWaitersWithErrNoChunk(t *testing.T) {
	r := New()
	c, err := r.Get(chunkid.ID(1), ModeNewOrExisting)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(chunkid.ID(1), ModeExistingOnly)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.Delete(c)

	select {
	case err := <-done:
		if err != status.ErrNoChunk {
			t.Fatalf("waiter err = %v, want ErrNoChunk", err)
		}
	case <-time.After(LockedChunkWait):
		t.Fatal("waiter never woke after Delete")
	}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after Delete with no remaining waiters", r.Count())
	}
}

func TestDeleteThenNewOrExistingRecreates(t *testing.T) {
	r := New()
	c, _ := r.Get(chunkid.ID(1), ModeNewOrExisting)
	r.Delete(c)

	c2, err := r.Get(chunkid.ID(1), ModeNewOrExisting)
	if err != nil {
		t.Fatalf("Get after Delete: %v", err)
	}
	if c2.state != StateLocked {
		t.Fatalf("state = %v, want StateLocked", c2.state)
	}
}

func TestTryFindLockedDoesNotBlock(t *testing.T) {
	r := New()
	c, _ := r.Get(chunkid.ID(1), ModeNewOrExisting)

	got, res := r.TryFind(chunkid.ID(1))
	if res != TryFindLocked || got != nil {
		t.Fatalf("TryFind() = (%v, %v), want (nil, TryFindLocked)", got, res)
	}
	r.Release(c)

	got, res = r.TryFind(chunkid.ID(1))
	if res != TryFindOK || got == nil {
		t.Fatalf("TryFind() = (%v, %v), want (non-nil, TryFindOK)", got, res)
	}
}

func TestTryFindNotFound(t *testing.T) {
	r := New()
	_, res := r.TryFind(chunkid.ID(42))
	if res != TryFindNotFound {
		t.Fatalf("TryFind() = %v, want TryFindNotFound", res)
	}
}

func TestSnapshotExcludesDeletedButIncludesLocked(t *testing.T) {
	r := New()
	a, _ := r.Get(chunkid.ID(1), ModeNewOrExisting)
	r.Release(a)
	b, _ := r.Get(chunkid.ID(2), ModeNewOrExisting)
	r.Delete(b)
	cLocked, _ := r.Get(chunkid.ID(3), ModeNewOrExisting)

	ids := r.Snapshot()
	if len(ids) != 2 || ids[0] != chunkid.ID(1) || ids[1] != chunkid.ID(3) {
		t.Fatalf("Snapshot() = %v, want [1 3]", ids)
	}
	r.Release(cLocked)
}

func TestPeekReportsExistenceWithoutLocking(t *testing.T) {
	r := New()
	c, _ := r.Get(chunkid.ID(1), ModeNewOrExisting)
	r.Release(c)

	got, ok := r.Peek(chunkid.ID(1))
	if !ok || got != c {
		t.Fatalf("Peek() = (%v, %v), want (c, true)", got, ok)
	}

	_, ok = r.Peek(chunkid.ID(404))
	if ok {
		t.Fatal("Peek() on missing id returned ok=true")
	}
}
