package stats

import (
	"testing"

	"github.com/moosefs/chunkserver/chunkid"
)

func TestIDBatchPushCountDrain(t *testing.T) {
	b := newIDBatch(2)
	b.Push(chunkid.ID(1))
	b.Push(chunkid.ID(2))
	b.Push(chunkid.ID(3))

	if n := b.Count(0); n != 2 {
		t.Fatalf("Count(0) = %d, want 2 (batch size cap)", n)
	}
	if n := b.Count(1); n != 1 {
		t.Fatalf("Count(1) = %d, want 1", n)
	}

	got := b.Drain(0)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Drain(0) = %v, want [1 2]", got)
	}
	if n := b.Count(0); n != 1 {
		t.Fatalf("Count(0) after drain = %d, want 1", n)
	}
	rest := b.Drain(0)
	if len(rest) != 1 || rest[0] != 3 {
		t.Fatalf("Drain(0) = %v, want [3]", rest)
	}
}

func TestIDBatchUncappedForDamaged(t *testing.T) {
	b := newIDBatch(0)
	for i := 0; i < 5; i++ {
		b.Push(chunkid.ID(i))
	}
	if n := b.Count(0); n != 5 {
		t.Fatalf("Count(0) = %d, want 5 (no batch size cap)", n)
	}
}

func TestVersionBatchMarksForRemoval(t *testing.T) {
	b := newVersionBatch(4096)
	b.Push(chunkid.ID(7), 3, false)
	b.Push(chunkid.ID(8), 3, true)

	got := b.Drain(0)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Version != 3 {
		t.Fatalf("got[0].Version = %#x, want 3", got[0].Version)
	}
	if got[1].Version != 3|MarkedForRemovalBit {
		t.Fatalf("got[1].Version = %#x, want 3|MarkedForRemovalBit", got[1].Version)
	}
}

func TestReportsAggregateCounters(t *testing.T) {
	r := NewReports()

	r.RecordError()
	r.RecordError()
	if r.ErrorCounter() != 2 {
		t.Fatalf("ErrorCounter() = %d, want 2", r.ErrorCounter())
	}

	r.SetSpaceChanged(true)
	r.SetSpaceRecalc(true)
	r.SetGlobalRebalanceOn(true)
	if !r.SpaceChanged() || !r.SpaceRecalc() || !r.GlobalRebalanceOn() {
		t.Fatal("expected all three aggregate flags to read back true")
	}
}

func TestReportsQueuesRouteToCorrectBatchSize(t *testing.T) {
	r := NewReports()
	r.Damaged.Push(chunkid.ID(1))
	r.Lost.Push(chunkid.ID(2))
	r.Nonexistent.Push(chunkid.ID(3))
	r.New.Push(chunkid.ID(4), 1, false)
	r.Changed.Push(chunkid.ID(5), 2, true)

	if r.Damaged.Count(0) != 1 {
		t.Fatal("expected one damaged entry")
	}
	if r.Lost.Count(0) != 1 {
		t.Fatal("expected one lost entry")
	}
	if r.Nonexistent.Count(0) != 1 {
		t.Fatal("expected one nonexistent entry")
	}
	if r.New.Count(0) != 1 {
		t.Fatal("expected one new-chunk entry")
	}
	if r.Changed.Count(0) != 1 {
		t.Fatal("expected one changed-chunk entry")
	}
}
