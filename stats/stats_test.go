package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHDDStatsTick verifies that Tick rotates the current window into the
// ring and accumulates it into the monotonic total, then resets current.
func TestHDDStatsTick(t *testing.T) {
	var h HDDStats
	h.Record(OpRead, 4096, 1000)
	h.Record(OpRead, 4096, 3000)
	h.Record(OpWrite, 8192, 500)

	cur := h.Current()
	if cur[OpRead].Bytes != 8192 || cur[OpRead].OpsCount != 2 {
		t.Fatalf("unexpected current read window: %+v", cur[OpRead])
	}
	if cur[OpRead].NsecMax != 3000 {
		t.Fatalf("expected max nsec 3000, got %d", cur[OpRead].NsecMax)
	}

	h.Tick()

	cur = h.Current()
	if cur[OpRead].OpsCount != 0 || cur[OpWrite].OpsCount != 0 {
		t.Fatal("current window should be zeroed after Tick")
	}
	mono := h.Monotonic()
	if mono[OpRead].Bytes != 8192 || mono[OpWrite].Bytes != 8192 {
		t.Fatalf("unexpected monotonic totals: %+v", mono)
	}

	ring := h.Ring()
	if len(ring) != 1 {
		t.Fatalf("expected 1 ring entry, got %d", len(ring))
	}
	if ring[0][OpRead].Bytes != 8192 {
		t.Fatalf("expected ring[0] read bytes 8192, got %d", ring[0][OpRead].Bytes)
	}
}

// TestHDDStatsRingWrap checks that the ring wraps after ringSize ticks and
// returns entries oldest-to-newest.
func TestHDDStatsRingWrap(t *testing.T) {
	var h HDDStats
	for i := 0; i < ringSize+3; i++ {
		h.Record(OpFsync, uint64(i), 0)
		h.Tick()
	}
	ring := h.Ring()
	if len(ring) != ringSize {
		t.Fatalf("expected full ring of %d, got %d", ringSize, len(ring))
	}
	// The oldest surviving entry corresponds to i == 3 (0,1,2 were overwritten).
	if ring[0][OpFsync].Bytes != 3 {
		t.Fatalf("expected oldest entry bytes 3, got %d", ring[0][OpFsync].Bytes)
	}
	if ring[ringSize-1][OpFsync].Bytes != uint64(ringSize+2) {
		t.Fatalf("expected newest entry bytes %d, got %d", ringSize+2, ring[ringSize-1][OpFsync].Bytes)
	}
}

// TestMetricsObserve exercises the Prometheus wiring against an isolated
// registry so tests never touch prometheus.DefaultRegisterer.
func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var h HDDStats

	m.Observe(&h, "/mnt/hdd1", OpWrite, 65536, 2_000_000)
	m.ObserveError("/mnt/hdd1")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected registered metric families")
	}
	cur := h.Current()
	if cur[OpWrite].Bytes != 65536 {
		t.Fatalf("expected underlying HDDStats to be updated, got %+v", cur[OpWrite])
	}
}
