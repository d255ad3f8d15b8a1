// Package stats implements the per-disk operation counters of §4.J: a
// current accumulation window, a 24x60 ring of one-minute snapshots rotated
// by Tick, a running monotonic total, and Prometheus gauges/counters mirroring
// the whole thing for external scraping. Grounded on the teacher's
// storageFolder atomic counters (Sia modules/host/contractmanager/
// storagefolder.go), generalized from a handful of named fields into the
// OpClass-indexed structure the specification calls for.
package stats

import (
	"sync"
)

// OpClass distinguishes the operation kinds tracked per §4.J.
type OpClass int

const (
	OpRead OpClass = iota
	OpWrite
	OpFsync
	opClassCount
)

func (k OpClass) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFsync:
		return "fsync"
	default:
		return "unknown"
	}
}

// ringSize is the 24x60 one-minute-slot ring (§4.J: "rotated once per
// minute by diskinfo_movestats").
const ringSize = 24 * 60

// opStat is one operation class's accumulated counters over a window.
type opStat struct {
	Bytes    uint64
	NsecSum  uint64
	NsecMax  uint64
	OpsCount uint64
}

func (o *opStat) add(bytes uint64, nsec uint64) {
	o.Bytes += bytes
	o.NsecSum += nsec
	if nsec > o.NsecMax {
		o.NsecMax = nsec
	}
	o.OpsCount++
}

func (o *opStat) merge(other opStat) {
	o.Bytes += other.Bytes
	o.NsecSum += other.NsecSum
	o.OpsCount += other.OpsCount
	if other.NsecMax > o.NsecMax {
		o.NsecMax = other.NsecMax
	}
}

// Window is a snapshot of all op classes over one accumulation period.
type Window [opClassCount]opStat

// HDDStats is one folder's (or the global) live counters: the window
// currently being accumulated, the 24x60 ring of past windows, and the
// all-time monotonic total (§3: "cstat: hddstats, monotonic: hddstats,
// stats[24*60] ring, statspos").
type HDDStats struct {
	mu        sync.Mutex
	current   Window
	ring      [ringSize]Window
	pos       int
	filled    bool
	monotonic Window
}

// Record accounts one completed operation of the given class.
func (h *HDDStats) Record(class OpClass, bytes uint64, nsec uint64) {
	h.mu.Lock()
	h.current[class].add(bytes, nsec)
	h.mu.Unlock()
}

// Tick rotates the current accumulation window into the ring at the current
// position, merges it into the monotonic total, and zeroes the window for
// the next period (§4.J "diskinfo_movestats": "copy current window into the
// ring at statspos, accumulate into monotonic total, zero current").
func (h *HDDStats) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring[h.pos] = h.current
	for c := OpClass(0); c < opClassCount; c++ {
		h.monotonic[c].merge(h.current[c])
	}
	h.current = Window{}
	h.pos++
	if h.pos >= ringSize {
		h.pos = 0
		h.filled = true
	}
}

// Current returns a copy of the in-progress window.
func (h *HDDStats) Current() Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Monotonic returns a copy of the all-time total.
func (h *HDDStats) Monotonic() Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.monotonic
}

// Ring returns the ring entries in oldest-to-newest order. If the ring has
// not yet wrapped, only the filled prefix is returned.
func (h *HDDStats) Ring() []Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.filled {
		out := make([]Window, h.pos)
		copy(out, h.ring[:h.pos])
		return out
	}
	out := make([]Window, ringSize)
	copy(out, h.ring[h.pos:])
	copy(out[ringSize-h.pos:], h.ring[:h.pos])
	return out
}
