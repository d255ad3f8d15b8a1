// Package delayed implements the §4.I delayed-ops thread: a 100ms-tick
// background sweep that lazily fsyncs, evicts cached blocks, flushes CRC
// tables, and finally closes file descriptors some time after the last
// hdd_io_end freed the chunk - rather than doing any of that synchronously
// on the hot read/write path. Grounded on the teacher's periodic
// maintenance-loop shape (persist/sync.go's ticker-driven background
// flush), applied to per-chunk descriptor/cache eviction instead of WAL
// sync.
package delayed

import (
	"log"
	"sync"
	"time"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/iostore"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/threadgroup"
)

// tick is the §4.I sweep period.
const tick = 100 * time.Millisecond

// Config bundles the collaborators and policy knobs of one delayed-ops
// thread.
type Config struct {
	Registry           *registry.Registry
	Budget             *iostore.OpenFileBudget
	DoFsyncBeforeClose bool
	Now                func() int64 // UnixNano; defaults to time.Now().UnixNano(), matching iostore's eviction deadlines
	Logger             *log.Logger
}

// Runner is the background thread merging newly-registered chunks into its
// working set (dophashtab) and sweeping them once a tick.
type Runner struct {
	cfg Config

	mu      sync.Mutex
	pending []*registry.Chunk // newdopchunks, merged under mu on each tick
	active  map[chunkid.ID]*registry.Chunk
}

// New returns a Runner ready to accept Register calls and be driven by Run.
func New(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		active: make(map[chunkid.ID]*registry.Chunk),
	}
}

func (r *Runner) now() int64 {
	if r.cfg.Now != nil {
		return r.cfg.Now()
	}
	return time.Now().UnixNano()
}

// Register enqueues c for delayed-ops tracking, called by hdd_io_begin the
// first time a chunk opens a descriptor (§4.I "new ones buffered via
// newdopchunks").
func (r *Runner) Register(c *registry.Chunk) {
	r.mu.Lock()
	r.pending = append(r.pending, c)
	r.mu.Unlock()
}

// Run drives the 100ms sweep until tg is stopped.
func (r *Runner) Run(tg *threadgroup.ThreadGroup) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-tg.StopChan():
			return nil
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep merges newdopchunks into dophashtab, then applies the four
// eviction stages of §4.I to every tracked chunk.
func (r *Runner) sweep() {
	r.mu.Lock()
	for _, c := range r.pending {
		r.active[c.ChunkID] = c
	}
	r.pending = nil
	snapshot := make([]*registry.Chunk, 0, len(r.active))
	for _, c := range r.active {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	now := r.now()
	for _, c := range snapshot {
		r.step(c, now)
	}
}

// step acquires c through the registry (so it never races an in-flight
// read/write/op holding it LOCKED), applies one chunk's eviction ladder,
// and, once every resource it held has been freed, drops it from the
// tracked set. A chunk found LOCKED or already gone is left for the next
// tick (or dropped, if gone).
func (r *Runner) step(c *registry.Chunk, now int64) {
	locked, result := r.cfg.Registry.TryFind(c.ChunkID)
	if result == registry.TryFindNotFound {
		r.mu.Lock()
		delete(r.active, c.ChunkID)
		r.mu.Unlock()
		return
	}
	if result == registry.TryFindLocked {
		return
	}
	defer r.cfg.Registry.Release(locked)
	c = locked

	if c.FsyncNeeded && r.cfg.DoFsyncBeforeClose && c.File != nil {
		c.File.Sync()
		c.FsyncNeeded = false
	}

	if c.BlockTo != 0 && c.BlockTo < now {
		c.Block = nil
		c.BlockNo = 0xFFFF
		c.BlockTo = 0
	}

	if c.OpenTo != 0 && c.OpenTo < now {
		if c.CRCChanged && c.File != nil {
			if err := iostore.FlushCRC(c); err != nil && r.cfg.Logger != nil {
				r.cfg.Logger.Printf("delayed: flushing CRC table for chunk %x failed: %v", uint64(c.ChunkID), err)
			}
		}
		if c.File != nil {
			if fi, err := c.File.Stat(); err == nil {
				c.DiskUsage = uint32(fi.Size())
			}
			c.File.Close()
			c.File = nil
			if r.cfg.Budget != nil {
				r.cfg.Budget.AfterClose()
			}
		}
		c.OpenTo = 0
	}

	if c.CRCTo != 0 && c.CRCTo < now {
		if c.CRCChanged && r.cfg.Logger != nil {
			r.cfg.Logger.Printf("delayed: chunk %x still has an unflushed CRC table at crcto eviction", uint64(c.ChunkID))
		}
		c.CRC = nil
		c.CRCTo = 0
	}

	if c.File == nil && c.CRC == nil && c.Block == nil {
		r.mu.Lock()
		delete(r.active, c.ChunkID)
		r.mu.Unlock()
	}
}

// Tracked reports how many chunks are currently held by the runner, for
// tests and diagnostics.
func (r *Runner) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) + len(r.pending)
}
