// Package wfr implements the per-folder wait-for-removal queue of §4.H: a
// chunk-file duplicate discovered during a folder scan is not unlinked
// immediately but parked here, so an operator has a recovery window
// (HDDKeepDuplicatesHours) before the loser file is actually deleted.
// Grounded on the teacher's periodic-maintenance-loop shape
// (contractmanager's background consistency checks) applied to a deferred
// deletion queue instead of a consistency sweep.
package wfr

import (
	"os"
	"sync"
	"time"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/threadgroup"
)

// DefaultKeepDuplicates is HDD_KEEP_DUPLICATES_HOURS's default (§4.H).
const DefaultKeepDuplicates = 168 * time.Hour

// currentBlock bounds how many files wfr_check unlinks per folder per pass
// (WFRCURRENTBLOCK), so a large backlog doesn't stall the check loop.
const currentBlock = 256

// Entry is one duplicate chunk-file awaiting deletion.
type Entry struct {
	ChunkID chunkid.ID
	Version uint32
	PathID  uint16
	Owner   uint16 // folder id
	path    string
	queued  time.Time
}

// Queue is a single folder's WFR list, kept as a slice in enqueue order.
// There is no process-wide lookup hash across folders; Remove scans this
// folder's slice linearly.
type Queue struct {
	mu      sync.Mutex
	folder  uint16
	entries []Entry
	last    time.Time
	lastLog time.Time
}

// New returns an empty WFR queue for the given folder id.
func New(folderID uint16) *Queue {
	return &Queue{folder: folderID}
}

// Enqueue appends a duplicate chunk-file discovered on scan. path is the
// on-disk file to be unlinked once the keep window elapses.
func (q *Queue) Enqueue(id chunkid.ID, version uint32, pathID uint16, path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, Entry{
		ChunkID: id,
		Version: version,
		PathID:  pathID,
		Owner:   q.folder,
		path:    path,
		queued:  time.Now(),
	})
	if q.last.IsZero() {
		q.last = time.Now()
	}
}

// Remove drops and unlinks a specific entry immediately, bypassing the keep
// window. Used when a chunk_delete op (§4.D) targets an id/version that
// still has a stray WFR entry, so the two don't race to unlink the same
// path.
func (q *Queue) Remove(id chunkid.ID, version uint32, pathID uint16) {
	q.mu.Lock()
	var path string
	found := false
	var remaining []Entry
	for _, e := range q.entries {
		if !found && e.ChunkID == id && e.Version == version && e.PathID == pathID {
			path = e.path
			found = true
			continue
		}
		remaining = append(remaining, e)
	}
	q.entries = remaining
	q.mu.Unlock()

	if found && path != "" {
		os.Remove(path)
	}
}

// Len reports the number of entries currently pending removal.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// HasPending reports whether the queue holds any entry, the predicate §4.G
// and §4.F use to block chunkdb dumping and rebalancing into the folder.
func (q *Queue) HasPending() bool {
	return q.Len() > 0
}

// Check runs one wfr_check pass (§4.H): if the oldest entry has sat past
// keep, unlinks up to currentBlock files; otherwise, once per hour, logs the
// pending count via report. now is injectable for tests.
func (q *Queue) Check(now time.Time, keep time.Duration, report func(pending int)) {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}
	due := now.Sub(q.entries[0].queued) >= keep
	q.mu.Unlock()

	if !due {
		q.mu.Lock()
		shouldLog := now.Sub(q.lastLog) >= time.Hour
		if shouldLog {
			q.lastLog = now
		}
		pending := len(q.entries)
		q.mu.Unlock()
		if shouldLog && report != nil {
			report(pending)
		}
		return
	}

	q.removeBatch(now, keep)
}

// removeBatch unlinks up to currentBlock due entries, outside of any folder
// lock held by the caller (§4.H "outside of folderlock"): the filesystem
// unlink happens without q.mu held, only the slice bookkeeping is guarded.
func (q *Queue) removeBatch(now time.Time, keep time.Duration) {
	q.mu.Lock()
	var batch []Entry
	var remaining []Entry
	for _, e := range q.entries {
		if len(batch) < currentBlock && now.Sub(e.queued) >= keep {
			batch = append(batch, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	q.mu.Unlock()

	for _, e := range batch {
		os.Remove(e.path)
	}

	q.mu.Lock()
	q.entries = remaining
	if len(remaining) > 0 {
		q.last = remaining[0].queued
	}
	q.mu.Unlock()
}

// Runner periodically calls Check across every folder's queue; grounded on
// the teacher's threadgroup-guarded ticker loops (persist/sync.go).
type Runner struct {
	Queues func() []*Queue
	Keep   time.Duration
	Report func(folderID uint16, pending int)
}

// Run executes wfr_check once a minute until tg is stopped.
func (r *Runner) Run(tg *threadgroup.ThreadGroup) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	keep := r.Keep
	if keep <= 0 {
		keep = DefaultKeepDuplicates
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-tg.StopChan():
			return nil
		case <-ticker.C:
			now := time.Now()
			for _, q := range r.Queues() {
				folder := q.folder
				q.Check(now, keep, func(pending int) {
					if r.Report != nil {
						r.Report(folder, pending)
					}
				})
			}
		}
	}
}
