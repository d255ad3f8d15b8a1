package stats

import (
	"sync"

	"github.com/moosefs/chunkserver/chunkid"
)

// lostBatchSize/newBatchSize bound how many ids/pairs the master-facing
// drain calls hand back per call (§4.J "id batches of 1024" / "(id,
// version) batches of 4096").
const (
	lostBatchSize = 1024
	newBatchSize  = 4096
)

// idBatch drains each size-then-data outbound queue of §4.J that carries
// bare chunk ids (damagedchunks, lostchunks, nonexistentchunks).
type idBatch struct {
	mu  sync.Mutex
	ids []chunkid.ID
	max int
}

func newIDBatch(max int) *idBatch {
	return &idBatch{max: max}
}

func (b *idBatch) Push(id chunkid.ID) {
	b.mu.Lock()
	b.ids = append(b.ids, id)
	b.mu.Unlock()
}

// Count implements the two-phase "_count(limit)" query: how many entries
// would be returned by the next drain of up to limit entries. A limit of 0
// falls back to the queue's own batch size (b.max), or no cap at all for
// damagedchunks, whose b.max is 0.
func (b *idBatch) Count(limit int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return capLen(len(b.ids), b.effectiveLimit(limit))
}

// Drain removes and returns up to limit entries, oldest first.
func (b *idBatch) Drain(limit int) []chunkid.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := capLen(len(b.ids), b.effectiveLimit(limit))
	out := make([]chunkid.ID, n)
	copy(out, b.ids[:n])
	b.ids = b.ids[n:]
	return out
}

func (b *idBatch) effectiveLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	return b.max
}

func capLen(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ChunkVersion is one (id, version) pair queued on newchunks/chgchunks,
// with the high bit of Version set when the owning folder is marked for
// removal (§4.J "version |= 0x80000000 when the owner is marked-for-
// removal").
type ChunkVersion struct {
	ID      chunkid.ID
	Version uint32
}

// MarkedForRemovalBit is ORed into ChunkVersion.Version when the chunk's
// owning folder carries the '*' sigil at report time.
const MarkedForRemovalBit = 0x80000000

// versionBatch is idBatch's (id, version) counterpart for newchunks and
// chgchunks.
type versionBatch struct {
	mu      sync.Mutex
	entries []ChunkVersion
	max     int
}

func newVersionBatch(max int) *versionBatch {
	return &versionBatch{max: max}
}

func (b *versionBatch) Push(id chunkid.ID, version uint32, markedForRemoval bool) {
	if markedForRemoval {
		version |= MarkedForRemovalBit
	}
	b.mu.Lock()
	b.entries = append(b.entries, ChunkVersion{ID: id, Version: version})
	b.mu.Unlock()
}

func (b *versionBatch) Count(limit int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return capLen(len(b.entries), b.effectiveLimit(limit))
}

func (b *versionBatch) Drain(limit int) []ChunkVersion {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := capLen(len(b.entries), b.effectiveLimit(limit))
	out := make([]ChunkVersion, n)
	copy(out, b.entries[:n])
	b.entries = b.entries[n:]
	return out
}

func (b *versionBatch) effectiveLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	return b.max
}

// Reports is the full set of master-facing report queues of §4.J, plus the
// aggregate byte/flag counters guarded the same way (dclock, here a single
// mutex rather than hand-rolled __sync atomics - see DESIGN.md).
type Reports struct {
	Damaged     *idBatch      // one id per record
	Lost        *idBatch      // batches of 1024
	Nonexistent *idBatch      // batches of 1024
	New         *versionBatch // batches of 4096
	Changed     *versionBatch // batches of 4096

	mu                sync.Mutex
	errorCounter      uint64
	hddSpaceChanged   bool
	hddSpaceRecalc    bool
	globalRebalanceOn bool
}

// NewReports returns an empty set of report queues.
func NewReports() *Reports {
	return &Reports{
		Damaged:     newIDBatch(0),
		Lost:        newIDBatch(lostBatchSize),
		Nonexistent: newIDBatch(lostBatchSize),
		New:         newVersionBatch(newBatchSize),
		Changed:     newVersionBatch(newBatchSize),
	}
}

// RecordError bumps the global error counter (§4.J "errorcounter"); the
// per-folder 30-slot ring and error-tolerance accounting live on folder.Folder
// itself, not here, since they're per-disk state rather than a report queue.
func (r *Reports) RecordError() {
	r.mu.Lock()
	r.errorCounter++
	r.mu.Unlock()
}

// ErrorCounter returns the running total of recorded errors.
func (r *Reports) ErrorCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorCounter
}

// SetSpaceChanged/SetSpaceRecalc/SetGlobalRebalanceOn update the remaining
// §4.J aggregate flags.
func (r *Reports) SetSpaceChanged(v bool) {
	r.mu.Lock()
	r.hddSpaceChanged = v
	r.mu.Unlock()
}

func (r *Reports) SetSpaceRecalc(v bool) {
	r.mu.Lock()
	r.hddSpaceRecalc = v
	r.mu.Unlock()
}

func (r *Reports) SetGlobalRebalanceOn(v bool) {
	r.mu.Lock()
	r.globalRebalanceOn = v
	r.mu.Unlock()
}

// SpaceChanged/SpaceRecalc/GlobalRebalanceOn read back the aggregate flags.
func (r *Reports) SpaceChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hddSpaceChanged
}

func (r *Reports) SpaceRecalc() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hddSpaceRecalc
}

func (r *Reports) GlobalRebalanceOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globalRebalanceOn
}
