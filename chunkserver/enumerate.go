package chunkserver

import (
	"sync"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/status"
)

// ChunkEnumeration is a resumable cursor over a Registry.Snapshot, backing
// §6's get_chunks_begin/next_list/end triple: the snapshot is taken once, up
// front, and then walked in caller-chosen slices so the network collaborator
// never holds the hashlock for the whole registry at once. partialMode
// matches the teacher's behavior of releasing the lock between slices even
// though this implementation takes none during iteration (Snapshot already
// copies out from under the lock).
type ChunkEnumeration struct {
	mu          sync.Mutex
	ids         []chunkid.ID
	pos         int
	partialMode bool
}

// BeginEnumeration implements get_chunks_begin: it snapshots the registry
// once and returns a cursor ready for NextListCount/NextListData.
func (s *Store) BeginEnumeration(partialMode bool) *ChunkEnumeration {
	return &ChunkEnumeration{
		ids:         s.Registry.Snapshot(),
		partialMode: partialMode,
	}
}

// NextListCount reports how many ids the following NextListData call would
// return, capped at stop entries (the caller's outbound-buffer size).
func (e *ChunkEnumeration) NextListCount(stop int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return capLen(len(e.ids)-e.pos, stop)
}

// NextListData advances the cursor by up to stop entries and returns them.
func (e *ChunkEnumeration) NextListData(stop int) []chunkid.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := capLen(len(e.ids)-e.pos, stop)
	out := make([]chunkid.ID, n)
	copy(out, e.ids[e.pos:e.pos+n])
	e.pos += n
	return out
}

// Done reports whether the cursor has been fully drained.
func (e *ChunkEnumeration) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos >= len(e.ids)
}

// EndEnumeration implements get_chunks_end. A non-partial-mode caller is
// expected to have drained the cursor fully; partial mode may end early to
// release its place and resume later with a fresh BeginEnumeration, since
// the cursor holds no lock between slices in the first place.
func (s *Store) EndEnumeration(e *ChunkEnumeration) error {
	if !e.partialMode && !e.Done() {
		return status.ErrNotSupported
	}
	return nil
}

func capLen(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	if n < 0 {
		return 0
	}
	return n
}
