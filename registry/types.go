// Package registry implements the chunk hashtable and per-chunk lifecycle
// state machine of §4.A: a chunk is always AVAIL, LOCKED or DELETED, and
// callers acquire it for the duration of a read/write/chunk-op via Get and
// give it back via Release or Delete.
package registry

import (
	"os"

	"github.com/moosefs/chunkserver/chunkid"
)

// State is a chunk's lifecycle state (§4.A state machine).
type State int32

const (
	StateAvail State = iota
	StateLocked
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateAvail:
		return "AVAIL"
	case StateLocked:
		return "LOCKED"
	case StateDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Mode selects Get's behavior when the requested chunk is absent or present.
type Mode int

const (
	// ModeExistingOnly requires the chunk to already exist.
	ModeExistingOnly Mode = iota
	// ModeNewOrExisting creates the chunk if absent, locks it if present.
	ModeNewOrExisting
	// ModeNewOnly requires the chunk to be absent (or present only as a
	// DELETED record, which is reset and reused); the record is returned
	// locked.
	ModeNewOnly
	// ModeExistingOnlyWithErrors is like ModeExistingOnly but tolerates a
	// failed stat/getattr by fabricating attributes for delete paths.
	ModeExistingOnlyWithErrors
)

// FolderHandle is the weak back-reference a Chunk keeps to the Folder that
// owns it. Defined here (rather than importing package folder) so that
// folder.Folder can implement it without creating an import cycle -
// registry has no knowledge of package folder's concrete type.
type FolderHandle interface {
	FolderID() uint16
	Path() string
}

// Chunk is the in-memory record for one chunk id, mirroring §3's Chunk data
// model. Fields are only safe to mutate by the single thread currently
// holding the chunk LOCKED (the registry's own bookkeeping fields - State,
// waiters - are the exception, guarded by the Registry's internal mutex).
type Chunk struct {
	ChunkID chunkid.ID
	Version uint32

	Owner      FolderHandle
	OwnerIndex uint32

	PathID      uint16
	Blocks      uint16
	HdrSize     uint16
	CRCRefCount uint16
	DiskUsage   uint32

	OpenTo, CRCTo, BlockTo int64 // monotonic-seconds eviction deadlines

	CRC     []byte // 4096 bytes (1024 big-endian block CRCs, as on disk) when loaded, else nil
	Block   []byte // cached 64 KiB block, else nil
	BlockNo uint16 // which block Block caches; 0xFFFF = none

	CRCChanged  bool
	FsyncNeeded bool
	Damaged     bool
	ValidAttr   bool
	FileVersion uint8
	TestedFlag  bool

	File *os.File // nil when closed

	TestNext, TestPrev *Chunk
	TestTime           uint32

	state   State
	waiters []chan struct{}
}

// State returns the chunk's current lifecycle state. Safe to call without
// holding the chunk locked; the caller only gets a point-in-time snapshot.
func (c *Chunk) State() State { return c.state }

const noBlock = 0xFFFF

func newChunk(id chunkid.ID) *Chunk {
	return &Chunk{
		ChunkID: id,
		BlockNo: noBlock,
		PathID:  noBlock,
	}
}

// reset restores c to a fresh, empty record for id, used when a ModeNewOnly
// or ModeNewOrExisting Get reuses a DELETED record's memory rather than
// allocating (mirrors the teacher's pointer-stability design: "get(CREATE):
// replayed as a fresh LOCKED (same pointer)").
func (c *Chunk) reset(id chunkid.ID) {
	*c = Chunk{
		ChunkID: id,
		BlockNo: noBlock,
		PathID:  noBlock,
	}
}
