package wfr

import (
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/registry"
)

// ScanReporter adapts a set of per-folder WFR queues into folder.ScanReporter
// (implemented here by structural typing, without importing package folder,
// since folder already imports registry and chunkid and a folder->wfr edge
// would create a cycle now that ops.Context.RemoveWFREntry also reaches into
// this package). ChunkPath resolves the on-disk path of a loser chunk so
// Duplicate can enqueue it for deferred unlink.
type ScanReporter struct {
	Queues     map[uint16]*Queue
	ChunkPath  func(folderID uint16, id chunkid.ID, version uint32) string
	OnNew      func(folderID uint16, id chunkid.ID, version uint32)
	OnProgress func(folderID uint16, percent int)
}

// NewChunk forwards to OnNew, the master-facing "new chunk" report hook.
func (r *ScanReporter) NewChunk(folderID uint16, id chunkid.ID, version uint32) {
	if r.OnNew != nil {
		r.OnNew(folderID, id, version)
	}
}

// Duplicate enqueues the losing chunk on its owning folder's WFR queue.
func (r *ScanReporter) Duplicate(folderID uint16, loser *registry.Chunk) {
	q, ok := r.Queues[folderID]
	if !ok {
		return
	}
	var path string
	if r.ChunkPath != nil {
		path = r.ChunkPath(folderID, loser.ChunkID, loser.Version)
	}
	q.Enqueue(loser.ChunkID, loser.Version, loser.PathID, path)
}

// Progress forwards to OnProgress, the master-facing scan-percent report hook.
func (r *ScanReporter) Progress(folderID uint16, percent int) {
	if r.OnProgress != nil {
		r.OnProgress(folderID, percent)
	}
}
