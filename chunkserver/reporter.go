package chunkserver

import (
	"path/filepath"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/registry"
)

// NewChunk implements folder.ScanReporter: a chunk discovered during a scan
// is queued on the §4.J newchunks report so the network collaborator can
// tell the master about it.
func (s *Store) NewChunk(folderID uint16, id chunkid.ID, version uint32) {
	s.Reports.New.Push(id, version, s.folderMarkedForRemoval(folderID))
}

// Duplicate implements folder.ScanReporter: the losing copy of a chunk
// found twice during a scan is parked on that folder's WFR queue rather
// than unlinked immediately (§4.H).
func (s *Store) Duplicate(folderID uint16, loser *registry.Chunk) {
	s.wfrMu.Lock()
	q, ok := s.wfrQueues[folderID]
	s.wfrMu.Unlock()
	if !ok {
		return
	}
	f, isFolder := loser.Owner.(*folder.Folder)
	if !isFolder {
		return
	}
	path := filepath.Join(f.Path(), folder.SubfolderName(loser.PathID), folder.ChunkFilename(loser.ChunkID, loser.Version))
	q.Enqueue(loser.ChunkID, loser.Version, loser.PathID, path)
}

// Progress implements folder.ScanReporter, logging coarse scan progress the
// way the teacher logs long-running background passes.
func (s *Store) Progress(folderID uint16, percent int) {
	if s.Logger != nil {
		s.Logger.Printf("folder %d: scan %d%% complete", folderID, percent)
	}
}

func (s *Store) folderMarkedForRemoval(folderID uint16) bool {
	for _, f := range s.Folders() {
		if f.FolderID() == folderID {
			return f.MarkForRemoval() == folder.MFRYes
		}
	}
	return false
}
