package chunkserver

import (
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/registry"
)

// pickMovableChunk implements rebalance.Mover's ChunkFor: the first chunk
// off src's table that isn't currently LOCKED by another operation. A
// disk's chunk table can be large, so this only walks until it finds one
// candidate rather than scanning every entry up front.
func (s *Store) pickMovableChunk(src *folder.Folder) *registry.Chunk {
	for _, c := range src.Chunks() {
		locked, result := s.Registry.TryFind(c.ChunkID)
		if result == registry.TryFindOK {
			return locked
		}
	}
	return nil
}
