package folder

import (
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/registry"
)

// rrChunkCountDefault is HDD_RR_CHUNK_COUNT's default (§6): how many chunks get
// written to one subfolder before current_pathid rotates to the next.
const rrChunkCountDefault = 10000

// AddChunk appends c to the folder's chunk table, sets c.Owner/OwnerIndex,
// and updates the per-subfolder counts (§3 Folder invariant: every chunk
// whose owner==f is at f.chunkTab[ownerIndex]).
func (f *Folder) AddChunk(c *registry.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Owner = f
	c.OwnerIndex = uint32(len(f.chunkTab))
	f.chunkTab = append(f.chunkTab, c)
	if c.PathID < subfolderCount {
		f.subfCount[c.PathID]++
	}
	kind, _ := chunkid.Classify(c.ChunkID)
	switch kind {
	case chunkid.KindEC4:
		f.ec4Count++
	case chunkid.KindEC8:
		f.ec8Count++
	}
}

// RemoveChunk removes c from the folder's chunk table, moving the current
// tail entry into c's slot and fixing up its OwnerIndex (§3 Folder
// invariant: "Removing updates the moved tail chunk's ownerindx").
func (f *Folder) RemoveChunk(c *registry.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := int(c.OwnerIndex)
	last := len(f.chunkTab) - 1
	if idx < 0 || idx > last || f.chunkTab[idx] != c {
		return
	}
	if idx != last {
		tail := f.chunkTab[last]
		f.chunkTab[idx] = tail
		tail.OwnerIndex = uint32(idx)
	}
	f.chunkTab[last] = nil
	f.chunkTab = f.chunkTab[:last]

	if c.PathID < subfolderCount && f.subfCount[c.PathID] > 0 {
		f.subfCount[c.PathID]--
	}
	kind, _ := chunkid.Classify(c.ChunkID)
	switch kind {
	case chunkid.KindEC4:
		if f.ec4Count > 0 {
			f.ec4Count--
		}
	case chunkid.KindEC8:
		if f.ec8Count > 0 {
			f.ec8Count--
		}
	}
}

// NextPathID implements the round-robin write target selection of §4.E:
// new chunks are steered toward the subfolder with the fewest entries,
// advancing current_pathid every rrChunkCount writes to spread load even
// when counts are close.
func (f *Folder) NextPathID(rrChunkCount uint32) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Recompute the least-populated subfolder on every call; cheap enough
	// given subfolderCount==256.
	f.minPathID, f.minCount = 0, f.subfCount[0]
	for i := uint16(1); i < subfolderCount; i++ {
		if f.subfCount[i] < f.minCount {
			f.minCount = f.subfCount[i]
			f.minPathID = i
		}
	}

	if rrChunkCount == 0 {
		rrChunkCount = rrChunkCountDefault
	}
	if f.subfCount[f.currentPathID] >= f.minCount+uint32(rrChunkCount) {
		f.currentPathID = f.minPathID
	}
	return f.currentPathID
}

// Chunks returns a snapshot slice of every chunk this folder currently
// owns, used by the drain loop and rebalancer to enumerate candidates.
func (f *Folder) Chunks() []*registry.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*registry.Chunk, len(f.chunkTab))
	copy(out, f.chunkTab)
	return out
}
