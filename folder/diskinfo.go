package folder

import "github.com/moosefs/chunkserver/stats"

// DiskInfo is the read-only snapshot a diskinfo_* surface hands to the
// network collaborator: identity, lifecycle flags, usage and the most
// recent error (§6 "diskinfo_size/diskinfo_data").
type DiskInfo struct {
	ID       uint16
	Path     string
	Avail    uint64
	Total    uint64
	Damaged  bool
	ReadOnly bool
	ToRemove ToRemove
	ScanState ScanState

	ChunkCount int

	LastErrorChunkID uint64
	LastErrorErrno   int
	LastErrorUnix    int64
}

// Info returns a point-in-time DiskInfo for the folder.
func (f *Folder) Info() DiskInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := DiskInfo{
		ID:         f.id,
		Path:       f.path,
		Avail:      f.avail,
		Total:      f.total,
		Damaged:    f.damaged,
		ReadOnly:   f.readOnly,
		ToRemove:   f.toRemove,
		ScanState:  f.scanState,
		ChunkCount: len(f.chunkTab),
	}
	if f.totalErrorCount > 0 {
		last := f.lastErr[f.lastErrIndex]
		info.LastErrorChunkID = last.ChunkID
		info.LastErrorErrno = last.Errno
		info.LastErrorUnix = last.WallUnix
	}
	return info
}

// Stats returns the folder's live (cstat) operation counters.
func (f *Folder) Stats() *stats.HDDStats {
	return &f.cstat
}

// MonotonicStats returns the folder's all-time operation counters.
func (f *Folder) MonotonicStats() *stats.HDDStats {
	return &f.monotonic
}
