package chunkserver

import (
	"os"
	"path/filepath"
	"time"

	"github.com/moosefs/chunkserver/chunkdb"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/threadgroup"
)

// usageRefreshInterval is how often the folders thread re-reads statvfs for
// every open folder (§4.B periodic usage refresh).
const usageRefreshInterval = 30 * time.Second

// foldersThread implements §5's folders_thread: it brings every freshly
// opened folder (ScanNeeded) up to ScanWorking, preferring the §4.G chunkdb
// fast-load path over a full directory scan when the snapshot is still
// valid, then loops refreshing avail/total until stopped.
func (s *Store) foldersThread(tg *threadgroup.ThreadGroup) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	for _, f := range s.Folders() {
		if f.ScanState() == folder.ScanNeeded {
			go s.bringUp(tg, f)
		}
	}

	for {
		select {
		case <-tg.StopChan():
			return nil
		case <-time.After(usageRefreshInterval):
		}
		leaveFree := s.Settings().LeaveSpaceDefault
		for _, f := range s.Folders() {
			f.RefreshUsage(leaveFree)
		}
	}
}

// bringUp loads f's chunk table, via chunkdb when its snapshot is still
// trustworthy or a full scan otherwise, then marks it ScanWorking and gives
// it an initial usage reading.
func (s *Store) bringUp(tg *threadgroup.ThreadGroup, f *folder.Folder) {
	leaveFree := s.Settings().LeaveSpaceDefault

	wfrPending := false
	s.wfrMu.Lock()
	if q, ok := s.wfrQueues[f.FolderID()]; ok {
		wfrPending = q.HasPending()
	}
	s.wfrMu.Unlock()

	if s.loadFromChunkDB(f, wfrPending) {
		f.SetScanState(folder.ScanWorking)
		f.RefreshUsage(leaveFree)
		return
	}

	f.Scan(tg, s.Registry, s)
	f.SetScanState(folder.ScanWorking)
	f.RefreshUsage(leaveFree)
}

// loadFromChunkDB attempts the §4.G fast path: if dir/.chunkdb postdates
// every subfolder's mtime and the folder carries none of Valid's
// disqualifying conditions, its entries are trusted verbatim and no
// directory walk is performed.
func (s *Store) loadFromChunkDB(f *folder.Folder, wfrPending bool) bool {
	if f.IsDamaged() || f.ReadOnly() {
		return false
	}
	mtimes, err := subfolderMtimes(f.Path())
	if err != nil {
		return false
	}
	if !chunkdb.Valid(f.Path(), mtimes, wfrPending, f.IsDamaged(), f.ReadOnly()) {
		return false
	}
	_, entries, err := chunkdb.Read(f.Path())
	if err != nil {
		return false
	}
	for _, e := range entries {
		f.RegisterKnownChunk(s.Registry, e.ChunkID, e.Version, e.PathID, e.Blocks, e.HdrSize, e.Tested, e.DiskUsage)
	}
	return true
}

// subfolderMtimes stats every one of a folder's 256 fixed subdirectories,
// skipping any that don't exist yet (a brand-new folder has none).
func subfolderMtimes(dir string) ([]time.Time, error) {
	var out []time.Time
	for i := 0; i < 256; i++ {
		sub := filepath.Join(dir, folder.SubfolderName(uint16(i)))
		fi, err := os.Stat(sub)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, fi.ModTime())
	}
	return out, nil
}
