package folder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/registry"
)

// chunkMaxSize bounds the fallback usage estimate (§4.B: "falling back to
// statvfs minus free, clamped to chunkcount x chunk_max").
const chunkMaxSize = 64<<20 + 4096 + 4096 // data + 4KiB header + 4KiB CRC table

// New opens (creating if absent) the lockfile for path and returns a Folder
// in the SCAN_NEEDED state, ready for a scan thread to populate its
// chunkTab (§4.B scanning threads).
func New(id uint16, path string) (*Folder, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("folder: path must be absolute: %s", path)
	}
	lockPath := filepath.Join(path, ".lock")
	lf, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, build.ExtendErr("folder: opening lockfile", err)
	}
	if err := flockExclusive(lf.Fd()); err != nil {
		lf.Close()
		return nil, build.ExtendErr("folder: another process already owns "+path, err)
	}

	var st os.FileInfo
	if st, err = os.Stat(path); err != nil {
		lf.Close()
		return nil, build.ExtendErr("folder: stat", err)
	}
	_ = st

	f := &Folder{
		id:         id,
		path:       path,
		lockFile:   lf,
		scanState:  ScanNeeded,
		limitMode:  LimitNone,
		minPathID:  0,
		readFirst:  true,
		writeFirst: true,
	}
	f.chunkTab = make([]*registry.Chunk, 0, 1024)
	return f, nil
}

// Close releases the folder's lockfile. It does not touch any chunks; the
// caller is responsible for draining (§4.B) before Close.
func (f *Folder) Close() error {
	return f.lockFile.Close()
}

// RefreshUsage re-reads statvfs and recomputes the reported avail/total,
// applying the inode-limit reduction and the integrity signals of §4.B.
func (f *Folder) RefreshUsage(leaveFree uint64) error {
	hddAvail, hddTotal, files, favail, err := statvfs(f.path)
	if err != nil {
		f.mu.Lock()
		f.damaged = true
		f.toRemove = ToRemoveStart
		f.mu.Unlock()
		return build.ExtendErr("folder: statvfs failed, marking damaged", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	usage := f.estimatedUsageLocked(hddAvail, hddTotal)
	avail, total := reportedLimits(f.limitMode, f.limitData, hddAvail, hddTotal, usage, leaveFree)

	if files > 0 {
		avgChunkSize := uint64(0)
		if f.knownCount > 0 {
			avgChunkSize = f.knownDiskUsage / f.knownCount
		}
		reduction := avail - subU64(avail, avgChunkSize*favail)
		if avgChunkSize*favail < avail {
			avail -= reduction
		}
	}

	// Integrity signal: total blocks changed by more than 10%.
	newBlocks := hddTotal / 512
	if f.lastBlocks != 0 {
		delta := newBlocks
		if delta > f.lastBlocks {
			delta = delta - f.lastBlocks
		} else {
			delta = f.lastBlocks - delta
		}
		if f.lastBlocks > 0 && float64(delta)/float64(f.lastBlocks) > 0.10 {
			f.damaged = true
			f.toRemove = ToRemoveStart
		}
	}
	f.lastBlocks = newBlocks

	f.avail, f.total = avail, total
	f.needRefresh = false
	return nil
}

// estimatedUsageLocked implements §4.B's "usage is the estimated bytes on
// disk for this folder" extrapolation. f.mu must be held.
func (f *Folder) estimatedUsageLocked(hddAvail, hddTotal uint64) uint64 {
	if f.knownCount > 0 && len(f.chunkTab) > 0 {
		ratio := float64(f.knownDiskUsage) / float64(f.knownCount)
		return uint64(ratio * float64(len(f.chunkTab)))
	}
	fallback := subU64(hddTotal, hddAvail)
	cap := uint64(len(f.chunkTab)) * chunkMaxSize
	if fallback > cap {
		return cap
	}
	return fallback
}

// SetLimit applies an operator-configured limit mode (§4.K).
func (f *Folder) SetLimit(mode LimitMode, data uint64) {
	f.mu.Lock()
	f.limitMode = mode
	f.limitData = data
	f.mu.Unlock()
}

// AvailTotal returns the last-computed reported avail/total.
func (f *Folder) AvailTotal() (avail, total uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail, f.total
}

// IsDamaged reports whether the folder has been marked damaged.
func (f *Folder) IsDamaged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.damaged
}

// MarkDamaged flags the folder damaged and begins its removal drain.
func (f *Folder) MarkDamaged() {
	f.mu.Lock()
	f.damaged = true
	f.toRemove = ToRemoveStart
	f.mu.Unlock()
}

// ScanState returns the folder's current background-scan state.
func (f *Folder) ScanState() ScanState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanState
}

// SetScanState transitions the folder's scan state.
func (f *Folder) SetScanState(s ScanState) {
	f.mu.Lock()
	f.scanState = s
	f.mu.Unlock()
}

// ToRemove returns the folder's drain progress.
func (f *Folder) ToRemove() ToRemove {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toRemove
}

// StartRemoval begins draining the folder (§4.B "on removal-start, folder
// enters a drain").
func (f *Folder) StartRemoval() {
	f.mu.Lock()
	if f.toRemove == ToRemoveNo {
		f.toRemove = ToRemoveStart
	}
	f.mu.Unlock()
}

// CancelRemoval reverses a drain that has not progressed past its initial
// REMOVING_START request, used when a config reload (§4.K) finds the
// folder's path still present and no longer carrying the '*' sigil.
func (f *Folder) CancelRemoval() {
	f.mu.Lock()
	if f.toRemove == ToRemoveStart {
		f.toRemove = ToRemoveNo
	}
	f.mu.Unlock()
}

// ChunkCount returns the number of chunks currently owned by this folder.
func (f *Folder) ChunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunkTab)
}

// Eligible reports whether the folder may participate in a rebalance as a
// source or destination (§4.F "Eligibility").
func (f *Folder) Eligible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanState == ScanWorking &&
		!f.damaged &&
		f.toRemove == ToRemoveNo &&
		f.markForRemoval == MFRNo &&
		f.total > 0 &&
		f.avail > 0
}

// NotFull reports the §4.F "not full" predicate: avail*1000 >= total.
func (f *Folder) NotFull() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail*1000 >= f.total
}

// nowUnix is a seam so tests can fake the clock; production uses wall time.
var nowUnix = func() int64 { return time.Now().Unix() }
