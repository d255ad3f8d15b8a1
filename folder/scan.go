package folder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/threadgroup"
)

// ScanReporter receives the events a folder scan produces, so that the
// master-facing "new chunk" reports and WFR-enqueue side effects of §4.B
// stay decoupled from package folder (which has no knowledge of the
// network layer or the WFR queue's concrete type).
type ScanReporter interface {
	NewChunk(folderID uint16, id chunkid.ID, version uint32)
	Duplicate(folderID uint16, loser *registry.Chunk)
	Progress(folderID uint16, percent int)
}

// filenamePrefix/Suffix bound the fixed chunk-file naming scheme of §3:
// chunk_<16HEX-id>_<8HEX-version>.mfs
const (
	filenamePrefix = "chunk_"
	filenameSuffix = ".mfs"
)

// ParseChunkFilename parses a chunk file's base name, returning ok=false for
// anything that doesn't match the fixed grammar (so scans silently skip
// stray files like .chunkdb, .lock, .metaid).
func ParseChunkFilename(name string) (id chunkid.ID, version uint32, ok bool) {
	if !strings.HasPrefix(name, filenamePrefix) || !strings.HasSuffix(name, filenameSuffix) {
		return 0, 0, false
	}
	body := name[len(filenamePrefix) : len(name)-len(filenameSuffix)]
	parts := strings.SplitN(body, "_", 2)
	if len(parts) != 2 || len(parts[0]) != 16 || len(parts[1]) != 8 {
		return 0, 0, false
	}
	idVal, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return 0, 0, false
	}
	verVal, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return chunkid.ID(idVal), uint32(verVal), true
}

// ChunkFilename is the inverse of ParseChunkFilename.
func ChunkFilename(id chunkid.ID, version uint32) string {
	return fmt.Sprintf("%s%016X_%08X%s", filenamePrefix, uint64(id), version, filenameSuffix)
}

// SubfolderName returns the uppercase-hex subdirectory name for pathid
// (§3: "<XX> is uppercase hex of pathid").
func SubfolderName(pathID uint16) string {
	return fmt.Sprintf("%02X", pathID&0xFF)
}

// Scan walks all 256 subfolders of f, registering every chunk file found
// into reg and reporting to rep. It is meant to run on its own goroutine,
// guarded by tg, and observes tg.StopChan() at subdirectory granularity
// (§5 "Scan threads observe BG_TERMINATE at 10 000-entry granularity").
func (f *Folder) Scan(tg *threadgroup.ThreadGroup, reg *registry.Registry, rep ScanReporter) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	f.SetScanState(ScanInProgress)
	defer func() {
		select {
		case <-tg.StopChan():
			f.SetScanState(ScanBGTerminate)
		default:
			f.SetScanState(ScanBGFinished)
		}
	}()

	if _, err := os.Stat(f.path); err != nil {
		f.MarkDamaged()
		return err
	}

	type loser struct {
		id  chunkid.ID
		ver uint32
	}
	seen := make(map[chunkid.ID]*registry.Chunk)
	entriesSeen := 0

	for pathID := 0; pathID < subfolderCount; pathID++ {
		select {
		case <-tg.StopChan():
			return nil
		default:
		}

		sub := filepath.Join(f.path, SubfolderName(uint16(pathID)))
		entries, err := os.ReadDir(sub)
		if err != nil {
			if os.IsNotExist(err) {
				if mkErr := os.MkdirAll(sub, 0700); mkErr != nil {
					f.MarkDamaged()
					return mkErr
				}
				continue
			}
			f.MarkDamaged()
			return err
		}

		for _, ent := range entries {
			entriesSeen++
			if entriesSeen%10000 == 0 {
				select {
				case <-tg.StopChan():
					return nil
				default:
				}
			}
			if ent.IsDir() {
				continue
			}
			id, ver, ok := ParseChunkFilename(ent.Name())
			if !ok {
				continue
			}

			base := chunkid.ID(chunkid.Base(id))
			if existing, dup := seen[base]; dup {
				// Keep the higher version; enqueue the loser for deferred
				// removal (§4.B, §4.H), unless the folder is read-only.
				readOnly := f.ReadOnly()
				if ver > existing.Version {
					if !readOnly {
						rep.Duplicate(f.id, existing)
					}
					seen[base] = f.RegisterScannedChunk(reg, id, ver, uint16(pathID))
				} else {
					c := f.RegisterScannedChunk(reg, id, ver, uint16(pathID))
					if !readOnly {
						rep.Duplicate(f.id, c)
					}
				}
				continue
			}

			c := f.RegisterScannedChunk(reg, id, ver, uint16(pathID))
			seen[base] = c
			rep.NewChunk(f.id, id, ver)
		}

		if pct := (pathID + 1) * 100 / subfolderCount; pct != pathID*100/subfolderCount {
			rep.Progress(f.id, pct)
		}
	}
	return nil
}

// RegisterScannedChunk creates (or replays) a registry entry for a chunk
// discovered on disk, with attributes left unknown until the I/O path or
// ATTR_NEEDED sweep later refines them (§4.B: "blocks=0xFFFF, diskusage=0,
// validattr=0"). The chunkdb fast-load path (§4.G) does not use it; it
// registers snapshot entries through RegisterKnownChunk.
func (f *Folder) RegisterScannedChunk(reg *registry.Registry, id chunkid.ID, version uint32, pathID uint16) *registry.Chunk {
	c, err := reg.Get(id, registry.ModeNewOrExisting)
	if err != nil {
		return nil
	}
	c.Version = version
	c.PathID = pathID
	c.Blocks = 0xFFFF
	c.DiskUsage = 0
	c.ValidAttr = false
	f.AddChunk(c)
	reg.Release(c)
	return c
}

// RegisterKnownChunk is RegisterScannedChunk's counterpart for the §4.G
// chunkdb fast-load path: the snapshot already carries trusted blocks/
// hdrsize/tested/diskusage, so there's no need to mark the chunk
// attribute-unknown the way a fresh directory scan must.
func (f *Folder) RegisterKnownChunk(reg *registry.Registry, id chunkid.ID, version uint32, pathID, blocks, hdrSize uint16, tested bool, diskUsage uint32) *registry.Chunk {
	c, err := reg.Get(id, registry.ModeNewOrExisting)
	if err != nil {
		return nil
	}
	c.Version = version
	c.PathID = pathID
	c.Blocks = blocks
	c.HdrSize = hdrSize
	c.TestedFlag = tested
	c.DiskUsage = diskUsage
	c.ValidAttr = blocks != 0xFFFF
	f.AddChunk(c)
	reg.Release(c)
	return c
}
