// Package chunkserver composes packages registry, folder, iostore, ops,
// tester, rebalance, wfr, delayed, stats and config into the single running
// engine described across §4 and §5: one Store per process, one goroutine
// set per long-lived background loop, and a bounded, ordered shutdown.
// Grounded on the teacher's top-level wiring (node/node.go's NewNode, which
// builds every module and hands each a shared set of dependencies) applied
// to this store's fixed thread roster instead of Sia's pluggable module set.
package chunkserver

import (
	"sync"
	"time"

	"github.com/moosefs/chunkserver/chunkdb"
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/config"
	"github.com/moosefs/chunkserver/delayed"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/iostore"
	"github.com/moosefs/chunkserver/ops"
	"github.com/moosefs/chunkserver/persist"
	"github.com/moosefs/chunkserver/rebalance"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/stats"
	"github.com/moosefs/chunkserver/tester"
	"github.com/moosefs/chunkserver/threadgroup"
	"github.com/moosefs/chunkserver/wfr"
)

// shutdownGrace bounds how long Shutdown waits for in-flight rebalance and
// scan work before it proceeds to persist and close anyway (§5 "Shutdown
// (term): ... wait up to ~10s for in-flight rebalance + scans").
const shutdownGrace = 10 * time.Second

// Store is the whole running chunkserver: the chunk registry, the open
// folders, every background thread, and the collaborators each needs.
type Store struct {
	InstanceID uint64
	Logger     *persist.Logger

	Registry *registry.Registry
	Budget   *iostore.OpenFileBudget
	Ops      *ops.Context
	Reports  *stats.Reports

	settingsMu sync.RWMutex
	settings   config.Settings

	foldersMu sync.RWMutex
	folders   map[string]*folder.Folder
	nextID    uint16

	wfrMu     sync.Mutex
	wfrQueues map[uint16]*wfr.Queue

	tg             threadgroup.ThreadGroup
	delayedRunner  *delayed.Runner
	wfrRunner      *wfr.Runner
	rebalanceStats *rebalance.Status
}

// New constructs a Store from the settings and a fixed open-file budget of
// 1024 descriptors (not derived from RLIMIT_NOFILE), ready for folders to be
// added via ApplyDiskConfig before Start is called.
func New(logger *persist.Logger, settings config.Settings, instanceID uint64) *Store {
	reg := registry.New()
	budget := iostore.NewOpenFileBudget(1024)
	reports := stats.NewReports()

	s := &Store{
		InstanceID: instanceID,
		Logger:     logger,
		Registry:   reg,
		Budget:     budget,
		Reports:    reports,
		settings:   settings,
		folders:    make(map[string]*folder.Folder),
		wfrQueues:  make(map[uint16]*wfr.Queue),
		rebalanceStats: &rebalance.Status{},
	}
	s.Ops = &ops.Context{
		Registry:       reg,
		Budget:         budget,
		Sparsify:       settings.SparsifyOnWrite,
		RemoveWFREntry: s.removeWFREntry,
	}
	s.delayedRunner = delayed.New(delayed.Config{
		Registry:           reg,
		Budget:             budget,
		DoFsyncBeforeClose: settings.FsyncBeforeClose,
	})
	s.wfrRunner = &wfr.Runner{
		Queues: s.queueSnapshot,
		Keep:   time.Duration(settings.KeepDuplicatesHours) * time.Hour,
		Report: s.logWFRPending,
	}
	return s
}

// removeWFREntry implements ops.Context.RemoveWFREntry: a chunk_delete op
// (§4.D) that targets an id/version/pathid still parked in its folder's WFR
// queue removes it immediately, so the two don't race to unlink the same
// path.
func (s *Store) removeWFREntry(id chunkid.ID, version uint32, pathID uint16, owner registry.FolderHandle) {
	s.wfrMu.Lock()
	q, ok := s.wfrQueues[owner.FolderID()]
	s.wfrMu.Unlock()
	if ok {
		q.Remove(id, version, pathID)
	}
}

func (s *Store) queueSnapshot() []*wfr.Queue {
	s.wfrMu.Lock()
	defer s.wfrMu.Unlock()
	out := make([]*wfr.Queue, 0, len(s.wfrQueues))
	for _, q := range s.wfrQueues {
		out = append(out, q)
	}
	return out
}

func (s *Store) logWFRPending(folderID uint16, pending int) {
	if s.Logger != nil {
		s.Logger.Printf("wfr: folder %d has %d duplicate(s) pending removal", folderID, pending)
	}
}

// Settings returns a copy of the store's current settings.
func (s *Store) Settings() config.Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// SetSettings replaces the store's settings wholesale, e.g. after a config
// file reload.
func (s *Store) SetSettings(settings config.Settings) {
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
}

// Folders returns a snapshot slice of every currently open folder.
func (s *Store) Folders() []*folder.Folder {
	s.foldersMu.RLock()
	defer s.foldersMu.RUnlock()
	out := make([]*folder.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, f)
	}
	return out
}

// FolderByPath looks up an open folder by its mount path.
func (s *Store) FolderByPath(path string) (*folder.Folder, bool) {
	s.foldersMu.RLock()
	defer s.foldersMu.RUnlock()
	f, ok := s.folders[path]
	return f, ok
}

// openFolder implements config.OpenFolder: assigns a fresh folder id, opens
// the folder, verifies/creates its .metaid against this instance, and
// registers a WFR queue for it.
func (s *Store) openFolder(id uint16, path string) (*folder.Folder, error) {
	if err := config.EnsureMetaID(path, s.InstanceID); err != nil {
		return nil, err
	}
	f, err := folder.New(id, path)
	if err != nil {
		return nil, err
	}
	s.wfrMu.Lock()
	s.wfrQueues[id] = wfr.New(id)
	s.wfrMu.Unlock()
	return f, nil
}

// ApplyDiskConfig reparses entries against the currently open folders,
// implementing §4.K's reload semantics end to end (config.Reload handles
// the match-by-path/mark-draining/open-new logic; this method owns the
// Store-level folder map and id allocation around it).
func (s *Store) ApplyDiskConfig(entries []config.DiskEntry) error {
	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()

	nextID := func() uint16 {
		s.nextID++
		return s.nextID
	}
	updated, err := config.Reload(s.folders, entries, nextID, s.openFolder)
	if err != nil {
		return err
	}
	s.folders = updated
	return nil
}

// Start launches every long-lived background thread (§5's fixed roster:
// folders_thread, tester_thread, delayed_thread, the two rebalancers, the
// WFR checker), each in its own goroutine, and returns nil at once without
// waiting for any of them to register with the thread group or to finish
// (they run until Shutdown stops the group). Each runs its own
// tg.Add/StopChan loop; an error a thread returns (for example tg already
// stopped) is only logged through s.Logger, not reported to the caller.
func (s *Store) Start() error {
	go s.foldersThread(&s.tg)

	settings := s.Settings()
	te := tester.New(tester.Config{
		Registry: s.Registry,
		Budget:   s.Budget,
		RateMBps: settings.TestSpeedMBps,
	}, s.Folders())

	mover := &rebalance.Mover{
		Ops:      s.Ops,
		Folders:  s.Folders,
		Status:   s.rebalanceStats,
		ChunkFor: s.pickMovableChunk,
	}

	threads := []struct {
		name string
		run  func() error
	}{
		{"delayed-ops", func() error { return s.delayedRunner.Run(&s.tg) }},
		{"wfr", func() error { return s.wfrRunner.Run(&s.tg) }},
		{"tester", func() error { return te.Run(&s.tg) }},
		{"standard rebalancer", func() error { return mover.RunStandard(&s.tg, settings.RebalanceUtilizationPct) }},
		{"high-speed rebalancer", func() error { return mover.RunHighSpeed(&s.tg, settings.HighSpeedRebalanceLimit) }},
	}

	for _, th := range threads {
		th := th
		go func() {
			if err := th.run(); err != nil && s.Logger != nil {
				s.Logger.Printf("chunkserver: %s thread exited: %v", th.name, err)
			}
		}()
	}
	return nil
}

// Shutdown implements §5's term sequence: stop accepting new background
// work, give in-flight rebalance/scan work up to shutdownGrace to finish,
// write a .chunkdb snapshot per folder (skipping read-only ones, per
// §4.K), then close every folder's lockfile.
func (s *Store) Shutdown() error {
	done := make(chan struct{})
	go func() {
		s.tg.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		if s.Logger != nil {
			s.Logger.Println("shutdown: grace period elapsed before all threads stopped")
		}
	}

	var firstErr error
	for _, f := range s.Folders() {
		if f.ReadOnly() {
			continue
		}
		if err := writeChunkDB(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range s.Folders() {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeChunkDB(f *folder.Folder) error {
	chunks := f.Chunks()
	entries := make([]chunkdb.Entry, 0, len(chunks))
	for _, c := range chunks {
		entries = append(entries, chunkdb.Entry{
			ChunkID:   c.ChunkID,
			Version:   c.Version,
			Blocks:    blocksOrUnknown(c),
			HdrSize:   c.HdrSize,
			PathID:    c.PathID,
			Tested:    c.TestedFlag,
			DiskUsage: c.DiskUsage,
		})
	}
	return chunkdb.Write(f.Path(), f.Path(), entries)
}

func blocksOrUnknown(c *registry.Chunk) uint16 {
	if !c.ValidAttr {
		return 0xFFFF
	}
	return c.Blocks
}
