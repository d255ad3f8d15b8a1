// Package tester implements the background chunk-scrubbing loop of §4.E: a
// single tester thread cycles every folder's two-list (tested/test-needed)
// chain, integrity-testing one chunk at a time at a bandwidth-limited rate.
// Grounded on the teacher's WAL background-loop pattern (periodic,
// threadgroup-guarded, one unit of work per tick) applied to per-chunk CRC
// verification instead of log compaction.
package tester

import (
	"time"

	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/iostore"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/threadgroup"
)

// MinTimeBetweenTests gates repeated testing of the same chunk (§4.E,
// default 24h).
const MinTimeBetweenTests = 24 * time.Hour

// Config parameterizes one Tester.
type Config struct {
	Registry    *registry.Registry
	Budget      *iostore.OpenFileBudget
	RateMBps    float64 // HDDTestMBPS; 0 disables testing
	NowUnixUsec func() int64
}

// Tester cycles through a set of folders, testing one chunk at a time.
type Tester struct {
	cfg     Config
	folders []*folder.Folder
}

// New constructs a Tester over folders.
func New(cfg Config, folders []*folder.Folder) *Tester {
	if cfg.NowUnixUsec == nil {
		cfg.NowUnixUsec = func() int64 { return time.Now().UnixNano() / 1000 }
	}
	return &Tester{cfg: cfg, folders: folders}
}

// Run loops until tg is stopped, doing one unit of test work per iteration
// and sleeping briefly between units, mirroring the teacher's
// threadgroup-guarded background-loop idiom.
func (te *Tester) Run(tg *threadgroup.ThreadGroup) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	for {
		select {
		case <-tg.StopChan():
			return nil
		default:
		}
		if te.cfg.RateMBps <= 0 {
			select {
			case <-tg.StopChan():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if !te.tick() {
			select {
			case <-tg.StopChan():
				return nil
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

// tick performs step 1-4 of §4.E once, for at most one due folder, and
// reports whether any work was actually done.
func (te *Tester) tick() bool {
	now := te.cfg.NowUnixUsec()
	for _, f := range te.folders {
		if f.ScanState() != folder.ScanWorking || !f.NextTestDue(now) {
			continue
		}
		f.RotateTestNeeded()
		c := f.PopTestNeeded()
		if c == nil {
			// Nothing to test this round even after rotation; folder is
			// empty. Reschedule shortly so an empty folder doesn't spin.
			f.ScheduleNextTest(now, 0, te.cfg.RateMBps)
			return false
		}
		te.testOne(f, c, now)
		return true
	}
	return false
}

// testOne implements §4.E steps 3-4 for a single popped chunk.
func (te *Tester) testOne(f *folder.Folder, c *registry.Chunk, nowUsec int64) {
	locked, result := te.cfg.Registry.TryFind(c.ChunkID)
	if result != registry.TryFindOK {
		f.IncTestFail()
		f.PushTested(c)
		f.ScheduleNextTest(nowUsec, c.Blocks, te.cfg.RateMBps)
		return
	}

	IntTest(locked, f, te.cfg.Budget)
	locked.TestTime = uint32(nowUsec / 1_000_000)
	te.cfg.Registry.Release(locked)
	f.PushTested(locked)
	f.ScheduleNextTest(nowUsec, locked.Blocks, te.cfg.RateMBps)
}

// IntTest opens c (IGNVERS), reads and verifies every block's CRC, flags the
// chunk damaged on any mismatch, and closes it (§4.E "int_test").
func IntTest(c *registry.Chunk, f *folder.Folder, budget *iostore.OpenFileBudget) error {
	if err := iostore.Begin(c, f.Path(), iostore.OpenIgnoreVersion, f.IsDamaged(), budget); err != nil {
		c.Damaged = true
		return err
	}
	var firstErr error
	for b := 0; b < int(c.Blocks); b++ {
		if _, _, err := iostore.ReadBlock(c, 0, b, 0, iostore.BlockSize); err != nil {
			c.Damaged = true
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	iostore.End(c)
	c.TestedFlag = true
	if firstErr != nil {
		return firstErr
	}
	return nil
}
