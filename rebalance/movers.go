package rebalance

import (
	"sync"
	"time"

	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/ops"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/threadgroup"
)

// Mover performs chunk moves between folders classified by Classify,
// shared by both the standard and high-speed rebalancers (they differ only
// in concurrency and pacing, not in the source/destination selection or the
// move primitive itself).
type Mover struct {
	Ops      *ops.Context
	Folders  func() []*folder.Folder
	Status   *Status
	NowUnix  func() int64
	// ChunkFor picks one movable chunk off src and returns it LOCKED (e.g.
	// via registry.TryFind), or nil if none is currently available; step
	// releases it back to AVAIL once the move attempt completes.
	ChunkFor func(src *folder.Folder) *registry.Chunk
}

func (m *Mover) now() int64 {
	if m.NowUnix != nil {
		return m.NowUnix()
	}
	return time.Now().Unix()
}

// RunStandard implements §4.F's standard rebalancer: bounded to a single
// in-flight move, paced by utilizationPct (0..100, HDD_REBALANCE_UTILIZATION)
// as a duty cycle between moves.
func (m *Mover) RunStandard(tg *threadgroup.ThreadGroup, utilizationPct int) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	m.Status.Set(MaskStd)
	defer m.Status.Clear(MaskStd)

	for {
		select {
		case <-tg.StopChan():
			return nil
		default:
		}

		m.step(false)

		pause := pacingDelay(utilizationPct)
		select {
		case <-tg.StopChan():
			return nil
		case <-time.After(pause):
		}
	}
}

// RunHighSpeed implements §4.F's high-speed rebalancer: runs concurrently
// with the standard mover, capped at limit in-flight moves in total. The cap
// is a single semaphore shared by all moves; it is not tracked per
// destination disk.
func (m *Mover) RunHighSpeed(tg *threadgroup.ThreadGroup, limit int) error {
	if err := tg.Add(); err != nil {
		return err
	}
	defer tg.Done()

	m.Status.Set(MaskHS)
	defer m.Status.Clear(MaskHS)

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for {
		select {
		case <-tg.StopChan():
			wg.Wait()
			return nil
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			m.step(true)
		}()
	}
}

// step performs one classify-select-move cycle, returning whether a move was
// actually performed.
func (m *Mover) step(highSpeed bool) bool {
	fs := m.Folders()
	now := m.now()
	eligible := Eligible(fs, now)
	if len(eligible) < 2 {
		return false
	}
	classes := Classify(eligible, false)

	var sources, dests []*folder.Folder
	for f, class := range classes {
		switch class {
		case ClassSource:
			sources = append(sources, f)
		case ClassDestination:
			dests = append(dests, f)
		}
	}
	if len(sources) == 0 || len(dests) == 0 {
		return false
	}

	src := SelectTarget(sources, false)
	dst := SelectTarget(dests, true)
	if src == nil || dst == nil || src == dst {
		return false
	}

	c := m.ChunkFor(src)
	if c == nil {
		return false
	}
	defer m.Ops.Registry.Release(c)

	if err := m.Ops.Move(src, dst, c); err != nil {
		return false
	}
	src.MarkRebalanced(now)
	dst.MarkRebalanced(now)
	return true
}

// pacingDelay converts a 0..100 utilization percentage into the standard
// rebalancer's inter-move duty-cycle pause: at 100% it moves back-to-back,
// at low percentages it waits proportionally longer between moves.
func pacingDelay(utilizationPct int) time.Duration {
	if utilizationPct <= 0 {
		return time.Second
	}
	if utilizationPct >= 100 {
		return 0
	}
	return time.Duration(100-utilizationPct) * 50 * time.Millisecond
}
