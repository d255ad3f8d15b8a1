// Package rebalance implements the two disk-to-disk movers of §4.F: a
// standard, single-in-flight-move balancer paced by utilization percent, and
// a high-speed balancer capped in total in-flight moves (one shared cap, not
// one per destination). Both share the same
// eligibility/target-selection machinery. Grounded on the teacher's
// WAL-apply-one-unit-then-yield loop shape (persist/writeaheadlogsync.go)
// applied to disk-to-disk chunk movement instead of log application.
package rebalance

import (
	"sync/atomic"

	"github.com/NebulousLabs/fastrand"
	"github.com/moosefs/chunkserver/folder"
)

// Classification is a folder's rebalance role for the current round.
type Classification int

const (
	ClassNeutral Classification = iota
	ClassSource
	ClassDestination
)

// Eligible filters fs down to §4.F's "WORKING, not damaged, not to-remove,
// not mfr, total>0, avail>0, balancemode != FORCE_SRC" set, additionally
// restricting to the "good" (past their rebalance_last_usec+10s) subset when
// at least 2/3 of the eligible disks qualify.
func Eligible(fs []*folder.Folder, nowUnix int64) []*folder.Folder {
	var all []*folder.Folder
	for _, f := range fs {
		if f.Eligible() {
			all = append(all, f)
		}
	}
	var good []*folder.Folder
	for _, f := range all {
		if f.RebalanceCooldownElapsed(nowUnix) {
			good = append(good, f)
		}
	}
	if len(all) > 0 && len(good)*3 >= len(all)*2 {
		shuffle(good)
		return good
	}
	shuffle(all)
	return all
}

// shuffle randomizes the candidate order in place before classification, so
// that ties in usage (common right after a disk is added) don't always
// favor the same folder. Grounded on the teacher's random-order-then-filter
// selection idiom (vacancyStorageFolder's shuffled candidate list).
func shuffle(fs []*folder.Folder) {
	perm := fastrand.Perm(len(fs))
	out := make([]*folder.Folder, len(fs))
	for i, p := range perm {
		out[i] = fs[p]
	}
	copy(fs, out)
}

// averageUsage returns the mean (total-avail)/total ratio across fs.
func averageUsage(fs []*folder.Folder) float64 {
	if len(fs) == 0 {
		return 0
	}
	var sum float64
	for _, f := range fs {
		avail, total := f.AvailTotal()
		if total == 0 {
			continue
		}
		sum += 1 - float64(avail)/float64(total)
	}
	return sum / float64(len(fs))
}

// Classify assigns each folder in fs a role for this round, using the
// average-usage +/-0.01 thresholds of §4.F (tightened to 0.005 on the
// destination side during an active burst), honoring FORCE_SRC/FORCE_DST
// overrides, and restricting source eligibility to disks with more than 100
// chunks by ChunkCount; the same count is used under a limit mode, with no
// separate known-count threshold.
func Classify(fs []*folder.Folder, burstActive bool) map[*folder.Folder]Classification {
	avg := averageUsage(fs)
	destThreshold := 0.01
	if burstActive {
		destThreshold = 0.005
	}

	out := make(map[*folder.Folder]Classification, len(fs))
	for _, f := range fs {
		if f.BalanceMode() == folder.BalanceForceSrc {
			out[f] = ClassSource
			continue
		}
		if f.BalanceMode() == folder.BalanceForceDst {
			out[f] = ClassDestination
			continue
		}
		avail, total := f.AvailTotal()
		if total == 0 {
			out[f] = ClassNeutral
			continue
		}
		usage := 1 - float64(avail)/float64(total)
		switch {
		case usage < avg-destThreshold:
			out[f] = ClassDestination
		case usage > avg+0.01 && f.ChunkCount() > 100:
			out[f] = ClassSource
		default:
			out[f] = ClassNeutral
		}
	}
	return out
}

// SelectTarget implements §4.F's weighted round-robin target selection,
// shared between new-chunk placement (write_*) and move-source selection
// (read_*): pick the folder minimizing total/sum(total) adjusted by its
// running correction, then update its correction and distance counters.
func SelectTarget(fs []*folder.Folder, write bool) *folder.Folder {
	if len(fs) == 0 {
		return nil
	}
	var sumTotal uint64
	for _, f := range fs {
		_, total := f.AvailTotal()
		sumTotal += total
	}
	if sumTotal == 0 {
		return fs[0]
	}

	var best *folder.Folder
	var bestErr float64
	for _, f := range fs {
		_, total := f.AvailTotal()
		share := float64(total) / float64(sumTotal)
		corr, dist, first := f.DistributionState(write)
		var errv float64
		if first {
			errv = 1
		} else {
			errv = (share + corr) / float64(dist+1)
		}
		if best == nil || errv < bestErr {
			best, bestErr = f, errv
		}
	}

	for _, f := range fs {
		_, total := f.AvailTotal()
		share := float64(total) / float64(sumTotal)
		if f == best {
			f.AdjustDistribution(write, share)
		} else {
			f.BumpDistance(write)
		}
	}
	return best
}

// RebalanceOnMask exposes hdd_is_rebalance_on's {std=1, hs=2} bitmask.
type RebalanceOnMask int32

const (
	MaskStd RebalanceOnMask = 1 << iota
	MaskHS
)

// Status tracks which rebalancer kinds are currently active, shared between
// the standard and high-speed movers via atomic bit operations.
type Status struct {
	mask int32
}

func (s *Status) Set(bit RebalanceOnMask) { atomicOr(&s.mask, int32(bit)) }
func (s *Status) Clear(bit RebalanceOnMask) {
	atomicAnd(&s.mask, ^int32(bit))
}
func (s *Status) Mask() RebalanceOnMask { return RebalanceOnMask(atomic.LoadInt32(&s.mask)) }

func atomicOr(addr *int32, bit int32) {
	for {
		old := atomic.LoadInt32(addr)
		if atomic.CompareAndSwapInt32(addr, old, old|bit) {
			return
		}
	}
}

func atomicAnd(addr *int32, mask int32) {
	for {
		old := atomic.LoadInt32(addr)
		if atomic.CompareAndSwapInt32(addr, old, old&mask) {
			return
		}
	}
}
