package chunkserver

import (
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/stats"
)

// DiskReport pairs one folder's identity/lifecycle snapshot with its live
// and monotonic op-class windows, the unit the diskinfo_size/diskinfo_data
// pair of §6 hands back per disk.
type DiskReport struct {
	folder.DiskInfo
	Current   stats.Window
	OneHour   stats.Window
	OneDay    stats.Window
	Monotonic stats.Window
}

// DiskInfoSize implements diskinfo_size: the number of disks the following
// DiskInfoData call will describe.
func (s *Store) DiskInfoSize() int { return len(s.Folders()) }

// DiskInfoData implements diskinfo_data/diskinfo_monotonic_*: one DiskReport
// per currently open folder, with the ring summed into the 1-hour/24-hour
// windows §4.J calls for (the ring itself is 24x60 one-minute slots).
func (s *Store) DiskInfoData() []DiskReport {
	folders := s.Folders()
	out := make([]DiskReport, 0, len(folders))
	for _, f := range folders {
		out = append(out, DiskReport{
			DiskInfo:  f.Info(),
			Current:   f.Stats().Current(),
			OneHour:   sumRing(f.Stats().Ring(), 60),
			OneDay:    sumRing(f.Stats().Ring(), ringFullDay),
			Monotonic: f.MonotonicStats().Monotonic(),
		})
	}
	return out
}

// ringFullDay is the full width of HDDStats' ring (24 hours of one-minute
// slots); summing over it gives the 24-hour diskinfo window.
const ringFullDay = 24 * 60

// sumRing merges the most recent n minute-windows of ring (oldest-to-newest
// order, per HDDStats.Ring) into one Window, for the diskinfo_data 1-hour
// and 24-hour aggregates.
func sumRing(ring []stats.Window, n int) stats.Window {
	var out stats.Window
	start := len(ring) - n
	if start < 0 {
		start = 0
	}
	for _, w := range ring[start:] {
		for class := range out {
			out[class].Bytes += w[class].Bytes
			out[class].NsecSum += w[class].NsecSum
			out[class].OpsCount += w[class].OpsCount
			if w[class].NsecMax > out[class].NsecMax {
				out[class].NsecMax = w[class].NsecMax
			}
		}
	}
	return out
}

// GlobalRebalanceOn reports whether either rebalancer is currently active,
// feeding the §4.J "global_rebalance_is_on" aggregate flag.
func (s *Store) GlobalRebalanceOn() bool {
	return s.rebalanceStats.Mask() != 0
}
