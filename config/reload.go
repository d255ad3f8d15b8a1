package config

import (
	"github.com/moosefs/chunkserver/folder"
)

// OpenFolder creates a new folder.Folder for path, the seam a caller
// supplies to Reload so this package never has to know how IDs are
// assigned or how a folder's background threads get started.
type OpenFolder func(id uint16, path string) (*folder.Folder, error)

// Reload applies §4.K's reload semantics against the currently-running set
// of folders (keyed by absolute path): every non-removing folder is first
// marked REMOVING_START, then each entry in entries either matches an
// existing folder by path (updating its flags/limit in place, restoring it
// from the pending removal, and restarting SCAN_NEEDED if it was damaged
// with zero chunks) or is opened fresh via open. Folders whose path no
// longer appears in entries stay marked REMOVING_START, are not closed, and
// are not included in the returned map.
func Reload(existing map[string]*folder.Folder, entries []DiskEntry, nextID func() uint16, open OpenFolder) (map[string]*folder.Folder, error) {
	for _, f := range existing {
		if f.ToRemove() == folder.ToRemoveNo {
			f.StartRemoval()
		}
	}

	result := make(map[string]*folder.Folder, len(entries))
	for _, e := range entries {
		f, ok := existing[e.Path]
		if ok {
			applyEntry(f, e)
			result[e.Path] = f
			continue
		}

		nf, err := open(nextID(), e.Path)
		if err != nil {
			return nil, err
		}
		applyEntry(nf, e)
		result[e.Path] = nf
	}
	return result, nil
}

// applyEntry updates an existing (or freshly opened) folder's operator-
// controlled flags from a parsed config entry, and implements the
// "damaged folders with chunkcount=0 restart as SCAN_NEEDED" reload rule.
func applyEntry(f *folder.Folder, e DiskEntry) {
	f.SetIgnoreSize(e.IgnoreSize)
	f.SetLimit(e.LimitMode, e.LimitData)

	switch {
	case e.ForceDst:
		f.SetBalanceMode(folder.BalanceForceDst)
	case e.ForceSrc:
		f.SetBalanceMode(folder.BalanceForceSrc)
	default:
		f.SetBalanceMode(folder.BalanceStd)
	}

	if e.MarkForRemoval {
		f.SetMarkForRemoval(folder.MFRYes)
		f.StartRemoval()
	} else {
		f.SetMarkForRemoval(folder.MFRNo)
		if f.IsDamaged() && f.ChunkCount() == 0 {
			f.SetScanState(folder.ScanNeeded)
		}
		restoreFromRemoval(f)
	}
}

// restoreFromRemoval cancels a drain that has not progressed past its
// initial request, for a folder that reappeared in a reparsed config
// without the '*' sigil.
func restoreFromRemoval(f *folder.Folder) {
	f.CancelRemoval()
}
