package rebalance

import (
	"os"
	"testing"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/folder"
	"github.com/stretchr/testify/require"
)

// newTestFolder opens a Folder over a fresh temp directory, scan-complete
// and reporting a fixed total/avail via LimitTotalPosConst so tests don't
// depend on the real disk's statvfs numbers.
func newTestFolder(t *testing.T, id uint16, totalBytes uint64) *folder.Folder {
	t.Helper()
	dir := build.TempDir("rebalance", t.Name(), string(rune('A'+int(id))))
	require.NoError(t, os.MkdirAll(dir, 0700))

	f, err := folder.New(id, dir)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	f.SetLimit(folder.LimitTotalPosConst, totalBytes)
	require.NoError(t, f.RefreshUsage(0))
	f.SetScanState(folder.ScanWorking)
	return f
}

func TestEligibleExcludesDamagedAndRemoving(t *testing.T) {
	a := newTestFolder(t, 1, 1<<30)
	b := newTestFolder(t, 2, 1<<30)
	b.MarkDamaged()

	got := Eligible([]*folder.Folder{a, b}, 0)
	require.Len(t, got, 1)
	require.Same(t, a, got[0])
}

func TestEligibleExcludesNotScanWorking(t *testing.T) {
	a := newTestFolder(t, 1, 1<<30)
	b := newTestFolder(t, 2, 1<<30)
	b.SetScanState(folder.ScanNeeded)

	got := Eligible([]*folder.Folder{a, b}, 0)
	require.Len(t, got, 1)
	require.Same(t, a, got[0])
}

func TestClassifyForceOverridesWin(t *testing.T) {
	a := newTestFolder(t, 1, 1<<30)
	b := newTestFolder(t, 2, 1<<30)
	a.SetBalanceMode(folder.BalanceForceSrc)
	b.SetBalanceMode(folder.BalanceForceDst)

	out := Classify([]*folder.Folder{a, b}, false)
	require.Equal(t, ClassSource, out[a])
	require.Equal(t, ClassDestination, out[b])
}

func TestClassifyNeutralWhenUsageMatchesAverage(t *testing.T) {
	// With no chunks registered, every folder's estimated usage is zero
	// regardless of its configured total, so none deviate from the average
	// and all stay neutral - only the ForceSrc/ForceDst overrides (covered
	// above) can pull a folder out of ClassNeutral in that state.
	a := newTestFolder(t, 1, 1000)
	b := newTestFolder(t, 2, 1<<20)

	out := Classify([]*folder.Folder{a, b}, false)
	require.Equal(t, ClassNeutral, out[a])
	require.Equal(t, ClassNeutral, out[b])
}

func TestSelectTargetFirstPickUpdatesDistributionState(t *testing.T) {
	// Every fresh folder starts writeFirst=true, forcing errv=1 for all of
	// them; the tie resolves to whichever comes first in fs. What matters
	// is the side effect: the picked folder's "first" clears and its
	// distance resets, while the other folder's distance counter advances.
	a := newTestFolder(t, 1, 1<<20)
	b := newTestFolder(t, 2, 1<<30)

	got := SelectTarget([]*folder.Folder{a, b}, true)
	require.Same(t, a, got)

	_, aDist, aFirst := a.DistributionState(true)
	require.False(t, aFirst)
	require.Zero(t, aDist)

	_, bDist, bFirst := b.DistributionState(true)
	require.True(t, bFirst)
	require.Equal(t, uint32(1), bDist)
}

func TestSelectTargetNilOnEmpty(t *testing.T) {
	require.Nil(t, SelectTarget(nil, true))
}

func TestSelectTargetTieFavorsSameFolderUntilShareShifts(t *testing.T) {
	// Two folders with an identical total/sum(total) share both start with
	// writeFirst=true (forcing errv=1); ties go to whichever folder comes
	// first in fs, and a folder that's never been picked stays "first"
	// forever (BumpDistance doesn't clear it) - so an equal-share pair
	// keeps picking the same folder round after round.
	a := newTestFolder(t, 1, 1<<30)
	b := newTestFolder(t, 2, 1<<30)
	fs := []*folder.Folder{a, b}

	first := SelectTarget(fs, true)
	second := SelectTarget(fs, true)
	require.Same(t, first, second)
	require.Same(t, a, first)
}

func TestStatusMaskTracksBothBits(t *testing.T) {
	var st Status
	require.Equal(t, RebalanceOnMask(0), st.Mask())

	st.Set(MaskStd)
	require.Equal(t, MaskStd, st.Mask())

	st.Set(MaskHS)
	require.Equal(t, MaskStd|MaskHS, st.Mask())

	st.Clear(MaskStd)
	require.Equal(t, MaskHS, st.Mask())
}
