package folder

import (
	"os"
	"testing"

	"github.com/moosefs/chunkserver/build"
)

func newTestFolder(t *testing.T, name string) *Folder {
	t.Helper()
	dir := build.TempDir("folder", name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	f, err := New(1, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNewOpensInScanNeeded(t *testing.T) {
	f := newTestFolder(t, t.Name())
	if f.ScanState() != ScanNeeded {
		t.Fatalf("ScanState() = %v, want ScanNeeded", f.ScanState())
	}
	if f.ToRemove() != ToRemoveNo {
		t.Fatalf("ToRemove() = %v, want ToRemoveNo", f.ToRemove())
	}
}

func TestStartRemovalThenCancel(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.StartRemoval()
	if f.ToRemove() != ToRemoveStart {
		t.Fatalf("ToRemove() = %v, want ToRemoveStart", f.ToRemove())
	}
	f.CancelRemoval()
	if f.ToRemove() != ToRemoveNo {
		t.Fatalf("ToRemove() = %v, want ToRemoveNo after cancel", f.ToRemove())
	}
}

func TestCancelRemovalNoopsPastStart(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.StartRemoval()
	f.SetScanState(ScanBGFinished) // simulate drain having made progress
	// Manually advance past REMOVING_START to mimic an in-progress drain.
	f.mu.Lock()
	f.toRemove = ToRemoveInProgress
	f.mu.Unlock()

	f.CancelRemoval()
	if f.ToRemove() != ToRemoveInProgress {
		t.Fatalf("ToRemove() = %v, want CancelRemoval to no-op past REMOVING_START", f.ToRemove())
	}
}

func TestMarkDamagedStartsRemoval(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.MarkDamaged()
	if !f.IsDamaged() {
		t.Fatal("expected IsDamaged true")
	}
	if f.ToRemove() != ToRemoveStart {
		t.Fatalf("ToRemove() = %v, want ToRemoveStart", f.ToRemove())
	}
}

func TestRecordErrorExceedsTolerance(t *testing.T) {
	f := newTestFolder(t, t.Name())

	exceeded := f.RecordError(1, 5, 1000, 1000, 2, 600)
	if exceeded {
		t.Fatal("expected tolerance not yet exceeded on first error")
	}
	exceeded = f.RecordError(2, 5, 1001, 1001, 2, 600)
	if exceeded {
		t.Fatal("expected tolerance not yet exceeded on second error")
	}
	exceeded = f.RecordError(3, 5, 1002, 1002, 2, 600)
	if !exceeded {
		t.Fatal("expected tolerance exceeded on third error within the window")
	}
	if f.TotalErrorCount() != 3 {
		t.Fatalf("TotalErrorCount() = %d, want 3", f.TotalErrorCount())
	}
}

func TestRecordErrorResetsAfterTolerancePeriod(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.RecordError(1, 5, 1000, 1000, 2, 600)
	f.RecordError(2, 5, 1001, 1001, 2, 600)
	// Past the tolerance period: the window resets instead of accumulating.
	exceeded := f.RecordError(3, 5, 2000, 2000, 2, 600)
	if exceeded {
		t.Fatal("expected the error window to have reset past the tolerance period")
	}
}

func TestClearErrors(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.RecordError(1, 5, 1000, 1000, 2, 600)
	f.ClearErrors()
	if f.TotalErrorCount() != 0 {
		t.Fatalf("TotalErrorCount() = %d, want 0 after ClearErrors", f.TotalErrorCount())
	}
}

func TestInfoReflectsState(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.SetReadOnly(true)
	info := f.Info()
	if !info.ReadOnly {
		t.Fatal("expected Info().ReadOnly true")
	}
	if info.Path != f.Path() {
		t.Fatalf("Info().Path = %q, want %q", info.Path, f.Path())
	}
	if info.ChunkCount != 0 {
		t.Fatalf("Info().ChunkCount = %d, want 0", info.ChunkCount)
	}
}

func TestConfigStateAccessors(t *testing.T) {
	f := newTestFolder(t, t.Name())
	f.SetMarkForRemoval(MFRYes)
	if f.MarkForRemoval() != MFRYes {
		t.Fatal("expected MarkForRemoval MFRYes")
	}
	f.SetIgnoreSize(true)
	if !f.IgnoreSize() {
		t.Fatal("expected IgnoreSize true")
	}
}
