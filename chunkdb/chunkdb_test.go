package chunkdb

import (
	"os"
	"testing"
	"time"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/chunkid"
)

func setupDir(t *testing.T) string {
	dir := build.TempDir("chunkdb", t.Name())
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return dir
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := setupDir(t)

	entries := []Entry{
		{ChunkID: chunkid.ID(1), Version: 1, Blocks: 10, HdrSize: 1024, PathID: 3, Tested: true, DiskUsage: 123456},
		{ChunkID: chunkid.ID(2), Version: 7, Blocks: 0xFFFF, HdrSize: 4096, PathID: 0, Tested: false, DiskUsage: 0},
	}
	if err := Write(dir, "/mnt/hdd1", entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	path, got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if path != "/mnt/hdd1" {
		t.Fatalf("folder path = %q, want /mnt/hdd1", path)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	dir := setupDir(t)
	if err := Write(dir, "/mnt/hdd2", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	path, got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if path != "/mnt/hdd2" || len(got) != 0 {
		t.Fatalf("got path=%q entries=%v", path, got)
	}
}

func TestRejectsPathIDOver255(t *testing.T) {
	dir := setupDir(t)
	entries := []Entry{{ChunkID: chunkid.ID(1), PathID: 256}}
	if err := Write(dir, "/mnt/hdd3", entries); err == nil {
		t.Fatal("expected error for pathid > 255")
	}
}

func TestValidRejectsStaleSnapshot(t *testing.T) {
	dir := setupDir(t)
	if err := Write(dir, "/mnt/hdd4", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if Valid(dir, []time.Time{future}, false, false, false) {
		t.Fatal("expected Valid to reject a snapshot older than a subfolder mtime")
	}
	if !Valid(dir, []time.Time{time.Now().Add(-time.Hour)}, false, false, false) {
		t.Fatal("expected Valid to accept a snapshot newer than all subfolder mtimes")
	}
}

func TestValidRejectsDisqualifyingConditions(t *testing.T) {
	dir := setupDir(t)
	if err := Write(dir, "/mnt/hdd5", nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if Valid(dir, nil, true, false, false) {
		t.Fatal("pending WFR entries should invalidate the snapshot")
	}
	if Valid(dir, nil, false, true, false) {
		t.Fatal("damaged folder should invalidate the snapshot")
	}
	if Valid(dir, nil, false, false, true) {
		t.Fatal("read-only folder should invalidate the snapshot")
	}
}
