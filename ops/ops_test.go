package ops

import (
	"os"
	"testing"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/iostore"
	"github.com/moosefs/chunkserver/registry"
)

func newTestFolder(t *testing.T, name string) *folder.Folder {
	t.Helper()
	dir := build.TempDir("ops", name)
	if err := os.MkdirAll(dir+"/"+folder.SubfolderName(0), 0700); err != nil {
		t.Fatal(err)
	}
	f, err := folder.New(1, dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func newTestContext() *Context {
	return &Context{
		Registry: registry.New(),
		Budget:   iostore.NewOpenFileBudget(32),
		Sparsify: true,
	}
}

// TestCreateThenDelete exercises the create/delete round trip, checking the
// file is actually removed and the folder's chunk table shrinks back to 0.
func TestCreateThenDelete(t *testing.T) {
	ctx := newTestContext()
	f := newTestFolder(t, "TestCreateThenDelete")

	id := chunkid.ID(0x1111111111111111)
	c, err := ctx.Create(f, id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if f.ChunkCount() != 1 {
		t.Fatalf("expected 1 chunk, got %d", f.ChunkCount())
	}

	locked, err := ctx.Registry.Get(id, registry.ModeExistingOnly)
	if err != nil {
		t.Fatal(err)
	}
	if locked != c {
		t.Fatal("expected same chunk pointer back from registry")
	}
	if err := ctx.Delete(f, locked); err != nil {
		t.Fatal(err)
	}
	if f.ChunkCount() != 0 {
		t.Fatalf("expected 0 chunks after delete, got %d", f.ChunkCount())
	}
	if _, err := ctx.Registry.Get(id, registry.ModeExistingOnly); err == nil {
		t.Fatal("expected deleted chunk to be gone from the registry")
	}
}

// TestVersionBump renames the backing file and updates the in-memory and
// on-disk version.
func TestVersionBump(t *testing.T) {
	ctx := newTestContext()
	f := newTestFolder(t, "TestVersionBump")

	id := chunkid.ID(0x2222222222222222)
	c, err := ctx.Create(f, id, 1)
	if err != nil {
		t.Fatal(err)
	}
	locked, err := ctx.Registry.Get(id, registry.ModeExistingOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Version(f, locked, 2); err != nil {
		t.Fatal(err)
	}
	if locked.Version != 2 {
		t.Fatalf("expected version 2, got %d", locked.Version)
	}
	if _, err := os.Stat(chunkFilePath(f, c)); err != nil {
		t.Fatalf("expected renamed file to exist: %v", err)
	}
}

// TestDuplicateCopiesData writes a block to the source, duplicates it, and
// checks the destination reads back the same content.
func TestDuplicateCopiesData(t *testing.T) {
	ctx := newTestContext()
	srcFolder := newTestFolder(t, "TestDuplicateCopiesData_src")
	dstFolder := newTestFolder(t, "TestDuplicateCopiesData_dst")

	srcID := chunkid.ID(0x3333333333333333)
	if _, err := ctx.Create(srcFolder, srcID, 1); err != nil {
		t.Fatal(err)
	}
	locked, err := ctx.Registry.Get(srcID, registry.ModeExistingOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := iostore.Begin(locked, srcFolder.Path(), iostore.OpenIgnoreVersion, false, ctx.Budget); err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, iostore.BlockSize)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	if err := iostore.WriteBlock(locked, 0, 0, payload, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := iostore.End(locked); err != nil {
		t.Fatal(err)
	}

	dstID := chunkid.ID(0x4444444444444444)
	dst, err := ctx.Duplicate(srcFolder, locked, 2, dstFolder, dstID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if dst.Blocks != 1 {
		t.Fatalf("expected 1 block copied, got %d", dst.Blocks)
	}

	locked2, err := ctx.Registry.Get(dstID, registry.ModeExistingOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := iostore.Begin(locked2, dstFolder.Path(), iostore.OpenIgnoreVersion, false, ctx.Budget); err != nil {
		t.Fatal(err)
	}
	got, _, err := iostore.ReadBlock(locked2, 0, 0, 0, iostore.BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d mismatch after duplicate", i)
		}
	}
}
