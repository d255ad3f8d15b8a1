package iostore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/crc32ext"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/registry"
)

func newTestChunk(id chunkid.ID, version uint32) *registry.Chunk {
	reg := registry.New()
	c, err := reg.Get(id, registry.ModeNewOnly)
	if err != nil {
		panic(err)
	}
	c.Version = version
	c.PathID = 0
	return c
}

func setupDir(t *testing.T, name string) string {
	dir := build.TempDir("iostore", name)
	if err := os.MkdirAll(filepath.Join(dir, folder.SubfolderName(0)), 0700); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestCreateWriteReadRoundTrip writes a full block then reads it back,
// checking both the data and the CRC match.
func TestCreateWriteReadRoundTrip(t *testing.T) {
	dir := setupDir(t, "TestCreateWriteReadRoundTrip")
	c := newTestChunk(0x0102030405060708, 1)
	budget := NewOpenFileBudget(8)

	if err := Begin(c, dir, OpenNew, false, budget); err != nil {
		t.Fatal(err)
	}

	payload := make([]byte, BlockSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := WriteBlock(c, 0, 0, payload, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := End(c); err != nil {
		t.Fatal(err)
	}

	got, crc, err := ReadBlock(c, 1, 0, 0, BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	if crc != crc32ext.Checksum(payload) {
		t.Fatalf("crc mismatch: got %x want %x", crc, crc32ext.Checksum(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %x want %x", i, got[i], payload[i])
		}
	}
}

// TestWriteSparsifiedZeroBlock appends an all-zero block with sparsification
// and checks that its table entry is the IEEE CRC32 of 64 KiB of zeros,
// 0xD7978EEB.
func TestWriteSparsifiedZeroBlock(t *testing.T) {
	dir := setupDir(t, "TestWriteSparsifiedZeroBlock")
	c := newTestChunk(0x0102030405060709, 1)
	budget := NewOpenFileBudget(8)

	if err := Begin(c, dir, OpenNew, false, budget); err != nil {
		t.Fatal(err)
	}
	zeros := make([]byte, BlockSize)
	if err := WriteBlock(c, 0, 0, zeros, 0, true); err != nil {
		t.Fatal(err)
	}

	tbl, err := table(c)
	if err != nil {
		t.Fatal(err)
	}
	if tbl[0] != 0xD7978EEB {
		t.Fatalf("expected zero-block crc 0xD7978EEB, got %#x", tbl[0])
	}
}

// TestTruncateShrinkRecomputesTailCRC truncates into the middle of a block
// and checks the tail CRC is the zero-expand combine of the retained bytes.
func TestTruncateShrinkRecomputesTailCRC(t *testing.T) {
	dir := setupDir(t, "TestTruncateShrinkRecomputesTailCRC")
	c := newTestChunk(0x010203040506070A, 1)
	budget := NewOpenFileBudget(8)

	if err := Begin(c, dir, OpenNew, false, budget); err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, BlockSize)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	if err := WriteBlock(c, 0, 0, payload, 0, false); err != nil {
		t.Fatal(err)
	}

	const newLen = 33000
	if err := Truncate(c, newLen); err != nil {
		t.Fatal(err)
	}
	if c.Blocks != 1 {
		t.Fatalf("expected 1 block after truncate, got %d", c.Blocks)
	}

	expectedData := make([]byte, newLen)
	copy(expectedData, payload[:newLen])
	dataCRC := crc32ext.Checksum(expectedData)
	wantCRC := crc32ext.Combine(dataCRC, crc32ext.ZeroCRC(BlockSize-newLen), int64(BlockSize-newLen))

	tbl, err := table(c)
	if err != nil {
		t.Fatal(err)
	}
	if tbl[0] != wantCRC {
		t.Fatalf("tail crc mismatch: got %#x want %#x", tbl[0], wantCRC)
	}
}

// TestReadBeyondBlocksReturnsZero checks the §4.C "blocknum >= c.blocks"
// short-circuit.
func TestReadBeyondBlocksReturnsZero(t *testing.T) {
	dir := setupDir(t, "TestReadBeyondBlocksReturnsZero")
	c := newTestChunk(0x010203040506070B, 1)
	budget := NewOpenFileBudget(8)
	if err := Begin(c, dir, OpenNew, false, budget); err != nil {
		t.Fatal(err)
	}

	data, crc, err := ReadBlock(c, 1, 5, 0, BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	if crc != crc32ext.ZeroBlockCRC() {
		t.Fatalf("expected zero-block crc, got %#x", crc)
	}
	for _, b := range data {
		if b != 0 {
			t.Fatal("expected all-zero data")
		}
	}
}
