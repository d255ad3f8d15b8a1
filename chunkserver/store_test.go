package chunkserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/moosefs/chunkserver/build"
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/config"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/persist"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, name string, numDisks int) *Store {
	t.Helper()
	root := build.TempDir("chunkserver", name)
	require.NoError(t, os.MkdirAll(root, 0700))

	logPath := filepath.Join(root, "chunkserver.log")
	logger, err := persist.NewLogger(logPath)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	instanceID, err := LoadOrCreateInstanceID(root)
	require.NoError(t, err)

	s := New(logger, config.DefaultSettings(), instanceID)

	var entries []config.DiskEntry
	for i := 0; i < numDisks; i++ {
		dir := filepath.Join(root, "disk"+string(rune('0'+i)))
		require.NoError(t, os.MkdirAll(dir, 0700))
		entries = append(entries, config.DiskEntry{Path: dir})
	}
	require.NoError(t, s.ApplyDiskConfig(entries))

	// Simulate a completed folders_thread bring-up (empty-disk scan, usage
	// refresh) synchronously so tests don't race the real background pass.
	for _, f := range s.Folders() {
		f.SetScanState(folder.ScanWorking)
		require.NoError(t, f.RefreshUsage(0))
	}
	return s
}

func TestDispatchCreateThenDelete(t *testing.T) {
	s := newTestStore(t, t.Name(), 2)

	id := chunkid.ID(0xAAAA000000000001)
	res, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Chunk)
	require.Equal(t, uint32(1), res.Chunk.Version)

	_, err = s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 0})
	require.NoError(t, err)

	require.Equal(t, 0, s.Registry.Count())
}

func TestDispatchVersionBump(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	id := chunkid.ID(0xBBBB000000000001)

	_, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 1})
	require.NoError(t, err)

	res, err := s.Dispatch(ChunkOpRequest{
		ChunkID: id, Version: 1, NewVersion: 2, Length: lengthAllParts,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(2), res.Chunk.Version)
}

func TestDispatchVersionBumpWrongVersionRejected(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	id := chunkid.ID(0xCCCC000000000001)

	_, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 1})
	require.NoError(t, err)

	_, err = s.Dispatch(ChunkOpRequest{
		ChunkID: id, Version: 99, NewVersion: 2, Length: lengthAllParts,
	})
	require.Error(t, err)
}

func TestDispatchDuplicate(t *testing.T) {
	s := newTestStore(t, t.Name(), 2)
	id := chunkid.ID(0xDDDD000000000001)
	dstID := chunkid.ID(0xDDDD000000000002)

	_, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 1})
	require.NoError(t, err)

	res, err := s.Dispatch(ChunkOpRequest{
		ChunkID: id, Version: 1, NewVersion: 2,
		CopyChunkID: dstID, CopyVersion: 5, Length: lengthAllParts,
	})
	require.NoError(t, err)
	require.Equal(t, dstID, res.Chunk.ChunkID)
	require.Equal(t, uint32(5), res.Chunk.Version)
}

func TestDispatchReplicatorLengthSkipsSpaceChanged(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	id := chunkid.ID(0xEEEE000000000001)

	_, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 11})
	require.NoError(t, err)
	require.False(t, s.Reports.SpaceChanged())
}

func TestDispatchUnrecognizedShapeIsInvalid(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	_, err := s.Dispatch(ChunkOpRequest{ChunkID: 1, Version: 1, NewVersion: 0, Length: 99})
	require.Error(t, err)
}

func TestEnumerationDrainsSnapshot(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	for i := 0; i < 5; i++ {
		_, err := s.Dispatch(ChunkOpRequest{ChunkID: chunkid.ID(i + 1), Version: 1, Length: 1})
		require.NoError(t, err)
	}

	cur := s.BeginEnumeration(false)
	require.Equal(t, 5, cur.NextListCount(100))
	got := cur.NextListData(2)
	require.Len(t, got, 2)
	require.Equal(t, 3, cur.NextListCount(100))
	got = cur.NextListData(100)
	require.Len(t, got, 3)
	require.True(t, cur.Done())
	require.NoError(t, s.EndEnumeration(cur))
}

func TestDiskInfoDataReflectsOpenFolders(t *testing.T) {
	s := newTestStore(t, t.Name(), 3)
	require.Equal(t, 3, s.DiskInfoSize())
	reports := s.DiskInfoData()
	require.Len(t, reports, 3)
}

func TestStoreStartAndShutdown(t *testing.T) {
	s := newTestStore(t, t.Name(), 1)
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown())
}

func TestDispatchSplit(t *testing.T) {
	s := newTestStore(t, t.Name(), 5)
	id := chunkid.ID(0x00F00D0000000001)

	_, err := s.Dispatch(ChunkOpRequest{ChunkID: id, Version: 1, Length: 1})
	require.NoError(t, err)

	// numParts=4, missingparts = all 5 destinations (bits 0-4).
	res, err := s.Dispatch(ChunkOpRequest{
		ChunkID: id, Version: 1, NewVersion: 7,
		CopyVersion: 4, Length: splitLengthBit | 0x1F,
	})
	require.NoError(t, err)
	require.Len(t, res.Parts, 5)
	for _, p := range res.Parts {
		require.Equal(t, uint32(7), p.Version)
	}
}
