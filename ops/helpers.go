package ops

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/registry"
)

func joinPath(parts ...string) string {
	return filepath.Join(parts...)
}

func chunkFilePath(f *folder.Folder, c *registry.Chunk) string {
	return chunkFilePathFor(f, c.PathID, c.ChunkID, c.Version)
}

func chunkFilePathFor(f *folder.Folder, pathID uint16, id chunkid.ID, version uint32) string {
	return joinPath(f.Path(), folder.SubfolderName(pathID), folder.ChunkFilename(id, version))
}

// closeFile releases c's open descriptor without touching the registry or
// folder chunk table, used by operations that are about to rename/unlink the
// underlying file out from under the open fd.
func closeFile(c *registry.Chunk) {
	if c.File != nil {
		c.File.Close()
		c.File = nil
	}
	c.Block = nil
	c.BlockNo = 0xFFFF
}

// closeAndRemove closes c's file (if open) and removes its backing path,
// used to roll back a partially-created destination chunk.
func closeAndRemove(c *registry.Chunk, f *folder.Folder) {
	path := chunkFilePath(f, c)
	closeFile(c)
	os.Remove(path)
}

// rewriteVersionHeader pwrite's the new version into an already-renamed
// chunk file's header, reopening it if c's fd was closed by the rename.
func rewriteVersionHeader(path string, c *registry.Chunk) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], c.Version)
	_, err = f.WriteAt(buf[:], 16)
	return err
}
