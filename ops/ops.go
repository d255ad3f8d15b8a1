// Package ops implements the composed chunk operations of §4.D: create,
// delete, version, duplicate, truncate, duptrunc, split and move. Each
// operation is built from package registry (locate/create/delete), package
// folder (destination selection, chunk-table bookkeeping) and package
// iostore (the actual byte-level work), with rollback on any failure partway
// through. Grounded on contractmanager's storagefolderadd.go staged
// add-then-commit-or-rollback discipline (a failed partway-through add tears
// down exactly the partial state it created).
package ops

import (
	"os"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/iostore"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/status"
)

// SplitPlan names, for one destination part of a split, which part index
// (0..numParts-1 for data, numParts for parity) it materializes and which
// folder should hold it.
type SplitPlan struct {
	Part   int
	Folder *folder.Folder
}

// Context bundles the shared collaborators every chunk operation needs.
type Context struct {
	Registry      *registry.Registry
	Budget        *iostore.OpenFileBudget
	Sparsify      bool
	RemoveWFREntry func(id chunkid.ID, version uint32, pathID uint16, owner registry.FolderHandle)
}

// Create implements §4.D's create: a destination folder is chosen by the
// caller (the rebalancer/placement policy lives outside this package), a
// fresh registry entry is created LOCKED, and a new chunk file is written
// with a header carrying its id and version and a CRC table whose entries
// are all the zero-block CRC. On any failure the registry entry and
// any partial file are removed.
func (ctx *Context) Create(f *folder.Folder, id chunkid.ID, version uint32) (*registry.Chunk, error) {
	c, err := ctx.Registry.Get(id, registry.ModeNewOnly)
	if err != nil {
		return nil, err
	}
	c.Version = version
	c.PathID = f.NextPathID(0)

	if err := iostore.Begin(c, f.Path(), iostore.OpenNew, false, ctx.Budget); err != nil {
		ctx.Registry.Delete(c)
		return nil, err
	}
	if err := iostore.End(c); err != nil {
		closeAndRemove(c, f)
		ctx.Registry.Delete(c)
		return nil, err
	}
	f.AddChunk(c)
	ctx.Registry.Release(c)
	return c, nil
}

// Delete implements §4.D's delete: c must already be LOCKED (via
// ctx.Registry.Get). The backing file is unlinked, the chunk is removed from
// its folder's chunk table, and the registry record transitions to DELETED.
func (ctx *Context) Delete(f *folder.Folder, c *registry.Chunk) error {
	path := chunkFilePath(f, c)
	closeFile(c)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		ctx.Registry.Release(c)
		return status.ErrIO
	}
	if ctx.RemoveWFREntry != nil {
		ctx.RemoveWFREntry(c.ChunkID, c.Version, c.PathID, c.Owner)
	}
	f.RemoveChunk(c)
	ctx.Registry.Delete(c)
	return nil
}

// Version implements §4.D's version op: renames the backing file to the new
// version suffix and rewrites the 4-byte version field at header offset 16,
// with no data copy. On failure the rename is reversed.
func (ctx *Context) Version(f *folder.Folder, c *registry.Chunk, newVersion uint32) error {
	oldPath := chunkFilePath(f, c)
	oldVersion := c.Version
	newPath := chunkFilePathFor(f, c.PathID, c.ChunkID, newVersion)

	closeFile(c)
	if err := os.Rename(oldPath, newPath); err != nil {
		return status.ErrIO
	}
	c.Version = newVersion

	if err := rewriteVersionHeader(newPath, c); err != nil {
		os.Rename(newPath, oldPath)
		c.Version = oldVersion
		return err
	}
	return nil
}

// Truncate implements §4.D's truncate: bumps the chunk to newVersion (via
// Version) then adjusts block count/CRCs for the new length.
func (ctx *Context) Truncate(f *folder.Folder, c *registry.Chunk, length int64, newVersion uint32) error {
	if err := ctx.Version(f, c, newVersion); err != nil {
		return err
	}
	if err := iostore.Begin(c, f.Path(), iostore.OpenIgnoreVersion, f.IsDamaged(), ctx.Budget); err != nil {
		return err
	}
	if err := iostore.Truncate(c, length); err != nil {
		iostore.End(c)
		return err
	}
	return iostore.End(c)
}

// Duplicate implements §4.D's duplicate: the source is bumped to newVersion
// in place, and a fresh chunk is created at dstID/dstVersion in dstFolder
// whose header, CRC table and every occupied block are copied from the
// (now-renamed) source, with optional sparsification on write.
func (ctx *Context) Duplicate(srcFolder *folder.Folder, src *registry.Chunk, newVersion uint32, dstFolder *folder.Folder, dstID chunkid.ID, dstVersion uint32) (*registry.Chunk, error) {
	if err := ctx.Version(srcFolder, src, newVersion); err != nil {
		return nil, err
	}
	if err := iostore.Begin(src, srcFolder.Path(), iostore.OpenIgnoreVersion, srcFolder.IsDamaged(), ctx.Budget); err != nil {
		return nil, err
	}
	defer iostore.End(src)

	dst, err := ctx.Registry.Get(dstID, registry.ModeNewOnly)
	if err != nil {
		return nil, err
	}
	dst.Version = dstVersion
	dst.PathID = dstFolder.NextPathID(0)

	if err := iostore.Begin(dst, dstFolder.Path(), iostore.OpenNew, false, ctx.Budget); err != nil {
		ctx.Registry.Delete(dst)
		return nil, err
	}

	for b := 0; b < int(src.Blocks); b++ {
		data, _, err := iostore.ReadBlock(src, 0, b, 0, iostore.BlockSize)
		if err != nil {
			closeAndRemove(dst, dstFolder)
			ctx.Registry.Delete(dst)
			return nil, err
		}
		if err := iostore.WriteBlock(dst, b, 0, data, 0, ctx.Sparsify); err != nil {
			closeAndRemove(dst, dstFolder)
			ctx.Registry.Delete(dst)
			return nil, err
		}
	}
	if err := iostore.End(dst); err != nil {
		closeAndRemove(dst, dstFolder)
		ctx.Registry.Delete(dst)
		return nil, err
	}

	dstFolder.AddChunk(dst)
	ctx.Registry.Release(dst)
	return dst, nil
}

// DupTrunc composes Duplicate and a destination-side Truncate (§4.D
// duptrunc): the copy is made first, then the destination is shrunk or grown
// to length in a single pass so only one ftruncate is issued on expansion.
func (ctx *Context) DupTrunc(srcFolder *folder.Folder, src *registry.Chunk, newVersion uint32, dstFolder *folder.Folder, dstID chunkid.ID, dstVersion uint32, length int64) (*registry.Chunk, error) {
	dst, err := ctx.Duplicate(srcFolder, src, newVersion, dstFolder, dstID, dstVersion)
	if err != nil {
		return nil, err
	}
	if err := iostore.Begin(dst, dstFolder.Path(), iostore.OpenIgnoreVersion, false, ctx.Budget); err != nil {
		return dst, err
	}
	if err := iostore.Truncate(dst, length); err != nil {
		iostore.End(dst)
		return dst, err
	}
	return dst, iostore.End(dst)
}

// Move implements the rebalancer-invoked move of §4.D: copies c's content
// into a temporary file on dstFolder, then atomically renames it into place
// and unlinks the source, updating ownership.
func (ctx *Context) Move(srcFolder, dstFolder *folder.Folder, c *registry.Chunk) error {
	if err := iostore.Begin(c, srcFolder.Path(), iostore.OpenIgnoreVersion, srcFolder.IsDamaged(), ctx.Budget); err != nil {
		return err
	}
	defer iostore.End(c)

	newPathID := dstFolder.NextPathID(0)
	tmpName := "reptmp_" + folder.ChunkFilename(c.ChunkID, c.Version)
	tmpPath := joinPath(dstFolder.Path(), folder.SubfolderName(newPathID), tmpName)

	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return status.ErrIO
	}

	hdr := iostore.Header{ChunkID: uint64(c.ChunkID), Version: c.Version, HdrSize: c.HdrSize}
	if _, err := tmp.WriteAt(hdr.Encode(), 0); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return status.ErrIO
	}
	if _, err := tmp.WriteAt(c.CRC, int64(c.HdrSize)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return status.ErrIO
	}
	for b := 0; b < int(c.Blocks); b++ {
		data, _, err := iostore.ReadBlock(c, 0, b, 0, iostore.BlockSize)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
		if _, err := tmp.WriteAt(data, int64(c.HdrSize)+iostore.CRCTableSize+int64(b)*iostore.BlockSize); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return status.ErrIO
		}
	}
	tmp.Close()

	finalPath := joinPath(dstFolder.Path(), folder.SubfolderName(newPathID), folder.ChunkFilename(c.ChunkID, c.Version))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return status.ErrIO
	}

	oldPath := chunkFilePath(srcFolder, c)
	closeFile(c)
	os.Remove(oldPath)

	srcFolder.RemoveChunk(c)
	c.PathID = newPathID
	dstFolder.AddChunk(c)
	return nil
}

// Split implements §4.D's split: src (a plain copy-chunk, high byte 0) is
// striped round-robin across numParts (4 or 8) data chunks, block b of the
// source landing on part b%numParts at part-local block b/numParts; a
// parity chunk (part index numParts) accumulates the XOR of every part's
// block at each part-local index. Only the parts named in plans are
// materialized (the missingparts selection of §4.D); everything is written
// at version 0 first and renamed to version only once every plan has
// succeeded, so a partial failure leaves no half-versioned part behind.
func (ctx *Context) Split(srcFolder *folder.Folder, src *registry.Chunk, numParts int, plans []SplitPlan, version uint32) ([]*registry.Chunk, error) {
	if numParts != 4 && numParts != 8 {
		return nil, status.ErrInvalid
	}
	if chunkid.Base(src.ChunkID) != uint64(src.ChunkID) {
		return nil, errNotCopyChunk
	}

	if err := iostore.Begin(src, srcFolder.Path(), iostore.OpenIgnoreVersion, srcFolder.IsDamaged(), ctx.Budget); err != nil {
		return nil, err
	}
	defer iostore.End(src)

	partBlocks := (int(src.Blocks) + numParts - 1) / numParts
	parity := make([][]byte, partBlocks)

	dests := make([]*registry.Chunk, len(plans))
	destFolders := make([]*folder.Folder, len(plans))
	for i, plan := range plans {
		id := chunkid.ECPart(src.ChunkID, numParts, plan.Part)
		dst, err := ctx.Registry.Get(id, registry.ModeNewOnly)
		if err != nil {
			rollbackOpenSplit(ctx, dests, destFolders)
			return nil, err
		}
		dst.Version = 0
		dst.PathID = plan.Folder.NextPathID(0)
		if err := iostore.Begin(dst, plan.Folder.Path(), iostore.OpenNew, false, ctx.Budget); err != nil {
			ctx.Registry.Delete(dst)
			rollbackOpenSplit(ctx, dests, destFolders)
			return nil, err
		}
		dests[i] = dst
		destFolders[i] = plan.Folder
	}

	for b := 0; b < int(src.Blocks); b++ {
		data, _, err := iostore.ReadBlock(src, 0, b, 0, iostore.BlockSize)
		if err != nil {
			rollbackOpenSplit(ctx, dests, destFolders)
			return nil, err
		}
		part := b % numParts
		partBlock := b / numParts
		xorInto(parity, partBlock, data)

		for i, plan := range plans {
			if plan.Part == part {
				if err := iostore.WriteBlock(dests[i], partBlock, 0, data, 0, ctx.Sparsify); err != nil {
					rollbackOpenSplit(ctx, dests, destFolders)
					return nil, err
				}
			}
		}
	}
	for i, plan := range plans {
		if plan.Part != numParts {
			continue
		}
		for pb, block := range parity {
			if block == nil {
				continue
			}
			if err := iostore.WriteBlock(dests[i], pb, 0, block, 0, ctx.Sparsify); err != nil {
				rollbackOpenSplit(ctx, dests, destFolders)
				return nil, err
			}
		}
	}

	for i, dst := range dests {
		if err := iostore.End(dst); err != nil {
			rollbackOpenSplit(ctx, dests, destFolders)
			return nil, err
		}
		if err := ctx.Version(destFolders[i], dst, version); err != nil {
			rollbackOpenSplit(ctx, dests, destFolders)
			return nil, err
		}
	}
	for i, dst := range dests {
		destFolders[i].AddChunk(dst)
		ctx.Registry.Release(dst)
	}
	return dests, nil
}

func xorInto(parity [][]byte, index int, data []byte) {
	if parity[index] == nil {
		parity[index] = make([]byte, len(data))
	}
	for i, b := range data {
		parity[index][i] ^= b
	}
}

func rollbackOpenSplit(ctx *Context, dests []*registry.Chunk, folders []*folder.Folder) {
	for i, dst := range dests {
		if dst == nil {
			continue
		}
		closeAndRemove(dst, folders[i])
		ctx.Registry.Delete(dst)
	}
}

