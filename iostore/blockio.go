package iostore

import (
	"github.com/moosefs/chunkserver/crc32ext"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/status"
)

// align512 rounds n down (down=true) or up (down=false) to a 512-byte
// boundary, implementing the write-sparsification alignment of §4.C.
func align512(n int, down bool) int {
	if down {
		return n - n%512
	}
	if n%512 == 0 {
		return n
	}
	return n + (512 - n%512)
}

// nonZeroRange returns the [start,end) of data's first and last non-zero
// byte, or ok=false if data is entirely zero.
func nonZeroRange(data []byte) (start, end int, ok bool) {
	start = -1
	for i, b := range data {
		if b != 0 {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// ReadBlock implements the Read operation of §4.C: validates bounds, serves
// zeros for blocks beyond c.Blocks, and otherwise reads (whole-block cached,
// or partial-block combined) with CRC verification.
func ReadBlock(c *registry.Chunk, version uint32, blockNum int, offset, size int) ([]byte, uint32, error) {
	if blockNum < 0 || blockNum >= MaxBlocks {
		return nil, 0, status.ErrBlockTooBig
	}
	if size < 0 || size > BlockSize || offset < 0 || offset+size > BlockSize {
		return nil, 0, status.ErrWrongOffset
	}
	if version != 0 && version != c.Version {
		return nil, 0, status.ErrWrongVersion
	}

	if blockNum >= int(c.Blocks) {
		return make([]byte, size), crc32ext.ZeroCRC(size), nil
	}

	t, err := table(c)
	if err != nil {
		return nil, 0, err
	}

	if offset == 0 && size == BlockSize {
		block, err := readWholeBlock(c, blockNum)
		if err != nil {
			return nil, 0, err
		}
		got := crc32ext.Checksum(block)
		if got != t[blockNum] {
			c.Damaged = true
			return nil, 0, status.ErrCRC
		}
		return block, got, nil
	}

	block, err := readWholeBlock(c, blockNum)
	if err != nil {
		return nil, 0, err
	}
	got := crc32ext.Checksum(block)
	if got != t[blockNum] {
		c.Damaged = true
		return nil, 0, status.ErrCRC
	}

	pre := block[:offset]
	mid := block[offset : offset+size]
	post := block[offset+size:]
	preCRC := crc32ext.Checksum(pre)
	midCRC := crc32ext.Checksum(mid)
	postCRC := crc32ext.Checksum(post)
	combined := crc32ext.Combine(crc32ext.Combine(preCRC, midCRC, int64(len(mid))), postCRC, int64(len(post)))
	if combined != t[blockNum] {
		c.Damaged = true
		return nil, 0, status.ErrCRC
	}

	out := make([]byte, size)
	copy(out, mid)
	return out, midCRC, nil
}

// readWholeBlock returns blockNum's full 64 KiB, using c's single-block
// cache when it already holds blockNum (§4.C "use cached block if
// blockno==blocknum").
func readWholeBlock(c *registry.Chunk, blockNum int) ([]byte, error) {
	if c.BlockNo == uint16(blockNum) && c.Block != nil {
		out := make([]byte, BlockSize)
		copy(out, c.Block)
		return out, nil
	}
	buf := make([]byte, BlockSize)
	n, err := c.File.ReadAt(buf, dataOffset(c.HdrSize, blockNum))
	if err != nil && n == 0 {
		return nil, status.ErrIO
	}
	c.Block = append([]byte(nil), buf...)
	c.BlockNo = uint16(blockNum)
	return buf, nil
}

// WriteBlock implements the Write operation of §4.C, including interior-zero
// sparsification, combined-CRC verification, and the trailing-gap ftruncate
// for partial writes beyond the previously-written tail.
func WriteBlock(c *registry.Chunk, blockNum int, offset int, data []byte, callerCRC uint32, sparsify bool) error {
	size := len(data)
	if blockNum < 0 || blockNum >= MaxBlocks {
		return status.ErrBlockTooBig
	}
	if size < 0 || size > BlockSize || offset < 0 || offset+size > BlockSize {
		return status.ErrWrongOffset
	}

	t, err := table(c)
	if err != nil {
		return err
	}

	var existing []byte
	if offset != 0 || size != BlockSize {
		if blockNum < int(c.Blocks) {
			existing, err = readWholeBlock(c, blockNum)
			if err != nil {
				return err
			}
			if crc32ext.Checksum(existing) != t[blockNum] {
				c.Damaged = true
				return status.ErrCRC
			}
		} else {
			existing = make([]byte, BlockSize)
		}
	}

	writeStart, writeEnd := offset, offset+size
	if sparsify {
		if nzStart, nzEnd, ok := nonZeroRange(data); ok {
			writeStart = offset + align512(nzStart, true)
			writeEnd = offset + align512(nzEnd, false)
			if writeEnd > offset+size {
				writeEnd = offset + size
			}
		} else {
			// Entirely-zero payload: nothing needs writing at all.
			writeStart, writeEnd = offset, offset
		}
	}

	var pre, post []byte
	if len(existing) > 0 {
		pre = existing[:offset]
		post = existing[offset+size:]
	}
	preCRC := crc32ext.Checksum(pre)
	dataCRC := crc32ext.Checksum(data)
	postCRC := crc32ext.Checksum(post)
	combined := crc32ext.Combine(crc32ext.Combine(preCRC, dataCRC, int64(size)), postCRC, int64(len(post)))
	if callerCRC != 0 && combined != callerCRC {
		return status.ErrCRC
	}

	if blockNum >= int(c.Blocks) {
		if err := growTail(c, blockNum); err != nil {
			return err
		}
	}

	if writeEnd > writeStart {
		toWrite := data[writeStart-offset : writeEnd-offset]
		if _, err := c.File.WriteAt(toWrite, dataOffset(c.HdrSize, blockNum)+int64(writeStart)); err != nil {
			return status.ErrNoSpace
		}
	}

	t[blockNum] = combined
	putTable(c, t)
	c.CRCChanged = true
	c.DiskUsage = 0
	if blockNum >= int(c.Blocks) {
		c.Blocks = uint16(blockNum + 1)
	}

	newBlock := make([]byte, BlockSize)
	copy(newBlock, existing)
	copy(newBlock[offset:offset+size], data)
	c.Block = newBlock
	c.BlockNo = uint16(blockNum)

	return nil
}

// growTail fills any CRC-table gap between c.Blocks and blockNum with the
// zero-block CRC and ftruncates the file so intervening blocks read as
// zeros (§4.C "a ftruncate to (blocknum+1)x64 KiB is issued").
func growTail(c *registry.Chunk, blockNum int) error {
	t, err := table(c)
	if err != nil {
		return err
	}
	zero := crc32ext.ZeroBlockCRC()
	for i := int(c.Blocks); i < blockNum; i++ {
		t[i] = zero
	}
	putTable(c, t)
	newSize := dataOffset(c.HdrSize, blockNum+1)
	if err := c.File.Truncate(newSize); err != nil {
		return status.ErrIO
	}
	return nil
}

// Truncate implements §4.C's truncate semantics: recomputes c.Blocks from
// the new length, fills newly-exposed CRC slots with the zero-block CRC when
// growing, and recomputes the partial tail block's CRC with the zero-expand
// combine when shrinking into the middle of a block.
func Truncate(c *registry.Chunk, length int64) error {
	if length < 0 || length > int64(MaxBlocks)*BlockSize {
		return status.ErrWrongSize
	}
	newBlocks := int((length + BlockSize - 1) / BlockSize)
	if length == 0 {
		newBlocks = 0
	}

	t, err := table(c)
	if err != nil {
		return err
	}
	zero := crc32ext.ZeroBlockCRC()

	oldBlocks := int(c.Blocks)
	if newBlocks > oldBlocks {
		for i := oldBlocks; i < newBlocks; i++ {
			t[i] = zero
		}
		if err := c.File.Truncate(dataOffset(c.HdrSize, newBlocks)); err != nil {
			return status.ErrIO
		}
	} else {
		if err := c.File.Truncate(dataOffset(c.HdrSize, 0) + length); err != nil {
			return status.ErrIO
		}
		if tailLen := int(length % BlockSize); newBlocks > 0 && tailLen != 0 {
			tailBlock := newBlocks - 1
			block, err := readWholeBlock(c, tailBlock)
			if err != nil && tailBlock < oldBlocks {
				return err
			}
			if block == nil {
				block = make([]byte, BlockSize)
			}
			for i := tailLen; i < BlockSize; i++ {
				block[i] = 0
			}
			dataCRC := crc32ext.Checksum(block[:tailLen])
			t[tailBlock] = crc32ext.Combine(dataCRC, crc32ext.ZeroCRC(BlockSize-tailLen), int64(BlockSize-tailLen))
			c.Block = block
			c.BlockNo = uint16(tailBlock)
		}
		for i := newBlocks; i < MaxBlocks; i++ {
			t[i] = zero
		}
	}

	putTable(c, t)
	c.CRCChanged = true
	c.Blocks = uint16(newBlocks)
	c.DiskUsage = 0
	return nil
}
