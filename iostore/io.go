package iostore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/moosefs/chunkserver/crc32ext"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/status"
)

// OpenMode selects hdd_io_begin's open semantics (§4.C).
type OpenMode int

const (
	// OpenExisting requires the file to already exist and its header
	// version to match the in-memory chunk's version.
	OpenExisting OpenMode = iota
	// OpenIgnoreVersion is like OpenExisting but accepts the version
	// encoded in the filename instead of requiring an exact header match
	// (used by rename/version-bump operations mid-flight).
	OpenIgnoreVersion
	// OpenNew creates the file with O_CREAT|O_EXCL and a fresh CRC table
	// whose every entry is the zero-block CRC.
	OpenNew
)

// eviction deadlines armed by End (§4.C hdd_io_end).
const (
	openToDelay  = 500 * time.Millisecond
	crcToDelay   = 100 * time.Second
	blockToDelay = 10 * time.Second
)

// Begin implements hdd_io_begin: opens c's backing file (creating it for
// OpenNew), loads and validates the header and CRC table, and increments the
// chunk's CRC reference count (§4.C).
func Begin(c *registry.Chunk, folderPath string, mode OpenMode, readOnly bool, budget *OpenFileBudget) error {
	if c.File != nil {
		c.CRCRefCount++
		return nil
	}

	budget.BeforeOpen()

	hdrSize := c.HdrSize
	if hdrSize == 0 {
		hdrSize = HeaderSizeLarge
	}

	path := filepath.Join(folderPath, folder.SubfolderName(c.PathID), folder.ChunkFilename(c.ChunkID, c.Version))

	var (
		f   *os.File
		err error
	)
	switch mode {
	case OpenNew:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	default:
		flags := os.O_RDWR
		if readOnly {
			flags = os.O_RDONLY
		}
		f, err = os.OpenFile(path, flags, 0644)
	}
	if err != nil {
		budget.AfterClose()
		return status.ErrIO
	}

	if mode == OpenNew {
		hdr := Header{ChunkID: uint64(c.ChunkID), Version: c.Version, HdrSize: hdrSize}
		if _, err := f.WriteAt(hdr.Encode(), 0); err != nil {
			f.Close()
			os.Remove(path)
			budget.AfterClose()
			return status.ErrIO
		}
		var table CRCTable
		zero := crc32ext.ZeroBlockCRC()
		for i := range table {
			table[i] = zero
		}
		if _, err := f.WriteAt(table.Encode(), crcTableOffset(hdrSize)); err != nil {
			f.Close()
			os.Remove(path)
			budget.AfterClose()
			return status.ErrIO
		}
		c.CRC = table.Encode()
		c.Blocks = 0
	} else {
		hdrBuf := make([]byte, 20)
		if _, err := f.ReadAt(hdrBuf, 0); err != nil {
			f.Close()
			budget.AfterClose()
			return status.ErrIO
		}
		hdr, err := DecodeHeader(hdrBuf, hdrSize)
		if err != nil {
			f.Close()
			budget.AfterClose()
			return err
		}
		if mode == OpenExisting && hdr.Version != c.Version {
			f.Close()
			budget.AfterClose()
			return status.ErrWrongVersion
		}

		tableBuf := make([]byte, CRCTableSize)
		if _, err := f.ReadAt(tableBuf, crcTableOffset(hdrSize)); err != nil {
			f.Close()
			budget.AfterClose()
			return status.ErrIO
		}
		table, err := DecodeCRCTable(tableBuf)
		if err != nil {
			f.Close()
			budget.AfterClose()
			return err
		}
		if err := table.ValidateUnused(int(c.Blocks)); err != nil {
			f.Close()
			budget.AfterClose()
			return err
		}
		c.CRC = tableBuf
		c.HdrSize = hdrSize
	}

	c.File = f
	c.HdrSize = hdrSize
	c.CRCRefCount++
	return nil
}

// FlushCRC writes c's in-memory CRC table back to disk if it has changed,
// matching the "flush CRC if changed" step shared by hdd_io_end (§4.C) and
// the delayed-ops opento eviction (§4.I).
func FlushCRC(c *registry.Chunk) error {
	if c.File == nil || !c.CRCChanged {
		return nil
	}
	if _, err := c.File.WriteAt(c.CRC, crcTableOffset(c.HdrSize)); err != nil {
		return status.ErrIO
	}
	c.CRCChanged = false
	c.FsyncNeeded = true
	return nil
}

// End implements hdd_io_end: flushes a changed CRC table, arms the close
// eviction deadlines, and decrements the CRC reference count (§4.C).
func End(c *registry.Chunk) error {
	if c.File == nil {
		return nil
	}
	if err := FlushCRC(c); err != nil {
		return err
	}
	if c.CRCRefCount > 0 {
		c.CRCRefCount--
	}
	if c.CRCRefCount == 0 {
		now := time.Now()
		c.OpenTo = now.Add(openToDelay).UnixNano()
		c.CRCTo = now.Add(crcToDelay).UnixNano()
		c.BlockTo = now.Add(blockToDelay).UnixNano()
	}
	return nil
}

// table decodes c's cached CRC table bytes into a CRCTable value.
func table(c *registry.Chunk) (CRCTable, error) {
	return DecodeCRCTable(c.CRC)
}

func putTable(c *registry.Chunk, t CRCTable) {
	c.CRC = t.Encode()
}
