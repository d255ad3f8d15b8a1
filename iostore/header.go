// Package iostore implements the on-disk chunk file format and the I/O path
// of §4.C: header/CRC-table layout, hdd_io_begin/hdd_io_end lifecycle,
// block-granular read/write with CRC combine, truncate, and sparsification.
// Grounded on the teacher's sector I/O (Sia modules/host/contractmanager/
// sector.go: pread/pwrite against a fixed-size on-disk unit, validated by a
// checksum table read alongside the data) generalized to the specification's
// variable block-count, CRC-table-per-chunk layout.
package iostore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/moosefs/chunkserver/crc32ext"
	"github.com/moosefs/chunkserver/status"
)

const (
	// BlockSize is the fixed 64 KiB block unit (§3).
	BlockSize = 64 * 1024
	// MaxBlocks bounds a chunk to 1024 blocks (64 MiB), per §3.
	MaxBlocks = 1024
	// CRCTableSize is the 4096-byte table of 1024 big-endian u32 CRCs.
	CRCTableSize = MaxBlocks * 4
	// HeaderSizeSmall and HeaderSizeLarge are the two header sizes a chunk
	// may be created with (§3: "hdrsize is 1024 or 4096; chosen by client on
	// create as 4096").
	HeaderSizeSmall = 1024
	HeaderSizeLarge = 4096

	magic        = "MFSC 1."
	versionDigit = '1' // the store always writes v1.1 (§3)
)

// Header is the fixed leading portion of a chunk file (§3 layout).
type Header struct {
	ChunkID uint64
	Version uint32
	HdrSize uint16
}

// Encode writes h's on-disk representation (magic + chunkid + version,
// zero-padded to HdrSize) into a freshly-allocated buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, h.HdrSize)
	copy(buf[0:7], magic)
	buf[7] = versionDigit
	binary.BigEndian.PutUint64(buf[8:16], h.ChunkID)
	binary.BigEndian.PutUint32(buf[16:20], h.Version)
	return buf
}

// DecodeHeader parses the fixed 20-byte header prefix, validating the magic
// string (§4.C "validate magic"). hdrSize must be HeaderSizeSmall or
// HeaderSizeLarge and is not itself encoded in the file; the caller supplies
// it from the chunk's known metadata.
func DecodeHeader(buf []byte, hdrSize uint16) (Header, error) {
	if len(buf) < 20 {
		return Header{}, fmt.Errorf("iostore: short header (%d bytes)", len(buf))
	}
	if string(buf[0:7]) != magic {
		return Header{}, status.ErrInvalid
	}
	return Header{
		ChunkID: binary.BigEndian.Uint64(buf[8:16]),
		Version: binary.BigEndian.Uint32(buf[16:20]),
		HdrSize: hdrSize,
	}, nil
}

// CRCTable is the 1024-entry per-block checksum table stored right after
// the header.
type CRCTable [MaxBlocks]uint32

// Encode serializes t as 1024 big-endian u32s.
func (t *CRCTable) Encode() []byte {
	buf := make([]byte, CRCTableSize)
	for i, c := range t {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], c)
	}
	return buf
}

// DecodeCRCTable parses buf (must be CRCTableSize bytes) into t.
func DecodeCRCTable(buf []byte) (CRCTable, error) {
	var t CRCTable
	if len(buf) != CRCTableSize {
		return t, fmt.Errorf("iostore: crc table must be %d bytes, got %d", CRCTableSize, len(buf))
	}
	for i := range t {
		t[i] = binary.BigEndian.Uint32(buf[i*4 : i*4+4])
	}
	return t, nil
}

// ValidateUnused checks that every entry at index >= usedBlocks equals either
// 0 or the zero-block CRC, as required of v1.1 files (§3, §4.C: "For v1.1
// files verify that every unused-block CRC equals CRC(zero) or 0; else
// return CRC_ERROR").
func (t *CRCTable) ValidateUnused(usedBlocks int) error {
	zero := crc32ext.ZeroBlockCRC()
	for i := usedBlocks; i < MaxBlocks; i++ {
		if t[i] != 0 && t[i] != zero {
			return status.ErrCRC
		}
	}
	return nil
}

// dataOffset returns the byte offset of block-indexed data within the file.
func dataOffset(hdrSize uint16, block int) int64 {
	return int64(hdrSize) + CRCTableSize + int64(block)*BlockSize
}

// crcTableOffset returns the byte offset of the CRC table within the file.
func crcTableOffset(hdrSize uint16) int64 {
	return int64(hdrSize)
}

// statSize returns the current on-disk size reported by fd's fstat, used to
// distinguish a freshly ftruncate'd sparse tail from actually-written bytes.
func statSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
