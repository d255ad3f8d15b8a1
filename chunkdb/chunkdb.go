// Package chunkdb implements the binary fast-scan snapshot of §4.G: a
// per-folder dump of every chunk's identifying metadata, written on graceful
// shutdown or folder drain so a restart can skip the full directory walk.
// Grounded on the teacher's atomic-persistence save pattern (persist.SafeFile:
// write-to-temp-then-rename) applied to this fixed-width binary record
// instead of JSON - encoding/binary is used directly rather than reaching for
// a serialization library, since the layout is externally specified byte-for
// -byte (§4.G) rather than a format this code gets to choose.
package chunkdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/persist"
)

const (
	magic4       = "MFS CHUNKDB4"
	recordSize   = 8 + 4 + 2 + 2 + 2 + 1 + 4 // chunkid,version,blocks,hdrsize,pathid,tested,diskusage
	terminatorSz = 23
	filename     = ".chunkdb"
)

// Entry is one chunk's snapshotted metadata (§4.G record layout).
type Entry struct {
	ChunkID   chunkid.ID
	Version   uint32
	Blocks    uint16 // 0xFFFF if ValidAttr was false at snapshot time
	HdrSize   uint16
	PathID    uint16
	Tested    bool
	DiskUsage uint32
}

// Path returns the on-disk snapshot path for a folder rooted at dir.
func Path(dir string) string {
	return filepath.Join(dir, filename)
}

// Write atomically writes path's worth of entries to dir/.chunkdb, via a
// temp-file-then-rename (persist.SafeFile), matching the teacher's
// crash-safe save discipline.
func Write(dir string, folderPath string, entries []Entry) error {
	sf, err := persist.NewSafeFile(Path(dir))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(sf.File)

	if _, err := w.WriteString(magic4); err != nil {
		sf.Close()
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(folderPath))); err != nil {
		sf.Close()
		return err
	}
	if _, err := w.WriteString(folderPath); err != nil {
		sf.Close()
		return err
	}

	for _, e := range entries {
		if e.PathID > 255 {
			sf.Close()
			return fmt.Errorf("chunkdb: pathid %d exceeds 255", e.PathID)
		}
		if err := writeEntry(w, e); err != nil {
			sf.Close()
			return err
		}
	}

	var term [terminatorSz]byte
	if _, err := w.Write(term[:]); err != nil {
		sf.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		sf.Close()
		return err
	}
	return sf.Commit()
}

func writeEntry(w io.Writer, e Entry) error {
	var buf [recordSize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.ChunkID))
	binary.BigEndian.PutUint32(buf[8:12], e.Version)
	binary.BigEndian.PutUint16(buf[12:14], e.Blocks)
	binary.BigEndian.PutUint16(buf[14:16], e.HdrSize)
	binary.BigEndian.PutUint16(buf[16:18], e.PathID)
	if e.Tested {
		buf[18] = 1
	}
	binary.BigEndian.PutUint32(buf[19:23], e.DiskUsage)
	_, err := w.Write(buf[:])
	return err
}

// Read parses dir/.chunkdb, returning the stored folder path and entries.
// Only the current version-4 magic is accepted for reading here; §4.G's
// "versions 1-3 accepted for reading" legacy compatibility is out of scope
// since this store never wrote those formats.
func Read(dir string) (folderPath string, entries []Entry, err error) {
	f, err := os.Open(Path(dir))
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magicBuf := make([]byte, len(magic4))
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return "", nil, err
	}
	if string(magicBuf) != magic4 {
		return "", nil, fmt.Errorf("chunkdb: bad magic %q", magicBuf)
	}

	var pathLen uint16
	if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
		return "", nil, err
	}
	pathBuf := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBuf); err != nil {
		return "", nil, err
	}
	folderPath = string(pathBuf)

	for {
		var buf [recordSize]byte
		n, err := io.ReadFull(r, buf[:])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n < recordSize) {
			return "", nil, fmt.Errorf("chunkdb: file ends before the terminator record")
		}
		if err != nil {
			return "", nil, err
		}
		if isTerminator(buf[:]) {
			break
		}
		entries = append(entries, Entry{
			ChunkID:   chunkid.ID(binary.BigEndian.Uint64(buf[0:8])),
			Version:   binary.BigEndian.Uint32(buf[8:12]),
			Blocks:    binary.BigEndian.Uint16(buf[12:14]),
			HdrSize:   binary.BigEndian.Uint16(buf[14:16]),
			PathID:    binary.BigEndian.Uint16(buf[16:18]),
			Tested:    buf[18] != 0,
			DiskUsage: binary.BigEndian.Uint32(buf[19:23]),
		})
	}
	return folderPath, entries, nil
}

func isTerminator(buf []byte) bool {
	if len(buf) < terminatorSz {
		return false
	}
	for _, b := range buf[:terminatorSz] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Valid implements §4.G's validity check: the snapshot is trusted only if it
// postdates every subfolder's mtime and the folder carries none of the
// disqualifying conditions (pending WFR entries, damaged, read-only).
func Valid(dir string, subfolderMtimes []time.Time, hasPendingWFR, damaged, readOnly bool) bool {
	if hasPendingWFR || damaged || readOnly {
		return false
	}
	fi, err := os.Stat(Path(dir))
	if err != nil {
		return false
	}
	for _, mt := range subfolderMtimes {
		if mt.After(fi.ModTime()) {
			return false
		}
	}
	return true
}
