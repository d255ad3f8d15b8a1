package persist

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
)

// RandomSuffix returns a random hex string suitable for building a scratch
// filename that will not collide with concurrent writers.
func RandomSuffix() string {
	var b [6]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// SafeFile wraps an *os.File that is written to a temporary path and only
// renamed (atomically, on POSIX filesystems) onto its final name when
// Commit is called. This is the same copy-on-write discipline the folder
// manager's atomic persistence (chunkdb, .metaid) relies on.
type SafeFile struct {
	*os.File
	finalName string
	tmpName   string
}

// NewSafeFile creates a temporary file alongside finalName and returns a
// handle that writes to the temporary file until Commit is called.
func NewSafeFile(finalName string) (*SafeFile, error) {
	dir := filepath.Dir(finalName)
	base := filepath.Base(finalName)
	tmpName := filepath.Join(dir, base+".tmp-"+RandomSuffix())
	f, err := os.OpenFile(tmpName, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	return &SafeFile{File: f, finalName: finalName, tmpName: tmpName}, nil
}

// Commit syncs and renames the temporary file onto its final name.
func (sf *SafeFile) Commit() error {
	if err := sf.File.Sync(); err != nil {
		return err
	}
	if err := sf.File.Close(); err != nil {
		return err
	}
	return os.Rename(sf.tmpName, sf.finalName)
}

// Close removes the temporary file if Commit was never called.
func (sf *SafeFile) Close() error {
	err := sf.File.Close()
	os.Remove(sf.tmpName)
	return err
}
