package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const metaIDFilename = ".metaid"

// EnsureMetaID implements §4.K's ".metaid is created/verified per folder to
// prevent mixing drives across instances": if dir/.metaid is absent, writes
// instanceID as an 8-byte big-endian value; if present, verifies it matches.
func EnsureMetaID(dir string, instanceID uint64) error {
	path := filepath.Join(dir, metaIDFilename)
	existing, err := os.ReadFile(path)
	if err == nil {
		if len(existing) != 8 {
			return fmt.Errorf("config: %s has unexpected length %d", path, len(existing))
		}
		got := binary.BigEndian.Uint64(existing)
		if got != instanceID {
			return fmt.Errorf("config: %s belongs to instance %d, not %d (refusing to mix drives)", path, got, instanceID)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], instanceID)
	return os.WriteFile(path, buf[:], 0600)
}
