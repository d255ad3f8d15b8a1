package chunkserver

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const instanceIDFilename = ".chunkserverid"

// LoadOrCreateInstanceID returns the 64-bit instance identifier persisted at
// dir/.chunkserverid, generating a fresh one (the first 8 bytes of a random
// UUID) on first run. Every folder's .metaid is checked against this value
// (config.EnsureMetaID) to catch a disk migrated in from a different
// chunkserver instance.
func LoadOrCreateInstanceID(dir string) (uint64, error) {
	path := filepath.Join(dir, instanceIDFilename)
	buf, err := os.ReadFile(path)
	if err == nil && len(buf) == 8 {
		return binary.BigEndian.Uint64(buf), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	id := uuid.New()
	instanceID := binary.BigEndian.Uint64(id[:8])

	var out [8]byte
	binary.BigEndian.PutUint64(out[:], instanceID)
	if err := os.WriteFile(path, out[:], 0600); err != nil {
		return 0, err
	}
	return instanceID, nil
}
