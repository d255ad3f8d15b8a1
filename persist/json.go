package persist

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// tempSuffix marks the scratch file SaveJSON writes before renaming it onto
// the real path. LoadJSON refuses to open a path carrying this suffix
// directly, since it is always an intermediate artifact.
const tempSuffix = "_temp"

// ErrBadFilenameSuffix is returned by LoadJSON when asked to load a path
// ending in tempSuffix.
var ErrBadFilenameSuffix = errors.New("cannot load a file with the temp suffix directly")

// Metadata identifies the schema of a persisted JSON object, so that
// LoadJSON can refuse to load a file written by an incompatible version.
type Metadata struct {
	Header  string
	Version string
}

type jsonEnvelope struct {
	Metadata
	Checksum string
	Data     json.RawMessage
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return string(sum[:])
}

// SaveJSON atomically writes object to filename, tagged with meta. The write
// goes to a temp file first and is only renamed onto filename once flushed,
// so a crash mid-write never corrupts the previous good copy.
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.Marshal(object)
	if err != nil {
		return err
	}
	env := jsonEnvelope{Metadata: meta, Checksum: checksum(data), Data: data}
	full, err := json.MarshalIndent(env, "", "\t")
	if err != nil {
		return err
	}
	sf, err := NewSafeFile(filename)
	if err != nil {
		return err
	}
	defer sf.Close()
	if _, err := sf.Write(full); err != nil {
		return err
	}
	return sf.Commit()
}

// LoadJSON reads filename into object, verifying both the metadata tag and
// the embedded checksum.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	if strings.HasSuffix(filename, tempSuffix) {
		return ErrBadFilenameSuffix
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if env.Header != meta.Header || env.Version != meta.Version {
		return errors.New("persist: metadata mismatch loading " + filename)
	}
	if env.Checksum != "" && env.Checksum != checksum(env.Data) {
		return errors.New("persist: checksum mismatch loading " + filename)
	}
	return json.Unmarshal(env.Data, object)
}
