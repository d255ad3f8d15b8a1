// Package status defines the sentinel errors the chunk store's public
// operations return, per §7 of the specification. Callers match them with
// errors.Is; call sites that want to attach syscall/path context wrap them
// with fmt.Errorf("...: %w", status.ErrIO) rather than build.ExtendErr,
// which is reserved for terminal diagnostics that do not need unwrapping.
package status

import "errors"

var (
	// Wrong parameters.
	ErrInvalid       = errors.New("einval: invalid argument")
	ErrWrongSize     = errors.New("wrongsize: request exceeds chunk capacity")
	ErrWrongOffset   = errors.New("wrongoffset: offset+size exceeds block size")
	ErrBlockTooBig   = errors.New("bnumtoobig: block number exceeds chunk capacity")
	ErrWrongVersion  = errors.New("wrongversion: version does not match")

	// Persistence.
	ErrIO      = errors.New("io: disk I/O error")
	ErrNoSpace = errors.New("nospace: no space left on device")
	ErrCRC     = errors.New("crc: checksum mismatch")

	// Registry.
	ErrNoChunk     = errors.New("nochunk: chunk does not exist")
	ErrNotDone     = errors.New("notdone: chunk acquisition timed out")
	ErrChunkExists = errors.New("chunkexist: chunk already exists")

	// Policy.
	ErrNotSupported = errors.New("enotsup: operation not supported")
)
