package ops

import (
	"fmt"

	"github.com/moosefs/chunkserver/status"
)

// errNotCopyChunk is returned by Split when asked to split a chunk id that
// is already an erasure-coded part (§4.D: "input copy-chunk id must have
// high byte 0"). It wraps status.ErrInvalid.
var errNotCopyChunk = fmt.Errorf("%w: split source must be a plain copy-chunk", status.ErrInvalid)
