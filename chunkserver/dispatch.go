package chunkserver

import (
	"github.com/moosefs/chunkserver/chunkid"
	"github.com/moosefs/chunkserver/folder"
	"github.com/moosefs/chunkserver/ops"
	"github.com/moosefs/chunkserver/rebalance"
	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/status"
)

// lengthAllParts is the sentinel length value (§6) meaning "no length
// argument", as carried by version-bump and duplicate requests.
const lengthAllParts = 0xFFFFFFFF

// splitLengthBit flags a request as a split: the remaining bits of Length
// are the missingparts bitmask (§4.D) naming which of allparts=numParts+1
// destinations to materialize.
const splitLengthBit = 0x80000000

// ChunkOpRequest is the argument shape a network handler decodes off the
// wire (§6): chunkid/version always present, the rest optional and
// interpreted by their combination rather than an explicit opcode.
type ChunkOpRequest struct {
	ChunkID     chunkid.ID
	Version     uint32
	NewVersion  uint32
	CopyChunkID chunkid.ID
	CopyVersion uint32
	Length      uint32
}

// ChunkOpResult carries whatever a dispatched operation produced: the
// primary chunk touched (nil for delete), plus any split parts.
type ChunkOpResult struct {
	Chunk *registry.Chunk
	Parts []*registry.Chunk
}

// replicatorLength flags the two length values (10, 11) that are
// replicator-internal variants of delete/create and must not bump
// user-visible counters.
func replicatorLength(length uint32) bool {
	return length == 10 || length == 11
}

// Dispatch implements §6's chunkop argument-shape table: it classifies req
// by the presence/value of NewVersion, Length and CopyVersion, locates (or
// places) the chunk(s) involved, and calls the matching ops.Context method.
func (s *Store) Dispatch(req ChunkOpRequest) (ChunkOpResult, error) {
	switch {
	case req.NewVersion > 0 && req.Length == lengthAllParts && req.CopyChunkID == 0:
		return s.dispatchVersion(req)
	case req.NewVersion > 0 && req.Length == lengthAllParts && req.CopyChunkID > 0:
		return s.dispatchDuplicate(req)
	case req.NewVersion > 0 && req.Length&splitLengthBit != 0 && (req.CopyVersion == 4 || req.CopyVersion == 8):
		return s.dispatchSplit(req)
	case req.NewVersion > 0 && req.Length <= mfsChunkSize && req.CopyChunkID == 0:
		return s.dispatchTruncate(req)
	case req.NewVersion > 0 && req.Length <= mfsChunkSize && req.CopyChunkID > 0:
		return s.dispatchDupTrunc(req)
	case req.NewVersion == 0 && (req.Length == 0 || req.Length == 10):
		return s.dispatchDelete(req, replicatorLength(req.Length))
	case req.NewVersion == 0 && (req.Length == 1 || req.Length == 11):
		return s.dispatchCreate(req, replicatorLength(req.Length))
	case req.NewVersion == 0 && req.Length == 2:
		return s.dispatchTest(req)
	default:
		return ChunkOpResult{}, status.ErrInvalid
	}
}

// mfsChunkSize is the maximum byte length of a chunk's data region (§3),
// used to tell a truncate/duptrunc length argument apart from the sentinel
// and split encodings above it.
const mfsChunkSize = 1 << 26

// lockExisting finds req's chunk and blocks (up to the registry's own
// acquisition timeout) until it can be taken LOCKED, returning its owning
// folder alongside it.
func (s *Store) lockExisting(id chunkid.ID) (*registry.Chunk, *folder.Folder, error) {
	c, err := s.Registry.Get(id, registry.ModeExistingOnly)
	if err != nil {
		return nil, nil, err
	}
	f, ok := c.Owner.(*folder.Folder)
	if !ok {
		s.Registry.Release(c)
		return nil, nil, status.ErrInvalid
	}
	return c, f, nil
}

func (s *Store) dispatchVersion(req ChunkOpRequest) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	defer s.Registry.Release(c)
	if c.Version != req.Version {
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	if err := s.Ops.Version(f, c, req.NewVersion); err != nil {
		return ChunkOpResult{}, err
	}
	return ChunkOpResult{Chunk: c}, nil
}

func (s *Store) dispatchTruncate(req ChunkOpRequest) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	defer s.Registry.Release(c)
	if c.Version != req.Version {
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	if err := s.Ops.Truncate(f, c, int64(req.Length), req.NewVersion); err != nil {
		return ChunkOpResult{}, err
	}
	return ChunkOpResult{Chunk: c}, nil
}

func (s *Store) dispatchDuplicate(req ChunkOpRequest) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	defer s.Registry.Release(c)
	if c.Version != req.Version {
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	dstFolder := s.selectWritableFolder()
	if dstFolder == nil {
		return ChunkOpResult{}, status.ErrNoSpace
	}
	dst, err := s.Ops.Duplicate(f, c, req.NewVersion, dstFolder, req.CopyChunkID, req.CopyVersion)
	if err != nil {
		return ChunkOpResult{}, err
	}
	return ChunkOpResult{Chunk: dst}, nil
}

func (s *Store) dispatchDupTrunc(req ChunkOpRequest) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	defer s.Registry.Release(c)
	if c.Version != req.Version {
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	dstFolder := s.selectWritableFolder()
	if dstFolder == nil {
		return ChunkOpResult{}, status.ErrNoSpace
	}
	dst, err := s.Ops.DupTrunc(f, c, req.NewVersion, dstFolder, req.CopyChunkID, req.CopyVersion, int64(req.Length))
	if err != nil {
		return ChunkOpResult{}, err
	}
	return ChunkOpResult{Chunk: dst}, nil
}

func (s *Store) dispatchDelete(req ChunkOpRequest, replicatorInternal bool) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	if c.Version != req.Version {
		s.Registry.Release(c)
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	if err := s.Ops.Delete(f, c); err != nil {
		return ChunkOpResult{}, err
	}
	if !replicatorInternal {
		s.Reports.SetSpaceChanged(true)
	}
	return ChunkOpResult{}, nil
}

func (s *Store) dispatchCreate(req ChunkOpRequest, replicatorInternal bool) (ChunkOpResult, error) {
	f := s.selectWritableFolder()
	if f == nil {
		return ChunkOpResult{}, status.ErrNoSpace
	}
	c, err := s.Ops.Create(f, req.ChunkID, req.Version)
	if err != nil {
		return ChunkOpResult{}, err
	}
	if !replicatorInternal {
		s.Reports.SetSpaceChanged(true)
	}
	return ChunkOpResult{Chunk: c}, nil
}

// dispatchTest implements the length=2 "test" shape: the network collaborator
// asks the chunk to be scheduled for an out-of-band read test rather than
// tested inline, mirroring the background tester's own PushTestNeeded path.
func (s *Store) dispatchTest(req ChunkOpRequest) (ChunkOpResult, error) {
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	if c.Version != req.Version {
		s.Registry.Release(c)
		return ChunkOpResult{}, status.ErrWrongVersion
	}
	s.Registry.Release(c)
	f.PushTestNeeded(c)
	return ChunkOpResult{Chunk: c}, nil
}

func (s *Store) dispatchSplit(req ChunkOpRequest) (ChunkOpResult, error) {
	numParts := int(req.CopyVersion)
	c, f, err := s.lockExisting(req.ChunkID)
	if err != nil {
		return ChunkOpResult{}, err
	}
	defer s.Registry.Release(c)
	if c.Version != req.Version {
		return ChunkOpResult{}, status.ErrWrongVersion
	}

	missing := req.Length &^ splitLengthBit
	allParts := numParts + 1
	var plans []ops.SplitPlan
	for i := 0; i < allParts; i++ {
		if missing&(1<<uint(i)) == 0 {
			continue
		}
		dstFolder := s.selectWritableFolder()
		if dstFolder == nil {
			return ChunkOpResult{}, status.ErrNoSpace
		}
		plans = append(plans, ops.SplitPlan{Part: i, Folder: dstFolder})
	}

	parts, err := s.Ops.Split(f, c, numParts, plans, req.NewVersion)
	if err != nil {
		return ChunkOpResult{}, err
	}
	return ChunkOpResult{Parts: parts}, nil
}

// selectWritableFolder applies §4.F's write_dist/write_corr weighted
// selection (rebalance.SelectTarget) restricted to folders presently
// eligible to receive new chunks, giving create/duplicate/split the same
// placement policy the rebalancer uses for move destinations.
func (s *Store) selectWritableFolder() *folder.Folder {
	var candidates []*folder.Folder
	for _, f := range s.Folders() {
		if f.Eligible() {
			candidates = append(candidates, f)
		}
	}
	return rebalance.SelectTarget(candidates, true)
}
