// Package folder implements the per-disk data-folder model of §4.B: mount
// state, scanning, removal lifecycle, usage accounting, limit modes and
// per-disk statistics. Grounded on the teacher's storageFolder (Sia
// modules/host/contractmanager/storagefolder.go): an atomic-counter-backed
// struct representing one mounted disk, with a usage bitmap and staged
// add/remove/resize lifecycle.
package folder

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/moosefs/chunkserver/registry"
	"github.com/moosefs/chunkserver/stats"
)

// ScanState is a folder's background-scan state (§3 Folder).
type ScanState int32

const (
	ScanWorking ScanState = iota
	ScanNeeded
	AttrNeeded
	ScanInProgress
	AttrInProgress
	ScanBGTerminate
	ScanBGFinished
)

// ToRemove tracks a folder's drain-on-removal progress.
type ToRemove int32

const (
	ToRemoveNo ToRemove = iota
	ToRemoveStart
	ToRemoveInProgress
	ToRemoveEnd
)

// MarkForRemoval is the operator-requested drain flag (§4.K '*' sigil).
type MarkForRemoval int32

const (
	MFRNo MarkForRemoval = iota
	MFRYes
	MFRReadOnly
)

// BalanceMode overrides the rebalancer's automatic source/destination
// classification for a folder (§4.K '>'/'<' sigils).
type BalanceMode int32

const (
	BalanceStd BalanceMode = iota
	BalanceForceSrc
	BalanceForceDst
)

// LimitMode selects how avail/total are reported to the master, per the
// §4.B table. The relative ordering (NONE < LIMIT_TOTAL_* < SHARED*) is not
// wire-visible; it exists purely so the const block reads top-to-bottom like
// the specification's table.
type LimitMode int32

const (
	LimitNone LimitMode = iota
	LimitTotalPosConst
	LimitTotalPosPct
	LimitTotalNegConst
	LimitTotalNegPct
	LimitShared
	LimitSharedPosConst
	LimitSharedPosPct
	LimitSharedNegConst
	LimitSharedNegPct
)

const subfolderCount = 256

// Folder is one mounted disk (§3 Folder).
type Folder struct {
	mu sync.RWMutex // the per-field "folderlock" portion owned by this folder

	id   uint16
	path string

	lockFile *os.File
	devID    uint64
	lockIno  uint64

	scanState      ScanState
	toRemove       ToRemove
	markForRemoval MarkForRemoval
	balanceMode    BalanceMode
	tmpBalanceMode BalanceMode

	damaged     bool
	readOnly    bool
	ignoreSize  bool
	sendNeeded  bool
	needRefresh bool

	limitMode LimitMode
	limitData uint64 // constant bytes, or a 0..1 ratio scaled by pctScale (1<<32) when pct

	avail, total uint64
	lastBlocks   uint64

	chunkTab     []*registry.Chunk
	subfCount    [subfolderCount]uint32
	minCount     uint32
	minPathID    uint16
	currentPathID uint16

	ec4Count, ec8Count uint32

	cstat     stats.HDDStats
	monotonic stats.HDDStats

	lastErr            [30]ioError
	lastErrIndex        int
	totalErrorCount     uint64
	totalErrorStartUnix int64

	testedHead, testedTail         *registry.Chunk
	testNeededHead, testNeededTail *registry.Chunk
	testedCount, testNeededCount   uint32
	testFailCount                 uint32
	nextTestUnixUsec               int64

	knownCount       uint64
	knownDiskUsage   uint64
	nextCount        uint64
	nextDiskUsage    uint64

	readCorr, writeCorr   float64
	readDist, writeDist   uint32
	readFirst, writeFirst bool
	rebalanceInProgress   int32 // atomic bitmask: 1=std 2=hs
	rebalanceLastUnix     int64

	wfrCount uint32
	wfrTime  int64
	wfrLast  int64

	atomicFailedReads, atomicFailedWrites     uint64
	atomicSuccessfulReads, atomicSuccessfulWrites uint64
}

// ioError is one entry of a folder's 30-slot recent-error ring (§7).
type ioError struct {
	ChunkID  uint64
	Errno    int
	WallUnix int64
	MonoUnix int64
}

// FolderID implements registry.FolderHandle.
func (f *Folder) FolderID() uint16 { return f.id }

// Path implements registry.FolderHandle.
func (f *Folder) Path() string { return f.path }

func (f *Folder) recordFailedRead()  { atomic.AddUint64(&f.atomicFailedReads, 1) }
func (f *Folder) recordFailedWrite() { atomic.AddUint64(&f.atomicFailedWrites, 1) }
func (f *Folder) recordOKRead()      { atomic.AddUint64(&f.atomicSuccessfulReads, 1) }
func (f *Folder) recordOKWrite()     { atomic.AddUint64(&f.atomicSuccessfulWrites, 1) }
