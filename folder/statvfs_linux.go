//go:build linux

package folder

import "golang.org/x/sys/unix"

// statvfs reads the underlying filesystem's capacity in bytes, used to seed
// reportedLimits' hddAvail/hddTotal inputs (§4.B).
func statvfs(path string) (avail, total uint64, files, favail uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize, st.Files, st.Ffree, nil
}

// fadviseSequential hints the kernel that fd will be read sequentially
// (§4.D move, §4.E int_test).
func fadviseSequential(fd uintptr) {
	unix.Fadvise(int(fd), 0, 0, unix.FADV_SEQUENTIAL)
}

// fadviseDontNeed hints the kernel to drop fd's page cache (§4.D move,
// §4.E int_test "if MinFlushCacheTime elapsed").
func fadviseDontNeed(fd uintptr) {
	unix.Fadvise(int(fd), 0, 0, unix.FADV_DONTNEED)
}

// flockExclusive takes an advisory exclusive lock on fd, backing the
// per-folder .lock file (§4.K).
func flockExclusive(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
}
