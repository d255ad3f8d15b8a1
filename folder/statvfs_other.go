//go:build !linux

package folder

import "syscall"

// statvfs falls back to a portable approximation on non-Linux platforms
// (§9 "Portability of posix_fadvise": advisory calls degrade to no-ops,
// observable properties depend only on CRC/content, not advise).
func statvfs(path string) (avail, total uint64, files, favail uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return uint64(st.Bavail) * bsize, uint64(st.Blocks) * bsize, uint64(st.Files), uint64(st.Ffree), nil
}

func fadviseSequential(fd uintptr) {}
func fadviseDontNeed(fd uintptr)   {}

func flockExclusive(fd uintptr) error { return nil }
