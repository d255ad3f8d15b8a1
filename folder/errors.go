package folder

// RecordError implements §7's error-recovery bookkeeping: the call site
// that hit a syscall failure records (chunkid, errno, wall time, monotonic
// time) into the folder's 30-slot ring and bumps its running total. It
// reports whether the folder has now exceeded tolerance (count within
// period), at which point the caller is expected to call MarkDamaged.
func (f *Folder) RecordError(chunkID uint64, errno int, wallUnix, monoUnix int64, toleranceCount int, tolerancePeriod int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastErrIndex = (f.lastErrIndex + 1) % len(f.lastErr)
	f.lastErr[f.lastErrIndex] = ioError{
		ChunkID:  chunkID,
		Errno:    errno,
		WallUnix: wallUnix,
		MonoUnix: monoUnix,
	}
	if f.totalErrorCount == 0 || wallUnix-f.totalErrorStartUnix > tolerancePeriod {
		f.totalErrorStartUnix = wallUnix
		f.totalErrorCount = 0
	}
	f.totalErrorCount++
	return f.totalErrorCount > uint64(toleranceCount)
}

// ClearErrors implements hdd_clear_errors(path): resets the per-folder error
// ring and total, for operator-triggered recovery after disk maintenance.
func (f *Folder) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = [30]ioError{}
	f.lastErrIndex = 0
	f.totalErrorCount = 0
	f.totalErrorStartUnix = 0
}

// TotalErrorCount returns the folder's running error count within the
// current tolerance window.
func (f *Folder) TotalErrorCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalErrorCount
}
