package folder

// MarkForRemoval returns the operator-requested drain flag (§4.K '*' sigil,
// or MFRReadOnly when the filesystem itself degrades to read-only).
func (f *Folder) MarkForRemoval() MarkForRemoval {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markForRemoval
}

// SetMarkForRemoval updates the drain flag, as applied by a config reload
// (§4.K) or a read-only-filesystem degrade (§4.K "read-only filesystems
// degrade to MFR_READONLY").
func (f *Folder) SetMarkForRemoval(m MarkForRemoval) {
	f.mu.Lock()
	f.markForRemoval = m
	f.mu.Unlock()
}

// IgnoreSize reports the '~' sigil flag: exclude this folder's usage from
// automatic limit estimation.
func (f *Folder) IgnoreSize() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ignoreSize
}

// SetIgnoreSize updates the '~' sigil flag.
func (f *Folder) SetIgnoreSize(v bool) {
	f.mu.Lock()
	f.ignoreSize = v
	f.mu.Unlock()
}

// ReadOnly reports whether the folder's filesystem is currently treated as
// read-only (degraded, or explicitly configured).
func (f *Folder) ReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readOnly
}

// SetReadOnly updates the read-only flag; §4.K: read-only folders skip
// .chunkdb writes and WFR removal.
func (f *Folder) SetReadOnly(v bool) {
	f.mu.Lock()
	f.readOnly = v
	f.mu.Unlock()
}
