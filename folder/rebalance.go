package folder

// BalanceMode returns the folder's current balance-mode override.
func (f *Folder) BalanceMode() BalanceMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceMode
}

// SetBalanceMode applies an operator-configured override (§4.K '>'/'<'
// sigils).
func (f *Folder) SetBalanceMode(m BalanceMode) {
	f.mu.Lock()
	f.balanceMode = m
	f.mu.Unlock()
}

// RebalanceCooldownElapsed reports whether nowUnix is past this folder's
// rebalance_last_usec + 10s, the "good" threshold of §4.F.
func (f *Folder) RebalanceCooldownElapsed(nowUnix int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nowUnix > f.rebalanceLastUnix+10
}

// MarkRebalanced records that a move touching this folder just completed.
func (f *Folder) MarkRebalanced(nowUnix int64) {
	f.mu.Lock()
	f.rebalanceLastUnix = nowUnix
	f.mu.Unlock()
}

// DistributionState returns the weighted round-robin state §4.F's
// SelectTarget needs for the read (write=false) or write (write=true) side:
// the running correction, the current distance counter, and whether this is
// the very first selection (forcing err=1, per "write_first=true forces
// err=1 once").
func (f *Folder) DistributionState(write bool) (corr float64, dist uint32, first bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if write {
		return f.writeCorr, f.writeDist, f.writeFirst
	}
	return f.readCorr, f.readDist, f.readFirst
}

// AdjustDistribution records that this folder was selected: its correction
// absorbs the delta between its total share and its accumulated distance,
// and its distance counter resets (§4.F: "After pick, correct
// write_corr += totalShare - write_dist; reset dist").
func (f *Folder) AdjustDistribution(write bool, totalShare float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if write {
		f.writeCorr += totalShare - float64(f.writeDist)
		f.writeDist = 0
		f.writeFirst = false
	} else {
		f.readCorr += totalShare - float64(f.readDist)
		f.readDist = 0
		f.readFirst = false
	}
}

// BumpDistance increments the distance counter for a folder that was
// considered but not selected this round.
func (f *Folder) BumpDistance(write bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if write {
		f.writeDist++
	} else {
		f.readDist++
	}
}
