package folder

import "github.com/moosefs/chunkserver/registry"

// PushTestNeeded appends c to the folder's test-needed chain (tail), used
// when a chunk is first registered and whenever the chain rotates (§4.E).
func (f *Folder) PushTestNeeded(c *registry.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.TestNext, c.TestPrev = nil, f.testNeededTail
	if f.testNeededTail != nil {
		f.testNeededTail.TestNext = c
	} else {
		f.testNeededHead = c
	}
	f.testNeededTail = c
	f.testNeededCount++
}

// PopTestNeeded removes and returns the head of the test-needed chain, or
// nil if it is empty.
func (f *Folder) PopTestNeeded() *registry.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.testNeededHead
	if c == nil {
		return nil
	}
	f.testNeededHead = c.TestNext
	if f.testNeededHead != nil {
		f.testNeededHead.TestPrev = nil
	} else {
		f.testNeededTail = nil
	}
	c.TestNext, c.TestPrev = nil, nil
	f.testNeededCount--
	return c
}

// PushTested appends c to the tested chain (tail), used once a chunk has
// been int_test'd (or skipped for not being AVAIL) this round.
func (f *Folder) PushTested(c *registry.Chunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.TestNext, c.TestPrev = nil, f.testedTail
	if f.testedTail != nil {
		f.testedTail.TestNext = c
	} else {
		f.testedHead = c
	}
	f.testedTail = c
	f.testedCount++
}

// RotateTestNeeded implements §4.E step 2: when the test-needed list is
// empty, every tested chunk becomes the new test-needed list.
func (f *Folder) RotateTestNeeded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.testNeededHead != nil {
		return
	}
	f.testNeededHead = f.testedHead
	f.testNeededTail = f.testedTail
	f.testNeededCount = f.testedCount
	f.testedHead, f.testedTail, f.testedCount = nil, nil, 0
}

// TestChainLen returns testedcnt + testneededcnt (§3 invariant).
func (f *Folder) TestChainLen() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.testedCount + f.testNeededCount
}

// NextTestDue reports whether this folder's next scheduled test time has
// arrived.
func (f *Folder) NextTestDue(nowUsec int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTestUnixUsec <= nowUsec
}

// ScheduleNextTest sets nexttest = now + blocks*65536/rateMBps (§4.E step 4),
// so the cumulative test rate across folders matches HDDTestMBPS.
func (f *Folder) ScheduleNextTest(nowUsec int64, blocks uint16, rateMBps float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rateMBps <= 0 {
		f.nextTestUnixUsec = nowUsec
		return
	}
	bytes := float64(blocks) * BlockSizeForTest
	deltaUsec := int64(bytes / (rateMBps * 1e6) * 1e6)
	f.nextTestUnixUsec = nowUsec + deltaUsec
}

// BlockSizeForTest mirrors iostore.BlockSize without importing package
// iostore (which itself imports package folder for filename helpers, so the
// dependency must run this direction only).
const BlockSizeForTest = 65536

// IncTestFail bumps testfailcnt, capped at 5 (§4.E step 3: "bump testfailcnt
// up to 5 then move it to tested anyway").
func (f *Folder) IncTestFail() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.testFailCount < 5 {
		f.testFailCount++
	}
	return f.testFailCount
}
