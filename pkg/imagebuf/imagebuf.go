// Package imagebuf provides the double-buffered handoff of reassembled scan
// lines between the UDP reassembler and the DSP and lighting consumers.
package imagebuf

import (
	"sync"
	"time"
)

// DoubleBuffer holds two RGB line triples: the active one the reassembler
// writes into and the processing one consumers read from. The reassembler is
// the only writer of the active triple; a consumer owns the processing triple
// from Acquire until its next Acquire. The two triples are disjoint and swap
// roles on every publication.
type DoubleBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	activeR, activeG, activeB             []byte
	processingR, processingG, processingB []byte

	dataReady bool
	lineID    uint32
	// generation counts publications so snapshot consumers can skip
	// frames they have already seen.
	generation uint64
	stopped    bool
}

// New creates a double buffer for lines of the given pixel count.
func New(pixels int) *DoubleBuffer {
	db := &DoubleBuffer{
		activeR:     make([]byte, pixels),
		activeG:     make([]byte, pixels),
		activeB:     make([]byte, pixels),
		processingR: make([]byte, pixels),
		processingG: make([]byte, pixels),
		processingB: make([]byte, pixels),
	}
	db.cond = sync.NewCond(&db.mu)
	return db
}

// Active returns the triple the reassembler may write into. Only the single
// reassembler goroutine may call this, and only between publications.
func (db *DoubleBuffer) Active() (r, g, b []byte) {
	return db.activeR, db.activeG, db.activeB
}

// Publish swaps active and processing, marks data ready and wakes consumers.
// Called by the reassembler once a line is complete.
func (db *DoubleBuffer) Publish(lineID uint32) {
	db.mu.Lock()
	db.activeR, db.processingR = db.processingR, db.activeR
	db.activeG, db.processingG = db.processingG, db.activeG
	db.activeB, db.processingB = db.processingB, db.activeB
	db.dataReady = true
	db.lineID = lineID
	db.generation++
	db.mu.Unlock()
	db.cond.Broadcast()
}

// Acquire blocks until a line is ready or the timeout expires. On success it
// clears the ready flag and returns the processing triple, which the caller
// owns until its next Acquire. Frame skipping is inherent: a consumer that
// misses a publication simply gets the next one.
func (db *DoubleBuffer) Acquire(timeout time.Duration) (r, g, b []byte, lineID uint32, ok bool) {
	deadline := time.Now().Add(timeout)

	db.mu.Lock()
	defer db.mu.Unlock()

	for !db.dataReady && !db.stopped {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil, nil, 0, false
		}
		db.waitWithTimeout(remaining)
	}
	if db.stopped {
		return nil, nil, nil, 0, false
	}

	db.dataReady = false
	return db.processingR, db.processingG, db.processingB, db.lineID, true
}

// Snapshot copies the most recent processing triple into dst if a publication
// newer than seenGen exists. Returns the current generation and whether the
// copy happened. Secondary consumers (DMX, monitor) use this to read the
// latest line without consuming the DSP handoff.
func (db *DoubleBuffer) Snapshot(dstR, dstG, dstB []byte, seenGen uint64) (uint64, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.generation == seenGen {
		return seenGen, false
	}
	copy(dstR, db.processingR)
	copy(dstG, db.processingG)
	copy(dstB, db.processingB)
	return db.generation, true
}

// Generation returns the current publication counter.
func (db *DoubleBuffer) Generation() uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.generation
}

// Stop wakes all blocked consumers; subsequent Acquire calls fail immediately.
func (db *DoubleBuffer) Stop() {
	db.mu.Lock()
	db.stopped = true
	db.mu.Unlock()
	db.cond.Broadcast()
}

// waitWithTimeout waits on the condition for at most d. sync.Cond has no timed
// wait, so a helper goroutine broadcasts after the delay; spurious wakeups are
// handled by the caller's loop.
func (db *DoubleBuffer) waitWithTimeout(d time.Duration) {
	if d > time.Second {
		d = time.Second
	}
	timer := time.AfterFunc(d, db.cond.Broadcast)
	db.cond.Wait()
	timer.Stop()
}
