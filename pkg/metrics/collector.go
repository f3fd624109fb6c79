package metrics

import (
	"sync"
)

// Collector collects CISYNTH pipeline metrics
type Collector struct {
	mu sync.RWMutex

	// Ingest metrics
	fragmentsReceived  uint64
	fragmentsDuplicate uint64
	packetsDropped     uint64
	linesPublished     uint64
	linesAbandoned     uint64

	// DSP metrics
	buffersProduced uint64
	samplesProduced uint64
	activeVoices    int

	// Audio output metrics
	underruns uint64

	// DMX metrics
	dmxFrames      uint64
	dmxWriteErrors uint64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// FragmentReceived records an accepted line fragment
func (c *Collector) FragmentReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragmentsReceived++
}

// FragmentDuplicate records a duplicate fragment that was dropped
func (c *Collector) FragmentDuplicate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragmentsDuplicate++
}

// PacketDropped records a datagram dropped before reassembly (bad tag, parse error)
func (c *Collector) PacketDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packetsDropped++
}

// LinePublished records a complete line handed to the consumers
func (c *Collector) LinePublished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linesPublished++
}

// LineAbandoned records a line dropped with missing fragments
func (c *Collector) LineAbandoned() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linesAbandoned++
}

// BufferProduced records one audio slot rendered by the DSP worker
func (c *Collector) BufferProduced(samples int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffersProduced++
	c.samplesProduced += uint64(samples)
}

// SetActiveVoices records the current polyphonic voice count
func (c *Collector) SetActiveVoices(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeVoices = n
}

// Underrun records an audio callback that had to emit silence
func (c *Collector) Underrun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.underruns++
}

// DMXFrameSent records one emitted DMX universe frame
func (c *Collector) DMXFrameSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dmxFrames++
}

// DMXWriteError records a failed DMX frame write
func (c *Collector) DMXWriteError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dmxWriteErrors++
}

// Getters

func (c *Collector) GetFragmentsReceived() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fragmentsReceived
}

func (c *Collector) GetFragmentsDuplicate() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fragmentsDuplicate
}

func (c *Collector) GetPacketsDropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packetsDropped
}

func (c *Collector) GetLinesPublished() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.linesPublished
}

func (c *Collector) GetLinesAbandoned() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.linesAbandoned
}

func (c *Collector) GetBuffersProduced() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buffersProduced
}

func (c *Collector) GetSamplesProduced() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samplesProduced
}

func (c *Collector) GetActiveVoices() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeVoices
}

func (c *Collector) GetUnderruns() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.underruns
}

func (c *Collector) GetDMXFrames() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dmxFrames
}

func (c *Collector) GetDMXWriteErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dmxWriteErrors
}
