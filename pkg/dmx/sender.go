package dmx

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
)

// FramePeriod is the universe refresh interval (40 Hz).
const FramePeriod = 25 * time.Millisecond

// FrameWriter is the serial sink for universe frames. *Port implements it;
// tests substitute a capture.
type FrameWriter interface {
	SendFrame(frame []byte) error
	Close() error
}

// Sender holds the latest spot colors and emits one universe frame every
// FramePeriod. Color updates come from the orchestrator loop; the sender
// goroutine reads them under the same lock.
type Sender struct {
	writer    FrameWriter
	offsets   []int
	log       *logger.Logger
	collector *metrics.Collector

	mu           sync.Mutex
	spots        []Spot
	colorUpdated bool
}

// NewSender creates a sender over an opened frame writer.
func NewSender(writer FrameWriter, offsets []int, collector *metrics.Collector, log *logger.Logger) *Sender {
	return &Sender{
		writer:    writer,
		offsets:   offsets,
		log:       log.WithComponent("dmx.sender"),
		collector: collector,
		spots:     make([]Spot, len(offsets)),
	}
}

// UpdateColors installs new spot colors for the next frame.
func (s *Sender) UpdateColors(spots []Spot) {
	s.mu.Lock()
	copy(s.spots, spots)
	s.colorUpdated = true
	s.mu.Unlock()
}

// Start runs the emission loop until ctx is cancelled. Write errors are
// transient; EBADF/EIO mean the adapter is gone and terminate the loop.
func (s *Sender) Start(ctx context.Context) error {
	frame := make([]byte, FrameSize)

	ticker := time.NewTicker(FramePeriod)
	defer ticker.Stop()

	s.log.Info("DMX sender started",
		logger.Int("spots", len(s.offsets)),
		logger.Duration("period", FramePeriod))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s.mu.Lock()
		BuildFrame(s.spots, s.offsets, frame)
		s.colorUpdated = false
		s.mu.Unlock()

		if err := s.writer.SendFrame(frame); err != nil {
			s.collector.DMXWriteError()
			if errors.Is(err, unix.EBADF) || errors.Is(err, unix.EIO) {
				s.log.Error("Critical DMX serial error, stopping sender", logger.Error(err))
				return err
			}
			s.log.Warn("DMX frame write failed", logger.Error(err))
			continue
		}

		s.collector.DMXFrameSent()
	}
}
