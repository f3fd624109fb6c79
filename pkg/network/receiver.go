package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ondulab/cisynth/pkg/imagebuf"
	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
	"github.com/ondulab/cisynth/pkg/protocol"
)

// Config holds the UDP ingest configuration
type Config struct {
	IP   string
	Port int
}

// Receiver owns the sensor-facing UDP socket and reassembles full scan lines
// from the fragment stream, publishing each completed line to the image
// double buffer.
type Receiver struct {
	config    Config
	log       *logger.Logger
	collector *metrics.Collector
	buffer    *imagebuf.DoubleBuffer
	conn      *net.UDPConn
}

// NewReceiver creates a receiver publishing into the given double buffer
func NewReceiver(cfg Config, buffer *imagebuf.DoubleBuffer, collector *metrics.Collector, log *logger.Logger) *Receiver {
	return &Receiver{
		config:    cfg,
		log:       log.WithComponent("network.receiver"),
		collector: collector,
		buffer:    buffer,
	}
}

// Start binds the socket and runs the receive loop until ctx is cancelled
func (r *Receiver) Start(ctx context.Context) error {
	localAddr := &net.UDPAddr{
		IP:   net.ParseIP(r.config.IP),
		Port: r.config.Port,
	}

	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	r.conn = conn
	defer r.conn.Close()

	r.log.Info("Receiver started", logger.String("addr", conn.LocalAddr().String()))

	return r.receiveLoop(ctx)
}

// receiveLoop continuously receives datagrams and feeds the reassembler.
// Reassembly state lives here: the receiver goroutine is the only writer of
// the active image buffer, so fragment copies need no locking.
func (r *Receiver) receiveLoop(ctx context.Context) error {
	buf := make([]byte, 2048)
	asm := newAssembler(r.buffer, r.collector, r.log)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Short read deadline so shutdown is observed promptly.
		r.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			// recv errors are transient: log and keep going.
			r.log.Error("Failed to read from UDP", logger.Error(err))
			continue
		}

		asm.handleDatagram(buf[:n])
	}
}

// assembler tracks fragment arrival for the line currently being built
type assembler struct {
	buffer    *imagebuf.DoubleBuffer
	collector *metrics.Collector
	log       *logger.Logger

	currentLineID uint32
	received      [protocol.FragmentsPerLine]bool
	fragmentCount uint32
	started       bool
}

func newAssembler(buffer *imagebuf.DoubleBuffer, collector *metrics.Collector, log *logger.Logger) *assembler {
	return &assembler{
		buffer:    buffer,
		collector: collector,
		log:       log,
	}
}

// handleDatagram dispatches one raw datagram
func (a *assembler) handleDatagram(data []byte) {
	switch protocol.PeekTag(data) {
	case protocol.TagImageData:
	case protocol.TagStartupInfo, protocol.TagIMUData:
		// Interleaved device chatter; not ours to process.
		return
	default:
		a.collector.PacketDropped()
		return
	}

	var pkt protocol.FragmentPacket
	if err := pkt.Parse(data); err != nil {
		a.collector.PacketDropped()
		a.log.Debug("Dropping malformed fragment", logger.Error(err))
		return
	}

	a.handleFragment(&pkt)
}

// handleFragment records one fragment, publishing the line when complete
func (a *assembler) handleFragment(pkt *protocol.FragmentPacket) {
	if !a.started || a.currentLineID != pkt.LineID {
		// A new line id abandons whatever was in flight. Late fragments
		// from the previous line will land here too and reset again;
		// the incomplete line is simply never published.
		if a.started && a.fragmentCount > 0 && a.fragmentCount < pkt.TotalFragments {
			a.collector.LineAbandoned()
		}
		a.currentLineID = pkt.LineID
		a.received = [protocol.FragmentsPerLine]bool{}
		a.fragmentCount = 0
		a.started = true
	}

	if a.received[pkt.FragmentID] {
		// Idempotent per (line_id, fragment_id): the first copy wins.
		a.collector.FragmentDuplicate()
		return
	}
	a.received[pkt.FragmentID] = true
	a.fragmentCount++
	a.collector.FragmentReceived()

	activeR, activeG, activeB := a.buffer.Active()
	off := pkt.Offset()
	copy(activeR[off:], pkt.Red)
	copy(activeG[off:], pkt.Green)
	copy(activeB[off:], pkt.Blue)

	if a.fragmentCount == pkt.TotalFragments {
		a.buffer.Publish(pkt.LineID)
		a.collector.LinePublished()
		// Tracking state is kept until the line id changes, so late
		// duplicates of the published line fall into the guard above
		// instead of restarting accumulation.
	}
}
