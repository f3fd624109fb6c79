// Package midi connects the hardware control surface to the synth and audio
// parameters: control changes steer master volume and the reverb insert,
// note events gate the spectral voices.
package midi

import (
	"context"
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // platform MIDI backend

	"github.com/ondulab/cisynth/pkg/logger"
)

// Control-change numbers recognized from the Launchkey family.
const (
	ccModWheel    = 1
	ccVolume      = 7
	ccReverbMix   = 20
	ccReverbSize  = 21
	ccReverbDamp  = 22
	ccReverbWidth = 23
)

// NoteSink receives gate events, normally the spectral engine.
type NoteSink interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
}

// VolumeSink receives master volume changes, normally the audio output.
type VolumeSink interface {
	SetMasterVolume(v float64)
}

// ReverbSink receives reverb parameter changes.
type ReverbSink interface {
	SetEnabled(on bool)
	Enabled() bool
	SetMix(v float64)
	SetRoomSize(v float64)
	SetDamping(v float64)
	SetWidth(v float64)
}

// Config holds the control surface configuration.
type Config struct {
	DeviceNames []string // port-name substrings to auto-connect
}

// Surface owns the MIDI input connection and dispatches incoming messages.
type Surface struct {
	config Config
	log    *logger.Logger

	notes  NoteSink
	volume VolumeSink
	reverb ReverbSink

	stop func()
}

// NewSurface creates a control surface routing into the given sinks.
func NewSurface(cfg Config, notes NoteSink, volume VolumeSink, reverb ReverbSink, log *logger.Logger) *Surface {
	return &Surface{
		config: cfg,
		log:    log.WithComponent("midi"),
		notes:  notes,
		volume: volume,
		reverb: reverb,
	}
}

// Connect scans the input ports for the first known device and starts
// listening. Returns an error when no known device is present; the caller
// treats that as running without a control surface.
func (s *Surface) Connect() error {
	ports := gomidi.GetInPorts()
	if len(ports) == 0 {
		return fmt.Errorf("no MIDI input ports available")
	}

	for _, port := range ports {
		name := port.String()
		for _, want := range s.config.DeviceNames {
			if strings.Contains(name, want) {
				stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
					s.Dispatch(msg)
				})
				if err != nil {
					return fmt.Errorf("failed to listen on %q: %w", name, err)
				}
				s.stop = stop
				s.log.Info("Connected to MIDI device", logger.String("port", name))
				return nil
			}
		}
	}

	return fmt.Errorf("no known MIDI controller among %d ports", len(ports))
}

// Run blocks until ctx is cancelled, then disconnects.
func (s *Surface) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Close()
	return ctx.Err()
}

// Close stops listening and releases the driver.
func (s *Surface) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	gomidi.CloseDriver()
}

// Dispatch routes one raw MIDI message. Messages shorter than three bytes
// carry none of the channel voice content we react to and are ignored.
func (s *Surface) Dispatch(msg []byte) {
	if len(msg) < 3 {
		return
	}

	status := msg[0]
	data1 := int(msg[1])
	data2 := int(msg[2])

	switch status & 0xF0 {
	case 0xB0:
		s.controlChange(data1, data2)
	case 0x90:
		if data2 > 0 {
			s.notes.NoteOn(data1, data2)
		} else {
			s.notes.NoteOff(data1)
		}
	case 0x80:
		s.notes.NoteOff(data1)
	}
}

// controlChange applies one CC message.
func (s *Surface) controlChange(number, value int) {
	normalized := float64(value) / 127

	switch number {
	case ccVolume, ccModWheel:
		s.volume.SetMasterVolume(normalized)

	case ccReverbMix:
		s.enableReverb()
		s.reverb.SetMix(normalized)
		s.log.Debug("Reverb mix", logger.Float64("value", normalized))

	case ccReverbSize:
		s.enableReverb()
		s.reverb.SetRoomSize(normalized)
		s.log.Debug("Reverb room size", logger.Float64("value", normalized))

	case ccReverbDamp:
		s.enableReverb()
		s.reverb.SetDamping(normalized)
		s.log.Debug("Reverb damping", logger.Float64("value", normalized))

	case ccReverbWidth:
		s.enableReverb()
		s.reverb.SetWidth(normalized)
		s.log.Debug("Reverb width", logger.Float64("value", normalized))
	}
}

func (s *Surface) enableReverb() {
	if !s.reverb.Enabled() {
		s.reverb.SetEnabled(true)
	}
}

// ListDevices returns the names of all MIDI input ports.
func ListDevices() []string {
	ports := gomidi.GetInPorts()
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}
