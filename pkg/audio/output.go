package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
)

// Config holds the audio output configuration
type Config struct {
	SampleRate   int
	BufferSize   int // requested frames per callback; the host may negotiate
	Device       int // -1 selects the default output device
	MasterVolume float64
}

// Output owns the host audio stream. The callback pulls mono slots from the
// ring, applies master gain and the reverb insert, and duplicates the result
// to both channels.
type Output struct {
	config    Config
	ring      *Ring
	reverb    *Reverb
	collector *metrics.Collector
	log       *logger.Logger

	stream *portaudio.Stream
	volume atomicFloat
	mono   []float32
}

// NewOutput initializes the host audio API and opens the stream. The stream
// is opened but not started; call Start once the DSP producer is running.
func NewOutput(cfg Config, ring *Ring, reverb *Reverb, collector *metrics.Collector, log *logger.Logger) (*Output, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize host audio: %w", err)
	}

	o := &Output{
		config:    cfg,
		ring:      ring,
		reverb:    reverb,
		collector: collector,
		log:       log.WithComponent("audio.output"),
		mono:      make([]float32, cfg.BufferSize),
	}
	o.volume.store(cfg.MasterVolume)

	dev, err := o.outputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 2,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.BufferSize,
	}

	stream, err := portaudio.OpenStream(params, o.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	o.stream = stream

	o.log.Info("Audio stream opened",
		logger.String("device", dev.Name),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("buffer_size", cfg.BufferSize),
		logger.Float64("latency_ms", float64(cfg.BufferSize)*1000/float64(cfg.SampleRate)))

	return o, nil
}

func (o *Output) outputDevice() (*portaudio.DeviceInfo, error) {
	if o.config.Device < 0 {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default output device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}
	if o.config.Device >= len(devices) {
		return nil, fmt.Errorf("audio device index %d out of range (%d devices)", o.config.Device, len(devices))
	}
	dev := devices[o.config.Device]
	if dev.MaxOutputChannels < 2 {
		return nil, fmt.Errorf("audio device %q has no stereo output", dev.Name)
	}
	return dev, nil
}

// callback services one host batch. The host batch size may differ from the
// slot size; the ring carries the read offset across calls. Never blocks.
func (o *Output) callback(out [][]float32) {
	left, right := out[0], out[1]
	n := len(left)

	if cap(o.mono) < n {
		// Host renegotiated a larger batch than requested.
		o.mono = make([]float32, n)
	}
	mono := o.mono[:n]

	if !o.ring.Consume(mono) {
		o.collector.Underrun()
	}

	gain := float32(o.volume.load())
	for i := 0; i < n; i++ {
		s := mono[i] * gain
		left[i] = s
		right[i] = s
	}

	o.reverb.Process(left, right)
}

// Start begins playback.
func (o *Output) Start() error {
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

// SetMasterVolume sets the linear master gain (0..1).
func (o *Output) SetMasterVolume(v float64) {
	o.volume.store(clamp01(v))
}

// MasterVolume returns the current master gain.
func (o *Output) MasterVolume() float64 {
	return o.volume.load()
}

// Close stops the stream and tears down the host audio API.
func (o *Output) Close() error {
	var first error
	if o.stream != nil {
		if err := o.stream.Stop(); err != nil && first == nil {
			first = err
		}
		if err := o.stream.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := portaudio.Terminate(); err != nil && first == nil {
		first = err
	}
	return first
}

// ListDevices returns the names of all devices with output channels, indexed
// by their selectable device id.
func ListDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize host audio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	names := make([]string, 0, len(devices))
	for i, dev := range devices {
		if dev.MaxOutputChannels > 0 {
			names = append(names, fmt.Sprintf("%d: %s (%d ch, %.0f Hz)",
				i, dev.Name, dev.MaxOutputChannels, dev.DefaultSampleRate))
		}
	}
	return names, nil
}
