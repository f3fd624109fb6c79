// Package engine wires the pipeline together and owns worker lifecycle:
// reassembler in, DSP to the audio ring, zone colors out to DMX.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ondulab/cisynth/pkg/audio"
	"github.com/ondulab/cisynth/pkg/config"
	"github.com/ondulab/cisynth/pkg/dmx"
	"github.com/ondulab/cisynth/pkg/imagebuf"
	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
	"github.com/ondulab/cisynth/pkg/network"
	"github.com/ondulab/cisynth/pkg/protocol"
	"github.com/ondulab/cisynth/pkg/spectral"
	"github.com/ondulab/cisynth/pkg/synth"
	"github.com/ondulab/cisynth/pkg/wavetable"
)

// DSP is the synthesis engine contract: render a slot from the latest line,
// plus the note gates and parameter surface the control layer drives. The
// additive and spectral engines both satisfy it; the variant is chosen at
// startup, not at runtime.
type DSP interface {
	Process(r, g, b []byte, out []float32)
	NoteOn(note, velocity int)
	NoteOff(note int)
}

// Engine owns the shared state and the worker goroutines.
type Engine struct {
	cfg       *config.Config
	log       *logger.Logger
	collector *metrics.Collector

	buffer *imagebuf.DoubleBuffer
	ring   *audio.Ring
	dsp    DSP
	mode   string

	spectralEngine *spectral.Engine // non-nil in fft mode
	receiver       *network.Receiver
	colorEngine    *dmx.ColorEngine
	dmxSender      *dmx.Sender // nil when DMX is disabled or unavailable

	// Latest zone colors for the monitor.
	mu    sync.Mutex
	spots []dmx.Spot
}

// New builds every shared structure. Fatal construction errors (wave table
// overflow) surface here; optional resources (DMX port) are attached by the
// caller before Run.
func New(cfg *config.Config, collector *metrics.Collector, log *logger.Logger) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		log:       log.WithComponent("engine"),
		collector: collector,
		buffer:    imagebuf.New(protocol.PixelsPerLine),
		ring:      audio.NewRing(cfg.Audio.BufferSize),
		mode:      strings.ToLower(cfg.Synth.Mode),
	}

	switch e.mode {
	case "fft":
		e.spectralEngine = spectral.NewEngine(spectral.Config{
			BufferSize:     cfg.Audio.BufferSize,
			SampleRate:     cfg.Audio.SampleRate,
			WindowSize:     cfg.Spectral.WindowSize,
			MasterVolume:   cfg.Spectral.MasterVolume,
			VolumeAttack:   cfg.Spectral.VolumeAttack,
			VolumeDecay:    cfg.Spectral.VolumeDecay,
			VolumeSustain:  cfg.Spectral.VolumeSustain,
			VolumeRelease:  cfg.Spectral.VolumeRelease,
			FilterAttack:   cfg.Spectral.FilterAttack,
			FilterDecay:    cfg.Spectral.FilterDecay,
			FilterSustain:  cfg.Spectral.FilterSustain,
			FilterRelease:  cfg.Spectral.FilterRelease,
			FilterCutoff:   cfg.Spectral.FilterCutoff,
			FilterEnvDepth: cfg.Spectral.FilterEnvDepth,
			LFORate:        cfg.Spectral.LFORate,
			LFODepth:       cfg.Spectral.LFODepth,
		})
		e.dsp = e.spectralEngine

	default: // "ifft"
		table, err := wavetable.New(wavetable.Params{
			StartFrequency:    cfg.Synth.StartFrequency,
			CommasPerSemitone: cfg.Synth.CommasPerSemitone,
			NoteCount:         synth.NumberOfNotes,
			SampleRate:        cfg.Audio.SampleRate,
			Waveform:          parseWaveform(cfg.Synth.Waveform),
			WaveformOrder:     cfg.Synth.WaveformOrder,
			VolumeIncrement:   cfg.Synth.VolumeIncrement,
			VolumeDecrement:   cfg.Synth.VolumeDecrement,
		})
		if err != nil {
			return nil, err
		}
		e.log.Info("Wave table built",
			logger.Int("notes", synth.NumberOfNotes),
			logger.Int("region_samples", len(table.Region)),
			logger.Float64("first_note_hz", table.Notes[0].Frequency),
			logger.Float64("last_note_hz", table.Notes[synth.NumberOfNotes-1].Frequency))

		e.dsp = synth.NewIFFT(table, synth.Config{
			BufferSize:       cfg.Audio.BufferSize,
			ColorInverted:    cfg.Synth.ColorInverted,
			RelativeMode:     cfg.Synth.RelativeMode,
			NonLinearMapping: cfg.Synth.NonLinearMapping,
			Gamma:            cfg.Synth.Gamma,
			ContrastMin:      cfg.Synth.ContrastMin,
			ContrastStride:   cfg.Synth.ContrastStride,
			ContrastPower:    cfg.Synth.ContrastPower,
		})
	}

	e.receiver = network.NewReceiver(network.Config{
		IP:   cfg.Network.IP,
		Port: cfg.Network.Port,
	}, e.buffer, collector, log)

	e.colorEngine = dmx.NewColorEngine(dmx.ColorConfig{
		Spots:       len(cfg.DMX.SpotOffsets),
		Gamma:       cfg.DMX.Gamma,
		Smoothing:   cfg.DMX.Smoothing,
		RedFactor:   cfg.DMX.RedFactor,
		GreenFactor: cfg.DMX.GreenFactor,
		BlueFactor:  cfg.DMX.BlueFactor,
	})

	return e, nil
}

func parseWaveform(name string) wavetable.Waveform {
	switch strings.ToLower(name) {
	case "saw":
		return wavetable.Saw
	case "square":
		return wavetable.Square
	default:
		return wavetable.Sine
	}
}

// DSPEngine returns the selected synthesis engine.
func (e *Engine) DSPEngine() DSP { return e.dsp }

// SpectralEngine returns the spectral engine or nil in ifft mode.
func (e *Engine) SpectralEngine() *spectral.Engine { return e.spectralEngine }

// Ring returns the audio handoff ring.
func (e *Engine) Ring() *audio.Ring { return e.ring }

// AttachDMX wires an opened DMX sender into the pipeline.
func (e *Engine) AttachDMX(sender *dmx.Sender) { e.dmxSender = sender }

// Run starts the workers in the order DMX → reassembler → DSP and blocks
// until ctx is cancelled or a worker fails fatally (socket bind, dead DMX
// adapter). All workers are joined before returning.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if e.dmxSender != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.dmxSender.Start(ctx); err != nil && err != context.Canceled {
				// A vanished adapter degrades lighting only; keep running.
				e.log.Error("DMX sender stopped", logger.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.receiver.Start(ctx); err != nil && err != context.Canceled {
			e.log.Error("Receiver stopped", logger.Error(err))
			errChan <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.dspLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.colorLoop(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errChan:
		cancel()
	}

	e.buffer.Stop()
	e.ring.Stop()
	wg.Wait()
	return runErr
}

// dspLoop renders audio slots from published lines. The additive engine
// renders one slot per line; the spectral engine keeps rendering on its last
// spectrum when lines stop so held voices do not cut out.
func (e *Engine) dspLoop(ctx context.Context) {
	bumpSchedulingPriority(e.log)

	frames := e.cfg.Audio.BufferSize
	lineWait := time.Duration(frames) * time.Second / time.Duration(e.cfg.Audio.SampleRate)

	for ctx.Err() == nil {
		r, g, b, _, gotLine := e.buffer.Acquire(lineWait)

		if !gotLine && e.mode != "fft" {
			continue
		}

		slot, ok := e.ring.NextWriteSlot(time.Second)
		if !ok {
			continue
		}

		if gotLine {
			e.dsp.Process(r, g, b, slot)
		} else {
			e.dsp.Process(nil, nil, nil, slot)
		}
		e.ring.Commit()
		e.collector.BufferProduced(frames)

		if e.spectralEngine != nil {
			e.collector.SetActiveVoices(e.spectralEngine.ActiveVoices())
		}
	}
}

// colorLoop polls the double buffer for fresh lines and forwards zone colors
// to the DMX sender. Snapshot-based: it never consumes the DSP handoff and
// skips frames freely.
func (e *Engine) colorLoop(ctx context.Context) {
	r := make([]byte, protocol.PixelsPerLine)
	g := make([]byte, protocol.PixelsPerLine)
	b := make([]byte, protocol.PixelsPerLine)

	var seen uint64
	for ctx.Err() == nil {
		gen, fresh := e.buffer.Snapshot(r, g, b, seen)
		if !fresh {
			time.Sleep(100 * time.Microsecond)
			continue
		}
		seen = gen

		spots := e.colorEngine.Update(r, g, b)

		e.mu.Lock()
		e.spots = spots
		e.mu.Unlock()

		if e.dmxSender != nil {
			e.dmxSender.UpdateColors(spots)
		}
	}
}

// Spots returns the latest zone colors for the monitor.
func (e *Engine) Spots() []dmx.Spot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]dmx.Spot, len(e.spots))
	copy(out, e.spots)
	return out
}

// LineGeneration returns the publication counter for the monitor.
func (e *Engine) LineGeneration() uint64 {
	return e.buffer.Generation()
}

// SnapshotLine copies the latest line for the monitor feed.
func (e *Engine) SnapshotLine(r, g, b []byte, seen uint64) (uint64, bool) {
	return e.buffer.Snapshot(r, g, b, seen)
}
