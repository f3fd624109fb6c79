// Package spectral implements the polyphonic FFT engine: MIDI-gated voices
// whose harmonic spectrum is shaped in real time by the magnitude spectrum of
// the time-averaged grayscale image line.
package spectral

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/ondulab/cisynth/pkg/protocol"
)

// Spectrum normalization and shaping constants.
const (
	NormFactorBin0      = 881280.0 * 1.1
	NormFactorHarmonics = 220320.0 * 2.0
	SmoothingAlpha      = 0.1
	AmplitudeGamma      = 2.0
)

// Config holds the spectral engine configuration.
type Config struct {
	BufferSize int
	SampleRate int
	WindowSize int // moving-average depth over grayscale lines

	MasterVolume float64

	VolumeAttack  float64
	VolumeDecay   float64
	VolumeSustain float64
	VolumeRelease float64

	FilterAttack  float64
	FilterDecay   float64
	FilterSustain float64
	FilterRelease float64

	FilterCutoff   float64 // base cutoff, Hz
	FilterEnvDepth float64 // envelope modulation depth, Hz (may be negative)

	LFORate  float64
	LFODepth float64 // semitones
}

// Engine is the polyphonic spectral synth. The DSP worker calls Process; the
// MIDI thread calls NoteOn/NoteOff and the parameter setters. One mutex
// covers the voice pool and the global settings: parameter edits become
// audible within one audio buffer, which is all the control surface needs.
type Engine struct {
	config Config

	mu sync.Mutex

	voices       [NumVoices]Voice
	triggerOrder uint64

	// Image → spectrum state.
	history     [][]float64 // WindowSize grayscale lines, ring-ordered
	historyIdx  int
	historyFill int
	avg         []float64 // column mean scratch
	binReal     [MaxMappedOscillators]float64
	binImag     [MaxMappedOscillators]float64
	smoothedMag [MaxMappedOscillators]float64

	lfo LFO

	baseCutoff float64
	envDepth   float64

	volA, volD, volS, volR float64
	fltA, fltD, fltS, fltR float64

	masterVolume float64
}

// NewEngine creates the spectral engine. The line history is pre-filled with
// white lines so the FFT has sensible data before the first real frame.
func NewEngine(cfg Config) *Engine {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}

	e := &Engine{
		config:       cfg,
		avg:          make([]float64, protocol.PixelsPerLine),
		baseCutoff:   cfg.FilterCutoff,
		envDepth:     cfg.FilterEnvDepth,
		volA:         cfg.VolumeAttack,
		volD:         cfg.VolumeDecay,
		volS:         cfg.VolumeSustain,
		volR:         cfg.VolumeRelease,
		fltA:         cfg.FilterAttack,
		fltD:         cfg.FilterDecay,
		fltS:         cfg.FilterSustain,
		fltR:         cfg.FilterRelease,
		masterVolume: cfg.MasterVolume,
	}

	e.history = make([][]float64, cfg.WindowSize)
	for i := range e.history {
		e.history[i] = make([]float64, protocol.PixelsPerLine)
		for j := range e.history[i] {
			e.history[i][j] = 255
		}
	}
	e.historyFill = cfg.WindowSize

	e.lfo.Init(cfg.LFORate, cfg.LFODepth, float64(cfg.SampleRate))

	sr := float64(cfg.SampleRate)
	for i := range e.voices {
		v := &e.voices[i]
		v.State = StateIdle
		v.MIDINote = -1
		v.LastVelocity = 1
		v.VolumeADSR.Init(e.volA, e.volD, e.volS, e.volR, sr)
		v.FilterADSR.Init(e.fltA, e.fltD, e.fltS, e.fltR, sr)
	}

	// Seed the spectrum from the pre-filled history.
	e.recomputeSpectrum()

	return e
}

// Process renders one audio slot. A non-nil line first updates the image
// spectrum; with a nil line the voices keep sounding on the last spectrum.
func (e *Engine) Process(r, g, b []byte, out []float32) {
	if r != nil {
		e.updateLine(r, g, b)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.smoothMagnitudes()

	nyquist := float64(e.config.SampleRate) / 2

	for i := range out {
		lfoVal := e.lfo.Next()

		var master float64
		for vi := range e.voices {
			voice := &e.voices[vi]

			volEnv := voice.VolumeADSR.Next()
			filterEnv := voice.FilterADSR.Next()

			if voice.VolumeADSR.State == StateIdle && voice.State != StateIdle {
				voice.State = StateIdle
				voice.MIDINote = -1
			}
			if volEnv < 1e-5 && voice.State == StateIdle {
				continue
			}

			cutoff := e.baseCutoff + filterEnv*e.envDepth
			if cutoff < 20 {
				cutoff = 20
			}
			if cutoff > nyquist-1 {
				cutoff = nyquist - 1
			}

			fundamental := voice.Fundamental *
				math.Pow(2, lfoVal*e.lfo.DepthSemitones/12)

			var sum float64
			for k := 0; k < MaxMappedOscillators; k++ {
				multiple := 1.0
				if k > 0 {
					multiple = float64(k + 1)
				}
				freq := fundamental * multiple
				if freq >= nyquist {
					break
				}

				amp := e.smoothedMag[k]
				if amp < 0 {
					amp = 0
				}
				amp = math.Pow(amp, AmplitudeGamma)

				att := 1.0
				if cutoff > 1 {
					if freq > 0.001 {
						ratio := freq / cutoff
						att = 1 / math.Sqrt(1+ratio*ratio)
					}
				} else if freq >= 1 {
					att = 1e-5
				}

				sum += amp * att * math.Sin(voice.Phases[k])

				voice.Phases[k] += 2 * math.Pi * freq / float64(e.config.SampleRate)
				if voice.Phases[k] >= 2*math.Pi {
					voice.Phases[k] -= 2 * math.Pi
				}
			}

			master += sum * volEnv * voice.LastVelocity
		}

		master *= e.masterVolume
		if master > 1 {
			master = 1
		} else if master < -1 {
			master = -1
		}
		out[i] = float32(master)
	}
}

// updateLine folds a new RGB line into the moving-average window and reruns
// the FFT over the column mean.
func (e *Engine) updateLine(r, g, b []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	line := e.history[e.historyIdx]
	for i := 0; i < protocol.PixelsPerLine; i++ {
		line[i] = 0.299*float64(r[i]) + 0.587*float64(g[i]) + 0.114*float64(b[i])
	}
	e.historyIdx = (e.historyIdx + 1) % len(e.history)
	if e.historyFill < len(e.history) {
		e.historyFill++
	}

	e.recomputeSpectrum()
}

// recomputeSpectrum runs the real FFT over the column-wise mean of the line
// history and stores the low bins. Caller holds the lock (or is init).
func (e *Engine) recomputeSpectrum() {
	for j := 0; j < protocol.PixelsPerLine; j++ {
		var sum float64
		for k := 0; k < e.historyFill; k++ {
			sum += e.history[k][j]
		}
		e.avg[j] = sum / float64(e.historyFill)
	}

	bins := fft.FFTReal(e.avg)
	for k := 0; k < MaxMappedOscillators && k < len(bins); k++ {
		e.binReal[k] = real(bins[k])
		e.binImag[k] = imag(bins[k])
	}
}

// smoothMagnitudes maps the raw bins to oscillator amplitudes. Bin 0 is the
// DC term and tracks directly; harmonic bins converge through an exponential
// filter. Caller holds the lock.
func (e *Engine) smoothMagnitudes() {
	e.smoothedMag[0] = e.binReal[0] / NormFactorBin0
	if e.smoothedMag[0] < 0 {
		e.smoothedMag[0] = 0
	}

	for k := 1; k < MaxMappedOscillators; k++ {
		mag := math.Hypot(e.binReal[k], e.binImag[k])
		target := mag / NormFactorHarmonics
		if target > 1 {
			target = 1
		}
		if target < 0 {
			target = 0
		}
		e.smoothedMag[k] = SmoothingAlpha*target + (1-SmoothingAlpha)*e.smoothedMag[k]
	}
}

// NoteOn allocates a voice for the note and triggers its envelopes.
// Velocity 0 is treated as a note off.
func (e *Engine) NoteOn(note, velocity int) {
	if velocity <= 0 {
		e.NoteOff(note)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.triggerOrder++

	voice := e.stealVoice()

	sr := float64(e.config.SampleRate)
	voice.VolumeADSR.Init(e.volA, e.volD, e.volS, e.volR, sr)
	voice.FilterADSR.Init(e.fltA, e.fltD, e.fltS, e.fltR, sr)

	voice.Fundamental = midiNoteToFrequency(note)
	voice.MIDINote = note
	voice.State = StateAttack
	voice.LastVelocity = float64(velocity) / 127
	voice.LastTriggeredOrder = e.triggerOrder

	for k := range voice.Phases {
		voice.Phases[k] = 0
	}

	voice.VolumeADSR.TriggerAttack()
	voice.FilterADSR.TriggerAttack()
}

// stealVoice picks the voice for a new note. Priority: first idle voice, then
// the oldest non-release voice by trigger order, then the release voice with
// the lowest envelope output, then voice 0. Caller holds the lock.
func (e *Engine) stealVoice() *Voice {
	for i := range e.voices {
		if e.voices[i].State == StateIdle {
			return &e.voices[i]
		}
	}

	oldest := e.triggerOrder + 1
	idx := -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.State != StateRelease && v.State != StateIdle {
			if v.LastTriggeredOrder < oldest {
				oldest = v.LastTriggeredOrder
				idx = i
			}
		}
	}
	if idx >= 0 {
		return &e.voices[idx]
	}

	lowest := 2.0
	idx = -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.State == StateRelease && v.VolumeADSR.CurrentOutput < lowest {
			lowest = v.VolumeADSR.CurrentOutput
			idx = i
		}
	}
	if idx >= 0 {
		return &e.voices[idx]
	}

	return &e.voices[0]
}

// NoteOff releases every non-idle, non-releasing voice playing the note.
func (e *Engine) NoteOff(note int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.voices {
		v := &e.voices[i]
		if v.MIDINote == note && v.State != StateIdle && v.State != StateRelease {
			v.VolumeADSR.TriggerRelease()
			v.FilterADSR.TriggerRelease()
			v.State = StateRelease
		}
	}
}

// ActiveVoices returns the number of voices not currently idle.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for i := range e.voices {
		if e.voices[i].State != StateIdle {
			n++
		}
	}
	return n
}

// VoiceState reports (state, MIDI note) of a voice slot. Test hook.
func (e *Engine) VoiceState(i int) (ADSRState, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voices[i].State, e.voices[i].MIDINote
}

// Parameter setters, called at control rate from the MIDI thread. Setters on
// the volume envelope propagate to every voice, recomputing in-flight decay
// and release rates from the voice's current state.

// SetVolumeAttack sets the volume envelope attack time in seconds.
func (e *Engine) SetVolumeAttack(seconds float64) {
	e.updateVolumeADSR(func() { e.volA = maxf(seconds, 0) })
}

// SetVolumeDecay sets the volume envelope decay time in seconds.
func (e *Engine) SetVolumeDecay(seconds float64) {
	e.updateVolumeADSR(func() { e.volD = maxf(seconds, 0) })
}

// SetVolumeSustain sets the volume envelope sustain level (0..1).
func (e *Engine) SetVolumeSustain(level float64) {
	e.updateVolumeADSR(func() { e.volS = clampUnit(level) })
}

// SetVolumeRelease sets the volume envelope release time in seconds.
func (e *Engine) SetVolumeRelease(seconds float64) {
	e.updateVolumeADSR(func() { e.volR = maxf(seconds, 0) })
}

func (e *Engine) updateVolumeADSR(apply func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	apply()
	sr := float64(e.config.SampleRate)
	for i := range e.voices {
		e.voices[i].VolumeADSR.UpdateSettings(e.volA, e.volD, e.volS, e.volR, sr)
	}
}

// SetVibratoRate sets the LFO rate in Hz.
func (e *Engine) SetVibratoRate(rateHz float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lfo.SetRate(rateHz)
}

// SetVibratoDepth sets the LFO depth in semitones.
func (e *Engine) SetVibratoDepth(semitones float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lfo.SetDepth(semitones)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
