// Package synth implements the additive inverse-FFT engine: one oscillator
// per pixel column, amplitude-driven by the grayscale of the incoming line.
package synth

import (
	"math"

	"github.com/ondulab/cisynth/pkg/protocol"
	"github.com/ondulab/cisynth/pkg/wavetable"
)

// PixelsPerNote folds this many adjacent pixels into one oscillator.
const PixelsPerNote = 1

// NumberOfNotes is the oscillator count.
const NumberOfNotes = protocol.PixelsPerLine / PixelsPerNote

// Config holds the additive engine's mapping options.
type Config struct {
	BufferSize       int
	ColorInverted    bool
	RelativeMode     bool
	NonLinearMapping bool
	Gamma            float64
	ContrastMin      float64
	ContrastStride   int
	ContrastPower    float64
}

// IFFT is the additive engine. Not safe for concurrent use: one DSP worker
// drives it.
type IFFT struct {
	table  *wavetable.Table
	config Config

	gray     []int32
	noteVals []float64

	volume  []float64
	ifftSum []float64
	volSum  []float64
	volMax  []float64
}

// NewIFFT creates the engine around a built wave table.
func NewIFFT(table *wavetable.Table, cfg Config) *IFFT {
	return &IFFT{
		table:    table,
		config:   cfg,
		gray:     make([]int32, protocol.PixelsPerLine),
		noteVals: make([]float64, NumberOfNotes),
		volume:   make([]float64, cfg.BufferSize),
		ifftSum:  make([]float64, cfg.BufferSize),
		volSum:   make([]float64, cfg.BufferSize),
		volMax:   make([]float64, cfg.BufferSize),
	}
}

// Grayscale converts an RGB line to 16-bit grayscale using the 299/587/114
// weights. Deterministic and pure.
func Grayscale(r, g, b []byte, out []int32) {
	for i := range out {
		weighted := uint32(r[i])*299 + uint32(g[i])*587 + uint32(b[i])*114
		out[i] = int32(uint64(weighted) * 65535 / 255000)
	}
}

// Process renders one audio slot from an RGB line.
func (s *IFFT) Process(r, g, b []byte, out []float32) {
	frames := s.config.BufferSize

	Grayscale(r, g, b, s.gray)
	s.mapNotes()

	for i := 0; i < frames; i++ {
		s.ifftSum[i] = 0
		s.volSum[i] = 0
		s.volMax[i] = 0
	}

	for note := 0; note < NumberOfNotes; note++ {
		s.renderNote(note, frames)
	}

	contrast := s.contrast()

	for i := 0; i < frames; i++ {
		var sig float64
		if s.volSum[i] != 0 {
			sig = s.ifftSum[i] * s.volMax[i] / (s.volSum[i] * wavetable.VolumeAmpResolution / 2)
		}
		v := sig / wavetable.WaveAmpResolution * contrast

		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
}

// mapNotes folds the grayscale line into per-note target volumes and applies
// the configured mappings.
func (s *IFFT) mapNotes() {
	for n := 0; n < NumberOfNotes; n++ {
		var acc int64
		for k := 0; k < PixelsPerNote; k++ {
			acc += int64(s.gray[n*PixelsPerNote+k])
		}
		v := acc / PixelsPerNote

		if s.config.ColorInverted {
			v = wavetable.VolumeAmpResolution - v
			if v < 0 {
				v = 0
			}
			if v > wavetable.VolumeAmpResolution {
				v = wavetable.VolumeAmpResolution
			}
		}
		s.noteVals[n] = float64(v)
	}

	// The first column carries the sensor's reference pixel, not image data.
	s.noteVals[0] = 0

	if s.config.RelativeMode {
		for n := 0; n < NumberOfNotes-1; n++ {
			d := s.noteVals[n] - s.noteVals[n+1]
			if d < 0 {
				d = 0
			}
			if d > wavetable.VolumeAmpResolution {
				d = wavetable.VolumeAmpResolution
			}
			s.noteVals[n] = d
		}
		s.noteVals[NumberOfNotes-1] = 0
	}

	if s.config.NonLinearMapping {
		for n := 0; n < NumberOfNotes; n++ {
			norm := s.noteVals[n] / wavetable.VolumeAmpResolution
			s.noteVals[n] = math.Pow(norm, s.config.Gamma) * wavetable.VolumeAmpResolution
		}
	}
}

// renderNote advances one oscillator across the slot, slewing its volume
// toward the line target and accumulating into the mix.
func (s *IFFT) renderNote(note, frames int) {
	n := &s.table.Notes[note]
	target := s.noteVals[note]

	// Gap limiter: the volume may move at most one increment per sample,
	// which smooths line-to-line discontinuities. The buffer is written
	// for every sample, settled segment included.
	cv := n.CurrentVolume
	for i := 0; i < frames; i++ {
		if cv < target {
			cv += n.VolumeIncrement
			if cv > target {
				cv = target
			}
		} else if cv > target {
			cv -= n.VolumeDecrement
			if cv < target {
				cv = target
			}
		}
		s.volume[i] = cv
	}
	n.CurrentVolume = cv

	for i := 0; i < frames; i++ {
		w := float64(s.table.Advance(note))
		v := s.volume[i]

		s.ifftSum[i] += w * v
		s.volSum[i] += v
		if v > s.volMax[i] {
			s.volMax[i] = v
		}
	}
}

// contrast computes the line-wide contrast figure used to modulate the slot.
// Sampled single-pass mean/variance; any numeric hazard yields the safe 1.0.
func (s *IFFT) contrast() float64 {
	stride := s.config.ContrastStride
	if stride <= 0 {
		stride = 1
	}

	var sum, sumSq float64
	var count int
	for i := 0; i < len(s.gray); i += stride {
		v := float64(s.gray[i])
		sum += v
		sumSq += v * v
		count++
	}
	if count == 0 {
		return 1.0
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}

	varianceMax := float64(wavetable.VolumeAmpResolution) * float64(wavetable.VolumeAmpResolution) / 4
	ratio := math.Sqrt(variance) / math.Sqrt(varianceMax)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 1.0
	}

	adjusted := math.Pow(ratio, s.config.ContrastPower)
	result := s.config.ContrastMin + (1-s.config.ContrastMin)*adjusted
	if result > 1 {
		result = 1
	}
	if result < s.config.ContrastMin {
		result = s.config.ContrastMin
	}
	return result
}

// NoteOn is a no-op: the additive engine is driven by the image alone.
func (s *IFFT) NoteOn(note, velocity int) {}

// NoteOff is a no-op for the additive engine.
func (s *IFFT) NoteOff(note int) {}
