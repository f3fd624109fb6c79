// Package wavetable builds the precomputed per-note waveform table used by
// the additive engine. One shared region holds the reference-octave waveform
// of every comma step; higher octaves reuse the same samples through
// power-of-two index strides.
package wavetable

import (
	"fmt"
	"math"
)

// Amplitude resolutions of the precomputed waveforms and the per-note volume
// scale.
const (
	WaveAmpResolution   = 16777215
	VolumeAmpResolution = 65535
)

// SemitonesPerOctave is fixed by the pitch grid.
const SemitonesPerOctave = 12

// RegionCapacity bounds the shared waveform region. Exceeding it at init is
// fatal: the table is never resized after construction.
const RegionCapacity = 2400000

// Waveform selects the stored wave shape.
type Waveform int

const (
	Sine Waveform = iota
	Saw
	Square
)

// Params configures table construction.
type Params struct {
	StartFrequency    float64
	CommasPerSemitone int
	NoteCount         int
	SampleRate        int
	Waveform          Waveform
	WaveformOrder     int // additive orders for saw/square
	VolumeIncrement   int // slew divisor, rising
	VolumeDecrement   int // slew divisor, falling
}

// Note is one oscillator slot. Everything except CurrentIdx and CurrentVolume
// is immutable after init.
type Note struct {
	Start         int // offset of the reference waveform in the shared region
	AreaSize      int // samples per period of the reference octave
	OctaveCoeff   int // index stride reaching this note's octave
	OctaveDivider int
	Frequency     float64

	CurrentIdx    int
	CurrentVolume float64

	VolumeIncrement    float64
	VolumeDecrement    float64
	MaxVolumeIncrement float64
	MaxVolumeDecrement float64
}

// Table owns the shared waveform region and all note state.
type Table struct {
	Region []float32
	Notes  []Note
}

// Frequency returns the pitch of comma step c on the logarithmic grid.
func Frequency(c int, start float64, commasPerSemitone int) float64 {
	return start * math.Pow(2, float64(c)/float64(SemitonesPerOctave*commasPerSemitone))
}

// New builds the table. Returns an error if the waveform region would exceed
// its fixed capacity.
func New(p Params) (*Table, error) {
	if p.NoteCount <= 0 || p.CommasPerSemitone <= 0 || p.SampleRate <= 0 || p.StartFrequency <= 0 {
		return nil, fmt.Errorf("wavetable: invalid params %+v", p)
	}
	if p.WaveformOrder < 1 {
		p.WaveformOrder = 1
	}

	commasPerOctave := SemitonesPerOctave * p.CommasPerSemitone

	// Size the region the way the generator fills it: one full period per
	// comma of the reference octave.
	regionLen := 0
	for c := 0; c < commasPerOctave; c++ {
		regionLen += int(float64(p.SampleRate) / Frequency(c, p.StartFrequency, p.CommasPerSemitone))
	}
	if regionLen > RegionCapacity {
		return nil, fmt.Errorf("wavetable: region of %d samples exceeds capacity %d", regionLen, RegionCapacity)
	}

	t := &Table{
		Region: make([]float32, regionLen),
		Notes:  make([]Note, p.NoteCount),
	}

	cell := 0
	lastNote := -1
	for c := 0; c < commasPerOctave; c++ {
		freq := Frequency(c, p.StartFrequency, p.CommasPerSemitone)

		// Half of the full period: the bottom octave plays the stored
		// shape directly and every other octave strides across it.
		areaSize := int(float64(p.SampleRate) / freq / 2)

		cell = fillWaveform(t.Region, cell, areaSize, p.Waveform, p.WaveformOrder)
		start := cell - areaSize

		for octave := 0; octave <= p.NoteCount/commasPerOctave; octave++ {
			note := c + commasPerOctave*octave
			if note >= p.NoteCount {
				continue
			}
			n := &t.Notes[note]
			n.Frequency = freq * math.Pow(2, float64(octave))
			n.AreaSize = areaSize
			n.Start = start
			n.CurrentIdx = 0

			if octave == 0 {
				n.OctaveCoeff = 1
				n.OctaveDivider = 2
				n.MaxVolumeIncrement = math.Abs(float64(t.Region[start+1])) / 2 /
					(float64(WaveAmpResolution) / float64(VolumeAmpResolution))
			} else {
				n.OctaveCoeff = 1 << (octave - 1)
				n.OctaveDivider = 1
				step := n.OctaveCoeff
				if start+step >= len(t.Region) {
					step = 0
				}
				n.MaxVolumeIncrement = math.Abs(float64(t.Region[start+step])) /
					(float64(WaveAmpResolution) / float64(VolumeAmpResolution))
			}
			n.MaxVolumeDecrement = n.MaxVolumeIncrement

			if note > lastNote {
				lastNote = note
			}
		}
	}

	if lastNote < p.NoteCount-1 {
		return nil, fmt.Errorf("wavetable: grid only reaches note %d of %d", lastNote, p.NoteCount)
	}

	t.setSlewRates(p.VolumeIncrement, p.VolumeDecrement)

	return t, nil
}

// setSlewRates derives the per-sample volume slew from the configured
// divisors and each note's waveform-derived ceiling.
func (t *Table) setSlewRates(incDiv, decDiv int) {
	if incDiv > 1000 {
		incDiv = 100
	}
	if decDiv > 1000 {
		decDiv = 100
	}
	for i := range t.Notes {
		n := &t.Notes[i]
		if incDiv <= 0 {
			n.VolumeIncrement = n.MaxVolumeIncrement
		} else {
			n.VolumeIncrement = n.MaxVolumeIncrement / float64(incDiv)
		}
		if decDiv <= 0 {
			n.VolumeDecrement = n.MaxVolumeDecrement
		} else {
			n.VolumeDecrement = n.MaxVolumeDecrement / float64(decDiv)
		}
	}
}

// Advance moves the note's phase index one step and returns the waveform
// sample at the new position.
func (t *Table) Advance(note int) float32 {
	n := &t.Notes[note]
	idx := n.CurrentIdx + n.OctaveCoeff
	if idx >= n.AreaSize {
		idx -= n.AreaSize
	}
	n.CurrentIdx = idx
	return t.Region[n.Start+idx]
}

// fillWaveform appends one period of the selected shape and returns the next
// free cell. Saw and square sum sine orders with overshoot compensation so
// the peak stays inside the amplitude resolution.
func fillWaveform(region []float32, cell, areaSize int, w Waveform, order int) int {
	switch w {
	case Sine:
		for x := 0; x < areaSize; x++ {
			if cell < len(region) {
				region[cell] = float32(math.Sin(float64(x)*2*math.Pi/float64(areaSize)) * (WaveAmpResolution / 2.0))
			}
			cell++
		}

	case Saw:
		overshoot := sawOvershoot(areaSize, order)
		for x := 0; x < areaSize; x++ {
			if cell < len(region) {
				var v float64
				for n := 0; n < order; n++ {
					v += math.Pow(-1, float64(n)) * ((WaveAmpResolution - overshoot) / math.Pi) *
						math.Sin(float64(n+1)*float64(x)*2*math.Pi/float64(areaSize)) / float64(n+1)
				}
				region[cell] = float32(v)
			}
			cell++
		}

	case Square:
		overshoot := squareOvershoot(areaSize, order)
		for x := 0; x < areaSize; x++ {
			if cell < len(region) {
				var v float64
				for n := 0; n < order; n++ {
					v += (2 * (WaveAmpResolution - overshoot) / math.Pi) *
						math.Sin((2*float64(n)+1)*float64(x)*2*math.Pi/float64(areaSize)) / (2*float64(n) + 1)
				}
				region[cell] = float32(v)
			}
			cell++
		}
	}
	return cell
}

func sawOvershoot(areaSize, order int) float64 {
	var max float64
	for x := 0; x < areaSize/2; x++ {
		var v float64
		for n := 0; n < order; n++ {
			v += math.Pow(-1, float64(n)) * (WaveAmpResolution / math.Pi) *
				math.Sin(float64(n+1)*float64(x)*2*math.Pi/float64(areaSize)) / float64(n+1)
			if v > max {
				max = v
			}
		}
	}
	o := max*2 - WaveAmpResolution
	if o < 0 {
		o = 0
	}
	return o
}

func squareOvershoot(areaSize, order int) float64 {
	var max float64
	for x := 0; x < areaSize/2; x++ {
		var v float64
		for n := 0; n < order; n++ {
			v += (2 * WaveAmpResolution / math.Pi) *
				math.Sin((2*float64(n)+1)*float64(x)*2*math.Pi/float64(areaSize)) / (2*float64(n) + 1)
			if v > max {
				max = v
			}
		}
	}
	o := max*2 - WaveAmpResolution
	if o < 0 {
		o = 0
	}
	return o
}
