package audio

import (
	"math"
	"sync/atomic"
)

// Reverb is the master-bus reverb insert. Parameter surface follows the
// original hardware rig: room size, damping, stereo width and dry/wet mix,
// all 0..1, adjustable at control rate from the MIDI thread while the
// callback renders. Disabled by default; the first reverb CC enables it.
type Reverb struct {
	enabled  atomic.Bool
	roomSize atomicFloat
	damping  atomicFloat
	width    atomicFloat
	mix      atomicFloat

	combsL []*comb
	combsR []*comb
	allpL  []*allpass
	allpR  []*allpass
}

// Tunings for the comb and allpass banks, in samples at 44.1 kHz, scaled to
// the stream rate at construction. Right channel runs slightly detuned for
// stereo decorrelation.
var (
	combTunings    = []int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTunings = []int{556, 441, 341, 225}
)

const stereoSpread = 23

// NewReverb creates a reverb for the given sample rate.
func NewReverb(sampleRate int) *Reverb {
	scale := float64(sampleRate) / 44100.0

	rv := &Reverb{}
	for _, t := range combTunings {
		rv.combsL = append(rv.combsL, newComb(int(float64(t)*scale)))
		rv.combsR = append(rv.combsR, newComb(int(float64(t+stereoSpread)*scale)))
	}
	for _, t := range allpassTunings {
		rv.allpL = append(rv.allpL, newAllpass(int(float64(t)*scale)))
		rv.allpR = append(rv.allpR, newAllpass(int(float64(t+stereoSpread)*scale)))
	}

	rv.roomSize.store(0.5)
	rv.damping.store(0.5)
	rv.width.store(1.0)
	rv.mix.store(0.3)
	return rv
}

// SetEnabled switches the insert in or out of the bus.
func (rv *Reverb) SetEnabled(on bool) { rv.enabled.Store(on) }

// Enabled reports whether the insert is active.
func (rv *Reverb) Enabled() bool { return rv.enabled.Load() }

// SetRoomSize sets the room size (0..1).
func (rv *Reverb) SetRoomSize(v float64) { rv.roomSize.store(clamp01(v)) }

// SetDamping sets high-frequency damping (0..1).
func (rv *Reverb) SetDamping(v float64) { rv.damping.store(clamp01(v)) }

// SetWidth sets the stereo width (0..1).
func (rv *Reverb) SetWidth(v float64) { rv.width.store(clamp01(v)) }

// SetMix sets the dry/wet mix (0..1).
func (rv *Reverb) SetMix(v float64) { rv.mix.store(clamp01(v)) }

// Process runs the reverb in place over a stereo pair. No-op when disabled.
func (rv *Reverb) Process(left, right []float32) {
	if !rv.enabled.Load() {
		return
	}

	feedback := 0.7 + 0.28*rv.roomSize.load()
	damp := rv.damping.load() * 0.4
	width := rv.width.load()
	mix := rv.mix.load()

	wet1 := mix * (width/2 + 0.5)
	wet2 := mix * ((1 - width) / 2)
	dry := 1 - mix

	for i := range left {
		in := float64(left[i]+right[i]) * 0.015

		var outL, outR float64
		for _, c := range rv.combsL {
			outL += c.process(in, feedback, damp)
		}
		for _, c := range rv.combsR {
			outR += c.process(in, feedback, damp)
		}
		for _, a := range rv.allpL {
			outL = a.process(outL)
		}
		for _, a := range rv.allpR {
			outR = a.process(outR)
		}

		l := float64(left[i])*dry + outL*wet1 + outR*wet2
		r := float64(right[i])*dry + outR*wet1 + outL*wet2
		left[i] = float32(l)
		right[i] = float32(r)
	}
}

// comb is a feedback comb filter with a one-pole lowpass in the loop.
type comb struct {
	buf   []float64
	pos   int
	store float64
}

func newComb(size int) *comb {
	if size < 1 {
		size = 1
	}
	return &comb{buf: make([]float64, size)}
}

func (c *comb) process(in, feedback, damp float64) float64 {
	out := c.buf[c.pos]
	c.store = out*(1-damp) + c.store*damp
	c.buf[c.pos] = in + c.store*feedback
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

// allpass is a Schroeder allpass diffuser.
type allpass struct {
	buf []float64
	pos int
}

func newAllpass(size int) *allpass {
	if size < 1 {
		size = 1
	}
	return &allpass{buf: make([]float64, size)}
}

func (a *allpass) process(in float64) float64 {
	bufOut := a.buf[a.pos]
	out := bufOut - in
	a.buf[a.pos] = in + bufOut*0.5
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

// atomicFloat is a float64 stored in a uint64 for lock-free control updates.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) load() float64   { return math.Float64frombits(f.bits.Load()) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
