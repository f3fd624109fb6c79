package spectral

import "math"

// LFO is the global vibrato oscillator, one sine sample per audio sample.
type LFO struct {
	phase          float64
	phaseIncrement float64
	sampleRate     float64

	RateHz         float64
	DepthSemitones float64
}

// Init configures rate and depth for the given sample rate.
func (l *LFO) Init(rateHz, depthSemitones, sampleRate float64) {
	l.sampleRate = sampleRate
	l.DepthSemitones = depthSemitones
	l.SetRate(rateHz)
	l.phase = 0
}

// SetRate updates the oscillation rate.
func (l *LFO) SetRate(rateHz float64) {
	if rateHz < 0 {
		rateHz = 0
	}
	l.RateHz = rateHz
	l.phaseIncrement = 2 * math.Pi * rateHz / l.sampleRate
}

// SetDepth updates the modulation depth in semitones.
func (l *LFO) SetDepth(depthSemitones float64) {
	l.DepthSemitones = depthSemitones
}

// Next advances one sample and returns the LFO output in [-1, 1].
func (l *LFO) Next() float64 {
	out := math.Sin(l.phase)
	l.phase += l.phaseIncrement
	if l.phase >= 2*math.Pi {
		l.phase -= 2 * math.Pi
	}
	return out
}
