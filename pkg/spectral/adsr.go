package spectral

// ADSRState identifies the envelope stage.
type ADSRState int

const (
	StateIdle ADSRState = iota
	StateAttack
	StateDecay
	StateSustain
	StateRelease
)

func (s ADSRState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttack:
		return "attack"
	case StateDecay:
		return "decay"
	case StateSustain:
		return "sustain"
	case StateRelease:
		return "release"
	}
	return "unknown"
}

// ADSR is a linear attack/decay/sustain/release envelope advanced once per
// sample. Output is always within [0, 1] and monotonic within a stage.
type ADSR struct {
	State ADSRState

	AttackSeconds  float64
	DecaySeconds   float64
	SustainLevel   float64
	ReleaseSeconds float64

	attackSamples  float64
	decaySamples   float64
	releaseSamples float64

	CurrentOutput  float64
	CurrentSamples int64

	attackIncrement  float64
	decayDecrement   float64
	releaseDecrement float64
}

// Init configures the envelope and resets it to idle.
func (e *ADSR) Init(attack, decay, sustain, release, sampleRate float64) {
	e.AttackSeconds = attack
	e.DecaySeconds = decay
	e.SustainLevel = sustain
	e.ReleaseSeconds = release

	e.attackSamples = timeToSamples(attack, sampleRate)
	e.decaySamples = timeToSamples(decay, sampleRate)
	e.releaseSamples = timeToSamples(release, sampleRate)

	if e.attackSamples > 0 {
		e.attackIncrement = 1 / e.attackSamples
	} else {
		e.attackIncrement = 1
	}
	if e.decaySamples > 0 && 1-sustain > 0 {
		e.decayDecrement = (1 - sustain) / e.decaySamples
	} else {
		e.decayDecrement = 1 - sustain
	}

	e.State = StateIdle
	e.CurrentOutput = 0
	e.CurrentSamples = 0
}

// UpdateSettings rewrites the envelope parameters on a possibly active
// envelope. Rates for the stage in progress are recomputed from the samples
// remaining and the current output, so the envelope still lands on its
// target without a step.
func (e *ADSR) UpdateSettings(attack, decay, sustain, release, sampleRate float64) {
	e.AttackSeconds = attack
	e.DecaySeconds = decay
	e.SustainLevel = sustain
	e.ReleaseSeconds = release

	e.attackSamples = timeToSamples(attack, sampleRate)
	e.decaySamples = timeToSamples(decay, sampleRate)
	e.releaseSamples = timeToSamples(release, sampleRate)

	if e.attackSamples > 0 {
		e.attackIncrement = 1 / e.attackSamples
	} else {
		e.attackIncrement = 1
	}

	if e.State == StateDecay && e.CurrentOutput > e.SustainLevel {
		remaining := e.decaySamples - float64(e.CurrentSamples)
		if remaining > 0 {
			e.decayDecrement = (e.CurrentOutput - e.SustainLevel) / remaining
		} else {
			e.decayDecrement = e.CurrentOutput - e.SustainLevel
		}
	} else {
		if e.decaySamples > 0 && 1-e.SustainLevel > 1e-5 {
			e.decayDecrement = (1 - e.SustainLevel) / e.decaySamples
		} else {
			e.decayDecrement = 1 - e.SustainLevel
		}
		if e.decayDecrement < 0 {
			e.decayDecrement = 0
		}
	}

	if e.State == StateRelease && e.CurrentOutput > 0 {
		remaining := e.releaseSamples - float64(e.CurrentSamples)
		if remaining > 0 {
			e.releaseDecrement = e.CurrentOutput / remaining
		} else {
			e.releaseDecrement = e.CurrentOutput
		}
	} else {
		if e.releaseSamples > 0 && e.CurrentOutput > 1e-5 {
			e.releaseDecrement = e.CurrentOutput / e.releaseSamples
		} else {
			e.releaseDecrement = e.CurrentOutput
		}
		if e.releaseDecrement < 0 {
			e.releaseDecrement = 0
		}
	}
}

// TriggerAttack restarts the envelope from zero. Zero-length stages are
// skipped: a zero attack jumps straight to decay, and further to sustain if
// decay is zero or sustain is full scale.
func (e *ADSR) TriggerAttack() {
	e.State = StateAttack
	e.CurrentSamples = 0
	e.CurrentOutput = 0

	if e.attackSamples > 0 {
		e.attackIncrement = 1 / e.attackSamples
		return
	}

	e.CurrentOutput = 1
	e.attackIncrement = 0
	if e.SustainLevel < 1 && e.decaySamples > 0 {
		e.State = StateDecay
		e.decayDecrement = (1 - e.SustainLevel) / e.decaySamples
	} else {
		e.CurrentOutput = e.SustainLevel
		e.State = StateSustain
	}
}

// TriggerRelease starts the release stage from the current output.
func (e *ADSR) TriggerRelease() {
	e.State = StateRelease
	e.CurrentSamples = 0
	if e.releaseSamples > 0 && e.CurrentOutput > 0 {
		e.releaseDecrement = e.CurrentOutput / e.releaseSamples
	} else {
		e.releaseDecrement = e.CurrentOutput
		e.CurrentOutput = 0
		e.State = StateIdle
	}
}

// Next advances the envelope one sample and returns the output, clamped to
// [0, 1].
func (e *ADSR) Next() float64 {
	switch e.State {
	case StateIdle, StateSustain:
		// Holds its level.

	case StateAttack:
		e.CurrentOutput += e.attackIncrement
		e.CurrentSamples++
		if e.CurrentOutput >= 1 || (e.attackSamples > 0 && float64(e.CurrentSamples) >= e.attackSamples) {
			e.CurrentOutput = 1
			e.State = StateDecay
			e.CurrentSamples = 0
			if e.decaySamples > 0 {
				e.decayDecrement = (1 - e.SustainLevel) / e.decaySamples
			} else {
				e.CurrentOutput = e.SustainLevel
				e.State = StateSustain
			}
		}

	case StateDecay:
		e.CurrentOutput -= e.decayDecrement
		e.CurrentSamples++
		if e.CurrentOutput <= e.SustainLevel || (e.decaySamples > 0 && float64(e.CurrentSamples) >= e.decaySamples) {
			e.CurrentOutput = e.SustainLevel
			e.State = StateSustain
		}

	case StateRelease:
		e.CurrentOutput -= e.releaseDecrement
		e.CurrentSamples++
		if e.CurrentOutput <= 0 || (e.releaseSamples > 0 && float64(e.CurrentSamples) >= e.releaseSamples) {
			e.CurrentOutput = 0
			e.State = StateIdle
		}
	}

	if e.CurrentOutput > 1 {
		e.CurrentOutput = 1
	}
	if e.CurrentOutput < 0 {
		e.CurrentOutput = 0
	}
	return e.CurrentOutput
}

// timeToSamples converts a stage time to a sample count, with a one-sample
// floor for nonzero times.
func timeToSamples(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 0
	}
	s := seconds * sampleRate
	if s < 1 {
		return 1
	}
	return s
}
