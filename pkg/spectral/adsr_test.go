package spectral

import (
	"math"
	"testing"
)

const testSampleRate = 48000.0

func TestADSRLifecycle(t *testing.T) {
	var env ADSR
	env.Init(0.01, 0.1, 0.8, 0.2, testSampleRate)

	if env.State != StateIdle {
		t.Fatalf("Expected idle after init, got %s", env.State)
	}

	env.TriggerAttack()
	if env.State != StateAttack {
		t.Fatalf("Expected attack after trigger, got %s", env.State)
	}

	// Attack rises monotonically to 1 within attack_samples.
	attackSamples := int(0.01 * testSampleRate)
	prev := 0.0
	for i := 0; i < attackSamples; i++ {
		out := env.Next()
		if out < prev-1e-12 {
			t.Fatalf("Attack not monotonic at sample %d: %f then %f", i, prev, out)
		}
		prev = out
	}
	if env.State != StateDecay {
		t.Fatalf("Expected decay after %d samples, got %s", attackSamples, env.State)
	}

	// Decay falls to the sustain level.
	decaySamples := int(0.1 * testSampleRate)
	for i := 0; i < decaySamples; i++ {
		env.Next()
	}
	if env.State != StateSustain {
		t.Fatalf("Expected sustain after decay, got %s", env.State)
	}
	if math.Abs(env.CurrentOutput-0.8) > 1e-9 {
		t.Errorf("Expected sustain level 0.8, got %f", env.CurrentOutput)
	}

	// Sustain holds indefinitely.
	for i := 0; i < 1000; i++ {
		env.Next()
	}
	if math.Abs(env.CurrentOutput-0.8) > 1e-9 {
		t.Errorf("Sustain drifted to %f", env.CurrentOutput)
	}

	// Release decays to zero and the envelope goes idle.
	env.TriggerRelease()
	releaseSamples := int(0.2 * testSampleRate)
	for i := 0; i <= releaseSamples; i++ {
		env.Next()
	}
	if env.State != StateIdle {
		t.Fatalf("Expected idle after release, got %s", env.State)
	}
	if env.CurrentOutput != 0 {
		t.Errorf("Expected output 0 after release, got %f", env.CurrentOutput)
	}
}

func TestADSRZeroTimesJumpToSustain(t *testing.T) {
	var env ADSR
	env.Init(0, 0, 0.6, 0, testSampleRate)

	env.TriggerAttack()
	env.Next()

	if math.Abs(env.CurrentOutput-0.6) > 1e-9 {
		t.Errorf("Zero-time envelope should sit at sustain within one sample, got %f", env.CurrentOutput)
	}
	if env.State != StateSustain {
		t.Errorf("Expected sustain, got %s", env.State)
	}
}

func TestADSRZeroAttackFullSustain(t *testing.T) {
	var env ADSR
	env.Init(0, 0.1, 1.0, 0.1, testSampleRate)

	env.TriggerAttack()
	if env.State != StateSustain {
		t.Errorf("Zero attack with full sustain should jump to sustain, got %s", env.State)
	}
	if env.CurrentOutput != 1 {
		t.Errorf("Expected output 1, got %f", env.CurrentOutput)
	}
}

func TestADSRReleaseParamChangeMidRelease(t *testing.T) {
	var env ADSR
	env.Init(0, 0, 0.8, 0.5, testSampleRate)
	env.TriggerAttack()
	env.Next()
	env.TriggerRelease()

	// Burn a quarter of the release.
	quarter := int(0.5 * testSampleRate / 4)
	for i := 0; i < quarter; i++ {
		env.Next()
	}

	// Shrink the release time while releasing. The envelope must still hit
	// exactly zero no later than the (new) release sample budget.
	env.UpdateSettings(0, 0, 0.8, 0.2, testSampleRate)

	budget := int(0.2 * testSampleRate)
	reached := false
	for i := 0; i <= budget; i++ {
		if env.Next() == 0 && env.State == StateIdle {
			reached = true
			break
		}
	}
	if !reached {
		t.Error("Envelope did not reach zero within the updated release budget")
	}
}

func TestADSRDecayParamChangeMidDecay(t *testing.T) {
	var env ADSR
	env.Init(0.001, 0.5, 0.5, 0.1, testSampleRate)
	env.TriggerAttack()

	// Run through attack into decay and burn some of it.
	for env.State != StateDecay {
		env.Next()
	}
	for i := 0; i < int(0.1*testSampleRate); i++ {
		env.Next()
	}

	before := env.CurrentOutput
	env.UpdateSettings(0.001, 0.5, 0.5, 0.1, testSampleRate)

	// No discontinuity at the edit point.
	after := env.Next()
	if math.Abs(after-before) > 0.001 {
		t.Errorf("Parameter edit produced a step: %f -> %f", before, after)
	}
}
