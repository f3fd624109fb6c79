package spectral

import (
	"math"
	"testing"

	"github.com/ondulab/cisynth/pkg/protocol"
)

func testEngineConfig() Config {
	return Config{
		BufferSize:     512,
		SampleRate:     48000,
		WindowSize:     1,
		MasterVolume:   0.10,
		VolumeAttack:   0.01,
		VolumeDecay:    0.1,
		VolumeSustain:  0.8,
		VolumeRelease:  0.2,
		FilterAttack:   0.02,
		FilterDecay:    0.2,
		FilterSustain:  0.1,
		FilterRelease:  0.3,
		FilterCutoff:   8000,
		FilterEnvDepth: -7800,
		LFORate:        5,
		LFODepth:       0.25,
	}
}

func renderBuffers(e *Engine, n int) {
	out := make([]float32, e.config.BufferSize)
	for i := 0; i < n; i++ {
		e.Process(nil, nil, nil, out)
	}
}

func TestNoteOnOffRoundTrip(t *testing.T) {
	e := NewEngine(testEngineConfig())

	e.NoteOn(69, 100)
	if got := e.ActiveVoices(); got != 1 {
		t.Fatalf("Expected 1 active voice, got %d", got)
	}

	state, note := e.VoiceState(0)
	if state == StateIdle {
		t.Fatal("Voice should have left idle")
	}
	if note != 69 {
		t.Errorf("Expected MIDI note 69, got %d", note)
	}

	// ~10 ms of audio, then release.
	renderBuffers(e, 1)
	e.NoteOff(69)

	// attack+decay+release is 0.31 s; give it 0.35 s of buffers.
	renderBuffers(e, 33)

	if got := e.ActiveVoices(); got != 0 {
		t.Errorf("Expected all voices idle after release, got %d", got)
	}
	_, note = e.VoiceState(0)
	if note != -1 {
		t.Errorf("Expected MIDI note cleared to -1, got %d", note)
	}
}

func TestOutputBounded(t *testing.T) {
	e := NewEngine(testEngineConfig())

	// Full chord at full velocity.
	for n := 40; n < 72; n++ {
		e.NoteOn(n, 127)
	}

	out := make([]float32, 512)
	for i := 0; i < 20; i++ {
		e.Process(nil, nil, nil, out)
		for j, s := range out {
			if s < -1 || s > 1 {
				t.Fatalf("Sample %d out of range: %f", j, s)
			}
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("Sample %d not finite", j)
			}
		}
	}
}

func TestVoiceStealingPrefersIdle(t *testing.T) {
	e := NewEngine(testEngineConfig())

	e.NoteOn(60, 64)
	e.NoteOn(61, 64)

	if got := e.ActiveVoices(); got != 2 {
		t.Errorf("Expected 2 active voices, got %d", got)
	}
}

func TestVoiceStealingUnderLoad(t *testing.T) {
	e := NewEngine(testEngineConfig())

	// Fill all 32 voices; every voice is in attack.
	for n := 0; n < NumVoices; n++ {
		e.NoteOn(36+n, 64)
	}
	if got := e.ActiveVoices(); got != NumVoices {
		t.Fatalf("Expected %d active voices, got %d", NumVoices, got)
	}

	// The 33rd note steals the voice with the lowest trigger order, which
	// was playing the first note.
	e.NoteOn(100, 64)

	if got := e.ActiveVoices(); got != NumVoices {
		t.Errorf("Voice count changed under stealing: %d", got)
	}

	found := false
	for i := 0; i < NumVoices; i++ {
		_, note := e.VoiceState(i)
		if note == 100 {
			if i != 0 {
				t.Errorf("Expected the oldest voice (slot 0) to be stolen, got slot %d", i)
			}
			found = true
		}
		if note == 36 {
			t.Error("The first (oldest) note should have been evicted")
		}
	}
	if !found {
		t.Error("Note 100 was not allocated to any voice")
	}
}

func TestVoiceStealingPrefersQuietestRelease(t *testing.T) {
	e := NewEngine(testEngineConfig())

	for n := 0; n < NumVoices; n++ {
		e.NoteOn(36+n, 64)
	}
	// Let the attacks complete so releases start from a real level.
	renderBuffers(e, 1)

	// Release two voices and let their envelopes fall for a while.
	e.NoteOff(36)
	e.NoteOff(37)
	renderBuffers(e, 4)

	// Put every remaining voice into release as well, with voice 0 and 1
	// quietest. A new note must land on the quietest releasing voice.
	for n := 2; n < NumVoices; n++ {
		e.NoteOff(36 + n)
	}

	e.NoteOn(120, 64)
	assigned := -1
	for i := 0; i < NumVoices; i++ {
		_, note := e.VoiceState(i)
		if note == 120 {
			assigned = i
			break
		}
	}
	if assigned != 0 && assigned != 1 {
		t.Errorf("Expected one of the quietest releasing voices (0 or 1), got %d", assigned)
	}
}

func TestNoteOnVelocityZeroIsNoteOff(t *testing.T) {
	e := NewEngine(testEngineConfig())

	e.NoteOn(60, 100)
	e.NoteOn(60, 0)

	state, _ := e.VoiceState(0)
	if state != StateRelease {
		t.Errorf("Velocity-0 note-on should release the voice, got %s", state)
	}
}

func TestHarmonicsStopAtNyquist(t *testing.T) {
	e := NewEngine(testEngineConfig())

	// MIDI 127 is ~12.5 kHz; only the fundamental fits under 24 kHz.
	e.NoteOn(127, 127)
	renderBuffers(e, 2)

	e.mu.Lock()
	voice := &e.voices[0]
	moved := 0
	for k := range voice.Phases {
		if voice.Phases[k] != 0 {
			moved++
		}
	}
	e.mu.Unlock()

	if moved != 1 {
		t.Errorf("Expected only the fundamental oscillator to run, got %d", moved)
	}
}

func TestUpdateLineChangesSpectrum(t *testing.T) {
	e := NewEngine(testEngineConfig())

	r := make([]byte, protocol.PixelsPerLine)
	g := make([]byte, protocol.PixelsPerLine)
	b := make([]byte, protocol.PixelsPerLine)

	// Ten cycles across the line put energy into bin 10.
	for i := range r {
		v := byte(128 + 127*math.Sin(10*2*math.Pi*float64(i)/float64(protocol.PixelsPerLine)))
		r[i], g[i], b[i] = v, v, v
	}

	out := make([]float32, 512)
	// Several buffers so the exponential smoothing converges.
	for i := 0; i < 50; i++ {
		e.Process(r, g, b, out)
	}

	e.mu.Lock()
	bin10 := e.smoothedMag[10]
	bin20 := e.smoothedMag[20]
	e.mu.Unlock()

	if bin10 <= bin20 {
		t.Errorf("Expected energy concentrated in bin 10: bin10=%f bin20=%f", bin10, bin20)
	}
}

func TestLiveVolumeADSRSettersPropagate(t *testing.T) {
	e := NewEngine(testEngineConfig())

	e.NoteOn(60, 100)
	e.SetVolumeSustain(0.5)

	e.mu.Lock()
	got := e.voices[0].VolumeADSR.SustainLevel
	e.mu.Unlock()

	if got != 0.5 {
		t.Errorf("Sustain setter did not reach the active voice: %f", got)
	}
}
