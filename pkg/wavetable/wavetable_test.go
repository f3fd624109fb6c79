package wavetable

import (
	"math"
	"testing"
)

func testParams() Params {
	return Params{
		StartFrequency:    65.41,
		CommasPerSemitone: 36,
		NoteCount:         3456,
		SampleRate:        48000,
		Waveform:          Sine,
		WaveformOrder:     1,
		VolumeIncrement:   1,
		VolumeDecrement:   1,
	}
}

func TestFrequencyGrid(t *testing.T) {
	table, err := New(testParams())
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}

	if got := table.Notes[0].Frequency; math.Abs(got-65.41) > 1e-6 {
		t.Errorf("Expected first note at 65.41 Hz, got %f", got)
	}

	// One full octave (12*36 commas) up doubles the frequency.
	commasPerOctave := SemitonesPerOctave * 36
	for _, base := range []int{0, 100, 431} {
		low := table.Notes[base].Frequency
		high := table.Notes[base+commasPerOctave].Frequency
		if math.Abs(high/low-2) > 1e-9 {
			t.Errorf("Note %d to %d: expected octave doubling, got ratio %f",
				base, base+commasPerOctave, high/low)
		}
	}

	// Frequencies are strictly increasing along the line.
	for i := 1; i < len(table.Notes); i++ {
		if table.Notes[i].Frequency <= table.Notes[i-1].Frequency {
			t.Fatalf("Frequency not increasing at note %d: %f then %f",
				i, table.Notes[i-1].Frequency, table.Notes[i].Frequency)
		}
	}
}

func TestOctaveStride(t *testing.T) {
	table, err := New(testParams())
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}

	commasPerOctave := SemitonesPerOctave * 36

	if got := table.Notes[0].OctaveCoeff; got != 1 {
		t.Errorf("Bottom octave stride must be 1, got %d", got)
	}
	if got := table.Notes[commasPerOctave].OctaveCoeff; got != 1 {
		t.Errorf("Second octave stride must be 1, got %d", got)
	}
	if got := table.Notes[2*commasPerOctave].OctaveCoeff; got != 2 {
		t.Errorf("Third octave stride must be 2, got %d", got)
	}

	// Same comma shares the stored waveform across octaves.
	if table.Notes[0].Start != table.Notes[commasPerOctave].Start {
		t.Error("Octaves of the same comma must share the waveform region")
	}
}

func TestPhaseIdentity(t *testing.T) {
	table, err := New(testParams())
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}

	for _, note := range []int{0, 1, 431, 432, 1000, 3455} {
		n := &table.Notes[note]
		start := n.CurrentIdx
		for k := 0; k < n.AreaSize; k++ {
			table.Advance(note)
		}
		if n.CurrentIdx != start {
			t.Errorf("Note %d: advancing area_size (%d) steps moved phase %d -> %d",
				note, n.AreaSize, start, n.CurrentIdx)
		}
	}
}

func TestPointerArithmeticStaysInRegion(t *testing.T) {
	table, err := New(testParams())
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}

	for i := range table.Notes {
		n := &table.Notes[i]
		if n.Start < 0 || n.Start+n.AreaSize > len(table.Region) {
			t.Fatalf("Note %d waveform [%d, %d) escapes region of %d samples",
				i, n.Start, n.Start+n.AreaSize, len(table.Region))
		}
	}
}

func TestRegionOverflowIsFatal(t *testing.T) {
	p := testParams()
	p.StartFrequency = 1.0 // sub-audio fundamentals need an enormous region

	if _, err := New(p); err == nil {
		t.Fatal("Expected region overflow error for 1 Hz start frequency")
	}
}

func TestSlewRates(t *testing.T) {
	table, err := New(testParams())
	if err != nil {
		t.Fatalf("Failed to build table: %v", err)
	}

	for i := range table.Notes {
		n := &table.Notes[i]
		if n.VolumeIncrement < 0 || n.VolumeDecrement < 0 {
			t.Fatalf("Note %d has negative slew rates: +%f -%f", i, n.VolumeIncrement, n.VolumeDecrement)
		}
	}
}
