package midi

import (
	"math"
	"testing"

	"github.com/ondulab/cisynth/pkg/logger"
)

type fakeNotes struct {
	ons  []([2]int)
	offs []int
}

func (f *fakeNotes) NoteOn(note, velocity int) { f.ons = append(f.ons, [2]int{note, velocity}) }
func (f *fakeNotes) NoteOff(note int)          { f.offs = append(f.offs, note) }

type fakeVolume struct {
	values []float64
}

func (f *fakeVolume) SetMasterVolume(v float64) { f.values = append(f.values, v) }

type fakeReverb struct {
	enabled                            bool
	mix, room, damp, width             float64
	mixSet, roomSet, dampSet, widthSet bool
}

func (f *fakeReverb) SetEnabled(on bool)    { f.enabled = on }
func (f *fakeReverb) Enabled() bool         { return f.enabled }
func (f *fakeReverb) SetMix(v float64)      { f.mix = v; f.mixSet = true }
func (f *fakeReverb) SetRoomSize(v float64) { f.room = v; f.roomSet = true }
func (f *fakeReverb) SetDamping(v float64)  { f.damp = v; f.dampSet = true }
func (f *fakeReverb) SetWidth(v float64)    { f.width = v; f.widthSet = true }

func testSurface() (*Surface, *fakeNotes, *fakeVolume, *fakeReverb) {
	notes := &fakeNotes{}
	volume := &fakeVolume{}
	reverb := &fakeReverb{}
	log := logger.New(logger.Config{Level: "error", Format: "text"})
	s := NewSurface(Config{DeviceNames: []string{"Launchkey Mini"}}, notes, volume, reverb, log)
	return s, notes, volume, reverb
}

func TestDispatchNoteOnOff(t *testing.T) {
	s, notes, _, _ := testSurface()

	s.Dispatch([]byte{0x90, 69, 100}) // note on
	s.Dispatch([]byte{0x80, 69, 0})   // note off

	if len(notes.ons) != 1 || notes.ons[0] != [2]int{69, 100} {
		t.Errorf("Expected note-on (69, 100), got %v", notes.ons)
	}
	if len(notes.offs) != 1 || notes.offs[0] != 69 {
		t.Errorf("Expected note-off 69, got %v", notes.offs)
	}
}

func TestNoteOnVelocityZeroIsNoteOff(t *testing.T) {
	s, notes, _, _ := testSurface()

	s.Dispatch([]byte{0x90, 60, 0})

	if len(notes.ons) != 0 {
		t.Errorf("Velocity-0 note-on must not trigger a note, got %v", notes.ons)
	}
	if len(notes.offs) != 1 || notes.offs[0] != 60 {
		t.Errorf("Expected note-off 60, got %v", notes.offs)
	}
}

func TestVolumeControlChange(t *testing.T) {
	s, _, volume, _ := testSurface()

	s.Dispatch([]byte{0xB0, 7, 127}) // CC 7 full
	s.Dispatch([]byte{0xB0, 1, 64})  // mod wheel half

	if len(volume.values) != 2 {
		t.Fatalf("Expected 2 volume changes, got %d", len(volume.values))
	}
	if volume.values[0] != 1.0 {
		t.Errorf("CC 7 value 127 should map to 1.0, got %f", volume.values[0])
	}
	if math.Abs(volume.values[1]-64.0/127) > 1e-9 {
		t.Errorf("CC 1 value 64 should map to 64/127, got %f", volume.values[1])
	}
}

func TestReverbControlChanges(t *testing.T) {
	s, _, _, reverb := testSurface()

	s.Dispatch([]byte{0xB0, 20, 127}) // mix
	s.Dispatch([]byte{0xB0, 21, 64})  // room size
	s.Dispatch([]byte{0xB0, 22, 32})  // damping
	s.Dispatch([]byte{0xB0, 23, 0})   // width

	if !reverb.enabled {
		t.Error("First reverb CC must enable the insert")
	}
	if !reverb.mixSet || reverb.mix != 1.0 {
		t.Errorf("Expected mix 1.0, got %f (set=%v)", reverb.mix, reverb.mixSet)
	}
	if !reverb.roomSet || math.Abs(reverb.room-64.0/127) > 1e-9 {
		t.Errorf("Expected room size 64/127, got %f", reverb.room)
	}
	if !reverb.dampSet || math.Abs(reverb.damp-32.0/127) > 1e-9 {
		t.Errorf("Expected damping 32/127, got %f", reverb.damp)
	}
	if !reverb.widthSet || reverb.width != 0 {
		t.Errorf("Expected width 0, got %f", reverb.width)
	}
}

func TestShortMessagesIgnored(t *testing.T) {
	s, notes, volume, reverb := testSurface()

	s.Dispatch([]byte{})
	s.Dispatch([]byte{0x90})
	s.Dispatch([]byte{0xB0, 7})

	if len(notes.ons) != 0 || len(notes.offs) != 0 {
		t.Error("Short messages must not gate notes")
	}
	if len(volume.values) != 0 {
		t.Error("Short messages must not change volume")
	}
	if reverb.enabled {
		t.Error("Short messages must not touch the reverb")
	}
}

func TestUnknownCCIgnored(t *testing.T) {
	s, _, volume, reverb := testSurface()

	s.Dispatch([]byte{0xB0, 99, 64})

	if len(volume.values) != 0 || reverb.enabled {
		t.Error("Unhandled CC numbers must be ignored")
	}
}

func TestChannelBitsIgnoredInStatus(t *testing.T) {
	s, notes, _, _ := testSurface()

	// Note on, channel 5: still a note on.
	s.Dispatch([]byte{0x95, 50, 80})

	if len(notes.ons) != 1 || notes.ons[0] != [2]int{50, 80} {
		t.Errorf("Channel bits should not affect dispatch, got %v", notes.ons)
	}
}
