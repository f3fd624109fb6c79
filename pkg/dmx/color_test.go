package dmx

import (
	"math"
	"testing"
)

func testColorConfig() ColorConfig {
	return ColorConfig{
		Spots:       18,
		Gamma:       1.2,
		Smoothing:   0.80,
		RedFactor:   1.0,
		GreenFactor: 1.5,
		BlueFactor:  1.0,
	}
}

func line(pixels int) (r, g, b []byte) {
	return make([]byte, pixels), make([]byte, pixels), make([]byte, pixels)
}

func TestZonePartitioning(t *testing.T) {
	cfg := testColorConfig()
	ce := NewColorEngine(cfg)

	// 3456 pixels over 18 zones: 192 each, no remainder. Paint only the
	// last zone.
	r, g, b := line(3456)
	for i := 17 * 192; i < 3456; i++ {
		r[i] = 200
	}

	spots := ce.Update(r, g, b)
	if len(spots) != 18 {
		t.Fatalf("Expected 18 spots, got %d", len(spots))
	}
	if spots[17].Red == 0 {
		t.Error("Last zone should carry the painted red")
	}
	for i := 0; i < 17; i++ {
		if spots[i].Red != 0 {
			t.Errorf("Zone %d leaked color: red=%d", i, spots[i].Red)
		}
	}
}

func TestLastZoneAbsorbsRemainder(t *testing.T) {
	cfg := testColorConfig()
	cfg.Spots = 5
	ce := NewColorEngine(cfg)

	// 103 pixels over 5 zones: zones of 20, last zone covers 23. Paint only
	// the trailing remainder pixels.
	r, g, b := line(103)
	for i := 100; i < 103; i++ {
		r[i], g[i], b[i] = 255, 255, 255
	}

	spots := ce.Update(r, g, b)
	sum := int(spots[4].Red) + int(spots[4].Green) + int(spots[4].Blue)
	if sum == 0 {
		t.Error("Remainder pixels must land in the last zone")
	}
}

func TestDarkContentDrivesBrightLight(t *testing.T) {
	ce := NewColorEngine(testColorConfig())

	// A dark red zone: luminance low, so intensity is high and the red
	// survives; a white zone has zero inverted luminance and goes dark.
	r, g, b := line(3456)
	for i := 0; i < 192; i++ {
		r[i] = 80 // dark red zone 0
	}
	for i := 192; i < 384; i++ {
		r[i], g[i], b[i] = 255, 255, 255 // white zone 1
	}

	var spots []Spot
	for i := 0; i < 100; i++ {
		spots = ce.Update(r, g, b)
	}

	if spots[0].Red == 0 {
		t.Error("Dark red zone should light its spot")
	}
	if spots[1].Red != 0 || spots[1].Green != 0 || spots[1].Blue != 0 {
		t.Errorf("White zone should go dark, got %+v", spots[1])
	}
}

func TestSmoothingConvergesWithoutOvershoot(t *testing.T) {
	ce := NewColorEngine(testColorConfig())

	r, g, b := line(3456)
	for i := 0; i < 192; i++ {
		r[i] = 255 // pure red zone 0
	}

	// Steady state: zone 0 red approaches but never exceeds the profile
	// ceiling; the other zones approach 0.
	prev := 0.0
	var spots []Spot
	for i := 0; i < 200; i++ {
		spots = ce.Update(r, g, b)
		cur := float64(spots[0].Red)
		if cur+1e-9 < prev {
			t.Fatalf("Smoothed red regressed at frame %d: %f -> %f", i, prev, cur)
		}
		prev = cur
	}

	// Expected steady state: mean 255 over a 192-pixel zone, luminance
	// 0.299*255, intensity ((255-Y)/255)^gamma, times the red factor.
	luminance := 0.299 * 255.0
	intensity := math.Pow((255-luminance)/255, 1.2)
	want := 255 * intensity * 1.0
	if want > 255 {
		want = 255
	}

	got := float64(spots[0].Red)
	if got > want+1 {
		t.Errorf("Smoothed red %f exceeds the steady-state ceiling %f", got, want)
	}
	if got < want-5 {
		t.Errorf("Smoothed red %f did not converge toward %f", got, want)
	}

	for z := 1; z < 18; z++ {
		if spots[z].Red > 1 || spots[z].Green > 1 || spots[z].Blue > 1 {
			t.Errorf("Zone %d should converge to dark, got %+v", z, spots[z])
		}
	}
}

func TestColorProfileClamps(t *testing.T) {
	cfg := testColorConfig()
	cfg.GreenFactor = 4.0
	cfg.Smoothing = 0 // follow the input directly
	ce := NewColorEngine(cfg)

	r, g, b := line(3456)
	for i := 0; i < 192; i++ {
		g[i] = 120
	}

	spots := ce.Update(r, g, b)
	if spots[0].Green > 255 {
		t.Errorf("Green channel escaped the byte range: %d", spots[0].Green)
	}
}

func TestBuildFrame(t *testing.T) {
	offsets := []int{10, 20, 30}
	spots := []Spot{
		{Red: 1, Green: 2, Blue: 3},
		{Red: 4, Green: 5, Blue: 6},
		{Red: 7, Green: 8, Blue: 9},
	}

	frame := make([]byte, FrameSize)
	// Pre-dirty the frame to prove it is fully rewritten.
	for i := range frame {
		frame[i] = 0xFF
	}
	BuildFrame(spots, offsets, frame)

	if len(frame) != 513 {
		t.Fatalf("Expected 513-byte universe, got %d", len(frame))
	}
	if frame[0] != 0 {
		t.Errorf("Start code must be 0, got %d", frame[0])
	}

	for i, off := range offsets {
		if frame[off] != spots[i].Red || frame[off+1] != spots[i].Green || frame[off+2] != spots[i].Blue {
			t.Errorf("Spot %d at offset %d: got %d %d %d", i, off, frame[off], frame[off+1], frame[off+2])
		}
	}

	// Every other slot is zero.
	used := map[int]bool{}
	for _, off := range offsets {
		used[off], used[off+1], used[off+2] = true, true, true
	}
	for i := 1; i < FrameSize; i++ {
		if !used[i] && frame[i] != 0 {
			t.Errorf("Unused slot %d not cleared: %d", i, frame[i])
		}
	}
}

func TestBuildFrameSkipsOverflowingOffsets(t *testing.T) {
	frame := make([]byte, FrameSize)
	BuildFrame([]Spot{{Red: 9, Green: 9, Blue: 9}}, []int{511}, frame)

	// Offset 511 would place blue at 513, past the universe; skip it.
	if frame[511] != 0 || frame[512] != 0 {
		t.Error("Overflowing spot offset must be skipped")
	}
}
