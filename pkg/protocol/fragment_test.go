package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func makePacket(lineID, fragmentID uint32) *FragmentPacket {
	red := make([]byte, FragmentSize)
	green := make([]byte, FragmentSize)
	blue := make([]byte, FragmentSize)
	for i := range red {
		red[i] = byte(i)
		green[i] = byte(i + 1)
		blue[i] = byte(i + 2)
	}
	return &FragmentPacket{
		Tag:            TagImageData,
		PacketID:       42,
		LineID:         lineID,
		FragmentID:     fragmentID,
		TotalFragments: FragmentsPerLine,
		FragmentSize:   FragmentSize,
		Red:            red,
		Green:          green,
		Blue:           blue,
	}
}

func TestFragmentPacket_RoundTrip(t *testing.T) {
	orig := makePacket(7, 3)

	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("Failed to encode packet: %v", err)
	}

	if len(data) != PacketSize {
		t.Errorf("Expected %d bytes on the wire, got %d", PacketSize, len(data))
	}

	var parsed FragmentPacket
	if err := parsed.Parse(data); err != nil {
		t.Fatalf("Failed to parse packet: %v", err)
	}

	if parsed.LineID != 7 {
		t.Errorf("Expected line_id 7, got %d", parsed.LineID)
	}
	if parsed.FragmentID != 3 {
		t.Errorf("Expected fragment_id 3, got %d", parsed.FragmentID)
	}
	if parsed.PacketID != 42 {
		t.Errorf("Expected packet_id 42, got %d", parsed.PacketID)
	}
	if parsed.TotalFragments != FragmentsPerLine {
		t.Errorf("Expected total_fragments %d, got %d", FragmentsPerLine, parsed.TotalFragments)
	}
	if !bytes.Equal(parsed.Red, orig.Red) {
		t.Errorf("Red payload corrupted in round trip")
	}
	if !bytes.Equal(parsed.Green, orig.Green) {
		t.Errorf("Green payload corrupted in round trip")
	}
	if !bytes.Equal(parsed.Blue, orig.Blue) {
		t.Errorf("Blue payload corrupted in round trip")
	}
}

func TestFragmentPacket_FieldLayout(t *testing.T) {
	data, err := makePacket(0x01020304, 5).Encode()
	if err != nil {
		t.Fatalf("Failed to encode packet: %v", err)
	}

	// Little-endian, packed: tag, packet_id, line_id, fragment_id,
	// total_fragments, fragment_size.
	if got := binary.LittleEndian.Uint32(data[0:4]); got != TagImageData {
		t.Errorf("Expected tag 0x%02x at offset 0, got 0x%02x", TagImageData, got)
	}
	if got := binary.LittleEndian.Uint32(data[8:12]); got != 0x01020304 {
		t.Errorf("Expected line_id 0x01020304 at offset 8, got 0x%08x", got)
	}
	if got := binary.LittleEndian.Uint32(data[20:24]); got != FragmentSize {
		t.Errorf("Expected fragment_size %d at offset 20, got %d", FragmentSize, got)
	}
}

func TestFragmentPacket_ParseErrors(t *testing.T) {
	valid, _ := makePacket(1, 0).Encode()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"short header", func(d []byte) []byte { return d[:10] }},
		{"truncated payload", func(d []byte) []byte { return d[:HeaderSize+100] }},
		{"wrong tag", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[0:4], TagIMUData)
			return d
		}},
		{"fragment_id out of range", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[12:16], FragmentsPerLine)
			return d
		}},
		{"zero total_fragments", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[16:20], 0)
			return d
		}},
		{"fragment_size overflows line", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[20:24], PixelsPerLine)
			return d
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(valid))
			copy(data, valid)

			var pkt FragmentPacket
			if err := pkt.Parse(tt.mutate(data)); err == nil {
				t.Errorf("Expected parse error for %s", tt.name)
			}
		})
	}
}

func TestPeekTag(t *testing.T) {
	data, _ := makePacket(1, 0).Encode()
	if got := PeekTag(data); got != TagImageData {
		t.Errorf("Expected tag 0x%02x, got 0x%02x", TagImageData, got)
	}
	if got := PeekTag([]byte{1, 2}); got != 0 {
		t.Errorf("Expected 0 for short datagram, got 0x%02x", got)
	}
}

func TestFragmentPacket_Offset(t *testing.T) {
	pkt := makePacket(1, 4)
	if got := pkt.Offset(); got != 4*FragmentSize {
		t.Errorf("Expected offset %d, got %d", 4*FragmentSize, got)
	}
}
