package protocol

import (
	"encoding/binary"
	"fmt"
)

// FragmentPacket represents one line fragment as carried by a single datagram
type FragmentPacket struct {
	Tag            uint32 // Header tag; only TagImageData is processed
	PacketID       uint32 // Monotonic datagram counter from the device
	LineID         uint32 // Scan line this fragment belongs to
	FragmentID     uint32 // Position of this fragment within the line
	TotalFragments uint32 // Fragment count for the line (12)
	FragmentSize   uint32 // Pixels per channel in this fragment (288)
	Red            []byte // FragmentSize red samples
	Green          []byte // FragmentSize green samples
	Blue           []byte // FragmentSize blue samples
}

// PeekTag returns the header tag of a raw datagram without a full parse.
// Returns 0 for datagrams too short to carry a header.
func PeekTag(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data[0:4])
}

// Parse parses a fragment packet from raw bytes
func (p *FragmentPacket) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("datagram too short for fragment header: %d bytes", len(data))
	}

	p.Tag = binary.LittleEndian.Uint32(data[0:4])
	if p.Tag != TagImageData {
		return fmt.Errorf("unexpected header tag 0x%02x", p.Tag)
	}

	p.PacketID = binary.LittleEndian.Uint32(data[4:8])
	p.LineID = binary.LittleEndian.Uint32(data[8:12])
	p.FragmentID = binary.LittleEndian.Uint32(data[12:16])
	p.TotalFragments = binary.LittleEndian.Uint32(data[16:20])
	p.FragmentSize = binary.LittleEndian.Uint32(data[20:24])

	if p.TotalFragments == 0 || p.TotalFragments > FragmentsPerLine {
		return fmt.Errorf("invalid total_fragments %d", p.TotalFragments)
	}
	if p.FragmentID >= p.TotalFragments {
		return fmt.Errorf("fragment_id %d out of range (total %d)", p.FragmentID, p.TotalFragments)
	}
	if p.FragmentSize == 0 || p.TotalFragments*p.FragmentSize > PixelsPerLine {
		return fmt.Errorf("fragment_size %d overflows the line", p.FragmentSize)
	}

	want := HeaderSize + 3*int(p.FragmentSize)
	if len(data) < want {
		return fmt.Errorf("datagram truncated: %d bytes, want %d", len(data), want)
	}

	n := int(p.FragmentSize)
	p.Red = data[HeaderSize : HeaderSize+n]
	p.Green = data[HeaderSize+n : HeaderSize+2*n]
	p.Blue = data[HeaderSize+2*n : HeaderSize+3*n]

	return nil
}

// Encode serializes the packet into wire format
func (p *FragmentPacket) Encode() ([]byte, error) {
	n := int(p.FragmentSize)
	if len(p.Red) != n || len(p.Green) != n || len(p.Blue) != n {
		return nil, fmt.Errorf("payload length mismatch: fragment_size %d, R/G/B %d/%d/%d",
			n, len(p.Red), len(p.Green), len(p.Blue))
	}
	if p.TotalFragments == 0 || p.FragmentID >= p.TotalFragments {
		return nil, fmt.Errorf("invalid fragment_id %d of %d", p.FragmentID, p.TotalFragments)
	}

	data := make([]byte, HeaderSize+3*n)
	binary.LittleEndian.PutUint32(data[0:4], p.Tag)
	binary.LittleEndian.PutUint32(data[4:8], p.PacketID)
	binary.LittleEndian.PutUint32(data[8:12], p.LineID)
	binary.LittleEndian.PutUint32(data[12:16], p.FragmentID)
	binary.LittleEndian.PutUint32(data[16:20], p.TotalFragments)
	binary.LittleEndian.PutUint32(data[20:24], p.FragmentSize)
	copy(data[HeaderSize:], p.Red)
	copy(data[HeaderSize+n:], p.Green)
	copy(data[HeaderSize+2*n:], p.Blue)

	return data, nil
}

// Offset returns the pixel offset of this fragment within the full line.
func (p *FragmentPacket) Offset() int {
	return int(p.FragmentID) * int(p.FragmentSize)
}
