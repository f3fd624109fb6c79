package protocol

// Line geometry of the CIS sensor feed.
const (
	// PixelsPerLine is the number of RGB pixels in one full scan line (400 DPI head).
	PixelsPerLine = 3456

	// FragmentsPerLine is the number of UDP packets carrying one line.
	FragmentsPerLine = 12

	// FragmentSize is the number of pixels per channel in one fragment.
	FragmentSize = PixelsPerLine / FragmentsPerLine
)

// Header tags identifying the payload of a datagram. The sensor interleaves
// image fragments with startup banners and IMU samples on the same socket;
// only image data feeds the pipeline.
const (
	TagStartupInfo uint32 = 0x11
	TagImageData   uint32 = 0x12
	TagIMUData     uint32 = 0x13
)

// Wire sizes. The device emits a packed little-endian struct: six uint32
// header fields followed by the three per-channel payloads.
const (
	HeaderSize = 24
	PacketSize = HeaderSize + 3*FragmentSize
)

// DefaultPort is the UDP port the sensor streams to.
const DefaultPort = 55151
