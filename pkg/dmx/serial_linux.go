//go:build linux

package dmx

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Port is the DMX serial adapter. DMX512 needs 250000 baud 8N2 with explicit
// break/mark-after-break framing before every frame, which rules out portable
// serial libraries: the break timing comes from raw TIOCSBRK/TIOCCBRK ioctls
// and the nonstandard baud rate from termios2 BOTHER.
type Port struct {
	fd int
}

// OpenPort opens and configures the serial device for DMX output.
func OpenPort(path string) (*Port, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to read termios: %w", err)
	}

	// Raw mode, 8 data bits, 2 stop bits, no parity.
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB
	tio.Cflag |= unix.CS8 | unix.CSTOPB | unix.CLOCAL | unix.CREAD

	// 250 kbaud is not a Bxxx constant; termios2 BOTHER takes the rate
	// directly.
	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= unix.BOTHER
	tio.Ispeed = Baud
	tio.Ospeed = Baud

	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 10

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, tio); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to configure serial port: %w", err)
	}

	// Drop DTR/RTS; some adapters hold the line busy otherwise.
	status, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err == nil {
		status &^= unix.TIOCM_DTR | unix.TIOCM_RTS
		modem := status
		unix.IoctlSetPointerInt(fd, unix.TIOCMSET, modem)
	}

	return &Port{fd: fd}, nil
}

// SendFrame emits one universe frame with DMX512 framing: a break of at
// least 100 µs, a mark-after-break of at least 12 µs, then the bytes, then a
// drain so the frame is fully on the wire before the caller sleeps.
func (p *Port) SendFrame(frame []byte) error {
	if err := unix.IoctlSetInt(p.fd, unix.TIOCSBRK, 0); err != nil {
		return fmt.Errorf("failed to set break: %w", err)
	}
	time.Sleep(100 * time.Microsecond)

	if err := unix.IoctlSetInt(p.fd, unix.TIOCCBRK, 0); err != nil {
		return fmt.Errorf("failed to clear break: %w", err)
	}
	time.Sleep(12 * time.Microsecond)

	if _, err := unix.Write(p.fd, frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	// tcdrain(3) equivalent.
	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1); err != nil {
		return fmt.Errorf("failed to drain output: %w", err)
	}

	return nil
}

// Close releases the serial device.
func (p *Port) Close() error {
	return unix.Close(p.fd)
}
