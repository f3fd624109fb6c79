package config

import "runtime"

// defaultBufferSize picks the per-callback frame count for the platform.
// ARM boards need the larger buffer to ride out FFT processing spikes.
func defaultBufferSize() int {
	switch runtime.GOARCH {
	case "arm", "arm64":
		return 1024
	default:
		return 512
	}
}

// defaultDMXPort returns the usual USB-serial adapter path for the platform.
func defaultDMXPort() string {
	switch runtime.GOOS {
	case "darwin":
		return "/dev/tty.usbserial-AD0JUL0N"
	default:
		return "/dev/ttyUSB0"
	}
}
