//go:build !linux

package engine

import (
	"runtime"

	"github.com/ondulab/cisynth/pkg/logger"
)

// bumpSchedulingPriority pins the DSP goroutine to its OS thread. Real-time
// scheduling classes are Linux-only.
func bumpSchedulingPriority(log *logger.Logger) {
	runtime.LockOSThread()
}
