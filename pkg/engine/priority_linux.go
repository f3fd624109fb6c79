//go:build linux

package engine

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/ondulab/cisynth/pkg/logger"
)

// bumpSchedulingPriority pins the DSP goroutine to its OS thread and asks for
// round-robin real-time scheduling. Needs CAP_SYS_NICE; failure just leaves
// the thread at normal priority.
func bumpSchedulingPriority(log *logger.Logger) {
	runtime.LockOSThread()

	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_RR,
		Priority: 50,
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		log.Warn("Could not raise DSP thread priority", logger.Error(err))
		return
	}
	log.Info("DSP thread running with SCHED_RR priority 50")
}
