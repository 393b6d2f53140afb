//go:build linux

package cpuprobe

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// maxCPUs is CPU_SETSIZE, the number of processors a unix.CPUSet can hold.
const maxCPUs = 1024

// schedSetaffinity is replaced in tests.
var schedSetaffinity = unix.SchedSetaffinity

// OnCPU runs fn on an OS thread pinned to logical processor cpu, then
// restores the thread's previous affinity. Every CPUID query fn issues
// through Hardware is answered by that processor.
//
// If the previous affinity cannot be restored the thread stays locked to the
// calling goroutine, so the runtime discards it when the goroutine exits, and
// the restore error is returned.
func OnCPU(cpu int, fn func() error) (err error) {
	if cpu < 0 || cpu >= maxCPUs {
		return errors.Errorf("cpu %d out of range", cpu)
	}

	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		runtime.UnlockOSThread()
		return errors.Wrap(err, "reading thread affinity")
	}
	var set unix.CPUSet
	set.Set(cpu)
	if err := schedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return errors.Wrapf(err, "pinning thread to cpu %d", cpu)
	}

	defer func() {
		if rerr := schedSetaffinity(0, &prev); rerr != nil {
			rerr = errors.Wrap(rerr, "restoring thread affinity")
			if err != nil {
				err = errors.Wrap(err, rerr.Error())
			} else {
				err = rerr
			}
			return
		}
		runtime.UnlockOSThread()
	}()

	return fn()
}

// OnlineCPUs lists the logical processors the process may run on.
func OnlineCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, errors.Wrap(err, "reading process affinity")
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < maxCPUs; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
