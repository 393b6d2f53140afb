//go:build !linux

package cpuprobe

import "runtime"

// OnCPU cannot pin threads on this platform and always returns
// ErrPinningUnsupported without calling fn.
func OnCPU(cpu int, fn func() error) error {
	return ErrPinningUnsupported
}

// OnlineCPUs assumes every processor reported by the runtime is usable.
func OnlineCPUs() ([]int, error) {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}
