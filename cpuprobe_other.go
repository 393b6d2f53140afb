//go:build !(386 || amd64) || purego

package cpuprobe

// cpuid reports an empty processor where the instruction is unavailable.
// Every leaf above 0 is then gated off by ReadLimits.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32) {
	return 0, 0, 0, 0
}
