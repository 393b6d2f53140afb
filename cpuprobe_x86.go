//go:build (386 || amd64) && !purego

package cpuprobe

// cpuid executes CPUID with EAX=eaxArg and ECX=ecxArg.
// Implemented in cpuprobe_amd64.s and cpuprobe_386.s.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)
