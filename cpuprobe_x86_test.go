//go:build (386 || amd64) && !purego

package cpuprobe

import (
	"strings"
	"testing"

	kcpuid "github.com/klauspost/cpuid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/cpu"
)

func TestHardwareLimits(t *testing.T) {
	lim := ReadLimits(Hardware)
	assert.GreaterOrEqual(t, lim.Basic, LeafFeatures)

	s := Hardware.Query(LeafVendor, 0)
	assert.Equal(t, lim.Basic, s.EAX)
	assert.Equal(t, LeafVendor, s.Leaf)
}

func TestHardwareAgreesWithKlauspost(t *testing.T) {
	id := DecodeVendor(Hardware.Query(LeafVendor, 0))
	assert.Equal(t, kcpuid.CPU.VendorString, id.String())

	lim := ReadLimits(Hardware)
	if lim.Supports(LeafBrand2) {
		assert.Equal(t, strings.TrimSpace(kcpuid.CPU.BrandName), DecodeBrand(Hardware, lim).String())
	}

	set := DecodeFeatures(Hardware.Query(LeafFeatures, 0), queryIf(Hardware, lim, LeafExtFeatures, 0))
	assert.Equal(t, kcpuid.CPU.Supports(kcpuid.SSE), set.Has(SSE), "SSE")
	assert.Equal(t, kcpuid.CPU.Supports(kcpuid.SSE2), set.Has(SSE2), "SSE2")
	assert.Equal(t, kcpuid.CPU.Supports(kcpuid.SSE3), set.Has(SSE3), "SSE3")
	assert.Equal(t, kcpuid.CPU.Supports(kcpuid.SSE4), set.Has(SSE41), "SSE4.1")
	assert.Equal(t, kcpuid.CPU.Supports(kcpuid.SSE42), set.Has(SSE42), "SSE4.2")

	// klauspost only reports AVX when the OS saves the YMM state.
	if kcpuid.CPU.Supports(kcpuid.AVX2) {
		assert.True(t, set.Has(AVX2), "AVX2")
	}
}

func TestHardwareAgreesWithRuntimeDetection(t *testing.T) {
	lim := ReadLimits(Hardware)
	set := DecodeFeatures(Hardware.Query(LeafFeatures, 0), queryIf(Hardware, lim, LeafExtFeatures, 0))

	assert.Equal(t, cpu.X86.HasSSE2, set.Has(SSE2), "SSE2")
	assert.Equal(t, cpu.X86.HasSSE3, set.Has(SSE3), "SSE3")
	assert.Equal(t, cpu.X86.HasSSE41, set.Has(SSE41), "SSE4.1")
	assert.Equal(t, cpu.X86.HasSSE42, set.Has(SSE42), "SSE4.2")
	if cpu.X86.HasAVX {
		assert.True(t, set.Has(AVX), "AVX")
	}
	if cpu.X86.HasAVX2 {
		assert.True(t, set.Has(AVX2), "AVX2")
	}
}

func TestIdentifyHardware(t *testing.T) {
	info, err := Identify(Hardware)
	if err != nil {
		// some hypervisors expose leaf 0xB without topology levels
		t.Skipf("hardware topology not usable: %v", err)
	}
	require.NotEmpty(t, info.VendorID)
	assert.GreaterOrEqual(t, info.Topology.Physical, uint32(1))
	assert.GreaterOrEqual(t, info.Topology.Logical, uint32(1))
}
