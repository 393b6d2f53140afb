package cpuprobe

import (
	"strings"

	"github.com/pkg/errors"
)

// Feature names one capability flag of a FeatureSet.
type Feature int

// Decoded capability flags.
const (
	SSE Feature = iota
	SSE2
	SSE3
	SSE41
	SSE42
	AVX
	AVX2
	HTT    // Hyper-Threading capable
	Hybrid // more than one core type in the package
	featureCount
)

// featureDef locates a flag: one bit of one register of one leaf.
type featureDef struct {
	name        string
	description string
	leaf        uint32
	register    Register
	bit         uint8
}

var featureDefs = [featureCount]featureDef{
	SSE:    {"SSE", "Streaming SIMD Extensions", LeafFeatures, EDX, 25},
	SSE2:   {"SSE2", "Streaming SIMD Extensions 2", LeafFeatures, EDX, 26},
	SSE3:   {"SSE3", "Streaming SIMD Extensions 3", LeafFeatures, ECX, 0},
	SSE41:  {"SSE4.1", "Streaming SIMD Extensions 4.1", LeafFeatures, ECX, 19},
	SSE42:  {"SSE4.2", "Streaming SIMD Extensions 4.2", LeafFeatures, ECX, 20},
	AVX:    {"AVX", "Advanced Vector Extensions", LeafFeatures, ECX, 28},
	AVX2:   {"AVX2", "Advanced Vector Extensions 2", LeafExtFeatures, EBX, 5},
	HTT:    {"HTT", "Hyper-Threading capable", LeafFeatures, EDX, 28},
	Hybrid: {"Hybrid", "Hybrid part", LeafExtFeatures, EDX, 15},
}

func (f Feature) String() string {
	if f < 0 || f >= featureCount {
		return "Feature(?)"
	}
	return featureDefs[f].name
}

// Description returns a human readable description of f.
func (f Feature) Description() string {
	if f < 0 || f >= featureCount {
		return ""
	}
	return featureDefs[f].description
}

// Location reports the leaf, register and bit f is decoded from.
func (f Feature) Location() (leaf uint32, reg Register, bit uint8) {
	d := featureDefs[f]
	return d.leaf, d.register, d.bit
}

// AllFeatures lists every decoded feature in declaration order.
func AllFeatures() []Feature {
	all := make([]Feature, featureCount)
	for i := range all {
		all[i] = Feature(i)
	}
	return all
}

// ParseFeature looks a feature up by name, ignoring case. Both "SSE4.1" and
// "SSE41" are accepted.
func ParseFeature(name string) (Feature, error) {
	want := strings.ReplaceAll(strings.ToUpper(name), ".", "")
	for f, d := range featureDefs {
		if strings.ReplaceAll(strings.ToUpper(d.name), ".", "") == want {
			return Feature(f), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownFeature, "%q", name)
}

// FeatureSet is the immutable result of DecodeFeatures.
type FeatureSet struct {
	flags [featureCount]bool
}

// DecodeFeatures decodes the feature flags from the leaf 1 snapshot and the
// leaf 7 sub-leaf 0 snapshot. Pass the zero Snapshot for leaf 7 on processors
// that do not answer it.
func DecodeFeatures(leaf1, leaf7 Snapshot) FeatureSet {
	var set FeatureSet
	for f, d := range featureDefs {
		s := leaf1
		if d.leaf == LeafExtFeatures {
			s = leaf7
		}
		set.flags[f] = MustBit(s.Reg(d.register), d.bit)
	}
	return set
}

// Has reports whether f is set.
func (s FeatureSet) Has(f Feature) bool {
	if f < 0 || f >= featureCount {
		return false
	}
	return s.flags[f]
}

// Supported returns the set features in declaration order.
func (s FeatureSet) Supported() []Feature {
	var out []Feature
	for f, ok := range s.flags {
		if ok {
			out = append(out, Feature(f))
		}
	}
	return out
}

// Map returns the set as a name to flag mapping.
func (s FeatureSet) Map() map[string]bool {
	m := make(map[string]bool, featureCount)
	for f, ok := range s.flags {
		m[featureDefs[f].name] = ok
	}
	return m
}

// HybridInfo describes the core type of the logical processor that answered
// leaf 0x1A.
type HybridInfo struct {
	Hybrid        bool   `json:"hybrid" yaml:"hybrid"`
	CoreType      uint32 `json:"core_type" yaml:"core_type"`
	CoreTypeName  string `json:"core_type_name" yaml:"core_type_name"`
	NativeModelID uint32 `json:"native_model_id" yaml:"native_model_id"`
}

// Core types reported in leaf 0x1A EAX[31:24].
const (
	CoreTypeAtom uint32 = 0x20
	CoreTypeCore uint32 = 0x40
)

// DecodeHybrid decodes leaf 0x1A. Only parts with the Hybrid feature flag
// report a meaningful core type; others yield Hybrid == false.
func DecodeHybrid(features FeatureSet, leaf1A Snapshot) HybridInfo {
	if !features.Has(Hybrid) {
		return HybridInfo{}
	}

	info := HybridInfo{
		Hybrid:        true,
		CoreType:      MustBits(leaf1A.EAX, 24, 31),
		NativeModelID: MustBits(leaf1A.EAX, 0, 23),
	}
	switch info.CoreType {
	case CoreTypeAtom:
		info.CoreTypeName = "Efficient core (E-core)"
	case CoreTypeCore:
		info.CoreTypeName = "Performance core (P-core)"
	default:
		info.CoreTypeName = "Unknown core type"
	}
	return info
}
