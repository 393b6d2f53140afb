package cpuprobe

import "github.com/pkg/errors"

// Scheme records which enumeration a Topology was derived from.
type Scheme int

// Topology derivation schemes.
const (
	SchemeDefault      Scheme = iota // vendor not supported, one core assumed
	SchemeHierarchical               // Intel leaf 0xB
	SchemeLegacy                     // Intel leaf 1 / leaf 4
	SchemeExtended                   // AMD leaf 0x80000008
)

func (s Scheme) String() string {
	switch s {
	case SchemeHierarchical:
		return "hierarchical"
	case SchemeLegacy:
		return "legacy"
	case SchemeExtended:
		return "extended"
	default:
		return "default"
	}
}

// MarshalText lets the scheme serialize by name.
func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Topology is the core and thread layout of one package. Logical equals
// Physical * SMT when the hardware reports consistent data, but nothing
// enforces it.
type Topology struct {
	Physical uint32 `json:"physical" yaml:"physical"`
	Logical  uint32 `json:"logical" yaml:"logical"`
	SMT      uint32 `json:"smt" yaml:"smt"`
	Scheme   Scheme `json:"scheme" yaml:"scheme"`
}

// Consistent reports whether Logical == Physical * SMT.
func (t Topology) Consistent() bool {
	return t.Logical == t.Physical*t.SMT
}

// intelTopologyLevels is the number of leaf 0xB sub-leaves scanned.
const intelTopologyLevels = 4

// leaf 0xB level types
const (
	levelSMT  = 1
	levelCore = 2
)

var defaultTopology = Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeDefault}

// ResolveTopology derives the topology for the vendor id from src. It logs
// to the entry src was wrapped with by Traced, if any.
//
// For a vendor that is neither Intel nor AMD it returns a single-core
// topology together with an error wrapping ErrUnsupportedVendor; the topology
// is still usable. A zero thread or logical count in the hierarchical scheme
// fails with ErrDegenerateDivisor.
func ResolveTopology(id VendorIdentity, src Source) (Topology, error) {
	log := logger(src).WithField("vendor", id.String())
	hfs := src.Query(LeafVendor, 0).EAX

	switch Classify(id) {
	case VendorIntel:
		if hfs >= LeafTopology {
			log.Debug("resolving topology from leaf 0xB")
			return intelHierarchical(src)
		}
		log.WithField("hfs", hfs).Debug("resolving topology from leaves 1 and 4")
		return intelLegacy(src, hfs), nil
	case VendorAMD:
		log.Debug("resolving topology from leaf 0x80000008")
		return amdExtended(src, hfs), nil
	default:
		log.Warn("unsupported vendor, assuming a single core")
		return defaultTopology, errors.Wrapf(ErrUnsupportedVendor, "%q", id.String())
	}
}

func intelHierarchical(src Source) (Topology, error) {
	var smt, logical uint32
	var haveSMT, haveLogical bool
	for sub := uint32(0); sub < intelTopologyLevels; sub++ {
		if haveSMT && haveLogical {
			break
		}
		s := src.Query(LeafTopology, sub)
		count := MustBits(s.EBX, 0, 15)
		switch MustBits(s.ECX, 8, 15) {
		case levelSMT:
			smt, haveSMT = count, true
		case levelCore:
			logical, haveLogical = count, true
		}
	}

	if smt == 0 {
		return Topology{}, errors.Wrap(ErrDegenerateDivisor, "leaf 0xB reports no threads per core")
	}
	if logical == 0 {
		return Topology{}, errors.Wrap(ErrDegenerateDivisor, "leaf 0xB reports no logical processors")
	}
	return Topology{
		Physical: logical / smt,
		Logical:  logical,
		SMT:      smt,
		Scheme:   SchemeHierarchical,
	}, nil
}

func intelLegacy(src Source, hfs uint32) Topology {
	var physical, logical uint32
	var leaf1 Snapshot
	if hfs >= LeafFeatures {
		leaf1 = src.Query(LeafFeatures, 0)
		logical = MustBits(leaf1.EBX, 16, 23)
		if hfs >= LeafCacheParams {
			physical = 1 + MustBits(src.Query(LeafCacheParams, 0).EAX, 26, 31)
		}
	}
	physical, logical = clampHTT(MustBit(leaf1.EDX, 28), physical, logical)
	return Topology{
		Physical: physical,
		Logical:  logical,
		SMT:      threadsPerCore(physical, logical),
		Scheme:   SchemeLegacy,
	}
}

func amdExtended(src Source, hfs uint32) Topology {
	var physical, logical uint32
	var leaf1 Snapshot
	maxExt := src.Query(LeafExtMax, 0).EAX
	if hfs >= LeafFeatures {
		leaf1 = src.Query(LeafFeatures, 0)
		logical = MustBits(leaf1.EBX, 16, 23)
		if maxExt >= 8 {
			physical = 1 + MustBits(src.Query(LeafAddressSizes, 0).ECX, 0, 7)
		}
	}
	htt := MustBit(leaf1.EDX, 28)
	physical, logical = clampHTT(htt, physical, logical)

	smt := threadsPerCore(physical, logical)
	if htt && maxExt >= LeafAMDCoreTopology {
		smt = 1 + MustBits(src.Query(LeafAMDCoreTopology, 0).EBX, 8, 15)
	}
	return Topology{
		Physical: physical,
		Logical:  logical,
		SMT:      smt,
		Scheme:   SchemeExtended,
	}
}

// clampHTT applies the Hyper-Threading fallback: parts without HTT report a
// single core and thread, parts with HTT but no usable core count report one
// core with at least two threads.
func clampHTT(htt bool, physical, logical uint32) (uint32, uint32) {
	if !htt {
		return 1, 1
	}
	if physical <= 1 {
		physical = 1
		if logical < 2 {
			logical = 2
		}
	}
	return physical, logical
}

func threadsPerCore(physical, logical uint32) uint32 {
	if physical == 0 || logical < physical {
		return 1
	}
	return logical / physical
}
