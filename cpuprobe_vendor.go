package cpuprobe

import (
	"bytes"
	"strings"
)

// VendorIdentity is the 12-byte vendor string from leaf 0, e.g. "GenuineIntel".
type VendorIdentity [12]byte

func (v VendorIdentity) String() string {
	return string(v[:])
}

// Vendor is the processor family a VendorIdentity belongs to.
type Vendor int

// Known vendor families.
const (
	VendorUnknown Vendor = iota
	VendorIntel
	VendorAMD
)

func (v Vendor) String() string {
	switch v {
	case VendorIntel:
		return "Intel"
	case VendorAMD:
		return "AMD"
	default:
		return "Unknown"
	}
}

// DecodeVendor assembles the vendor string from EBX, EDX and ECX of the
// leaf 0 snapshot.
func DecodeVendor(leaf0 Snapshot) VendorIdentity {
	var id VendorIdentity
	copy(id[0:], ToBytes(leaf0.EBX, LittleEndian))
	copy(id[4:], ToBytes(leaf0.EDX, LittleEndian))
	copy(id[8:], ToBytes(leaf0.ECX, LittleEndian))
	return id
}

// Classify maps a vendor string to its family, ignoring case.
func Classify(id VendorIdentity) Vendor {
	upper := strings.ToUpper(id.String())
	switch {
	case strings.Contains(upper, "INTEL"):
		return VendorIntel
	case strings.Contains(upper, "AMD"):
		return VendorAMD
	default:
		return VendorUnknown
	}
}

// Brand is the 48-byte processor brand string from leaves
// 0x80000002..0x80000004.
type Brand [48]byte

// String returns the brand up to the first NUL, without surrounding spaces.
func (b Brand) String() string {
	s := b[:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(string(s))
}

// DecodeBrand concatenates EAX, EBX, ECX and EDX of the three brand leaves.
// It returns the zero Brand when the extended range stops short of them.
func DecodeBrand(src Source, lim Limits) Brand {
	var brand Brand
	if !lim.Supports(LeafBrand2) {
		return brand
	}
	for i := uint32(0); i < 3; i++ {
		s := src.Query(LeafBrand0+i, 0)
		for j, r := range []Register{EAX, EBX, ECX, EDX} {
			copy(brand[i*16+uint32(j)*4:], ToBytes(s.Reg(r), LittleEndian))
		}
	}
	return brand
}

// Signature is the processor family, model and stepping from leaf 1 EAX.
type Signature struct {
	Stepping        uint32 `json:"stepping" yaml:"stepping"`
	Model           uint32 `json:"model" yaml:"model"`
	Family          uint32 `json:"family" yaml:"family"`
	ProcessorType   uint32 `json:"processor_type" yaml:"processor_type"`
	ExtendedModel   uint32 `json:"extended_model" yaml:"extended_model"`
	ExtendedFamily  uint32 `json:"extended_family" yaml:"extended_family"`
	EffectiveModel  uint32 `json:"effective_model" yaml:"effective_model"`
	EffectiveFamily uint32 `json:"effective_family" yaml:"effective_family"`
}

// DecodeSignature decodes the leaf 1 EAX version fields.
func DecodeSignature(leaf1 Snapshot) Signature {
	a := leaf1.EAX
	sig := Signature{
		Stepping:       MustBits(a, 0, 3),
		Model:          MustBits(a, 4, 7),
		Family:         MustBits(a, 8, 11),
		ProcessorType:  MustBits(a, 12, 13),
		ExtendedModel:  MustBits(a, 16, 19),
		ExtendedFamily: MustBits(a, 20, 27),
	}

	sig.EffectiveModel = sig.Model
	if sig.Family == 0x6 || sig.Family == 0xF {
		sig.EffectiveModel += sig.ExtendedModel << 4
	}
	sig.EffectiveFamily = sig.Family
	if sig.Family == 0xF {
		sig.EffectiveFamily += sig.ExtendedFamily
	}
	return sig
}
