package cpuprobe

// CacheLevel describes one cache reported by the deterministic cache
// parameter leaf (4 on Intel, 0x8000001D on AMD).
type CacheLevel struct {
	Level            uint32 `json:"level" yaml:"level"`
	Type             string `json:"type" yaml:"type"`
	SizeKB           uint32 `json:"size_kb" yaml:"size_kb"`
	Ways             uint32 `json:"ways" yaml:"ways"`
	LineSizeBytes    uint32 `json:"line_size_bytes" yaml:"line_size_bytes"`
	TotalSets        uint32 `json:"total_sets" yaml:"total_sets"`
	MaxCoresSharing  uint32 `json:"max_cores_sharing" yaml:"max_cores_sharing"`
	SelfInitializing bool   `json:"self_initializing" yaml:"self_initializing"`
	FullyAssociative bool   `json:"fully_associative" yaml:"fully_associative"`
}

// maxCacheSubleaves bounds the sub-leaf walk for captures that never report
// a null cache type.
const maxCacheSubleaves = 16

// Caches walks the cache parameter leaf for the vendor until a null cache
// type is reported. It returns nil for unknown vendors and when the leaf is
// out of range.
func Caches(v Vendor, src Source, lim Limits) []CacheLevel {
	var leaf uint32
	switch v {
	case VendorIntel:
		leaf = LeafCacheParams
	case VendorAMD:
		leaf = LeafAMDCacheParams
	default:
		return nil
	}
	if !lim.Supports(leaf) {
		return nil
	}

	var caches []CacheLevel
	for sub := uint32(0); sub < maxCacheSubleaves; sub++ {
		s := src.Query(leaf, sub)
		if MustBits(s.EAX, 0, 4) == 0 {
			break
		}
		caches = append(caches, DecodeCache(s))
	}
	return caches
}

// DecodeCache decodes one deterministic cache parameter sub-leaf.
func DecodeCache(s Snapshot) CacheLevel {
	lineSize := MustBits(s.EBX, 0, 11) + 1
	partitions := MustBits(s.EBX, 12, 21) + 1
	ways := MustBits(s.EBX, 22, 31) + 1
	sets := s.ECX + 1

	return CacheLevel{
		Level:            MustBits(s.EAX, 5, 7),
		Type:             cacheTypeName(MustBits(s.EAX, 0, 4)),
		SizeKB:           lineSize * partitions * ways * sets / 1024,
		Ways:             ways,
		LineSizeBytes:    lineSize,
		TotalSets:        sets,
		MaxCoresSharing:  MustBits(s.EAX, 14, 25) + 1,
		SelfInitializing: MustBit(s.EAX, 8),
		FullyAssociative: MustBit(s.EAX, 9),
	}
}

func cacheTypeName(t uint32) string {
	switch t {
	case 1:
		return "Data"
	case 2:
		return "Instruction"
	case 3:
		return "Unified"
	default:
		return "Unknown"
	}
}
