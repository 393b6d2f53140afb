// Package cpuprobe identifies the x86 processor running the current program:
// its vendor, a fixed set of capability flags and its core/thread topology.
//
// Every piece of information is decoded from register snapshots returned by
// the CPUID instruction. Snapshots come from a Source, which is either the
// hardware itself or a previously captured Dump, so all decoding can be
// exercised without the processor that produced the data.
//
// CPUID answers for the logical processor the calling thread runs on. On
// hybrid parts two cores may legitimately disagree, so a full probe sequence
// should run under OnCPU when the result must describe one specific core.
package cpuprobe

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Leaves with a fixed meaning across vendors.
const (
	LeafVendor          uint32 = 0x0
	LeafFeatures        uint32 = 0x1
	LeafCacheParams     uint32 = 0x4
	LeafExtFeatures     uint32 = 0x7
	LeafTopology        uint32 = 0xB
	LeafHybrid          uint32 = 0x1A
	LeafExtMax          uint32 = 0x80000000
	LeafBrand0          uint32 = 0x80000002
	LeafBrand2          uint32 = 0x80000004
	LeafAddressSizes    uint32 = 0x80000008
	LeafAMDCacheParams  uint32 = 0x8000001D
	LeafAMDCoreTopology uint32 = 0x8000001E
)

// Register selects one of the four result registers of a snapshot.
type Register int

// Result registers in the order CPUID returns them.
const (
	EAX Register = iota
	EBX
	ECX
	EDX
)

func (r Register) String() string {
	switch r {
	case EAX:
		return "EAX"
	case EBX:
		return "EBX"
	case ECX:
		return "ECX"
	case EDX:
		return "EDX"
	default:
		return "invalid"
	}
}

// Snapshot is the result of one CPUID query at a (leaf, subleaf) pair.
// It is a plain value: copies never alias, so a snapshot cannot change after
// it has been returned.
type Snapshot struct {
	Leaf    uint32 `json:"leaf" yaml:"leaf"`
	Subleaf uint32 `json:"subleaf" yaml:"subleaf"`
	EAX     uint32 `json:"eax" yaml:"eax"`
	EBX     uint32 `json:"ebx" yaml:"ebx"`
	ECX     uint32 `json:"ecx" yaml:"ecx"`
	EDX     uint32 `json:"edx" yaml:"edx"`
}

// Reg returns the value of register r.
func (s Snapshot) Reg(r Register) uint32 {
	switch r {
	case EAX:
		return s.EAX
	case EBX:
		return s.EBX
	case ECX:
		return s.ECX
	case EDX:
		return s.EDX
	}
	return 0
}

// Source answers CPUID queries. Query never fails; the result for a leaf
// above the processor's limits is meaningless and must be gated by the caller.
type Source interface {
	Query(leaf, subleaf uint32) Snapshot
}

type hardware struct{}

func (hardware) Query(leaf, subleaf uint32) Snapshot {
	a, b, c, d := cpuid(leaf, subleaf)
	return Snapshot{Leaf: leaf, Subleaf: subleaf, EAX: a, EBX: b, ECX: c, EDX: d}
}

// Hardware queries the processor the calling thread is currently running on.
var Hardware Source = hardware{}

type traced struct {
	src Source
	log *logrus.Entry
}

// Traced wraps src so that every query is logged at trace level. Decoders
// given the wrapped source, such as ResolveTopology and Identify, log to the
// same entry.
func Traced(src Source, log *logrus.Entry) Source {
	return traced{src: src, log: log}
}

func (t traced) Query(leaf, subleaf uint32) Snapshot {
	s := t.src.Query(leaf, subleaf)
	t.log.WithFields(logrus.Fields{
		"leaf":    hex32(leaf),
		"subleaf": subleaf,
	}).Tracef("eax:%s ebx:%s ecx:%s edx:%s", hex32(s.EAX), hex32(s.EBX), hex32(s.ECX), hex32(s.EDX))
	return s
}

// logger returns the entry src was traced with, or one on the standard
// logger.
func logger(src Source) *logrus.Entry {
	if t, ok := src.(traced); ok {
		return t.log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Limits holds the highest basic and extended leaves the processor answers.
type Limits struct {
	Basic    uint32 `json:"basic" yaml:"basic"`
	Extended uint32 `json:"extended" yaml:"extended"`
}

// ReadLimits queries leaf 0 and leaf 0x80000000.
func ReadLimits(src Source) Limits {
	return Limits{
		Basic:    src.Query(LeafVendor, 0).EAX,
		Extended: src.Query(LeafExtMax, 0).EAX,
	}
}

// Supports reports whether leaf is within the basic or extended range.
func (l Limits) Supports(leaf uint32) bool {
	if leaf >= LeafExtMax {
		return l.Extended >= LeafExtMax && leaf <= l.Extended
	}
	return leaf <= l.Basic
}

// QueryChecked queries src only if leaf is within lim.
func QueryChecked(src Source, lim Limits, leaf, subleaf uint32) (Snapshot, error) {
	if !lim.Supports(leaf) {
		return Snapshot{}, errors.Wrapf(ErrUnsupportedLeaf, "leaf %s (basic max %s, extended max %s)",
			hex32(leaf), hex32(lim.Basic), hex32(lim.Extended))
	}
	return src.Query(leaf, subleaf), nil
}

// queryIf returns the zero snapshot when leaf is not supported.
func queryIf(src Source, lim Limits, leaf, subleaf uint32) Snapshot {
	s, err := QueryChecked(src, lim, leaf, subleaf)
	if err != nil {
		return Snapshot{Leaf: leaf, Subleaf: subleaf}
	}
	return s
}

const hexDigits = "0123456789abcdef"

// hex32 formats v as 0x followed by eight lower-case hex digits.
func hex32(v uint32) string {
	var buf [10]byte
	buf[0], buf[1] = '0', 'x'
	for i := 9; i >= 2; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}
