package cpuprobe

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Dump is a captured set of CPUID results. It implements Source so that a
// capture taken on one machine can be decoded on another.
type Dump struct {
	Entries []Snapshot `json:"entries" yaml:"entries"`
}

// Query returns the captured snapshot for (leaf, subleaf), or a zeroed
// snapshot when the pair was not captured.
func (d Dump) Query(leaf, subleaf uint32) Snapshot {
	for _, e := range d.Entries {
		if e.Leaf == leaf && e.Subleaf == subleaf {
			return e
		}
	}
	return Snapshot{Leaf: leaf, Subleaf: subleaf}
}

// Walk bounds for captures of processors reporting implausible limits.
const (
	maxLeaves    = 0x100
	maxSubleaves = 64
)

// Capture walks the basic and extended leaf ranges of src. Leaves with
// sub-leaves (4, 7, 0xB, 0xD, 0x8000001D) are followed until their
// terminating sub-leaf.
func Capture(src Source) Dump {
	var d Dump
	lim := ReadLimits(src)

	for leaf := uint32(0); leaf <= lim.Basic && leaf < maxLeaves; leaf++ {
		d.Entries = append(d.Entries, captureLeaf(src, leaf)...)
	}
	for leaf := LeafExtMax; leaf <= lim.Extended && leaf-LeafExtMax < maxLeaves; leaf++ {
		d.Entries = append(d.Entries, captureLeaf(src, leaf)...)
	}
	return d
}

func captureLeaf(src Source, leaf uint32) []Snapshot {
	first := src.Query(leaf, 0)
	entries := []Snapshot{first}

	var last uint32
	switch leaf {
	case LeafExtFeatures:
		last = min(first.EAX, maxSubleaves-1)
	case LeafCacheParams, LeafTopology, 0xD, LeafAMDCacheParams:
		last = maxSubleaves - 1
	default:
		return entries
	}

	for sub := uint32(1); sub <= last; sub++ {
		s := src.Query(leaf, sub)
		if endOfSubleaves(leaf, sub, s) {
			break
		}
		entries = append(entries, s)
	}
	return entries
}

func endOfSubleaves(leaf, sub uint32, s Snapshot) bool {
	switch leaf {
	case LeafCacheParams, LeafAMDCacheParams:
		return MustBits(s.EAX, 0, 4) == 0
	case LeafTopology:
		// the topology resolver always reads the first four levels
		return sub >= intelTopologyLevels && MustBits(s.ECX, 8, 15) == 0
	case 0xD:
		return s.EAX == 0 && s.EBX == 0 && s.ECX == 0 && s.EDX == 0
	}
	return false
}

// Format is a Dump serialization.
type Format string

// Supported dump formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.Errorf("unknown dump format %q", s)
}

// Encode writes d to w in the given format.
func (d Dump) Encode(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(d), "encoding json dump")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return errors.Wrap(err, "encoding yaml dump")
		}
		return errors.Wrap(enc.Close(), "encoding yaml dump")
	}
	return errors.Errorf("unknown dump format %q", f)
}

// DecodeDump reads a dump in the given format from r.
func DecodeDump(r io.Reader, f Format) (Dump, error) {
	var d Dump
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&d); err != nil {
			return Dump{}, errors.Wrap(err, "decoding json dump")
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&d); err != nil {
			return Dump{}, errors.Wrap(err, "decoding yaml dump")
		}
	default:
		return Dump{}, errors.Errorf("unknown dump format %q", f)
	}
	return d, nil
}
