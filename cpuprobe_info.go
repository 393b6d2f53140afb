package cpuprobe

import "github.com/pkg/errors"

// Info is everything one identification pass learns about a processor.
type Info struct {
	Limits              Limits          `json:"limits" yaml:"limits"`
	VendorID            string          `json:"vendor_id" yaml:"vendor_id"`
	Vendor              string          `json:"vendor" yaml:"vendor"`
	BrandString         string          `json:"brand_string" yaml:"brand_string"`
	Signature           Signature       `json:"signature" yaml:"signature"`
	Features            map[string]bool `json:"features" yaml:"features"`
	Topology            Topology        `json:"topology" yaml:"topology"`
	Degraded            bool            `json:"degraded" yaml:"degraded"`
	Hybrid              HybridInfo      `json:"hybrid" yaml:"hybrid"`
	Caches              []CacheLevel    `json:"caches,omitempty" yaml:"caches,omitempty"`
	InitialAPICID       uint32          `json:"initial_apic_id" yaml:"initial_apic_id"`
	PhysicalAddressBits uint32          `json:"physical_address_bits" yaml:"physical_address_bits"`
	LinearAddressBits   uint32          `json:"linear_address_bits" yaml:"linear_address_bits"`

	featureSet FeatureSet
}

// FeatureSet returns the decoded feature flags.
func (i Info) FeatureSet() FeatureSet {
	return i.featureSet
}

// Identify runs one full identification pass over src. An unsupported vendor
// is not an error: the topology falls back to a single core and Degraded is
// set. Errors from the topology resolver are returned as is.
func Identify(src Source) (Info, error) {
	lim := ReadLimits(src)
	id := DecodeVendor(src.Query(LeafVendor, 0))
	vendor := Classify(id)

	leaf1 := queryIf(src, lim, LeafFeatures, 0)
	leaf7 := queryIf(src, lim, LeafExtFeatures, 0)
	features := DecodeFeatures(leaf1, leaf7)

	info := Info{
		Limits:        lim,
		VendorID:      id.String(),
		Vendor:        vendor.String(),
		BrandString:   DecodeBrand(src, lim).String(),
		Signature:     DecodeSignature(leaf1),
		Features:      features.Map(),
		Caches:        Caches(vendor, src, lim),
		InitialAPICID: MustBits(leaf1.EBX, 24, 31),
		featureSet:    features,
	}

	if vendor == VendorIntel && lim.Supports(LeafHybrid) {
		info.Hybrid = DecodeHybrid(features, src.Query(LeafHybrid, 0))
	}
	if lim.Supports(LeafAddressSizes) {
		a := src.Query(LeafAddressSizes, 0).EAX
		info.PhysicalAddressBits = MustBits(a, 0, 7)
		info.LinearAddressBits = MustBits(a, 8, 15)
	}

	topo, err := ResolveTopology(id, src)
	switch {
	case errors.Is(err, ErrUnsupportedVendor):
		logger(src).WithError(err).Debug("using degraded topology")
		info.Degraded = true
	case err != nil:
		return Info{}, err
	}
	info.Topology = topo

	return info, nil
}
