package cpuprobe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	htt        = 1 << 28 // leaf 1 EDX
	levelType1 = 1 << 8  // leaf 0xB ECX, SMT level
	levelType2 = 2 << 8  // leaf 0xB ECX, core level
)

var intelID = vendorID("GenuineIntel")

func TestResolveTopologyIntelHierarchical(t *testing.T) {
	src := dump(
		leaf0(0x0B, "GenuineIntel"),
		Snapshot{Leaf: 1, EDX: htt},
		Snapshot{Leaf: 0xB, Subleaf: 1, EBX: 2, ECX: levelType1 | 1},
		Snapshot{Leaf: 0xB, Subleaf: 2, EBX: 8, ECX: levelType2 | 2},
	)
	topo, err := ResolveTopology(intelID, src)
	require.NoError(t, err)
	assert.Equal(t, Topology{Physical: 4, Logical: 8, SMT: 2, Scheme: SchemeHierarchical}, topo)
	assert.True(t, topo.Consistent())
}

func TestResolveTopologyHierarchicalWins(t *testing.T) {
	src := dump(
		leaf0(0x16, "GenuineIntel"),
		Snapshot{Leaf: 1, EBX: 32 << 16, EDX: htt},
		Snapshot{Leaf: 4, EAX: 15 << 26},
		Snapshot{Leaf: 0xB, Subleaf: 0, EBX: 1, ECX: levelType1},
		Snapshot{Leaf: 0xB, Subleaf: 1, EBX: 4, ECX: levelType2 | 1},
	)
	topo, err := ResolveTopology(intelID, src)
	require.NoError(t, err)
	assert.Equal(t, Topology{Physical: 4, Logical: 4, SMT: 1, Scheme: SchemeHierarchical}, topo)
}

func TestResolveTopologyDegenerateDivisor(t *testing.T) {
	tests := map[string]Dump{
		"no smt level": dump(
			leaf0(0x0B, "GenuineIntel"),
			Snapshot{Leaf: 0xB, Subleaf: 1, EBX: 8, ECX: levelType2},
		),
		"zero smt count": dump(
			leaf0(0x0B, "GenuineIntel"),
			Snapshot{Leaf: 0xB, Subleaf: 0, EBX: 0, ECX: levelType1},
			Snapshot{Leaf: 0xB, Subleaf: 1, EBX: 8, ECX: levelType2},
		),
		"zero logical count": dump(
			leaf0(0x0B, "GenuineIntel"),
			Snapshot{Leaf: 0xB, Subleaf: 0, EBX: 2, ECX: levelType1},
			Snapshot{Leaf: 0xB, Subleaf: 1, EBX: 0, ECX: levelType2},
		),
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveTopology(intelID, src)
			assert.True(t, errors.Is(err, ErrDegenerateDivisor), "got %v", err)
		})
	}
}

func TestResolveTopologyIntelLegacy(t *testing.T) {
	tests := []struct {
		name string
		src  Dump
		want Topology
	}{
		{
			name: "leaf 4 core count",
			src: dump(
				leaf0(0x0A, "GenuineIntel"),
				Snapshot{Leaf: 1, EBX: 8 << 16, EDX: htt},
				Snapshot{Leaf: 4, EAX: 3<<26 | 0x121},
			),
			want: Topology{Physical: 4, Logical: 8, SMT: 2, Scheme: SchemeLegacy},
		},
		{
			name: "no hyper-threading",
			src: dump(
				leaf0(0x0A, "GenuineIntel"),
				Snapshot{Leaf: 1, EBX: 8 << 16},
				Snapshot{Leaf: 4, EAX: 3 << 26},
			),
			want: Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeLegacy},
		},
		{
			name: "hyper-threading without leaf 4",
			src: dump(
				leaf0(0x02, "GenuineIntel"),
				Snapshot{Leaf: 1, EBX: 1 << 16, EDX: htt},
				Snapshot{Leaf: 4, EAX: 7 << 26},
			),
			want: Topology{Physical: 1, Logical: 2, SMT: 2, Scheme: SchemeLegacy},
		},
		{
			name: "hyper-threading single core keeps logical count",
			src: dump(
				leaf0(0x05, "GenuineIntel"),
				Snapshot{Leaf: 1, EBX: 4 << 16, EDX: htt},
				Snapshot{Leaf: 4, EAX: 0},
			),
			want: Topology{Physical: 1, Logical: 4, SMT: 4, Scheme: SchemeLegacy},
		},
		{
			name: "leaf 1 beyond the basic limit",
			src: dump(
				leaf0(0x00, "GenuineIntel"),
				Snapshot{Leaf: 1, EBX: 8 << 16, EDX: htt},
			),
			want: Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeLegacy},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := ResolveTopology(intelID, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, topo)
		})
	}
}

func TestResolveTopologyAMD(t *testing.T) {
	src := dump(
		leaf0(0x10, "AuthenticAMD"),
		Snapshot{Leaf: 1, EBX: 16 << 16, EDX: htt},
		Snapshot{Leaf: LeafExtMax, EAX: 8},
		Snapshot{Leaf: LeafAddressSizes, ECX: 7},
	)
	topo, err := ResolveTopology(vendorID("AuthenticAMD"), src)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), topo.Physical)
	assert.Equal(t, Topology{Physical: 8, Logical: 16, SMT: 2, Scheme: SchemeExtended}, topo)
}

func TestResolveTopologyAMDCases(t *testing.T) {
	tests := []struct {
		name string
		src  Dump
		want Topology
	}{
		{
			name: "no hyper-threading",
			src: dump(
				leaf0(0x10, "AuthenticAMD"),
				Snapshot{Leaf: 1, EBX: 16 << 16},
				Snapshot{Leaf: LeafExtMax, EAX: 0x80000008},
				Snapshot{Leaf: LeafAddressSizes, ECX: 7},
			),
			want: Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeExtended},
		},
		{
			name: "no hyper-threading ignores leaf 0x8000001E",
			src: dump(
				leaf0(0x10, "AuthenticAMD"),
				Snapshot{Leaf: 1, EBX: 16 << 16},
				Snapshot{Leaf: LeafExtMax, EAX: 0x8000001F},
				Snapshot{Leaf: LeafAddressSizes, ECX: 7},
				Snapshot{Leaf: LeafAMDCoreTopology, EBX: 1 << 8},
			),
			want: Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeExtended},
		},
		{
			name: "leaf 0x8000001E overrides the ratio",
			src: dump(
				leaf0(0x10, "AuthenticAMD"),
				Snapshot{Leaf: 1, EBX: 16 << 16, EDX: htt},
				Snapshot{Leaf: LeafExtMax, EAX: 0x8000001F},
				Snapshot{Leaf: LeafAddressSizes, ECX: 7},
				Snapshot{Leaf: LeafAMDCoreTopology, EBX: 0},
			),
			want: Topology{Physical: 8, Logical: 16, SMT: 1, Scheme: SchemeExtended},
		},
		{
			name: "leaf 1 beyond the basic limit",
			src: dump(
				leaf0(0x00, "AuthenticAMD"),
				Snapshot{Leaf: 1, EBX: 16 << 16, EDX: htt},
				Snapshot{Leaf: LeafExtMax, EAX: 0x8000001F},
				Snapshot{Leaf: LeafAddressSizes, ECX: 7},
				Snapshot{Leaf: LeafAMDCoreTopology, EBX: 1 << 8},
			),
			want: Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeExtended},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo, err := ResolveTopology(vendorID("AuthenticAMD"), tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, topo)
		})
	}
}

func TestResolveTopologyHTTMatchesFeatures(t *testing.T) {
	src := dump(
		leaf0(0x00, "GenuineIntel"),
		Snapshot{Leaf: 1, EBX: 8 << 16, EDX: htt},
	)
	info, err := Identify(src)
	require.NoError(t, err)
	assert.False(t, info.Features["HTT"])
	assert.Equal(t, uint32(1), info.Topology.Logical)
	assert.True(t, info.Topology.Consistent())
}

func TestResolveTopologyFixtures(t *testing.T) {
	intel := loadDump(t, "intel_6c12t.yaml")
	topo, err := ResolveTopology(DecodeVendor(intel.Query(0, 0)), intel)
	require.NoError(t, err)
	assert.Equal(t, Topology{Physical: 6, Logical: 12, SMT: 2, Scheme: SchemeHierarchical}, topo)

	amd := loadDump(t, "amd_8c16t.yaml")
	topo, err = ResolveTopology(DecodeVendor(amd.Query(0, 0)), amd)
	require.NoError(t, err)
	assert.Equal(t, Topology{Physical: 8, Logical: 16, SMT: 2, Scheme: SchemeExtended}, topo)
}

func TestResolveTopologyUnsupportedVendor(t *testing.T) {
	src := dump(leaf0(0x0D, "CentaurHauls"))
	topo, err := ResolveTopology(vendorID("CentaurHauls"), src)
	assert.True(t, errors.Is(err, ErrUnsupportedVendor))
	assert.Equal(t, Topology{Physical: 1, Logical: 1, SMT: 1, Scheme: SchemeDefault}, topo)
}

func TestResolveTopologyLogsToTracedEntry(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	src := Traced(dump(leaf0(0x0D, "CentaurHauls")), logrus.NewEntry(log))
	_, err := ResolveTopology(vendorID("CentaurHauls"), src)
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "CentaurHauls", entry.Data["vendor"])

	hook.Reset()
	_, err = ResolveTopology(intelID, Traced(loadDump(t, "intel_6c12t.yaml"), logrus.NewEntry(log)))
	require.NoError(t, err)
	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	assert.Contains(t, msgs, "resolving topology from leaf 0xB")
}

func TestSchemeText(t *testing.T) {
	b, err := SchemeLegacy.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "legacy", string(b))
}
