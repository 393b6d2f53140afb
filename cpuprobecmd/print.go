package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/earentir/cpuprobe"
	"github.com/olekukonko/tablewriter"
)

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	if len(header) > 0 {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")
	return table
}

func section(out io.Writer, title string) {
	fmt.Fprintf(out, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

func printInfo(out io.Writer, info cpuprobe.Info) {
	section(out, "Processor")
	table := newTable(out)
	table.AppendBulk([][]string{
		{"Vendor ID:", info.VendorID},
		{"Vendor:", info.Vendor},
		{"Brand String:", info.BrandString},
		{"Family:", fmt.Sprintf("%d (0x%x)", info.Signature.EffectiveFamily, info.Signature.EffectiveFamily)},
		{"Model:", fmt.Sprintf("%d (0x%x)", info.Signature.EffectiveModel, info.Signature.EffectiveModel)},
		{"Stepping:", strconv.FormatUint(uint64(info.Signature.Stepping), 10)},
		{"Max Standard Function:", hex(info.Limits.Basic)},
		{"Max Extended Function:", hex(info.Limits.Extended)},
		{"Initial APIC ID:", strconv.FormatUint(uint64(info.InitialAPICID), 10)},
		{"Physical Address Bits:", strconv.FormatUint(uint64(info.PhysicalAddressBits), 10)},
		{"Linear Address Bits:", strconv.FormatUint(uint64(info.LinearAddressBits), 10)},
	})
	table.Render()

	printTopology(out, info.Topology)

	section(out, "Features")
	var names []string
	for _, f := range info.FeatureSet().Supported() {
		names = append(names, f.String())
	}
	fmt.Fprintf(out, "%s\n", strings.Join(names, ", "))

	if info.Hybrid.Hybrid {
		section(out, "Hybrid")
		table := newTable(out)
		table.AppendBulk([][]string{
			{"Core Type:", info.Hybrid.CoreTypeName},
			{"Native Model ID:", hex(info.Hybrid.NativeModelID)},
		})
		table.Render()
	}

	if len(info.Caches) > 0 {
		printCaches(out, info.Caches)
	}
}

func printTopology(out io.Writer, topo cpuprobe.Topology) {
	section(out, "Topology")
	table := newTable(out)
	table.AppendBulk([][]string{
		{"Cores:", strconv.FormatUint(uint64(topo.Physical), 10)},
		{"Logical Processors:", strconv.FormatUint(uint64(topo.Logical), 10)},
		{"Threads Per Core:", strconv.FormatUint(uint64(topo.SMT), 10)},
		{"Scheme:", topo.Scheme.String()},
	})
	table.Render()
}

func printFeatures(out io.Writer, set cpuprobe.FeatureSet) {
	table := newTable(out, "Feature", "Description", "Leaf", "Register", "Bit", "Supported")
	for _, f := range cpuprobe.AllFeatures() {
		leaf, reg, bit := f.Location()
		table.Append([]string{
			f.String(),
			f.Description(),
			fmt.Sprintf("0x%x", leaf),
			reg.String(),
			strconv.Itoa(int(bit)),
			strconv.FormatBool(set.Has(f)),
		})
	}
	table.Render()
}

func printHybrid(out io.Writer, rows []hybridRow) {
	table := newTable(out, "CPU", "APIC ID", "Hybrid", "Core Type", "Native Model ID")
	for _, r := range rows {
		cpu := "-"
		if r.cpu >= 0 {
			cpu = strconv.Itoa(r.cpu)
		}
		coreType := r.info.CoreTypeName
		if !r.info.Hybrid {
			coreType = "-"
		}
		table.Append([]string{
			cpu,
			strconv.FormatUint(uint64(r.apicID), 10),
			strconv.FormatBool(r.info.Hybrid),
			coreType,
			hex(r.info.NativeModelID),
		})
	}
	table.Render()
}

func printCaches(out io.Writer, caches []cpuprobe.CacheLevel) {
	section(out, "Caches")
	table := newTable(out, "Level", "Type", "Size", "Ways", "Line", "Sets", "Shared By")
	for _, c := range caches {
		table.Append([]string{
			"L" + strconv.FormatUint(uint64(c.Level), 10),
			c.Type,
			strconv.FormatUint(uint64(c.SizeKB), 10) + " KB",
			strconv.FormatUint(uint64(c.Ways), 10),
			strconv.FormatUint(uint64(c.LineSizeBytes), 10) + " B",
			strconv.FormatUint(uint64(c.TotalSets), 10),
			strconv.FormatUint(uint64(c.MaxCoresSharing), 10),
		})
	}
	table.Render()
}

// printSnapshot shows each register as hex, as its little-endian memory
// image and as the characters that image spells.
func printSnapshot(out io.Writer, s cpuprobe.Snapshot) {
	fmt.Fprintf(out, "leaf %s subleaf %d\n", hex(s.Leaf), s.Subleaf)
	table := newTable(out, "Register", "Value", "Bytes", "Text")
	for _, r := range []cpuprobe.Register{cpuprobe.EAX, cpuprobe.EBX, cpuprobe.ECX, cpuprobe.EDX} {
		v := s.Reg(r)
		table.Append([]string{
			r.String(),
			hex(v),
			fmt.Sprintf("% x", cpuprobe.ToBytes(v, cpuprobe.LittleEndian)),
			cpuprobe.RegisterText(v),
		})
	}
	table.Render()
}
