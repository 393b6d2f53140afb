package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/earentir/cpuprobe"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInfoCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print vendor, brand, signature, features, topology and caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(src cpuprobe.Source) error {
				info, err := cpuprobe.Identify(src)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(info)
				}
				printInfo(out, info)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func newFeaturesCmd(opts *options) *cobra.Command {
	var check string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "List the decoded feature flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var want cpuprobe.Feature
			if check != "" {
				f, err := cpuprobe.ParseFeature(check)
				if err != nil {
					return err
				}
				want = f
			}

			return opts.run(func(src cpuprobe.Source) error {
				lim := cpuprobe.ReadLimits(src)
				set := cpuprobe.DecodeFeatures(gated(src, lim, cpuprobe.LeafFeatures), gated(src, lim, cpuprobe.LeafExtFeatures))

				out := cmd.OutOrStdout()
				if check == "" {
					printFeatures(out, set)
					return nil
				}
				if !set.Has(want) {
					return errors.Errorf("%s is not supported", want)
				}
				fmt.Fprintf(out, "%s: supported\n", want)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&check, "check", "", "exit non-zero unless the named feature is supported")
	return cmd
}

func newTopologyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Print physical cores, logical processors and threads per core",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(src cpuprobe.Source) error {
				id := cpuprobe.DecodeVendor(src.Query(cpuprobe.LeafVendor, 0))
				// an unsupported vendor still yields a usable topology
				topo, err := cpuprobe.ResolveTopology(id, src)
				if err != nil && !errors.Is(err, cpuprobe.ErrUnsupportedVendor) {
					return err
				}
				printTopology(cmd.OutOrStdout(), topo)
				return nil
			})
		},
	}
}

// hybridRow is the leaf 0x1A view of one logical processor.
type hybridRow struct {
	cpu    int
	apicID uint32
	info   cpuprobe.HybridInfo
}

func probeHybrid(src cpuprobe.Source) hybridRow {
	lim := cpuprobe.ReadLimits(src)
	leaf1 := gated(src, lim, cpuprobe.LeafFeatures)
	set := cpuprobe.DecodeFeatures(leaf1, gated(src, lim, cpuprobe.LeafExtFeatures))
	return hybridRow{
		cpu:    -1,
		apicID: cpuprobe.MustBits(leaf1.EBX, 24, 31),
		info:   cpuprobe.DecodeHybrid(set, gated(src, lim, cpuprobe.LeafHybrid)),
	}
}

func newHybridCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hybrid",
		Short: "Print the core type of every logical processor",
		Long: "Runs the leaf 0x1A probe once per logical processor, pinned to it. " +
			"With --cpu or --from only that processor or dump is probed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cpu >= 0 || opts.from != "" {
				return opts.run(func(src cpuprobe.Source) error {
					row := probeHybrid(src)
					row.cpu = opts.cpu
					printHybrid(cmd.OutOrStdout(), []hybridRow{row})
					return nil
				})
			}

			src, err := opts.source()
			if err != nil {
				return err
			}
			cpus, err := cpuprobe.OnlineCPUs()
			if err != nil {
				return err
			}

			var rows []hybridRow
			for _, c := range cpus {
				err := cpuprobe.OnCPU(c, func() error {
					row := probeHybrid(src)
					row.cpu = c
					rows = append(rows, row)
					return nil
				})
				if errors.Is(err, cpuprobe.ErrPinningUnsupported) {
					opts.log.Warn("cannot pin to individual processors, probing the current one")
					rows = []hybridRow{probeHybrid(src)}
					break
				}
				if err != nil {
					return err
				}
			}
			printHybrid(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}

func newCachesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "caches",
		Short: "Print the deterministic cache parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(func(src cpuprobe.Source) error {
				lim := cpuprobe.ReadLimits(src)
				vendor := cpuprobe.Classify(cpuprobe.DecodeVendor(src.Query(cpuprobe.LeafVendor, 0)))
				caches := cpuprobe.Caches(vendor, src, lim)
				if len(caches) == 0 {
					return errors.Errorf("no cache parameters for %s processors", vendor)
				}
				printCaches(cmd.OutOrStdout(), caches)
				return nil
			})
		},
	}
}

func parseLeaf(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid leaf %q", s)
	}
	return uint32(v), nil
}

func newLeafCmd(opts *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "leaf LEAF [SUBLEAF]",
		Short: "Print the raw registers of one CPUID query",
		Example: "  cpuprobe leaf 0\n" +
			"  cpuprobe leaf 0xb 1",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			leaf, err := parseLeaf(args[0])
			if err != nil {
				return err
			}
			var subleaf uint32
			if len(args) == 2 {
				if subleaf, err = parseLeaf(args[1]); err != nil {
					return err
				}
			}

			return opts.run(func(src cpuprobe.Source) error {
				if force {
					printSnapshot(cmd.OutOrStdout(), src.Query(leaf, subleaf))
					return nil
				}
				s, err := cpuprobe.QueryChecked(src, cpuprobe.ReadLimits(src), leaf, subleaf)
				if err != nil {
					return errors.Wrap(err, "use --force to query anyway")
				}
				printSnapshot(cmd.OutOrStdout(), s)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "query leaves beyond the reported limits")
	return cmd
}

func newDumpCmd(opts *options) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Capture every supported leaf for later decoding with --from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := cpuprobe.ParseFormat(format)
			if err != nil {
				return err
			}

			return opts.run(func(src cpuprobe.Source) error {
				d := cpuprobe.Capture(src)
				if output == "" {
					return d.Encode(cmd.OutOrStdout(), f)
				}

				file, err := os.Create(output)
				if err != nil {
					return errors.Wrap(err, "creating dump")
				}
				if err := d.Encode(file, f); err != nil {
					file.Close()
					return err
				}
				opts.log.Infof("wrote %d entries to %s", len(d.Entries), output)
				return file.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", string(cpuprobe.FormatYAML), "dump format (json or yaml)")
	return cmd
}

// gated returns the zero snapshot for leaves beyond lim.
func gated(src cpuprobe.Source, lim cpuprobe.Limits, leaf uint32) cpuprobe.Snapshot {
	s, err := cpuprobe.QueryChecked(src, lim, leaf, 0)
	if err != nil {
		return cpuprobe.Snapshot{Leaf: leaf}
	}
	return s
}
