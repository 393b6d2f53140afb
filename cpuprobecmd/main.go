// Command cpuprobe prints what the cpuprobe package learns about the
// processor it runs on, or about a previously captured dump.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/earentir/cpuprobe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	cpu      int
	from     string
	logLevel string
	log      *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{log: logrus.New()}

	rootCmd := &cobra.Command{
		Use:           "cpuprobe",
		Short:         "Identify the processor through CPUID",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log.SetLevel(level)
			opts.log.SetOutput(cmd.ErrOrStderr())
			opts.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			return nil
		},
	}
	rootCmd.SetOut(os.Stdout)

	logLevel := os.Getenv("CPUPROBE_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warning"
	}
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&opts.cpu, "cpu", -1, "pin the probe to this logical processor")
	flags.StringVar(&opts.from, "from", "", "decode a captured dump (.json or .yaml) instead of the hardware")
	flags.StringVar(&opts.logLevel, "log-level", logLevel, "log level (trace, debug, info, warning, error); defaults to $CPUPROBE_LOG_LEVEL")

	infoCmd := newInfoCmd(opts)
	rootCmd.RunE = infoCmd.RunE
	rootCmd.Flags().AddFlagSet(infoCmd.Flags())

	rootCmd.AddCommand(
		infoCmd,
		newFeaturesCmd(opts),
		newTopologyCmd(opts),
		newHybridCmd(opts),
		newCachesCmd(opts),
		newLeafCmd(opts),
		newDumpCmd(opts),
	)
	return rootCmd
}

// source returns the dump named by --from, or the hardware.
func (o *options) source() (cpuprobe.Source, error) {
	entry := o.log.WithField("source", "hardware")
	if o.from == "" {
		return cpuprobe.Traced(cpuprobe.Hardware, entry), nil
	}

	format := cpuprobe.FormatYAML
	if strings.EqualFold(filepath.Ext(o.from), ".json") {
		format = cpuprobe.FormatJSON
	}
	f, err := os.Open(o.from)
	if err != nil {
		return nil, errors.Wrap(err, "opening dump")
	}
	defer f.Close()

	d, err := cpuprobe.DecodeDump(f, format)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", o.from)
	}
	return cpuprobe.Traced(d, entry.WithField("source", o.from)), nil
}

// run calls fn with the selected source, pinned to --cpu when probing the
// hardware.
func (o *options) run(fn func(src cpuprobe.Source) error) error {
	src, err := o.source()
	if err != nil {
		return err
	}
	if o.cpu < 0 {
		return fn(src)
	}
	if o.from != "" {
		o.log.Warnf("--cpu %d ignored when decoding %s", o.cpu, o.from)
		return fn(src)
	}
	o.log.Debugf("pinning probe to cpu %d", o.cpu)
	return cpuprobe.OnCPU(o.cpu, func() error { return fn(src) })
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}
