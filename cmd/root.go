package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel uint32
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "delayprobe",
	Short: "delayprobe measures one-way delays and loss over a datagram path",
	Long: "delayprobe sends timestamped UDP probes to a responder and reports, for every probe, " +
		"the round trip time, an estimate of the uplink and downlink delays, and whether it was lost",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Uint32Var(&logLevel, "log-level", uint32(logrus.ErrorLevel),
		"logging level, from 0 (panic) to 6 (trace)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")

	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newRespondCmd())
}

// Execute runs the command line
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// loggingLevel returns the level requested on the command line
func loggingLevel() uint32 {
	if verbose && logLevel < uint32(logrus.InfoLevel) {
		return uint32(logrus.InfoLevel)
	}
	return logLevel
}
