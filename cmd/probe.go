package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mikaelmello/delayprobe/core"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	settings := core.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "probe <address> <port> <interval_ms> <duration_seconds>",
		Short: "Send probes to a responder and report delays and losses",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseProbeArgs(args, settings)
			if err != nil {
				return err
			}
			settings.LoggingLevel = loggingLevel()
			return runProbe(cmd, address, settings)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&settings.SourcePort, "source-port", "p", settings.SourcePort, "local source port, 0 lets the OS choose")
	flags.StringVarP(&settings.Output, "output", "o", settings.Output, "write the report to this file instead of stdout")
	flags.IntVar(&settings.TTL, "ttl", settings.TTL, "IP time to live or hop limit of probes, 0 keeps the OS default")
	flags.IntVar(&settings.TOS, "tos", settings.TOS, "IP type of service or traffic class of probes")
	flags.BoolVarP(&settings.RealTime, "realtime", "r", settings.RealTime, "request real time socket priority from the OS")
	flags.IntVar(&settings.StatsWindow, "stats-window", settings.StatsWindow,
		"number of recent echoes used for the one-way delay summary")

	return cmd
}

// parseProbeArgs fills settings from the positional arguments and returns the target address
func parseProbeArgs(args []string, settings *core.Settings) (string, error) {
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 0xffff {
		return "", fmt.Errorf("invalid server port: %s", args[1])
	}

	interval, err := strconv.Atoi(args[2])
	if err != nil || interval <= 0 {
		return "", fmt.Errorf("invalid interval in milliseconds: %s", args[2])
	}

	duration, err := strconv.Atoi(args[3])
	if err != nil || duration <= 0 {
		return "", fmt.Errorf("invalid duration in seconds: %s", args[3])
	}

	settings.Port = port
	settings.Interval = interval
	settings.Duration = duration
	return args[0], nil
}

func runProbe(cmd *cobra.Command, address string, settings *core.Settings) error {
	out, closeOut, err := openOutput(settings.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	sink := core.NewCSVSink(out)
	if err := sink.WriteHeader(); err != nil {
		closeOut()
		return err
	}

	session, err := core.NewSession(cmd.Context(), address, settings, sink)
	if err != nil {
		closeOut()
		return err
	}

	printer := newPrinter(cmd.ErrOrStderr(), settings.Output != "")
	printer.register(session)

	r := newRunner(session)
	r.Start(cmd.Context())
	err = r.Wait()

	if cerr := closeOut(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// openOutput opens the report destination, stdout when path is empty
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return f, f.Close, nil
}
