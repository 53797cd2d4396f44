package cmd

import (
	"github.com/mikaelmello/delayprobe/core"
	"github.com/spf13/cobra"
)

func newRespondCmd() *cobra.Command {
	settings := core.DefaultSettings()

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Echo probes back to their sender with a receive timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.LoggingLevel = loggingLevel()

			responder, err := core.NewResponder(cmd.Context(), settings)
			if err != nil {
				return err
			}
			cmd.PrintErrf("Waiting for probes on %s\n", responder.Addr())

			r := newRunner(responder)
			r.Start(cmd.Context())
			return r.Wait()
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&settings.SourcePort, "port", "p", core.DefaultPort, "port to listen on")
	flags.IntVar(&settings.TTL, "ttl", settings.TTL, "IP time to live or hop limit of echoes, 0 keeps the OS default")
	flags.IntVar(&settings.TOS, "tos", settings.TOS, "IP type of service or traffic class of echoes")
	flags.BoolVarP(&settings.RealTime, "realtime", "r", settings.RealTime, "request real time socket priority from the OS")

	return cmd
}
