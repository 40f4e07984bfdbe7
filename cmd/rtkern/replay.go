package main

import (
	"github.com/spf13/cobra"

	"rtkern/internal/monitor"
)

var replayShowTicks bool

func init() {
	replayCmd.Flags().BoolVar(&replayShowTicks, "ticks", false, "print tick events")
}

var replayCmd = &cobra.Command{
	Use:   "replay <trace>",
	Short: "Print a trace written by rtkern run --trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		mon, err := monitor.New(monitor.Options{
			Out:       cmd.OutOrStdout(),
			Color:     colorMode(colorFlag),
			ShowTicks: replayShowTicks,
		})
		if err != nil {
			return err
		}
		defer mon.Close()
		return monitor.Replay(args[0], mon)
	},
}
