package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rtkern/internal/app"
	"rtkern/internal/kernel"
	"rtkern/internal/monitor"
	"rtkern/internal/timer"
)

// virtualEpochs bounds a virtual run when --epochs is not given.
const virtualEpochs = 10

type runOptions struct {
	config    string
	app       string
	virtual   bool
	epochs    uint32
	csvPath   string
	tracePath string
	showTicks bool
}

var runOpts runOptions

func init() {
	runCmd.Flags().StringVar(&runOpts.config, "config", "kernel.yml", "kernel configuration (yaml or toml)")
	runCmd.Flags().StringVar(&runOpts.app, "app", "pingpong", fmt.Sprintf("program to boot %v", app.Names()))
	runCmd.Flags().BoolVar(&runOpts.virtual, "virtual", false, "drive the kernel from a virtual timer instead of the wall clock")
	runCmd.Flags().Uint32Var(&runOpts.epochs, "epochs", 0, "stop after this many timer epochs (0 = until interrupted, 10 for --virtual)")
	runCmd.Flags().StringVar(&runOpts.csvPath, "csv", "", "write every status event to a CSV file")
	runCmd.Flags().StringVar(&runOpts.tracePath, "trace", "", "write a binary trace for rtkern replay")
	runCmd.Flags().BoolVar(&runOpts.showTicks, "ticks", false, "print tick events")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot a program and stream the kernel's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runKernel(ctx, cmd.OutOrStdout(), colorMode(colorFlag), runOpts)
	},
}

func colorMode(flag string) string {
	if flag == "auto" && !isTerminal(os.Stdout) {
		return "off"
	}
	return flag
}

// runKernel drives the kernel, the monitor and, on the wall clock, the
// hardware timer as one group. The first failure stops all of them.
func runKernel(parent context.Context, out io.Writer, color string, opts runOptions) error {
	cfg, err := kernel.Load(opts.config)
	if err != nil {
		return err
	}
	prog, err := app.New(opts.app)
	if err != nil {
		return err
	}
	mon, err := monitor.New(monitor.Options{
		Out:       out,
		Color:     color,
		ShowTicks: opts.showTicks,
		CSVPath:   opts.csvPath,
		TracePath: opts.tracePath,
	})
	if err != nil {
		return err
	}
	defer mon.Close()

	limit := opts.epochs
	var clock timer.Timer
	var hw *timer.Hardware
	if opts.virtual {
		clock = timer.NewVirtual(cfg.TickModulus)
		if limit == 0 {
			limit = virtualEpochs
		}
	} else {
		hw = timer.NewHardware(cfg.TickModulus)
		clock = hw
	}

	g, gctx := errgroup.WithContext(parent)
	ctx, cancel := context.WithCancel(gctx)
	defer cancel()

	events := make(chan kernel.StatusEvent, 256)
	monDone := make(chan struct{})

	observe := func(ev kernel.StatusEvent) {
		select {
		case events <- ev:
		case <-monDone:
		}
		if limit > 0 && ev.Kind == kernel.StatusTick && ev.At.Epoch >= limit {
			cancel()
		}
	}

	k := kernel.New(cfg, kernel.Options{Timer: clock, Observer: observe})
	if _, err := app.Launch(k, prog); err != nil {
		return err
	}

	g.Go(func() error {
		defer close(monDone)
		// runs until the kernel closes the stream
		return mon.Run(context.Background(), events)
	})
	g.Go(func() error {
		defer close(events)
		defer cancel()
		return k.Run(ctx)
	})
	if hw != nil {
		hw.Start(time.Duration(k.Config().TickMS) * time.Millisecond)
		g.Go(func() error {
			<-ctx.Done()
			hw.Stop()
			return nil
		})
	}

	err = g.Wait()
	fmt.Fprintf(out, "%s: %s (%d ticks, stopped at %s)\n", prog.Name(), prog.Report(), mon.Ticks(), k.Timer().Now())
	if err != nil {
		return err
	}
	return prog.Err()
}
