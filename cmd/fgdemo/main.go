// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Command fgdemo renders a small scene through the render
// graph and reports what the backend was asked to do.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gviegas/framegraph/config"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/driver/nulldrv"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/system"
)

type options struct {
	config      string
	frames      int
	logLevel    string
	redrawEvery int
	format      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:          "fgdemo",
		Short:        "Render a demo scene through the render graph",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "configuration file (.toml, .yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides the configured log level")

	run := &cobra.Command{
		Use:   "run",
		Short: "Render frames and print statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runDemo(ctx, cmd, &opts)
		},
	}
	run.Flags().IntVarP(&opts.frames, "frames", "n", 60, "number of frames to render")
	run.Flags().IntVar(&opts.redrawEvery, "redraw-every", 0, "make every k-th submission of the final pass fail (null driver only)")

	dump := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(&opts)
			if err != nil {
				return err
			}
			if len(cfg.Passes) == 0 {
				cfg.Passes = system.DefaultPasses()
			}
			b, err := cfg.Marshal(opts.format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	dump.Flags().StringVarP(&opts.format, "format", "f", "toml", "output format (toml, yaml)")

	root.AddCommand(run, dump)
	return root
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	if opts.config == "" {
		c := config.DefaultConfig()
		cfg = &c
	} else {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return nil, err
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	config.Configure(cfg)
	return cfg, nil
}

func runDemo(ctx context.Context, cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()})))

	drv, gpu, err := driver.Open(cfg.Driver)
	if err != nil {
		return fmt.Errorf("fgdemo: opening driver %q: %w", cfg.Driver, err)
	}
	defer drv.Close()
	if opts.redrawEvery > 0 {
		ngpu, ok := gpu.(*nulldrv.GPU)
		if !ok {
			return fmt.Errorf("fgdemo: --redraw-every requires the %q driver", nulldrv.Name)
		}
		n := 0
		ngpu.SubmitFunc = func(pass string, _ int) bool {
			if pass != system.PresentPass {
				return true
			}
			n++
			return n%opts.redrawEvery != 0
		}
		defer func() { ngpu.SubmitFunc = nil }()
	}

	sys, err := system.New(gpu, nil, nil)
	if err != nil {
		return err
	}
	defer sys.Destroy()

	w := ecs.NewWorld(sys)
	for _, e := range demoScene() {
		if err := w.Spawn(e); err != nil {
			return err
		}
	}
	for i := 0; i < opts.frames; i++ {
		if err := w.Frame(ctx); err != nil {
			return fmt.Errorf("fgdemo: frame %d: %w", i, err)
		}
	}

	gs := sys.Graph().Stats()
	rs := sys.Table().Stats()
	slog.Info("done",
		"frames", gs.Frames,
		"redraws", gs.Redraws,
		"draws", gs.Draws,
		"submits", gs.Submits,
		"geometries", rs.Geometries,
		"textures", rs.Textures,
		"allocs", rs.Allocs,
		"updates", rs.Updates,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d frames (%d redrawn), %d draws, %d submits\n", gs.Frames, gs.Redraws, gs.Draws, gs.Submits)
	return nil
}
