package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appreconcile "github.com/alexisbeaulieu97/ccreconcile/internal/application/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/config"
	"github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/events"
	logginginfra "github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/metrics"
	"github.com/alexisbeaulieu97/ccreconcile/internal/resources"
)

var errPassFailed = errors.New("reconciliation pass failed")

type applyOptions struct {
	ArgsPath    string
	CheckMode   bool
	ShowDiff    bool
	MetricsFile string
	Format      string
	NoColor     bool
}

// serviceOptions lets tests swap the controller gateway.
var serviceOptions []appreconcile.Option

func newApplyCmd(root *rootFlags) *cobra.Command {
	opts := applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply <args-file>",
		Short: "Run one reconciliation pass",
		Long: `Apply reads the host argument record (connection settings, state and
the config list), reconciles every item against the controller in order and
prints the report. The command fails when the pass status is failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ArgsPath = args[0]
			opts.Format = root.output
			opts.NoColor = root.noColor
			if err := validateArgsPath(opts.ArgsPath); err != nil {
				return err
			}
			if err := validateFormat(opts.Format); err != nil {
				return err
			}
			return runApply(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.CheckMode, "check", false, "Plan without writing (overrides check_mode)")
	cmd.Flags().BoolVar(&opts.ShowDiff, "diff", false, "Print have/want diffs for changed items")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the pass")

	return cmd
}

func runApply(cmd *cobra.Command, opts applyOptions) error {
	pending := logginginfra.NewBuffer(0)
	pending.Logger().Debug(context.Background(), "reading argument file", "path", opts.ArgsPath)

	args, err := config.ParseArgs(opts.ArgsPath)
	if err != nil {
		return err
	}
	if opts.CheckMode {
		args.CheckMode = true
	}

	logger, closeLog, err := newLogger(args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck
	pending.Flush(logger)
	logger.Debug(context.Background(), "arguments loaded", "args", args.Redacted())

	collector := metrics.NewCollector(logger)
	publisher := events.NewLoggingPublisher(logger.With("component", "events"))

	options := append([]appreconcile.Option{
		appreconcile.WithEvents(publisher),
		appreconcile.WithMetrics(collector),
	}, serviceOptions...)
	service := appreconcile.NewService(resources.Default(), logger, options...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := service.Run(ctx, args)

	if err := renderReport(cmd.OutOrStdout(), report, renderOptions{
		Format:   opts.Format,
		ShowDiff: opts.ShowDiff,
		NoColor:  opts.NoColor,
	}); err != nil {
		return err
	}

	if opts.MetricsFile != "" {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}

	if report.Failed() {
		return errPassFailed
	}
	return nil
}
