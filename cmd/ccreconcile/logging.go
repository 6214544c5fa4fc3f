package main

import (
	"io"

	"github.com/alexisbeaulieu97/ccreconcile/internal/config"
	logginginfra "github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// newLogger builds the pass logger from the host flags. Disabled logging
// yields a no-op logger; the returned close func is always safe to call.
func newLogger(args *config.ModuleArgs, stderr io.Writer) (ports.Logger, func() error, error) {
	if !args.Log && !args.Debug {
		return logginginfra.NewNoOpLogger(), func() error { return nil }, nil
	}

	opts := logginginfra.Options{
		Writer:    stderr,
		Level:     args.EffectiveLogLevel(),
		Layer:     "application",
		Component: "ccreconcile",
	}
	if args.LogFilePath != "" {
		opts.FilePath = args.LogFilePath
		opts.Append = args.LogAppend
	} else {
		opts.Console = logginginfra.IsTerminal(stderr)
	}

	logger, err := logginginfra.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}
