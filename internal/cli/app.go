package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"calrepeat/internal/config"
	"calrepeat/internal/logging"
	"calrepeat/internal/parser"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/schedule"
	"calrepeat/internal/storage"
)

// app holds the collaborators a command runs against.
type app struct {
	cfg       *config.Config
	engine    *recurrence.Engine
	clock     recurrence.Clock
	store     storage.EventStorage
	service   *schedule.Service
	logger    *slog.Logger
	formatter *OutputFormatter

	closers []io.Closer
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config != nil {
		cfg := *opts.Config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if opts.ConfigPath != "" {
		return config.LoadFromFile(opts.ConfigPath)
	}
	return config.LoadOrDefault()
}

func newLogger(cfg *config.Config, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if cfg.Logging.File != "" {
		return logging.New(logging.Options{Level: level, File: cfg.Logging.File, Format: cfg.Logging.Format})
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewWithWriter(stderr, lvl, cfg.Logging.Format), nil, nil
}

// openApp loads configuration, logging and storage. Failures are reported
// through the formatter and returned as ExitErrors.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	f := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail("failed to load configuration", err)
	}

	logger, logCloser, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, f.Fail("failed to set up logging", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		formatter: f,
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}

	a.clock = recurrence.SystemClock
	if opts.Clock != nil {
		a.clock = opts.Clock
	}
	a.engine = recurrence.NewEngine(
		recurrence.WithClock(a.clock),
		recurrence.WithIDSource(opts.IDs),
		recurrence.WithMaxOccurrences(cfg.Recurrence.MaxOccurrences),
	)

	a.store = opts.Store
	if a.store == nil {
		store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
		if err != nil {
			a.Close()
			return nil, f.Fail("failed to open storage", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
	}
	f.VerboseLog("Using %s storage", cfg.Storage.Backend)

	a.service = schedule.NewService(a.engine, a.store, logger)
	return a, nil
}

func (a *app) parser() *parser.Parser {
	p := parser.NewParser(a.logger)
	if n := a.cfg.Templates.MaxPerFile; n > 0 {
		p.SetMaxEvents(n)
	}
	return p
}

// context returns the command context carrying the app logger.
func (a *app) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.ContextWithLogger(ctx, a.logger)
}

// Close releases storage and the log file in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
