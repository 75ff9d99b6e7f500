package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"calrepeat/internal/reminder"
	"calrepeat/internal/storage"
	"calrepeat/internal/watcher"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Keep stored series in step with a directory of templates",
		Long: `Import every template in the directory and keep watching it. When a file
changes, the series it produced are replaced; when it is removed, they are
deleted. The directory defaults to templates.directory from the config.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.Templates.Directory
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return a.formatter.Fail("nothing to watch", errors.New("no directory given and templates.directory is not configured"))
			}

			ctx, stop := signalContext(a.context(cmd))
			defer stop()

			im := watcher.NewImporter(a.parser(), a.service, a.logger)
			if err := im.Watch(ctx, dir); err != nil {
				return a.formatter.Fail("watch failed", err)
			}
			return nil
		},
	}
	return cmd
}

type remindResult struct {
	Sent int `json:"sent"`
}

func (r remindResult) Text() string {
	return fmt.Sprintf("Sent %d reminder(s)\n", r.Sent)
}

// NewRemindCommand creates the remind command.
func NewRemindCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		once         bool
		templatePath string
		statePath    string
	)

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders before events start",
		Long: `Run the reminder daemon. Stored events are checked on the configured cron
schedule (reminders.schedule) and a notification is sent notificationTime
minutes before each one starts. Reminders missed while the daemon was not
running are delivered late, up to reminders.catch_up ago. With --once a
single check runs and the command exits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := a.context(cmd)
			f := a.formatter

			var state *storage.XDGStateManager
			if statePath != "" {
				state = storage.NewFileStateManager(statePath)
			} else if state, err = storage.NewXDGStateManager(); err != nil {
				return f.Fail("failed to locate reminder state", err)
			}
			f.VerboseLog("Reminder state: %s", state.StateFilePath())
			state.SetNowFunc(a.clock.Now)
			if err := state.Load(); err != nil {
				return f.Fail("failed to load reminder state", err)
			}
			defer state.Save()

			formatter, err := reminder.NewFormatter("")
			if templatePath != "" {
				formatter, err = reminder.LoadFormatter(templatePath)
			}
			if err != nil {
				return f.Fail("invalid notification template", err)
			}
			classifier := formatter.Classifier()
			for _, kw := range a.cfg.Notification.HighKeywords {
				classifier.AddHighKeyword(kw)
			}
			for _, kw := range a.cfg.Notification.CriticalKeywords {
				classifier.AddCriticalKeyword(kw)
			}

			timeout := time.Duration(a.cfg.Notification.Duration) * time.Millisecond
			notifier, err := reminder.New(a.cfg.Notification.Backend, formatter, timeout, cmd.OutOrStdout())
			if err != nil {
				if notifier == nil {
					return f.Fail("failed to set up notifications", err)
				}
				a.logger.Warn("notification backend unavailable", "backend", a.cfg.Notification.Backend, "error", err)
			}
			defer notifier.Close()

			catchUp, err := a.cfg.Reminders.CatchUp.Duration()
			if err != nil {
				return f.Fail("invalid configuration", err)
			}

			daemon := reminder.NewDaemon(a.store, notifier, state, reminder.DaemonConfig{
				Schedule: a.cfg.Reminders.Schedule,
				CatchUp:  catchUp,
			}, a.logger)
			daemon.SetClock(a.clock)

			if once {
				sent, err := daemon.Check(ctx)
				if err != nil {
					return f.Fail("reminder check failed", err)
				}
				return f.Success(remindResult{Sent: sent})
			}

			ctx, stop := signalContext(ctx)
			defer stop()
			if err := daemon.Run(ctx); err != nil {
				return f.Fail("reminder daemon failed", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single check and exit")
	cmd.Flags().StringVar(&templatePath, "template", "", "notification body template (Go text/template)")
	cmd.Flags().StringVar(&statePath, "state", "", "reminder state file (default $XDG_STATE_HOME/calrepeat/state.json)")
	return cmd
}
