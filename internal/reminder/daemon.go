package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"calrepeat/internal/calendar"
	"calrepeat/internal/logging"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/storage"
)

// sentRetention is how long delivered reminder keys are remembered.
const sentRetention = 48 * time.Hour

// EventLister is the read side of the event store used by the daemon
type EventLister interface {
	ListEvents(ctx context.Context, filter storage.Filter) ([]recurrence.Record, error)
}

// DaemonConfig holds the daemon settings
type DaemonConfig struct {
	// Schedule is a cron expression such as "@every 1m" or "*/5 * * * *".
	Schedule string
	// CatchUp bounds how far back a check looks after downtime.
	CatchUp time.Duration
	// Location is used to read event clock times. Nil means local time.
	Location *time.Location
}

// Daemon checks the store on a cron schedule and sends due reminders
type Daemon struct {
	events    EventLister
	notifier  Notifier
	state     storage.StateManager
	scheduler *Scheduler
	clock     recurrence.Clock
	config    DaemonConfig
	logger    *slog.Logger
}

// NewDaemon creates a reminder daemon
func NewDaemon(events EventLister, notifier Notifier, state storage.StateManager, cfg DaemonConfig, logger *slog.Logger) *Daemon {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.CatchUp <= 0 {
		cfg.CatchUp = time.Hour
	}
	return &Daemon{
		events:    events,
		notifier:  notifier,
		state:     state,
		scheduler: NewScheduler(cfg.Location),
		clock:     recurrence.SystemClock,
		config:    cfg,
		logger:    logger,
	}
}

// SetClock replaces the time source
func (d *Daemon) SetClock(clock recurrence.Clock) {
	d.clock = clock
}

// Check delivers every reminder that became due since the last tick and
// returns how many were sent.
func (d *Daemon) Check(ctx context.Context) (int, error) {
	logger := logging.Or(ctx, d.logger).With("component", "reminder")

	now := d.clock.Now()
	from := d.state.LastTick()
	if earliest := now.Add(-d.config.CatchUp); from.IsZero() || from.Before(earliest) {
		from = earliest
	}
	if !now.After(from) {
		return 0, nil
	}

	// A reminder never fires after its event starts, so events dated before
	// the window cannot be due.
	records, err := d.events.ListEvents(ctx, storage.Filter{From: calendar.DateOf(from.In(d.scheduler.location))})
	if err != nil {
		return 0, fmt.Errorf("failed to list events: %w", err)
	}

	sent := 0
	var failed time.Time
	for _, r := range d.scheduler.Due(records, from, now) {
		key := r.Key()
		if d.state.WasSent(key) {
			continue
		}

		if err := d.notifier.Notify(ctx, r); err != nil {
			logger.Error("failed to send reminder", "id", r.Record.ID, "title", r.Record.Title, "error", err)
			if failed.IsZero() || r.FireAt.Before(failed) {
				failed = r.FireAt
			}
			continue
		}
		if err := d.state.MarkSent(key, r.FireAt); err != nil {
			logger.Warn("failed to record reminder", "key", key, "error", err)
		}

		logger.Info("reminder sent", "id", r.Record.ID, "title", r.Record.Title,
			"fire_at", r.FireAt.Format(time.RFC3339), "late", r.Late)
		sent++
	}

	// Hold the tick just before the earliest failed reminder so the next
	// check sees it again. Delivered keys are skipped through WasSent.
	tick := now
	if !failed.IsZero() {
		tick = failed.Add(-time.Nanosecond)
	}
	if err := d.state.SetLastTick(tick); err != nil {
		return sent, fmt.Errorf("failed to save last tick: %w", err)
	}
	if err := d.state.Prune(now.Add(-sentRetention)); err != nil {
		logger.Warn("failed to prune reminder state", "error", err)
	}

	logger.Debug("reminder check complete", "from", from.Format(time.RFC3339), "to", now.Format(time.RFC3339), "sent", sent)
	return sent, nil
}

// Run performs an immediate check and then checks on the configured
// schedule until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	logger := logging.Or(ctx, d.logger).With("component", "reminder")

	c := cron.New(
		cron.WithLocation(d.scheduler.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	check := func() {
		if _, err := d.Check(ctx); err != nil {
			logger.Error("reminder check failed", "error", err)
		}
	}
	if _, err := c.AddFunc(d.config.Schedule, check); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", d.config.Schedule, err)
	}

	check()
	c.Start()
	logger.Info("reminder daemon started", "schedule", d.config.Schedule)

	<-ctx.Done()
	<-c.Stop().Done()

	logger.Info("reminder daemon stopped")
	return nil
}
