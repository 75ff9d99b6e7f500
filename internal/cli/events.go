package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/schedule"
	"calrepeat/internal/storage"
)

// eventsResult is the output of every command that returns records.
type eventsResult struct {
	Count  int                 `json:"count"`
	Events []recurrence.Record `json:"events"`
}

func newEventsResult(records []recurrence.Record) eventsResult {
	if records == nil {
		records = []recurrence.Record{}
	}
	return eventsResult{Count: len(records), Events: records}
}

func (r eventsResult) Text() string {
	if r.Count == 0 {
		return "No events\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tTITLE\tREPEAT\tSERIES")
	for _, rec := range r.Events {
		series := rec.SeriesID()
		if series == "" {
			series = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s-%s\t%s\t%s\t%s\n",
			rec.ID, rec.Date, rec.StartTime, rec.EndTime, rec.Title, rec.Repeat.Type, series)
	}
	w.Flush()
	fmt.Fprintf(&b, "%d event(s)\n", r.Count)
	return b.String()
}

// deleteResult is the output of delete.
type deleteResult struct {
	Deleted int `json:"deleted"`
}

func (r deleteResult) Text() string {
	return fmt.Sprintf("Deleted %d event(s)\n", r.Deleted)
}

// templateFlags describe one template on the command line.
type templateFlags struct {
	title       string
	date        string
	start       string
	end         string
	description string
	location    string
	category    string
	repeat      string
	interval    int
	endDate     string
	notify      int
}

func (tf *templateFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&tf.title, "title", "", "event title")
	fs.StringVar(&tf.date, "date", "", "first occurrence (YYYY-MM-DD)")
	fs.StringVar(&tf.start, "start", "", "start time (HH:MM)")
	fs.StringVar(&tf.end, "end", "", "end time (HH:MM)")
	fs.StringVar(&tf.description, "description", "", "event description")
	fs.StringVar(&tf.location, "location", "", "event location")
	fs.StringVar(&tf.category, "category", "", "event category")
	fs.StringVar(&tf.repeat, "repeat", "none", "repeat type (none|daily|weekly|monthly|yearly)")
	fs.IntVar(&tf.interval, "interval", 1, "repeat interval")
	fs.StringVar(&tf.endDate, "until", "", "last possible occurrence (YYYY-MM-DD); default end of this year")
	fs.IntVar(&tf.notify, "notify", 0, "reminder lead time in minutes")
}

func (tf *templateFlags) template() (recurrence.Template, error) {
	date, err := calendar.ParseDate(tf.date)
	if err != nil {
		return recurrence.Template{}, fmt.Errorf("%w: --date: %w", schedule.ErrInvalidTemplate, err)
	}
	typ, err := recurrence.ParseType(tf.repeat)
	if err != nil {
		return recurrence.Template{}, fmt.Errorf("%w: --repeat: %w", schedule.ErrInvalidTemplate, err)
	}

	tmpl := recurrence.Template{
		Title:            tf.title,
		Date:             date,
		StartTime:        tf.start,
		EndTime:          tf.end,
		Description:      tf.description,
		Location:         tf.location,
		Category:         tf.category,
		Repeat:           recurrence.Rule{Type: typ, Interval: tf.interval},
		NotificationTime: tf.notify,
	}
	if tf.endDate != "" {
		end, err := calendar.ParseDate(tf.endDate)
		if err != nil {
			return recurrence.Template{}, fmt.Errorf("%w: --until: %w", schedule.ErrInvalidTemplate, err)
		}
		tmpl.Repeat.EndDate = &end
	}
	return tmpl, nil
}

// templates reads templates from the file argument or, without one, from
// the flags.
func (tf *templateFlags) templates(a *app, args []string) ([]recurrence.Template, error) {
	if len(args) == 0 {
		tmpl, err := tf.template()
		if err != nil {
			return nil, err
		}
		return []recurrence.Template{tmpl}, nil
	}

	templates, err := a.parser().ParseFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	return templates, nil
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	tf := &templateFlags{}

	cmd := &cobra.Command{
		Use:   "generate [template-file]",
		Short: "Show the occurrences a template expands to without storing them",
		Long: `Expand an event template into its occurrences and print them.
Nothing is stored.

Example:
  calrepeat generate --title Rent --date 2025-01-31 --start 09:00 --end 09:30 --repeat monthly
  calrepeat generate templates/work.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(rootOpts, tf, cmd, args, false)
		},
	}
	tf.register(cmd)
	return cmd
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	tf := &templateFlags{}

	cmd := &cobra.Command{
		Use:   "add [template-file]",
		Short: "Expand a template and store every occurrence",
		Long: `Expand an event template into its occurrences and store them as one
series. A template that does not repeat is stored as a single event.

Example:
  calrepeat add --title Standup --date 2025-10-06 --start 09:00 --end 09:15 --repeat daily --until 2025-10-31
  calrepeat add templates/birthdays.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(rootOpts, tf, cmd, args, true)
		},
	}
	tf.register(cmd)
	return cmd
}

func runExpand(opts *RootOptions, tf *templateFlags, cmd *cobra.Command, args []string, store bool) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := a.context(cmd)
	f := a.formatter

	templates, err := tf.templates(a, args)
	if err != nil {
		return f.Fail("invalid template", err)
	}

	var records []recurrence.Record
	for _, tmpl := range templates {
		var expanded []recurrence.Record
		if store {
			expanded, err = a.service.Create(ctx, tmpl)
		} else {
			expanded, err = a.service.Preview(ctx, tmpl)
		}
		if err != nil {
			return f.Fail(fmt.Sprintf("cannot expand %q", tmpl.Title), err)
		}
		f.VerboseLog("%s: %d occurrence(s)", tmpl.Title, len(expanded))
		records = append(records, expanded...)
	}

	return f.Success(newEventsResult(records))
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to, series, category string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored events",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter, err := dateFilter(from, to)
			if err != nil {
				return a.formatter.Fail("invalid filter", err)
			}
			filter.SeriesID = series
			filter.Category = category

			records, err := a.service.List(a.context(cmd), filter)
			if err != nil {
				return a.formatter.Fail("failed to list events", err)
			}
			return a.formatter.Success(newEventsResult(records))
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&series, "series", "", "only events of this series")
	cmd.Flags().StringVar(&category, "category", "", "only events in this category")
	return cmd
}

func dateFilter(from, to string) (storage.Filter, error) {
	var filter storage.Filter
	var err error
	if from != "" {
		if filter.From, err = calendar.ParseDate(from); err != nil {
			return filter, fmt.Errorf("%w: --from: %w", schedule.ErrInvalidTemplate, err)
		}
	}
	if to != "" {
		if filter.To, err = calendar.ParseDate(to); err != nil {
			return filter, fmt.Errorf("%w: --to: %w", schedule.ErrInvalidTemplate, err)
		}
	}
	return filter, nil
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	tf := &templateFlags{}

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Edit one event, or its whole series with --all",
		Long: `Edit a stored event. Without --all only the given occurrence changes and
it leaves its series. With --all every occurrence of the series changes;
each keeps its own date.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			patch, err := tf.patch(cmd)
			if err != nil {
				return a.formatter.Fail("invalid update", err)
			}
			if patch.IsEmpty() {
				return a.formatter.Fail("invalid update", fmt.Errorf("%w: no fields to change", schedule.ErrInvalidTemplate))
			}

			ctx := a.context(cmd)
			if all {
				if patch.Date != nil {
					a.formatter.VerboseLog("--date is ignored with --all")
				}
				records, err := a.service.UpdateAll(ctx, args[0], patch)
				if err != nil {
					return a.formatter.Fail("failed to update series", err)
				}
				return a.formatter.Success(newEventsResult(records))
			}

			rec, err := a.service.UpdateOne(ctx, args[0], patch)
			if err != nil {
				return a.formatter.Fail("failed to update event", err)
			}
			return a.formatter.Success(newEventsResult([]recurrence.Record{rec}))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "apply to every event of the series")
	fs := cmd.Flags()
	fs.StringVar(&tf.title, "title", "", "new title")
	fs.StringVar(&tf.date, "date", "", "new date (YYYY-MM-DD, single event only)")
	fs.StringVar(&tf.start, "start", "", "new start time (HH:MM)")
	fs.StringVar(&tf.end, "end", "", "new end time (HH:MM)")
	fs.StringVar(&tf.description, "description", "", "new description")
	fs.StringVar(&tf.location, "location", "", "new location")
	fs.StringVar(&tf.category, "category", "", "new category")
	fs.IntVar(&tf.notify, "notify", 0, "new reminder lead time in minutes")
	return cmd
}

// patch builds a storage patch from the flags the user set.
func (tf *templateFlags) patch(cmd *cobra.Command) (storage.Patch, error) {
	var p storage.Patch
	changed := cmd.Flags().Changed

	if changed("title") {
		p.Title = &tf.title
	}
	if changed("date") {
		date, err := calendar.ParseDate(tf.date)
		if err != nil {
			return p, fmt.Errorf("%w: --date: %w", schedule.ErrInvalidTemplate, err)
		}
		p.Date = &date
	}
	if changed("start") {
		p.StartTime = &tf.start
	}
	if changed("end") {
		p.EndTime = &tf.end
	}
	if changed("description") {
		p.Description = &tf.description
	}
	if changed("location") {
		p.Location = &tf.location
	}
	if changed("category") {
		p.Category = &tf.category
	}
	if changed("notify") {
		p.NotificationTime = &tf.notify
	}
	return p, nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:           "delete <event-id>",
		Short:         "Delete one event, or its whole series with --all",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := a.context(cmd)
			if all {
				n, err := a.service.DeleteAll(ctx, args[0])
				if err != nil {
					return a.formatter.Fail("failed to delete series", err)
				}
				return a.formatter.Success(deleteResult{Deleted: n})
			}

			if err := a.service.DeleteOne(ctx, args[0]); err != nil {
				return a.formatter.Fail("failed to delete event", err)
			}
			return a.formatter.Success(deleteResult{Deleted: 1})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every event of the series")
	return cmd
}
