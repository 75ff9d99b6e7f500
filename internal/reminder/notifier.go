package reminder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"

	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"
)

const appName = "calrepeat"

// DefaultTemplate is the body used when no custom template is configured
const DefaultTemplate = `{{.Summary}}{{if .Location}} at {{.Location}}{{end}}
Starts: {{.Date}} {{.StartTime}} ({{.AlertOffset}} warning)`

// Notifier delivers a reminder to the user
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
	Close() error
}

// TemplateData represents the data available to notification templates
type TemplateData struct {
	Summary     string
	Description string
	Location    string
	Category    string
	Date        string
	StartTime   string
	EndTime     string
	Duration    string
	AlertOffset string
	Priority    string
	UID         string
	SeriesID    string
	Late        bool
}

// Formatter renders reminders into a title and a body
type Formatter struct {
	tmpl       *template.Template
	classifier *PriorityClassifier
}

// NewFormatter parses text as the body template. Empty text selects
// DefaultTemplate.
func NewFormatter(text string) (*Formatter, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("reminder").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification template: %w", err)
	}
	return &Formatter{tmpl: tmpl, classifier: NewPriorityClassifier()}, nil
}

// LoadFormatter reads the body template from path
func LoadFormatter(path string) (*Formatter, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return NewFormatter(string(content))
}

// Classifier returns the classifier that rates reminders
func (f *Formatter) Classifier() *PriorityClassifier {
	return f.classifier
}

// Data builds the template data for r
func (f *Formatter) Data(r Reminder) TemplateData {
	return TemplateData{
		Summary:     r.Record.Title,
		Description: r.Record.Description,
		Location:    r.Record.Location,
		Category:    r.Record.Category,
		Date:        r.Record.Date.String(),
		StartTime:   r.Record.StartTime,
		EndTime:     r.Record.EndTime,
		Duration:    formatDuration(r.End.Sub(r.Start)),
		AlertOffset: formatDuration(r.Lead),
		Priority:    f.classifier.Classify(r).String(),
		UID:         r.Record.ID,
		SeriesID:    r.Record.SeriesID(),
		Late:        r.Late,
	}
}

// Render returns the notification title and body for r
func (f *Formatter) Render(r Reminder) (string, string, error) {
	data := f.Data(r)

	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("template execution failed: %w", err)
	}

	title := data.Summary
	if r.Late {
		title = "Missed: " + title
	}
	return title, buf.String(), nil
}

// Priority classifies r
func (f *Formatter) Priority(r Reminder) Priority {
	return f.classifier.Classify(r)
}

// WriterNotifier prints reminders as plain text
type WriterNotifier struct {
	w         io.Writer
	formatter *Formatter
	mu        sync.Mutex
}

// NewWriterNotifier creates a notifier writing to w
func NewWriterNotifier(w io.Writer, formatter *Formatter) *WriterNotifier {
	return &WriterNotifier{w: w, formatter: formatter}
}

// Notify writes r to the underlying writer
func (n *WriterNotifier) Notify(ctx context.Context, r Reminder) error {
	title, body, err := n.formatter.Render(r)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	_, err = fmt.Fprintf(n.w, "[%s] %s %s\n%s\n\n",
		n.formatter.Priority(r), r.FireAt.Format("2006-01-02 15:04"), title, body)
	return err
}

// Close implements Notifier
func (n *WriterNotifier) Close() error {
	return nil
}

// sender is the part of notify.Notifier used to deliver notifications
type sender interface {
	SendNotification(n notify.Notification) (uint32, error)
	Close() error
}

// DBusNotifier delivers reminders through the freedesktop notification
// service on the session bus
type DBusNotifier struct {
	sender    sender
	conn      *dbus.Conn
	formatter *Formatter
	timeout   time.Duration
}

// NewDBusNotifier connects to the session bus. Notifications stay on screen
// for timeout, or until dismissed when they are late.
func NewDBusNotifier(formatter *Formatter, timeout time.Duration) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session D-Bus: %w", err)
	}

	notifier, err := notify.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create D-Bus notifier: %w", err)
	}

	d := newDBusNotifier(notifier, formatter, timeout)
	d.conn = conn
	return d, nil
}

func newDBusNotifier(s sender, formatter *Formatter, timeout time.Duration) *DBusNotifier {
	return &DBusNotifier{sender: s, formatter: formatter, timeout: timeout}
}

// Notify sends r as a desktop notification
func (d *DBusNotifier) Notify(ctx context.Context, r Reminder) error {
	n, err := d.notification(r)
	if err != nil {
		return err
	}
	if _, err := d.sender.SendNotification(n); err != nil {
		return fmt.Errorf("failed to send D-Bus notification: %w", err)
	}
	return nil
}

func (d *DBusNotifier) notification(r Reminder) (notify.Notification, error) {
	title, body, err := d.formatter.Render(r)
	if err != nil {
		return notify.Notification{}, err
	}

	expire := d.timeout
	if r.Late {
		expire = notify.ExpireTimeoutNever
	}

	return notify.Notification{
		AppName:       appName,
		AppIcon:       "calendar",
		Summary:       title,
		Body:          body,
		Actions:       []notify.Action{},
		Hints:         map[string]dbus.Variant{"urgency": urgencyHint(d.formatter.Priority(r))},
		ExpireTimeout: expire,
	}, nil
}

// Close closes the notifier and its D-Bus connection
func (d *DBusNotifier) Close() error {
	if err := d.sender.Close(); err != nil {
		return err
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// urgencyHint maps a priority onto the freedesktop urgency levels 0-2
func urgencyHint(p Priority) dbus.Variant {
	switch p {
	case PriorityLow:
		return dbus.MakeVariant(byte(0))
	case PriorityCritical:
		return dbus.MakeVariant(byte(2))
	default:
		return dbus.MakeVariant(byte(1))
	}
}

// New creates the notifier for backend: "dbus" or "stdout". A D-Bus failure
// falls back to stdout.
func New(backend string, formatter *Formatter, timeout time.Duration, out io.Writer) (Notifier, error) {
	switch backend {
	case "stdout":
		return NewWriterNotifier(out, formatter), nil
	case "dbus", "":
		d, err := NewDBusNotifier(formatter, timeout)
		if err != nil {
			return NewWriterNotifier(out, formatter), fmt.Errorf("falling back to stdout: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported notification backend: %s", backend)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
