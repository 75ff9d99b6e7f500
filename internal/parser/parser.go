// Package parser reads event templates from YAML, JSON and ICS files.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apognu/gocal"
	"gopkg.in/yaml.v3"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
)

// ErrUnsupportedFile is returned for files with an unknown extension.
var ErrUnsupportedFile = errors.New("unsupported template file")

// document is the shape of a YAML or JSON template file: either a single
// template at the top level or a list under events.
type document struct {
	recurrence.Template `yaml:",inline"`
	Events              []recurrence.Template `json:"events" yaml:"events"`
}

// Parser converts template files into engine templates
type Parser struct {
	logger    *slog.Logger
	maxEvents int
}

// NewParser creates a new parser instance
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:    logger,
		maxEvents: 10000,
	}
}

// SetMaxEvents sets the maximum number of templates read from a single file
func (p *Parser) SetMaxEvents(max int) {
	p.maxEvents = max
}

// Supported reports whether path has an extension the parser reads
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".ics":
		return true
	default:
		return false
	}
}

// ParseFile parses a single template file
func (p *Parser) ParseFile(filePath string) ([]recurrence.Template, error) {
	if !Supported(filePath) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	var templates []recurrence.Template
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ics":
		templates, err = p.ParseICS(file)
	case ".json":
		templates, err = p.ParseJSON(file)
	default:
		templates, err = p.ParseYAML(file)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return templates, nil
}

// ParseDirectory parses all supported files in a directory. Files that fail
// to parse are logged and skipped. The result maps each file to its
// templates.
func (p *Parser) ParseDirectory(dirPath string) (map[string][]recurrence.Template, error) {
	result := make(map[string][]recurrence.Template)

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			p.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() || !Supported(path) {
			return nil
		}

		templates, parseErr := p.ParseFile(path)
		if parseErr != nil {
			p.logger.Warn("skipping template file", "path", path, "error", parseErr)
			return nil
		}

		result[path] = templates
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return result, nil
}

// ParseYAML reads a YAML template document
func (p *Parser) ParseYAML(reader io.Reader) ([]recurrence.Template, error) {
	var doc document
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty template document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return p.fromDocument(doc)
}

// ParseJSON reads a JSON template document
func (p *Parser) ParseJSON(reader io.Reader) ([]recurrence.Template, error) {
	var doc document
	if err := json.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return p.fromDocument(doc)
}

func (p *Parser) fromDocument(doc document) ([]recurrence.Template, error) {
	templates := doc.Events
	if len(templates) == 0 {
		if doc.Title == "" {
			return nil, fmt.Errorf("document contains no events")
		}
		templates = []recurrence.Template{doc.Template}
	}
	if len(templates) > p.maxEvents {
		return nil, fmt.Errorf("document contains %d events, limit is %d", len(templates), p.maxEvents)
	}

	out := make([]recurrence.Template, 0, len(templates))
	for i, tmpl := range templates {
		tmpl = tmpl.Normalize()
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// ParseICS reads VEVENTs from ICS data. Every event becomes one template
// anchored at its first occurrence; instances the calendar library expands
// from an RRULE collapse back onto that anchor.
func (p *Parser) ParseICS(reader io.Reader) ([]recurrence.Template, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read ICS data: %w", err)
	}
	if err := ValidateICS(data); err != nil {
		return nil, fmt.Errorf("invalid ICS data: %w", err)
	}

	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)

	cal := gocal.NewParser(bytes.NewReader(data))
	cal.Start, cal.End = &start, &end

	if err := cal.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse ICS data: %w", err)
	}

	// Earliest instance per UID
	anchors := make(map[string]gocal.Event)
	var order []string
	for _, event := range cal.Events {
		if event.Start == nil {
			p.logger.Warn("skipping event without start", "uid", event.Uid)
			continue
		}
		key := event.Uid
		if key == "" {
			key = fmt.Sprintf("%s@%s", event.Summary, event.Start.Format(time.RFC3339))
		}
		current, seen := anchors[key]
		if !seen {
			order = append(order, key)
			anchors[key] = event
			continue
		}
		if event.Start.Before(*current.Start) {
			anchors[key] = event
		}
	}

	if len(order) > p.maxEvents {
		p.logger.Warn("reached maximum event limit, skipping remaining events", "limit", p.maxEvents)
		order = order[:p.maxEvents]
	}

	var templates []recurrence.Template
	for _, key := range order {
		tmpl, err := convertEvent(anchors[key])
		if err != nil {
			p.logger.Warn("skipping event", "uid", key, "error", err)
			continue
		}
		templates = append(templates, tmpl)
	}

	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].Date.Before(templates[j].Date)
	})
	return templates, nil
}

// convertEvent converts a gocal.Event to a template
func convertEvent(event gocal.Event) (recurrence.Template, error) {
	start := *event.Start
	endClock := "23:59"
	if event.End != nil {
		end := *event.End
		if end.After(start) && end.Sub(start) < 24*time.Hour && calendar.DateOf(end) == calendar.DateOf(start) {
			endClock = end.Format("15:04")
		}
	}

	tmpl := recurrence.Template{
		Title:       event.Summary,
		Date:        calendar.DateOf(start),
		StartTime:   start.Format("15:04"),
		EndTime:     endClock,
		Description: event.Description,
		Location:    event.Location,
	}
	if len(event.Categories) > 0 {
		tmpl.Category = event.Categories[0]
	}
	if tmpl.Title == "" {
		tmpl.Title = "(untitled)"
	}

	rule, err := recurrence.ParseRRule(rruleValue(event.RecurrenceRule))
	if err != nil {
		return recurrence.Template{}, err
	}
	tmpl.Repeat = rule

	tmpl = tmpl.Normalize()
	if err := tmpl.Validate(); err != nil {
		return recurrence.Template{}, err
	}
	return tmpl, nil
}

// rruleValue rebuilds an RRULE value from its parsed parts, FREQ first.
func rruleValue(parts map[string]string) string {
	if len(parts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(parts))
	for key := range parts {
		if key != "FREQ" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	values := []string{"FREQ=" + parts["FREQ"]}
	for _, key := range keys {
		values = append(values, key+"="+parts[key])
	}
	return strings.Join(values, ";")
}

// ValidateICS validates ICS data without fully parsing it
func ValidateICS(data []byte) error {
	content := string(data)

	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		return fmt.Errorf("missing BEGIN:VCALENDAR")
	}
	if !strings.Contains(content, "END:VCALENDAR") {
		return fmt.Errorf("missing END:VCALENDAR")
	}

	// Check for matching BEGIN/END pairs
	lines := strings.Split(content, "\n")
	stack := make([]string, 0)

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "BEGIN:") {
			stack = append(stack, strings.TrimPrefix(line, "BEGIN:"))
		} else if strings.HasPrefix(line, "END:") {
			component := strings.TrimPrefix(line, "END:")
			if len(stack) == 0 {
				return fmt.Errorf("unexpected END:%s without matching BEGIN", component)
			}
			if stack[len(stack)-1] != component {
				return fmt.Errorf("mismatched BEGIN/END: expected %s, got %s", stack[len(stack)-1], component)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("unclosed BEGIN statements: %v", stack)
	}

	return nil
}
