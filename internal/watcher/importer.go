package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"calrepeat/internal/logging"
	"calrepeat/internal/parser"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/storage"
)

// EventService is the part of the schedule service the importer drives
type EventService interface {
	Create(ctx context.Context, tmpl recurrence.Template) ([]recurrence.Record, error)
	DeleteSeries(ctx context.Context, seriesID string) (int, error)
	DeleteOne(ctx context.Context, id string) error
}

// imported remembers what a template file produced
type imported struct {
	series []string
	events []string
}

// Importer turns template files into stored series. Each file owns the
// series it produced; re-importing a file replaces them.
type Importer struct {
	parser  *parser.Parser
	service EventService
	logger  *slog.Logger
	settle  time.Duration

	mu    sync.Mutex
	files map[string]imported
}

// NewImporter creates an importer
func NewImporter(p *parser.Parser, service EventService, logger *slog.Logger) *Importer {
	return &Importer{
		parser:  p,
		service: service,
		logger:  logger,
		files:   make(map[string]imported),
	}
}

// Scan imports every supported file below dir and returns the number of
// records created
func (im *Importer) Scan(ctx context.Context, dir string) (int, error) {
	files, err := im.parser.ParseDirectory(dir)
	if err != nil {
		return 0, err
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	total := 0
	for _, path := range paths {
		n, err := im.replace(ctx, path, files[path])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Sync re-imports path. When the file cannot be parsed its previous records
// are kept.
func (im *Importer) Sync(ctx context.Context, path string) (int, error) {
	templates, err := im.parser.ParseFile(path)
	if err != nil {
		return 0, err
	}
	return im.replace(ctx, path, templates)
}

func (im *Importer) replace(ctx context.Context, path string, templates []recurrence.Template) (int, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	logger := logging.Or(ctx, im.logger).With("component", "watcher", "path", path)

	if err := im.forgetLocked(ctx, path); err != nil {
		return 0, err
	}

	var (
		owned imported
		total int
	)
	for i, tmpl := range templates {
		records, err := im.service.Create(ctx, tmpl)
		if err != nil {
			logger.Warn("skipping template", "index", i, "title", tmpl.Title, "error", err)
			continue
		}
		if sid := records[0].SeriesID(); sid != "" {
			owned.series = append(owned.series, sid)
		} else {
			owned.events = append(owned.events, records[0].ID)
		}
		total += len(records)
	}

	im.files[path] = owned
	logger.Info("template file imported", "templates", len(templates), "records", total)
	return total, nil
}

// Remove deletes everything path produced
func (im *Importer) Remove(ctx context.Context, path string) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if err := im.forgetLocked(ctx, path); err != nil {
		return err
	}
	logging.Or(ctx, im.logger).Info("template file removed", "component", "watcher", "path", path)
	return nil
}

func (im *Importer) forgetLocked(ctx context.Context, path string) error {
	previous, ok := im.files[path]
	if !ok {
		return nil
	}

	for _, sid := range previous.series {
		if _, err := im.service.DeleteSeries(ctx, sid); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete series %s: %w", sid, err)
		}
	}
	for _, id := range previous.events {
		if err := im.service.DeleteOne(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete event %s: %w", id, err)
		}
	}

	delete(im.files, path)
	return nil
}

// Files returns the imported file paths in lexical order
func (im *Importer) Files() []string {
	im.mu.Lock()
	defer im.mu.Unlock()

	paths := make([]string, 0, len(im.files))
	for path := range im.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Handle applies one settled file change
func (im *Importer) Handle(ctx context.Context, change Change) {
	logger := logging.Or(ctx, im.logger).With("component", "watcher", "path", change.Path, "op", change.Op.String())

	switch change.Op {
	case OpChanged:
		if _, err := im.Sync(ctx, change.Path); err != nil {
			logger.Warn("failed to import template file", "error", err)
		}
	case OpRemoved:
		if err := im.Remove(ctx, change.Path); err != nil {
			logger.Error("failed to remove imported events", "error", err)
		}
	}
}

// Watch imports dir and then follows its changes until ctx is cancelled
func (im *Importer) Watch(ctx context.Context, dir string) error {
	// fsnotify reports absolute names for an absolute watch
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	logger := logging.Or(ctx, im.logger)
	w, err := NewDirWatcher(func(change Change) { im.Handle(ctx, change) }, im.settle, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch first so edits made during the scan are not lost.
	if err := w.Add(dir); err != nil {
		return err
	}
	if _, err := im.Scan(ctx, dir); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	logger.Info("watching template directory", "component", "watcher", "directory", dir, "directories", len(w.Dirs()))
	<-ctx.Done()
	return nil
}

// SetSettle changes how long Watch waits for a file to go quiet
func (im *Importer) SetSettle(d time.Duration) {
	im.settle = d
}
