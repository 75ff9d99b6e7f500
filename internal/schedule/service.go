// Package schedule applies create, edit and delete operations to series of
// events, tying the recurrence engine to an event store.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"calrepeat/internal/logging"
	"calrepeat/internal/recurrence"
	"calrepeat/internal/storage"
)

// Service orchestrates validation, expansion and persistence.
type Service struct {
	engine *recurrence.Engine
	store  storage.EventStorage
	logger *slog.Logger
}

// NewService wires the engine and store. A nil logger falls back to the
// default logger.
func NewService(engine *recurrence.Engine, store storage.EventStorage, logger *slog.Logger) *Service {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	return &Service{engine: engine, store: store, logger: logger}
}

func (s *Service) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	pairs := append([]any{"service", "schedule", "operation", operation}, attrs...)
	return logging.Or(ctx, s.logger).With(pairs...)
}

// Preview expands tmpl without storing anything.
func (s *Service) Preview(ctx context.Context, tmpl recurrence.Template) ([]recurrence.Record, error) {
	tmpl = tmpl.Normalize()
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	return s.engine.Generate(tmpl)
}

// Create expands tmpl and stores every occurrence.
func (s *Service) Create(ctx context.Context, tmpl recurrence.Template) ([]recurrence.Record, error) {
	logger := s.log(ctx, "create", "title", tmpl.Title, "type", tmpl.Repeat.Type)

	records, err := s.Preview(ctx, tmpl)
	if err != nil {
		logger.Warn("event rejected", "kind", ErrorKind(err), "error", err)
		return nil, err
	}

	if err := s.store.InsertEvents(ctx, records); err != nil {
		logger.Error("failed to store events", "error", err)
		return nil, fmt.Errorf("store events: %w", err)
	}

	logger.Info("events created", "count", len(records), "series", records[0].SeriesID())
	return records, nil
}

// UpdateOne edits a single occurrence. A series member is detached from its
// series.
func (s *Service) UpdateOne(ctx context.Context, id string, patch storage.Patch) (recurrence.Record, error) {
	logger := s.log(ctx, "update_one", "id", id)

	rec, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return recurrence.Record{}, err
	}
	if err := patch.Validate(rec); err != nil {
		return recurrence.Record{}, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	updated, err := s.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		logger.Error("failed to update event", "error", err)
		return recurrence.Record{}, err
	}

	if rec.IsRecurring() {
		logger.Info("event detached from series", "series", rec.SeriesID())
	} else {
		logger.Info("event updated")
	}
	return updated, nil
}

// UpdateAll edits every member of the series id belongs to.
func (s *Service) UpdateAll(ctx context.Context, id string, patch storage.Patch) ([]recurrence.Record, error) {
	logger := s.log(ctx, "update_all", "id", id)

	rec, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsRecurring() {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotRecurring)
	}

	seriesPatch := patch
	seriesPatch.Date = nil
	if err := seriesPatch.Validate(rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	updated, err := s.store.UpdateSeries(ctx, rec.SeriesID(), seriesPatch)
	if err != nil {
		logger.Error("failed to update series", "series", rec.SeriesID(), "error", err)
		return nil, err
	}

	logger.Info("series updated", "series", rec.SeriesID(), "count", len(updated))
	return updated, nil
}

// DeleteOne removes a single occurrence.
func (s *Service) DeleteOne(ctx context.Context, id string) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.log(ctx, "delete_one", "id", id).Info("event deleted")
	return nil
}

// DeleteAll removes every member of the series id belongs to.
func (s *Service) DeleteAll(ctx context.Context, id string) (int, error) {
	rec, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return 0, err
	}
	if !rec.IsRecurring() {
		return 0, fmt.Errorf("event %s: %w", id, ErrNotRecurring)
	}
	return s.DeleteSeries(ctx, rec.SeriesID())
}

// DeleteSeries removes a series by its identifier.
func (s *Service) DeleteSeries(ctx context.Context, seriesID string) (int, error) {
	n, err := s.store.DeleteSeries(ctx, seriesID)
	if err != nil {
		return 0, err
	}
	s.log(ctx, "delete_all", "series", seriesID).Info("series deleted", "count", n)
	return n, nil
}

// List returns the stored records matching filter.
func (s *Service) List(ctx context.Context, filter storage.Filter) ([]recurrence.Record, error) {
	return s.store.ListEvents(ctx, filter)
}

// Series returns the members of a series.
func (s *Service) Series(ctx context.Context, seriesID string) ([]recurrence.Record, error) {
	return s.store.ListSeries(ctx, seriesID)
}
