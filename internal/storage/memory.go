package storage

import (
	"context"
	"fmt"
	"sync"

	"calrepeat/internal/recurrence"
)

// MemoryEventStorage implements EventStorage using in-memory maps
type MemoryEventStorage struct {
	// Main record storage by ID
	events map[string]recurrence.Record

	// Series index - series ID -> set of record IDs
	series map[string]map[string]struct{}

	mutex sync.RWMutex
}

// NewMemoryEventStorage creates a new in-memory event storage
func NewMemoryEventStorage() *MemoryEventStorage {
	return &MemoryEventStorage{
		events: make(map[string]recurrence.Record),
		series: make(map[string]map[string]struct{}),
	}
}

// InsertEvents stores records. Existing records with the same ID are
// replaced.
func (s *MemoryEventStorage) InsertEvents(ctx context.Context, records []recurrence.Record) error {
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record %q has no identifier", rec.Title)
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, rec := range records {
		if old, exists := s.events[rec.ID]; exists {
			s.unindexLocked(old)
		}
		rec = cloneRecord(rec)
		s.events[rec.ID] = rec
		s.indexLocked(rec)
	}
	return nil
}

// GetEvent returns the record with the given ID
func (s *MemoryEventStorage) GetEvent(ctx context.Context, id string) (recurrence.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.events[id]
	if !exists {
		return recurrence.Record{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// ListEvents returns the records matching filter, sorted by date
func (s *MemoryEventStorage) ListEvents(ctx context.Context, filter Filter) ([]recurrence.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []recurrence.Record
	if filter.SeriesID != "" {
		for id := range s.series[filter.SeriesID] {
			if rec := s.events[id]; filter.Match(rec) {
				result = append(result, cloneRecord(rec))
			}
		}
	} else {
		for _, rec := range s.events {
			if filter.Match(rec) {
				result = append(result, cloneRecord(rec))
			}
		}
	}

	sortRecords(result)
	return result, nil
}

// ListSeries returns every member of a series, sorted by date
func (s *MemoryEventStorage) ListSeries(ctx context.Context, seriesID string) ([]recurrence.Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.seriesLocked(seriesID)
}

// UpdateEvent applies patch to a single record and detaches it from its
// series
func (s *MemoryEventStorage) UpdateEvent(ctx context.Context, id string, patch Patch) (recurrence.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.events[id]
	if !exists {
		return recurrence.Record{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	s.unindexLocked(rec)
	rec = detach(patch.Apply(rec))
	s.events[id] = rec

	return cloneRecord(rec), nil
}

// DeleteEvent removes a single record
func (s *MemoryEventStorage) DeleteEvent(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.events[id]
	if !exists {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	s.unindexLocked(rec)
	delete(s.events, id)
	return nil
}

// UpdateSeries applies patch to every member of a series
func (s *MemoryEventStorage) UpdateSeries(ctx context.Context, seriesID string, patch Patch) ([]recurrence.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	members := s.series[seriesID]
	if seriesID == "" || len(members) == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	for id := range members {
		s.events[id] = patch.applySeries(s.events[id])
	}
	return s.seriesLocked(seriesID)
}

// DeleteSeries removes every member of a series and returns how many were
// removed
func (s *MemoryEventStorage) DeleteSeries(ctx context.Context, seriesID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	members := s.series[seriesID]
	if seriesID == "" || len(members) == 0 {
		return 0, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	for id := range members {
		delete(s.events, id)
	}
	delete(s.series, seriesID)
	return len(members), nil
}

// GetEventCount returns the total number of records in storage
func (s *MemoryEventStorage) GetEventCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.events)
}

// Clear removes all records from storage
func (s *MemoryEventStorage) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.events = make(map[string]recurrence.Record)
	s.series = make(map[string]map[string]struct{})
	return nil
}

// Close is a no-op for the in-memory backend
func (s *MemoryEventStorage) Close() error {
	return nil
}

// seriesLocked collects a series (must be called with lock held)
func (s *MemoryEventStorage) seriesLocked(seriesID string) ([]recurrence.Record, error) {
	members := s.series[seriesID]
	if seriesID == "" || len(members) == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	result := make([]recurrence.Record, 0, len(members))
	for id := range members {
		result = append(result, cloneRecord(s.events[id]))
	}
	sortRecords(result)
	return result, nil
}

func (s *MemoryEventStorage) indexLocked(rec recurrence.Record) {
	seriesID := rec.SeriesID()
	if seriesID == "" {
		return
	}
	members, exists := s.series[seriesID]
	if !exists {
		members = make(map[string]struct{})
		s.series[seriesID] = members
	}
	members[rec.ID] = struct{}{}
}

func (s *MemoryEventStorage) unindexLocked(rec recurrence.Record) {
	seriesID := rec.SeriesID()
	members, exists := s.series[seriesID]
	if !exists {
		return
	}
	delete(members, rec.ID)
	if len(members) == 0 {
		delete(s.series, seriesID)
	}
}

// cloneRecord copies the record so callers never share the end date pointer
// with storage.
func cloneRecord(rec recurrence.Record) recurrence.Record {
	if rec.Repeat.EndDate != nil {
		end := *rec.Repeat.EndDate
		rec.Repeat.EndDate = &end
	}
	return rec
}
