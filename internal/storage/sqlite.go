package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"calrepeat/internal/calendar"
	"calrepeat/internal/recurrence"
)

//go:embed schema.sql
var schemaSQL string

const eventColumns = `id, series_id, title, date, start_time, end_time, description,
	location, category, repeat_type, repeat_interval, repeat_end, notification_time`

// SQLiteEventStorage implements EventStorage on a SQLite database.
// Uses WAL mode so readers are not blocked while a command writes.
type SQLiteEventStorage struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path. The special path
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteEventStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteEventStorage{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteEventStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertEvents stores records in one transaction. Existing records with the
// same ID are replaced.
func (s *SQLiteEventStorage) InsertEvents(ctx context.Context, records []recurrence.Record) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if rec.ID == "" {
				return fmt.Errorf("record %q has no identifier", rec.Title)
			}
			if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
				return fmt.Errorf("insert event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// GetEvent returns the record with the given ID.
func (s *SQLiteEventStorage) GetEvent(ctx context.Context, id string) (recurrence.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recurrence.Record{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return recurrence.Record{}, fmt.Errorf("get event %s: %w", id, err)
	}
	return rec, nil
}

// ListEvents returns the records matching filter, sorted by date and start
// time.
func (s *SQLiteEventStorage) ListEvents(ctx context.Context, filter Filter) ([]recurrence.Record, error) {
	var (
		where []string
		args  []any
	)
	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, filter.To.String())
	}
	if filter.SeriesID != "" {
		where = append(where, "series_id = ?")
		args = append(args, filter.SeriesID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, start_time, id"

	return s.query(ctx, query, args...)
}

// ListSeries returns every member of a series.
func (s *SQLiteEventStorage) ListSeries(ctx context.Context, seriesID string) ([]recurrence.Record, error) {
	if seriesID == "" {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	records, err := s.query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE series_id = ? ORDER BY date, start_time, id`, seriesID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	return records, nil
}

// UpdateEvent applies patch to a single record and detaches it from its
// series.
func (s *SQLiteEventStorage) UpdateEvent(ctx context.Context, id string, patch Patch) (recurrence.Record, error) {
	var updated recurrence.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
		rec, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get event %s: %w", id, err)
		}

		updated = detach(patch.Apply(rec))
		return updateRow(ctx, tx, updated)
	})
	if err != nil {
		return recurrence.Record{}, err
	}
	return updated, nil
}

// DeleteEvent removes a single record.
func (s *SQLiteEventStorage) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateSeries applies patch to every member of a series.
func (s *SQLiteEventStorage) UpdateSeries(ctx context.Context, seriesID string, patch Patch) ([]recurrence.Record, error) {
	if seriesID == "" {
		return nil, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}

	var updated []recurrence.Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT `+eventColumns+` FROM events
			WHERE series_id = ? ORDER BY date, start_time, id`, seriesID)
		if err != nil {
			return fmt.Errorf("list series %s: %w", seriesID, err)
		}
		members, err := scanRecords(rows)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
		}

		for _, rec := range members {
			rec = patch.applySeries(rec)
			if err := updateRow(ctx, tx, rec); err != nil {
				return err
			}
			updated = append(updated, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSeries removes every member of a series.
func (s *SQLiteEventStorage) DeleteSeries(ctx context.Context, seriesID string) (int, error) {
	if seriesID == "" {
		return 0, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE series_id = ?`, seriesID)
	if err != nil {
		return 0, fmt.Errorf("delete series %s: %w", seriesID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete series %s: %w", seriesID, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
	}
	return int(n), nil
}

func (s *SQLiteEventStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteEventStorage) query(ctx context.Context, query string, args ...any) ([]recurrence.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanRecords(rows)
}

func updateRow(ctx context.Context, tx *sql.Tx, rec recurrence.Record) error {
	args := recordArgs(rec)
	_, err := tx.ExecContext(ctx, `UPDATE events SET series_id = ?, title = ?, date = ?,
		start_time = ?, end_time = ?, description = ?, location = ?, category = ?,
		repeat_type = ?, repeat_interval = ?, repeat_end = ?, notification_time = ?
		WHERE id = ?`, append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("update event %s: %w", rec.ID, err)
	}
	return nil
}

func recordArgs(rec recurrence.Record) []any {
	var end sql.NullString
	if rec.Repeat.EndDate != nil {
		end = sql.NullString{String: rec.Repeat.EndDate.String(), Valid: true}
	}
	return []any{
		rec.ID, rec.SeriesID(), rec.Title, rec.Date.String(), rec.StartTime, rec.EndTime,
		rec.Description, rec.Location, rec.Category, string(rec.Repeat.Type),
		rec.Repeat.Interval, end, rec.NotificationTime,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (recurrence.Record, error) {
	var (
		rec      recurrence.Record
		date     string
		repeat   string
		end      sql.NullString
		seriesID string
	)
	err := row.Scan(&rec.ID, &seriesID, &rec.Title, &date, &rec.StartTime, &rec.EndTime,
		&rec.Description, &rec.Location, &rec.Category, &repeat, &rec.Repeat.Interval,
		&end, &rec.NotificationTime)
	if err != nil {
		return recurrence.Record{}, err
	}

	if rec.Date, err = calendar.ParseDate(date); err != nil {
		return recurrence.Record{}, fmt.Errorf("event %s: %w", rec.ID, err)
	}
	if end.Valid {
		endDate, err := calendar.ParseDate(end.String)
		if err != nil {
			return recurrence.Record{}, fmt.Errorf("event %s: %w", rec.ID, err)
		}
		rec.Repeat.EndDate = &endDate
	}
	rec.Repeat.Type = recurrence.Type(repeat)
	rec.Repeat.SeriesID = seriesID
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]recurrence.Record, error) {
	defer rows.Close()

	var records []recurrence.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}
