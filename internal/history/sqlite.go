package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cankoe/request-tester/internal/models"
)

// Fixed-width so that lexical order on the column is chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `id, timestamp, method, url, headers, body, status_code,
	response_headers, response_body, error, duration_ms`

// SQLiteStore keeps history in a single sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database and creates the schema if missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.withConn(ctx, createTables); err != nil {
		return nil, err
	}
	return s, nil
}

func createTables(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS request_history (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        TEXT NOT NULL,
			method           TEXT NOT NULL,
			url              TEXT NOT NULL,
			headers          TEXT,
			body             TEXT,
			status_code      INTEGER NOT NULL DEFAULT 0,
			response_headers TEXT,
			response_body    TEXT,
			error            TEXT,
			duration_ms      INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_request_history_timestamp ON request_history(timestamp DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating request_history table: %w", err)
	}
	return nil
}

// withConn acquires a dedicated connection for fn and always releases it.
func (s *SQLiteStore) withConn(ctx context.Context, fn func(context.Context, *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring sqlite connection: %w", err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

func (s *SQLiteStore) Insert(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	ts := now()
	var id int64
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `
			INSERT INTO request_history (timestamp, method, url, headers, body, status_code,
				response_headers, response_body, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ts.Format(timestampLayout), rec.Method, rec.URL,
			rec.RequestHeaders, rec.RequestBody, rec.StatusCode,
			rec.ResponseHeaders, rec.ResponseBody, rec.Error, rec.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("inserting history: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	rec.ID = id
	rec.Timestamp = ts
	return id, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]models.HistoryRecord, error) {
	records := make([]models.HistoryRecord, 0)
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT `+selectColumns+`
			FROM request_history
			ORDER BY timestamp DESC, id DESC
			LIMIT ? OFFSET ?`, limit, offset)
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*models.HistoryRecord, error) {
	var rec *models.HistoryRecord
	err := s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM request_history WHERE id = ?`, id)
		var err error
		rec, err = scanRecord(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	return s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, `DELETE FROM request_history WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting history %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting history %d: %w", id, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	return s.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `DELETE FROM request_history`); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.HistoryRecord, error) {
	var (
		rec models.HistoryRecord
		ts  string
	)
	err := row.Scan(&rec.ID, &ts, &rec.Method, &rec.URL, &rec.RequestHeaders, &rec.RequestBody,
		&rec.StatusCode, &rec.ResponseHeaders, &rec.ResponseBody, &rec.Error, &rec.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning history row: %w", err)
	}
	rec.Timestamp, err = time.Parse(timestampLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("parsing history timestamp %q: %w", ts, err)
	}
	return &rec, nil
}
