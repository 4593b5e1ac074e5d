package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/nesach/internal/model"
)

// SQLiteSink upserts records into a local SQLite database
type SQLiteSink struct {
	db    *sql.DB
	table string
	path  string
}

// NewSQLiteSink opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func NewSQLiteSink(ctx context.Context, path, table string) (*SQLiteSink, error) {
	if path == "" {
		path = "nesach.db"
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database lives only as long as its connection
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, table: table, path: path}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	doc_id      TEXT PRIMARY KEY,
	ingest_date TEXT NOT NULL,
	run_id      TEXT NOT NULL,
	bucket      TEXT NOT NULL DEFAULT '',
	key         TEXT NOT NULL,
	page_count  INTEGER NOT NULL,
	fields      TEXT NOT NULL,
	record      TEXT NOT NULL,
	created_at  TEXT NOT NULL
)`, table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return s, nil
}

// Name returns "sqlite"
func (s *SQLiteSink) Name() string { return "sqlite" }

// Write upserts rec and returns "sqlite:<path>/<doc_id>"
func (s *SQLiteSink) Write(ctx context.Context, rec *model.Record) (string, error) {
	fields, record, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc_id, ingest_date, run_id, bucket, key, page_count, fields, record, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET
	ingest_date = excluded.ingest_date,
	run_id      = excluded.run_id,
	page_count  = excluded.page_count,
	fields      = excluded.fields,
	record      = excluded.record,
	created_at  = excluded.created_at`, s.table),
		rec.DocID, rec.IngestDate, rec.RunID, rec.Source.Bucket, rec.Source.Key,
		rec.PageCount, fields, record, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", rec.DocID, err)
	}
	return fmt.Sprintf("sqlite:%s/%s", s.path, rec.DocID), nil
}

// Fields loads the stored field mapping for docID
func (s *SQLiteSink) Fields(ctx context.Context, docID string) (string, error) {
	var fields string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT fields FROM %s WHERE doc_id = ?`, s.table), docID).Scan(&fields)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", docID, err)
	}
	return fields, nil
}

// Count returns the number of stored records
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
