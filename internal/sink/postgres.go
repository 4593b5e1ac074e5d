package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/model"
)

// PostgresSink upserts records into a table keyed by doc_id
type PostgresSink struct {
	pool   *pgxpool.Pool
	table  string
	logger *zap.Logger
}

// NewPostgresSink connects to dsn and ensures the table exists
func NewPostgresSink(ctx context.Context, dsn, table string, logger *zap.Logger) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink requires sink.dsn")
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = 4
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "nesach"

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresSink{pool: pool, table: table, logger: logger}
	if _, err := pool.Exec(ctx, s.createSQL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	logger.Info("postgres sink ready", zap.String("table", table))
	return s, nil
}

func (s *PostgresSink) createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	doc_id      TEXT PRIMARY KEY,
	ingest_date DATE NOT NULL,
	run_id      TEXT NOT NULL,
	bucket      TEXT NOT NULL DEFAULT '',
	key         TEXT NOT NULL,
	page_count  INTEGER NOT NULL,
	fields      JSONB NOT NULL,
	record      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`, s.table)
}

func (s *PostgresSink) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (doc_id, ingest_date, run_id, bucket, key, page_count, fields, record, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (doc_id) DO UPDATE SET
	ingest_date = EXCLUDED.ingest_date,
	run_id      = EXCLUDED.run_id,
	page_count  = EXCLUDED.page_count,
	fields      = EXCLUDED.fields,
	record      = EXCLUDED.record,
	created_at  = EXCLUDED.created_at`, s.table)
}

// Name returns "postgres"
func (s *PostgresSink) Name() string { return "postgres" }

// Write upserts rec and returns "postgres:<table>/<doc_id>"
func (s *PostgresSink) Write(ctx context.Context, rec *model.Record) (string, error) {
	fields, record, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx, s.upsertSQL(),
		rec.DocID, rec.IngestDate, rec.RunID, rec.Source.Bucket, rec.Source.Key,
		rec.PageCount, fields, record, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", rec.DocID, err)
	}
	return fmt.Sprintf("postgres:%s/%s", s.table, rec.DocID), nil
}

// Close releases the pool
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func encodeRecord(rec *model.Record) (string, string, error) {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", "", fmt.Errorf("encode fields: %w", err)
	}
	record, err := json.Marshal(rec)
	if err != nil {
		return "", "", fmt.Errorf("encode record: %w", err)
	}
	return string(fields), string(record), nil
}
