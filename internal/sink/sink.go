// Package sink persists extraction records.
package sink

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/storage"
)

// Sink stores one record and returns where it went
type Sink interface {
	Name() string
	Write(ctx context.Context, rec *model.Record) (string, error)
	Close() error
}

// Discard drops records. Used when persistence is turned off.
type Discard struct{}

// Name returns "none"
func (Discard) Name() string { return "none" }

// Write does nothing
func (Discard) Write(context.Context, *model.Record) (string, error) { return "", nil }

// Close does nothing
func (Discard) Close() error { return nil }

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func checkTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// New builds the sink selected by cfg.Sink.Kind. store is only used by the
// object sink.
func New(ctx context.Context, cfg *model.Config, store storage.ObjectStore, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := cfg.Sink.Table
	if table == "" {
		table = "extractions"
	}

	switch cfg.Sink.Kind {
	case "", "object":
		if store == nil {
			return nil, fmt.Errorf("object sink requires an object store")
		}
		return NewObjectSink(store, cfg.Storage.OutBucket, cfg.Storage.StagingPrefix, cfg.Output.Indent), nil
	case "postgres", "postgresql":
		return NewPostgresSink(ctx, cfg.Sink.DSN, table, logger)
	case "sqlite":
		return NewSQLiteSink(ctx, cfg.Sink.DSN, table)
	case "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unsupported sink kind: %s", cfg.Sink.Kind)
	}
}
