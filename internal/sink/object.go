package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/nesach/internal/identity"
	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/storage"
)

const (
	metadataName = "metadata.json"
	recordName   = "record.json"
)

// ObjectSink writes metadata.json and record.json under
// <prefix>/ingest_date=YYYY-MM-DD/doc_id=<id>/ in a bucket, or under the
// local store root when bucket is empty.
type ObjectSink struct {
	store  storage.ObjectStore
	bucket string
	prefix string
	indent bool
}

// NewObjectSink creates an object sink
func NewObjectSink(store storage.ObjectStore, bucket, prefix string, indent bool) *ObjectSink {
	return &ObjectSink{store: store, bucket: bucket, prefix: prefix, indent: indent}
}

// Name returns "object"
func (s *ObjectSink) Name() string { return "object" }

// Write stores the record's metadata map and the full record. It returns
// the location of metadata.json.
func (s *ObjectSink) Write(ctx context.Context, rec *model.Record) (string, error) {
	part := identity.Partition{IngestDate: rec.IngestDate, DocID: rec.DocID}

	meta, err := s.marshal(rec.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	full, err := s.marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	loc, err := s.store.Put(ctx, s.bucket, part.Key(s.prefix, metadataName), meta, "application/json")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", metadataName, err)
	}
	if _, err := s.store.Put(ctx, s.bucket, part.Key(s.prefix, recordName), full, "application/json"); err != nil {
		return "", fmt.Errorf("write %s: %w", recordName, err)
	}
	return loc, nil
}

func (s *ObjectSink) marshal(v any) ([]byte, error) {
	if s.indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// Close does nothing
func (s *ObjectSink) Close() error { return nil }
