// Package storage reads source documents and writes outputs to S3 or the
// local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("object not found")

// ObjectInfo is the head metadata of an object
type ObjectInfo struct {
	Size        int64
	ETag        string // Unquoted
	ContentType string
}

// ObjectStore is the minimal object API the pipeline needs. An empty bucket
// addresses the local filesystem.
type ObjectStore interface {
	Head(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}

// Ref locates a source object
type Ref struct {
	Bucket string // Empty for local files
	Key    string
}

// ParseRef accepts s3://bucket/key or a filesystem path. Local paths come
// back absolute.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("empty source reference")
	}
	if rest, ok := strings.CutPrefix(s, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return Ref{}, fmt.Errorf("invalid s3 reference %q: want s3://bucket/key", s)
		}
		return Ref{Bucket: bucket, Key: key}, nil
	}
	return Ref{Key: localKey(s)}, nil
}

// localKey makes a filesystem path absolute and clean so that one file
// always yields one key, whatever the working directory spelling
func localKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// IsLocal reports whether the ref points at the local filesystem
func (r Ref) IsLocal() bool { return r.Bucket == "" }

func (r Ref) String() string {
	if r.IsLocal() {
		return r.Key
	}
	return "s3://" + r.Bucket + "/" + r.Key
}

// Mux routes local refs to one store and bucket refs to another
type Mux struct {
	Local  ObjectStore
	Remote ObjectStore // nil when no S3 access is configured
}

func (m *Mux) pick(bucket string) (ObjectStore, error) {
	if bucket == "" {
		return m.Local, nil
	}
	if m.Remote == nil {
		return nil, fmt.Errorf("bucket %q requested but no object store is configured", bucket)
	}
	return m.Remote, nil
}

// Head dispatches on bucket
func (m *Mux) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	s, err := m.pick(bucket)
	if err != nil {
		return ObjectInfo{}, err
	}
	return s.Head(ctx, bucket, key)
}

// Get dispatches on bucket
func (m *Mux) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	s, err := m.pick(bucket)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, bucket, key)
}

// Put dispatches on bucket
func (m *Mux) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	s, err := m.pick(bucket)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, bucket, key, data, contentType)
}
