package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/nesach/internal/storage"
	"github.com/ppiankov/nesach/internal/validate"
)

// loadSleep is swapped out by tests
var loadSleep = time.Sleep

// Loader heads, validates and downloads a source object
type Loader struct {
	store    storage.ObjectStore
	minBytes int64
	retries  int
	logger   *zap.Logger
}

// NewLoader creates a loader. Objects smaller than minBytes are rejected
// before download.
func NewLoader(store storage.ObjectStore, minBytes int64, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, minBytes: minBytes, retries: 3, logger: logger}
}

// Loaded is a downloaded source object
type Loaded struct {
	Ref  storage.Ref
	Info storage.ObjectInfo
	Data []byte
}

// Load resolves raw (s3://bucket/key or a local path). Validation failures
// come back as *validate.RejectionError; everything else wraps ErrLoad.
func (l *Loader) Load(ctx context.Context, raw string) (*Loaded, error) {
	ref, err := storage.ParseRef(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	info, err := l.store.Head(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: head %s: %v", ErrLoad, ref, err)
	}
	if err := validate.Input(ref.Key, info.Size, l.minBytes); err != nil {
		return nil, err
	}

	data, err := l.getWithRetry(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrLoad, ref, err)
	}
	if err := validate.Header(data); err != nil {
		return nil, err
	}

	return &Loaded{Ref: ref, Info: info, Data: data}, nil
}

// getWithRetry retries transient failures with linear backoff. A missing
// object is not retried.
func (l *Loader) getWithRetry(ctx context.Context, ref storage.Ref) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= l.retries; attempt++ {
		data, err := l.store.Get(ctx, ref.Bucket, ref.Key)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if errors.Is(err, storage.ErrNotFound) || ctx.Err() != nil {
			break
		}
		if attempt < l.retries {
			l.logger.Warn("get failed, retrying",
				zap.String("source", ref.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			loadSleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
	}
	return nil, lastErr
}
