package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/nesach/internal/model"
)

// Processor turns one source reference into a record
type Processor interface {
	Process(ctx context.Context, ref string) (*model.Record, error)
}

// DocJob processes one source
type DocJob struct {
	Index     int
	Ref       string
	Processor Processor
}

// Execute runs the processor
func (j *DocJob) Execute(ctx context.Context) Result {
	rec, err := j.Processor.Process(ctx, j.Ref)
	return &DocResult{Index: j.Index, Ref: j.Ref, Record: rec, Error: err}
}

// DocResult is the outcome for one source
type DocResult struct {
	Index  int
	Ref    string
	Record *model.Record
	Error  error
}

// GetError returns the processing error
func (r *DocResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many sources concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
	onResult    func(*DocResult)
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// OnResult registers a callback invoked as each document finishes, in
// completion order
func (b *BatchProcessor) OnResult(fn func(*DocResult)) {
	b.onResult = fn
}

// ProcessRefs runs every ref and returns results in input order. Refs not
// started before ctx is cancelled get ctx's error.
func (b *BatchProcessor) ProcessRefs(ctx context.Context, refs []string) []*DocResult {
	out := make([]*DocResult, len(refs))
	if len(refs) == 0 {
		return out
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, ref := range refs {
			if !pool.Submit(&DocJob{Index: i, Ref: ref, Processor: b.processor}) {
				return
			}
		}
	}()

	for r := range pool.Results() {
		res := r.(*DocResult)
		out[res.Index] = res
		if b.onResult != nil {
			b.onResult(res)
		}
	}

	for i, res := range out {
		if res == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("not processed")
			}
			out[i] = &DocResult{Index: i, Ref: refs[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads refs from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocResult, error) {
	refs, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return b.ProcessRefs(ctx, refs), nil
}

// Failed returns the results that carry an error, in input order
func Failed(results []*DocResult) []*DocResult {
	var failed []*DocResult
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
	return failed
}

// ReadSourcesFromFile reads one source reference per line. Blank lines and
// # comments are skipped; duplicates are dropped.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var refs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			refs = append(refs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return refs, nil
}
