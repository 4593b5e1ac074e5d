package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{}
}

func TestNewPool(t *testing.T) {
	p := NewPool(context.Background(), 5)
	if p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}

	p0 := NewPool(context.Background(), 0)
	if p0.workers != 1 {
		t.Errorf("expected 1 worker for zero input, got %d", p0.workers)
	}
}

func TestPool_RunsAllJobs(t *testing.T) {
	p := NewPool(context.Background(), 3)
	p.Start()

	var executed int32
	const n = 10
	go func() {
		defer p.Close()
		for i := 0; i < n; i++ {
			p.Submit(&mockJob{executed: &executed, shouldErr: i%2 == 0})
		}
	}()

	var results, failures int
	for r := range p.Results() {
		results++
		if r.GetError() != nil {
			failures++
		}
	}

	if results != n {
		t.Errorf("expected %d results, got %d", n, results)
	}
	if failures != n/2 {
		t.Errorf("expected %d failures, got %d", n/2, failures)
	}
	if atomic.LoadInt32(&executed) != n {
		t.Errorf("expected %d executions, got %d", n, executed)
	}
}

func TestPool_Shutdown(t *testing.T) {
	p := NewPool(context.Background(), 1)
	p.Start()

	if !p.Submit(&mockJob{duration: time.Second}) {
		t.Fatal("submit before shutdown should succeed")
	}
	p.Shutdown()

	if p.Submit(&mockJob{}) {
		t.Error("submit after shutdown should fail")
	}
}

func TestPool_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(ctx, 2)
	p.Start()
	cancel()

	if p.Submit(&mockJob{}) {
		t.Error("submit after parent cancel should fail")
	}
}
