package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_ScopesAreIndependent(t *testing.T) {
	limiter := NewLimiter(0.001, 1)

	if !limiter.Allow("s3:in") {
		t.Fatal("first call should be allowed")
	}
	if limiter.Allow("s3:in") {
		t.Error("second call in the same scope should be limited")
	}
	if !limiter.Allow("openai") {
		t.Error("a different scope should have its own budget")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("local") {
			t.Fatalf("call %d limited with rate disabled", i)
		}
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	_ = limiter.Wait(context.Background(), "gemini")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "gemini"); err == nil {
		t.Error("expected wait to fail once the context expires")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	limiter.SetRate("anthropic", 1000, 10)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("anthropic") {
			t.Fatalf("call %d limited after raising the rate", i)
		}
	}
}

func TestScope(t *testing.T) {
	tests := map[string]string{
		"s3://appraisals/2026/a.pdf": "s3:appraisals",
		"s3://bucket":                "s3:bucket",
		"/tmp/a.pdf":                 "local",
		"a.pdf":                      "local",
	}
	for ref, want := range tests {
		if got := Scope(ref); got != want {
			t.Errorf("Scope(%q) = %q, want %q", ref, got, want)
		}
	}
}
