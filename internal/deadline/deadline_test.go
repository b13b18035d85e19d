package deadline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetReturnsResult(t *testing.T) {
	got, err := Get(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
}

func TestGetPropagatesError(t *testing.T) {
	want := errors.New("provider down")
	_, err := Get(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Expected provider error, got %v", err)
	}
}

func TestGetTimesOut(t *testing.T) {
	start := time.Now()
	err := Run(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !IsExceeded(err) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Timeout did not cut the call short")
	}
}

func TestGetWithoutBudget(t *testing.T) {
	calls := 0
	err := Run(context.Background(), 0, func(ctx context.Context) error {
		calls++
		if _, ok := ctx.Deadline(); ok {
			t.Error("Expected no deadline when budget is zero")
		}
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("Run() err=%v calls=%d", err, calls)
	}
}
