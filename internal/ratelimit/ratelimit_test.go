package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/pantheonelite/counciltrader/internal/errs"
)

func TestRequestLimiterBurstCapacity(t *testing.T) {
	rl := NewRequestLimiter(600) // capacity = max(60,10) = 60
	if rl.capacity != 60 {
		t.Errorf("capacity = %v, want 60", rl.capacity)
	}
	rl2 := NewRequestLimiter(60) // capacity = max(6,10) = 10
	if rl2.capacity != 10 {
		t.Errorf("capacity = %v, want 10", rl2.capacity)
	}
}

func TestRequestLimiterAcquireWithinBudget(t *testing.T) {
	rl := NewRequestLimiter(600)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := rl.Acquire(ctx, 1); err != nil {
			t.Fatalf("unexpected error on acquire %d: %v", i, err)
		}
	}
}

func TestRequestLimiterAcquireRespectsCancellation(t *testing.T) {
	rl := NewRequestLimiter(6) // capacity = 10, refill = 0.1/s -> slow
	ctx := context.Background()
	// drain the bucket
	if err := rl.Acquire(ctx, 10); err != nil {
		t.Fatalf("unexpected error draining bucket: %v", err)
	}
	cctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Acquire(cctx, 5); err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestOrderLimiterDailyCapReturnsPolicyViolation(t *testing.T) {
	ol := NewOrderLimiter(100, 2)
	ctx := context.Background()
	if err := ol.AcquireOrder(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ol.AcquireOrder(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := ol.AcquireOrder(ctx)
	if err == nil || !errs.As(err, errs.PolicyViolation) {
		t.Fatalf("expected PolicyViolation, got %v", err)
	}
}

func TestOrderLimiterStatsReflectWindow(t *testing.T) {
	ol := NewOrderLimiter(100, 100000)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := ol.AcquireOrder(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	in10s, inDay := ol.Stats()
	if in10s != 3 || inDay != 3 {
		t.Errorf("Stats() = (%d, %d), want (3, 3)", in10s, inDay)
	}
}
