package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})
	if m := b.Metrics(); m.MaxConcurrent != 10 || m.Available != 10 {
		t.Errorf("Metrics() = %+v, want 10 slots", m)
	}
}

func TestBulkhead_RejectsWhenFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d = %v", i+1, err)
		}
	}
	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() when full = %v, want ErrBulkheadFull", err)
	}

	b.Release()
	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after Release = %v", err)
	}

	m := b.Metrics()
	if m.Active != 2 || m.MaxActive != 2 || m.Rejected != 1 || m.Available != 0 {
		t.Errorf("Metrics() = %+v", m)
	}
}

func TestBulkhead_ReleaseWithoutAcquire(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	b.Release()
	b.Release()

	if m := b.Metrics(); m.Active != 0 || m.Available != 1 {
		t.Errorf("Metrics() = %+v", m)
	}
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("second Acquire() = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		b.Release()
	}()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() = %v, want slot after release", err)
	}
	wg.Wait()
}

func TestBulkhead_WaitTimesOut(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	ctx := context.Background()
	_ = b.Acquire(ctx)

	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkhead_WaitCancelled(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: time.Second})
	_ = b.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() = %v, want context.Canceled", err)
	}
	if m := b.Metrics(); m.Rejected != 0 {
		t.Errorf("Rejected = %d, want 0 for a cancelled wait", m.Rejected)
	}
}

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	const limit = 3
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: limit, MaxWait: 5 * time.Second})

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > limit {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), limit)
	}
	if m := b.Metrics(); m.Active != 0 {
		t.Errorf("Active = %d after all calls, want 0", m.Active)
	}
}
