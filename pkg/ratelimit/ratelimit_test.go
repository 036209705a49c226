package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestBurstDrainsThenDenies(t *testing.T) {
	l := New(60, 5)
	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() false on burst token %d", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("Allow() true after the burst drained")
	}
}

func TestAcquireTimesOut(t *testing.T) {
	l := New(1, 1)
	if !l.Acquire(context.Background(), time.Second) {
		t.Fatal("first Acquire failed")
	}
	// next token is a minute away; a short timeout must report false
	start := time.Now()
	if l.Acquire(context.Background(), 20*time.Millisecond) {
		t.Fatal("Acquire succeeded with the bucket empty")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Acquire blocked %v past its timeout", elapsed)
	}
}

func TestAcquireAfterRefill(t *testing.T) {
	// 6000/min refills a token every 10ms
	l := New(6000, 1)
	if !l.Acquire(context.Background(), time.Second) {
		t.Fatal("first Acquire failed")
	}
	if !l.Acquire(context.Background(), time.Second) {
		t.Fatal("Acquire failed waiting for refill")
	}
}

func TestAcquireAbortsOnCancel(t *testing.T) {
	l := New(1, 1)
	l.Allow() // drain

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- l.Acquire(ctx, time.Hour) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Acquire returned true after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestDefaults(t *testing.T) {
	l := New(0, 0)
	perMinute, burst := l.Rate()
	if perMinute != 1 || burst != 1 {
		t.Fatalf("Rate()=(%d,%d), want (1,1) from clamped inputs", perMinute, burst)
	}

	l2 := New(120, 0)
	if _, burst := l2.Rate(); burst != 120 {
		t.Fatalf("burst=%d, want perMinute default 120", burst)
	}
}
