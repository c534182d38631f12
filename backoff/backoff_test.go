package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/taskchan/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Millisecond)
	for misses := 1; misses <= 10; misses++ {
		if got := c.Delay(misses); got != 5*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 5ms", misses, got)
		}
	}
}

func TestExponential_DoublesEachMiss(t *testing.T) {
	e := backoff.NewExponential(time.Millisecond, time.Hour)

	tests := []struct {
		misses int
		want   time.Duration
	}{
		{0, time.Millisecond},
		{1, time.Millisecond},
		{2, 2 * time.Millisecond},
		{3, 4 * time.Millisecond},
		{5, 16 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.misses); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.misses, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Millisecond, 10*time.Millisecond)
	for _, misses := range []int{5, 20, 1000} {
		if got := e.Delay(misses); got != 10*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 10ms", misses, got)
		}
	}
}

func TestExponential_UncappedDoesNotOverflow(t *testing.T) {
	e := backoff.NewExponential(time.Second, 0)
	if got := e.Delay(500); got <= 0 {
		t.Fatalf("Delay(500) = %v, want a positive duration", got)
	}
}

func TestJitter_WithinBounds(t *testing.T) {
	j := backoff.NewJitter(backoff.NewConstant(10*time.Millisecond), 0.5)
	seen := make(map[time.Duration]bool)
	for range 200 {
		got := j.Delay(1)
		if got < 5*time.Millisecond || got > 10*time.Millisecond {
			t.Fatalf("Delay(1) = %v, want within [5ms, 10ms]", got)
		}
		seen[got] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got %d distinct values", len(seen))
	}
}

func TestJitter_ClampsFraction(t *testing.T) {
	if j := backoff.NewJitter(backoff.NewConstant(time.Millisecond), 3); j.Fraction != 1 {
		t.Errorf("Fraction = %v, want 1", j.Fraction)
	}
	if j := backoff.NewJitter(backoff.NewConstant(time.Millisecond), -1); j.Fraction != 0 {
		t.Errorf("Fraction = %v, want 0", j.Fraction)
	}
}

func TestDefaultStrategy_Bounds(t *testing.T) {
	s := backoff.DefaultStrategy()
	if d := s.Delay(1); d < 0 || d > 100*time.Microsecond {
		t.Errorf("Delay(1) = %v, want <= 100µs", d)
	}
	if d := s.Delay(100); d > 20*time.Millisecond {
		t.Errorf("Delay(100) = %v, want <= 20ms", d)
	}
}

func TestIdle_CountsAndResets(t *testing.T) {
	idle := backoff.NewIdle(backoff.NewConstant(0))
	for range 3 {
		if err := idle.Wait(context.Background(), nil); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if idle.Misses() != 3 {
		t.Fatalf("Misses() = %d, want 3", idle.Misses())
	}
	idle.Reset()
	if idle.Misses() != 0 {
		t.Fatalf("Misses() = %d after Reset, want 0", idle.Misses())
	}
}

func TestIdle_WaitHonorsContext(t *testing.T) {
	idle := backoff.NewIdle(backoff.NewConstant(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := idle.Wait(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() = %v, want context.Canceled", err)
	}
}

func TestIdle_WaitHonorsStop(t *testing.T) {
	idle := backoff.NewIdle(backoff.NewConstant(time.Hour))
	stop := make(chan struct{})
	close(stop)

	done := make(chan error, 1)
	go func() { done <- idle.Wait(context.Background(), stop) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after stop was closed")
	}
}

func TestNewIdle_NilUsesDefault(t *testing.T) {
	idle := backoff.NewIdle(nil)
	if err := idle.Wait(context.Background(), nil); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
