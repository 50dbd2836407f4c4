package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errTestError = errors.New("test error")
	errNotFound  = errors.New("not found")
)

func quickConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             50 * time.Millisecond,
		MaxRequestsHalfOpen: 3,
	}
}

func TestCircuitBreaker_ClosedState_Success(t *testing.T) {
	cb := New("test", DefaultConfig())

	err := cb.Execute(context.Background(), func() error {
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ClosedState_Failure(t *testing.T) {
	cb := New("test", DefaultConfig())

	err := cb.Execute(context.Background(), func() error {
		return errTestError
	})

	if !errors.Is(err, errTestError) {
		t.Errorf("Expected test error, got: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.FailureCount != 1 {
		t.Errorf("Expected failure count 1, got: %d", stats.FailureCount)
	}
}

func TestCircuitBreaker_OpenState_RejectsRequests(t *testing.T) {
	cb := New("store", quickConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state Open, got: %v", cb.GetState())
	}

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Expected ErrOpen, got: %v", err)
	}
	if called {
		t.Error("Function must not run while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := New("store", quickConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}
	time.Sleep(60 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("Probe %d failed: %v", i, err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("store", quickConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}
	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errTestError })
	if cb.GetState() != StateOpen {
		t.Errorf("Expected state Open, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenLimitsRequests(t *testing.T) {
	cfg := quickConfig()
	cfg.MaxRequestsHalfOpen = 1
	cfg.SuccessThreshold = 5
	cb := New("store", cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errTestError })
	}
	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("First probe should pass, got: %v", err)
	}
	if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Second probe should be rejected, got: %v", err)
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	cfg := quickConfig()
	cfg.IsFailure = func(err error) bool { return !errors.Is(err, errNotFound) }
	cb := New("store", cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func() error { return errNotFound })
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Ignored errors must not open the breaker, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb := New("store", quickConfig())

	var mu sync.Mutex
	var transitions []State
	done := make(chan struct{}, 4)
	cb.OnStateChange(func(name string, from, to State) {
		if name != "store" {
			t.Errorf("Unexpected breaker name: %s", name)
		}
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
		done <- struct{}{}
	})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errTestError })
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("State change callback not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("Expected [open], got: %v", transitions)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("store", quickConfig())
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errTestError })
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed after reset, got: %v", cb.GetState())
	}
}

func TestRun_ReturnsResult(t *testing.T) {
	cb := New("store", DefaultConfig())
	got, err := Run(context.Background(), cb, func() (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("Expected 7, nil; got %d, %v", got, err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	cb := New("store", DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cb, func() (int, error) {
		t.Error("Function must not run on a cancelled context")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := New("store", DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func() error {
				if i%2 == 0 {
					return errTestError
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	_ = cb.GetStats()
}
