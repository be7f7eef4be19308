package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures, halfOpen int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      maxFailures,
		Timeout:          time.Second,
		HalfOpenMaxCalls: halfOpen,
	})
	cb.now = clock.Now
	return cb, clock
}

func failing() error { return fmt.Errorf("operation failed") }
func succeeding() error { return nil }

func TestCircuitBreakerBasicFlow(t *testing.T) {
	cb, _ := newTestBreaker(3, 2)

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected initial state to be Closed, got %v", cb.GetState())
	}

	if err := cb.Execute(succeeding); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected state to remain Closed after success, got %v", cb.GetState())
	}
}

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 2)

	cb.Execute(failing)
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected Closed after first failure, got %v", cb.GetState())
	}

	cb.Execute(failing)
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected Open after max failures, got %v", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
	if called {
		t.Error("Expected function not to run while open")
	}
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb, clock := newTestBreaker(1, 2)

	cb.Execute(failing)
	clock.Advance(2 * time.Second)

	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("Expected trial call to succeed, got %v", err)
	}
	if cb.GetState() != CircuitBreakerHalfOpen {
		t.Errorf("Expected HalfOpen after one trial success, got %v", cb.GetState())
	}

	cb.Execute(succeeding)
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected Closed after enough successes, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, 2)

	cb.Execute(failing)
	clock.Advance(2 * time.Second)
	cb.Execute(failing)

	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected Open after failed trial, got %v", cb.GetState())
	}
}

func TestCircuitBreakerIgnoredErrors(t *testing.T) {
	cb, _ := newTestBreaker(1, 1)

	err := cb.Execute(func() error { return ErrCacheMiss }, isMiss)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss to pass through, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected misses not to trip the breaker, got %v", cb.GetState())
	}
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{MaxFailures: 1000, Timeout: time.Second, HalfOpenMaxCalls: 1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				cb.Execute(failing)
			} else {
				cb.Execute(succeeding)
			}
		}(i)
	}
	wg.Wait()

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected Closed, got %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats["state"] != "closed" {
		t.Errorf("Expected closed state in stats, got %v", stats["state"])
	}
}
