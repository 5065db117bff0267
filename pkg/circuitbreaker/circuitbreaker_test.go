package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBroker = errors.New("broker down")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour, HalfOpenMaxRequests: 1})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBroker }); !errors.Is(err, errBroker) {
			t.Fatalf("Execute() #%d error = %v, want %v", i, err, errBroker)
		}
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("Execute() error = %v, want ErrCircuitBreakerOpen", err)
	}
	if called {
		t.Error("fn was called while breaker open")
	}
	if cb.GetState() != StateOpen {
		t.Errorf("GetState() = %v, want open", cb.GetState())
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond, HalfOpenMaxRequests: 1})

	_ = cb.Execute(func() error { return errBroker })
	_ = cb.Execute(func() error { return nil }) // trips to open
	if cb.GetState() != StateOpen {
		t.Fatalf("GetState() = %v, want open", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open Execute() error = %v", err)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() after recovery error = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("GetState() = %v, want closed", cb.GetState())
	}
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(Config{})
	if cb.config != DefaultConfig() {
		t.Errorf("config = %+v, want defaults %+v", cb.config, DefaultConfig())
	}
	cb.Reset()
	if cb.GetState().String() != "closed" {
		t.Errorf("State.String() = %q", cb.GetState().String())
	}
}

func TestStateListenerSeesEveryTransition(t *testing.T) {
	var seen []string
	cb := NewCircuitBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond, HalfOpenMaxRequests: 1}).
		WithStateListener(func(from, to State) {
			seen = append(seen, from.String()+"->"+to.String())
		})

	_ = cb.Execute(func() error { return errBroker })
	_ = cb.Execute(func() error { return nil }) // trips to open
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(func() error { return errBroker }) // failed probe reopens

	want := []string{"closed->open", "open->half_open", "half_open->open"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	cb.Reset()
	if last := seen[len(seen)-1]; last != "open->closed" {
		t.Errorf("after Reset last transition = %s, want open->closed", last)
	}
}
