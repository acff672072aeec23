// Package reliability provides the retry policies and circuit breaker that
// back the resilience hooks of package interceptors.
//
// Both are plain building blocks with no knowledge of interception:
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithCooldown(30 * time.Second),
//	)
//	if err := cb.Allow(); err != nil {
//	    return err
//	}
//	cb.Record(call())
//
//	err := Retry(ctx, NewFixedDelay(10*time.Millisecond, 3), call)
package reliability
