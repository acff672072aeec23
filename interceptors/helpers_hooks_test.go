package interceptors

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/internal/reliability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortCircuit(t *testing.T) {
	calls := 0
	original := newMethod("string", stringParam("key"))
	body := func(_ any, args []any) (any, error) {
		calls++
		return "computed:" + args[0].(string), nil
	}

	d := mustCompile(t, original, body, nil,
		prefix(ShortCircuit("admin", contracts.High, func(args []any) (any, bool, error) {
			if args[0] == "admin" {
				return "denied", true, nil
			}
			if args[0] == "bad" {
				return nil, false, errors.New("rejected")
			}
			return nil, false, nil
		})),
	)

	result, err := d.Invoke(nil, []any{"admin"})
	require.NoError(t, err)
	assert.Equal(t, "denied", result)
	assert.Equal(t, 0, calls)

	result, err = d.Invoke(nil, []any{"user"})
	require.NoError(t, err)
	assert.Equal(t, "computed:user", result)
	assert.Equal(t, 1, calls)

	_, err = d.Invoke(nil, []any{"bad"})
	assert.EqualError(t, err, "rejected")
	assert.Equal(t, 1, calls)
}

func TestShortCircuitNeedsResult(t *testing.T) {
	_, err := Compile(newMethod(""), func(any, []any) (any, error) { return nil, nil }, nil, attach(
		prefix(ShortCircuit("sc", 0, func([]any) (any, bool, error) { return nil, false, nil })),
	))
	assert.ErrorIs(t, err, contracts.ErrBinding)
}

func TestCaching(t *testing.T) {
	calls := 0
	fail := false
	original := newMethod("string", stringParam("key"))
	body := func(_ any, args []any) (any, error) {
		calls++
		if fail {
			return nil, errors.New("down")
		}
		return strings.ToUpper(args[0].(string)), nil
	}

	cache := NewMapCache()
	pre, post := Caching("cache", cache, nil)
	d := mustCompile(t, original, body, nil, prefix(pre), postfix(post))

	for i := 0; i < 3; i++ {
		result, err := d.Invoke(nil, []any{"a"})
		require.NoError(t, err)
		assert.Equal(t, "A", result)
	}
	assert.Equal(t, 1, calls)

	fail = true
	_, err := d.Invoke(nil, []any{"b"})
	require.Error(t, err)
	_, cached := cache.Get(ArgsKey([]any{"b"}))
	assert.False(t, cached, "faults are not cached")

	fail = false
	result, err := d.Invoke(nil, []any{"b"})
	require.NoError(t, err)
	assert.Equal(t, "B", result)
	assert.Equal(t, 3, calls)
}

func TestCachingWithResultChangingPostfix(t *testing.T) {
	calls := 0
	original := newMethod("string", stringParam("key"))
	body := func(_ any, args []any) (any, error) {
		calls++
		return args[0], nil
	}

	pre, post := Caching("cache", NewMapCache(), nil)
	shout := hook("shout", contracts.Normal, Action(func(f *Frame) error {
		f.SetResult(f.Result().(string) + "!")
		return nil
	}), Ref(ResultInput))
	d := mustCompile(t, original, body, nil, prefix(pre), postfix(post), postfix(shout))

	for i := 0; i < 3; i++ {
		result, err := d.Invoke(nil, []any{"x"})
		require.NoError(t, err)
		assert.Equal(t, "x!", result, "call %d", i+1)
	}
	assert.Equal(t, 1, calls)
}

func TestWhen(t *testing.T) {
	tr := &trace{}
	boom := errors.New("boom")
	original := newMethod("string", stringParam("mode"))
	body := func(_ any, args []any) (any, error) {
		if args[0] == "fail" {
			return nil, boom
		}
		return "ok", nil
	}

	d := mustCompile(t, original, body, nil,
		prefix(When(ArgEquals(0, "trace"), hook("tracer", 0, step(tr, "traced")))),
		prefix(When(ArgEquals(0, "skip"), hook("skipper", 0, Gate(func(*Frame) (bool, error) { return false, nil })))),
		finalizer(When(Not(ArgEquals(0, "keep")), hook("swallow", 0, Replacer(func(*Frame) error { return nil })))),
	)

	result, err := d.Invoke(nil, []any{"trace"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, []string{"traced"}, tr.get())

	result, err = d.Invoke(nil, []any{"skip"})
	require.NoError(t, err)
	assert.Nil(t, result)

	_, err = d.Invoke(nil, []any{"fail"})
	assert.NoError(t, err, "swallowed when condition holds")

	d2 := mustCompile(t, newMethod("string", stringParam("mode")), func(any, []any) (any, error) { return nil, boom }, nil,
		finalizer(When(Not(ArgEquals(0, "keep")), hook("swallow", 0, Replacer(func(*Frame) error { return nil })))),
	)
	_, err = d2.Invoke(nil, []any{"keep"})
	assert.Same(t, boom, err, "kept when condition fails")
}

func TestConditions(t *testing.T) {
	args := []any{"a", 1}

	assert.True(t, ArgEquals(1, 1)(args))
	assert.False(t, ArgEquals(5, 1)(args))
	assert.True(t, All(ArgEquals(0, "a"), ArgEquals(1, 1))(args))
	assert.False(t, All(ArgEquals(0, "a"), ArgEquals(1, 2))(args))
	assert.True(t, Any(ArgEquals(0, "z"), ArgEquals(1, 1))(args))
	assert.False(t, Any()(args))
	assert.True(t, Not(ArgEquals(0, "z"))(args))
}

func TestRetryTranspiler(t *testing.T) {
	attempts := 0
	original := newMethod("string")
	body := func(any, []any) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("flaky")
		}
		return "done", nil
	}

	d := mustCompile(t, original, body, nil,
		transpiler(Retry("retry", 0, reliability.NewFixedDelay(0, 5))),
	)

	result, err := d.Invoke(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, attempts)
}

func TestCircuitBreakerHooks(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	original := newMethod("string")
	body := func(any, []any) (any, error) {
		calls++
		return nil, boom
	}

	cb := reliability.NewCircuitBreaker(reliability.WithFailureThreshold(2), reliability.WithCooldown(time.Hour))
	pre, post := CircuitBreaker("breaker", cb)
	d := mustCompile(t, original, body, nil, prefix(pre), postfix(post))

	for i := 0; i < 2; i++ {
		_, err := d.Invoke(nil, nil)
		assert.Same(t, boom, err)
	}
	assert.Equal(t, reliability.StateOpen, cb.State())

	_, err := d.Invoke(nil, nil)
	assert.ErrorIs(t, err, reliability.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestCircuitBreakerReleasesSkippedCalls(t *testing.T) {
	boom := errors.New("boom")
	var fail, skip, throw bool
	original := newMethod("string")
	body := func(any, []any) (any, error) {
		if fail {
			return nil, boom
		}
		return "ok", nil
	}

	cb := reliability.NewCircuitBreaker(
		reliability.WithFailureThreshold(1),
		reliability.WithSuccessThreshold(1),
		reliability.WithHalfOpenRequests(1),
		reliability.WithCooldown(0),
	)
	pre, post := CircuitBreaker("breaker", cb)
	guard := hook("guard", contracts.Normal, Gate(func(*Frame) (bool, error) {
		if throw {
			return false, boom
		}
		return !skip, nil
	}))
	d := mustCompile(t, original, body, nil, prefix(pre), prefix(guard), postfix(post))

	fail = true
	_, err := d.Invoke(nil, nil)
	require.Same(t, boom, err)
	require.Equal(t, reliability.StateOpen, cb.State())

	fail, skip = false, true
	_, err = d.Invoke(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reliability.StateHalfOpen, cb.State())

	skip, throw = false, true
	_, err = d.Invoke(nil, nil)
	require.Same(t, boom, err)
	assert.Equal(t, reliability.StateHalfOpen, cb.State())

	throw = false
	result, err := d.Invoke(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, reliability.StateClosed, cb.State())
}

type countingCollector struct {
	invocations, skipped int
	faults               []string
}

func (c *countingCollector) IncrementInvocations(string) { c.invocations++ }
func (c *countingCollector) IncrementSkipped(string)     { c.skipped++ }
func (c *countingCollector) IncrementFaults(_ string, errorType string) {
	c.faults = append(c.faults, errorType)
}

func TestObservers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	collector := &countingCollector{}
	metrics := NewInMemoryMetrics()

	original := newMethod("string", stringParam("mode"))
	body := func(_ any, args []any) (any, error) {
		if args[0] == "fail" {
			return nil, errors.New("boom")
		}
		return "ok", nil
	}

	d, err := Compile(original, body, nil, attach(
		prefix(When(ArgEquals(0, "skip"), hook("skip", 0, Gate(func(*Frame) (bool, error) { return false, nil })))),
	), WithObserver(Observers(NewLoggingObserver(logger), NewMetricsObserver(collector), NewMetricsObserver(metrics), nil)))
	require.NoError(t, err)

	for _, mode := range []string{"ok", "skip", "fail"} {
		_, _ = d.Invoke(nil, []any{mode})
	}

	assert.Equal(t, 3, collector.invocations)
	assert.Equal(t, 1, collector.skipped)
	assert.Equal(t, []string{"*errors.errorString"}, collector.faults)

	snapshot := metrics.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, original.Key(), snapshot[0].Method)
	assert.Equal(t, int64(3), snapshot[0].Invocations)
	assert.Equal(t, int64(1), snapshot[0].Faults["*errors.errorString"])

	out := buf.String()
	assert.Contains(t, out, "pipeline step")
	assert.Contains(t, out, "intercepted call failed")
}
