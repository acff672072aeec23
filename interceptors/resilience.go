package interceptors

import (
	"context"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/internal/reliability"
)

// Retry builds a transpiler that re-runs the original body while policy
// allows it. Only returned errors are retried; panics are not.
func Retry(name string, priority contracts.Priority, policy reliability.RetryPolicy) Hook {
	return Hook{
		Name:     name,
		Priority: priority,
		Fn: Transpiler(func(next contracts.Body) contracts.Body {
			return func(instance any, args []any) (any, error) {
				var result any
				err := reliability.Retry(context.Background(), policy, func() error {
					var err error
					result, err = next(instance, args)
					return err
				})
				if err != nil {
					return nil, err
				}
				return result, nil
			}
		}),
	}
}

// CircuitBreaker builds a prefix and a postfix guarding the original with cb.
// While the circuit refuses calls the prefix throws the refusal, so the
// original is skipped and the caller sees a *reliability.CircuitBreakerError.
// The postfix reports the outcome of every admitted call that reached the
// original and hands back the admission of one that did not.
func CircuitBreaker(name string, cb *reliability.CircuitBreaker) (prefix, postfix Hook) {
	prefix = Hook{
		Name:     name,
		Priority: contracts.First,
		Inputs:   []Input{In(StateInput)},
		Fn: Action(func(f *Frame) error {
			if err := cb.Allow(); err != nil {
				return err
			}
			f.SetState(true)
			return nil
		}),
	}

	postfix = Hook{
		Name:     name,
		Priority: contracts.First,
		Inputs:   []Input{In(StateInput), In(ExceptionInput), In(RunOriginalInput)},
		Fn: Action(func(f *Frame) error {
			if admitted, _ := f.State().(bool); !admitted {
				return nil
			}
			if f.RunOriginal() {
				cb.Record(f.Exception())
			} else {
				cb.Release()
			}
			return nil
		}),
	}

	return prefix, postfix
}
