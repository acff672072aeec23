package interceptors

import (
	"reflect"
)

// Condition decides from the live arguments whether a hook runs
type Condition func(args []any) bool

// When makes an Action, Gate or Replacer hook conditional on the live
// arguments. While cond is false an Action does nothing, a Gate lets the call
// proceed and a Replacer keeps the in-flight exception. The declared inputs
// are left as they are. Transpilers are returned unchanged.
func When(cond Condition, hook Hook) Hook {
	kind, ok := kindOf(hook.Fn)
	if !ok || kind == kindTranspiler {
		return hook
	}

	wrapped := hook

	switch kind {
	case kindGate:
		gate := toGate(hook.Fn)
		wrapped.Fn = Gate(func(f *Frame) (bool, error) {
			if !cond(f.st.args) {
				return true, nil
			}
			return gate(f)
		})
	case kindReplacer:
		replace := toReplacer(hook.Fn)
		wrapped.Fn = Replacer(func(f *Frame) error {
			if !cond(f.st.args) {
				return f.st.exception
			}
			return replace(f)
		})
	default:
		action := toAction(hook.Fn)
		wrapped.Fn = Action(func(f *Frame) error {
			if !cond(f.st.args) {
				return nil
			}
			return action(f)
		})
	}

	return wrapped
}

// All is true when every condition holds
func All(conds ...Condition) Condition {
	return func(args []any) bool {
		for _, c := range conds {
			if !c(args) {
				return false
			}
		}
		return true
	}
}

// Any is true when at least one condition holds
func Any(conds ...Condition) Condition {
	return func(args []any) bool {
		for _, c := range conds {
			if c(args) {
				return true
			}
		}
		return false
	}
}

// Not negates a condition
func Not(cond Condition) Condition {
	return func(args []any) bool {
		return !cond(args)
	}
}

// ArgEquals is true when the argument at index equals value
func ArgEquals(index int, value any) Condition {
	return func(args []any) bool {
		if index < 0 || index >= len(args) {
			return false
		}
		return reflect.DeepEqual(args[index], value)
	}
}
