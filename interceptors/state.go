package interceptors

import (
	"fmt"

	"github.com/glimte/detour-go/contracts"
)

// ExecutionState is the per-invocation record every stage reads and mutates:
// the live arguments, the in-flight result and exception, and the private
// __state slots. One is created for each call and never shared.
type ExecutionState struct {
	original    *contracts.MethodRef
	instance    any
	args        []any
	result      any
	hasResult   bool
	exception   error
	runOriginal bool
	states      map[string]any
}

func newExecutionState(original *contracts.MethodRef, instance any, args []any) *ExecutionState {
	live := make([]any, len(args))
	copy(live, args)

	return &ExecutionState{
		original:    original,
		instance:    instance,
		args:        live,
		runOriginal: true,
	}
}

func (s *ExecutionState) setResult(v any) {
	s.result = v
	s.hasResult = true
}

// AccessError is raised when an interceptor touches an input it did not
// declare, or writes one it declared read-only.
type AccessError struct {
	Hook   string
	Input  string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("hook %q: input %q: %s", e.Hook, e.Input, e.Reason)
}

// Frame is an interceptor's view of the running call. Every accessor is
// limited to what the hook declared in its Inputs.
type Frame struct {
	st   *ExecutionState
	hook *boundHook
}

// Hook returns the name of the running interceptor
func (f *Frame) Hook() string {
	return f.hook.Hook.Name
}

// Original returns the method being intercepted (declare __originalMethod)
func (f *Frame) Original() *contracts.MethodRef {
	f.token(bindOriginal, false)
	return f.st.original
}

// Arg returns the current value of an original parameter
func (f *Frame) Arg(name string) any {
	b := f.arg(name, false)
	return f.st.args[b.index]
}

// SetArg overwrites an original parameter for every later stage and the original
func (f *Frame) SetArg(name string, value any) {
	b := f.arg(name, true)
	f.st.args[b.index] = value
}

// Args returns a copy of the live arguments (declare __args). Use SetArg to
// change one.
func (f *Frame) Args() []any {
	f.token(bindArgs, false)
	out := make([]any, len(f.st.args))
	copy(out, f.st.args)
	return out
}

// Result returns the in-flight result, nil when none has been set
func (f *Frame) Result() any {
	f.token(bindResult, false)
	return f.st.result
}

// HasResult reports whether the original or a hook has set the result. A
// postfix that runs after a skip sees false until some prefix supplied one.
func (f *Frame) HasResult() bool {
	f.token(bindResult, false)
	return f.st.hasResult
}

// SetResult replaces the in-flight result
func (f *Frame) SetResult(value any) {
	f.token(bindResult, true)
	f.st.setResult(value)
}

// Exception returns the in-flight exception, nil when there is none
func (f *Frame) Exception() error {
	f.token(bindException, false)
	return f.st.exception
}

// Instance returns the receiver of the intercepted call
func (f *Frame) Instance() any {
	f.token(bindInstance, false)
	return f.st.instance
}

// SetInstance replaces the receiver seen by later stages and the original
func (f *Frame) SetInstance(value any) {
	f.token(bindInstance, true)
	f.st.instance = value
}

// Field reads a private field of the receiver. The name may be given with or
// without the ___ prefix.
func (f *Frame) Field(name string) any {
	b := f.field(name, false)
	return b.field.Get(f.st.instance)
}

// SetField writes a private field of the receiver
func (f *Frame) SetField(name string, value any) {
	b := f.field(name, true)
	b.field.Set(f.st.instance, value)
}

// State returns this hook's private state slot
func (f *Frame) State() any {
	f.token(bindState, false)
	return f.st.states[f.hook.Hook.Name]
}

// SetState stores a value in this hook's private state slot
func (f *Frame) SetState(value any) {
	f.token(bindState, true)
	if f.st.states == nil {
		f.st.states = make(map[string]any)
	}
	f.st.states[f.hook.Hook.Name] = value
}

// RunOriginal reports whether the original runs (or ran) for this call
func (f *Frame) RunOriginal() bool {
	f.token(bindRunOriginal, false)
	return f.st.runOriginal
}

func (f *Frame) arg(name string, write bool) binding {
	b, ok := f.hook.args[name]
	if !ok {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: name, Reason: "not a declared parameter input"})
	}
	if write && !b.mutable {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: name, Reason: "declared read-only"})
	}
	return b
}

func (f *Frame) field(name string, write bool) binding {
	b, ok := f.hook.fields[name]
	if !ok {
		b, ok = f.hook.fields[FieldPrefix+name]
	}
	if !ok {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: name, Reason: "not a declared field input"})
	}
	if write && !b.mutable {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: name, Reason: "declared read-only"})
	}
	return b
}

func (f *Frame) token(kind bindingKind, write bool) {
	b, ok := f.hook.tokens[kind]
	if !ok {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: tokenName(kind), Reason: "not declared"})
	}
	// __state is written by the hook that declares it, as with an out parameter
	if write && !b.mutable && kind != bindState {
		panic(&AccessError{Hook: f.hook.Hook.Name, Input: b.name, Reason: "declared read-only"})
	}
}

func tokenName(kind bindingKind) string {
	for name, k := range tokenKinds {
		if k == kind {
			return name
		}
	}
	return "?"
}
