package interceptors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/glimte/detour-go/contracts"
)

// Dispatcher is the synthesized replacement for an original method. It runs
// prefixes, the original (unless skipped), postfixes and finalizers around a
// single ExecutionState per call.
type Dispatcher struct {
	original   *contracts.MethodRef
	body       contracts.Body
	prefixes   []*boundHook
	postfixes  []*boundHook
	finalizers []*boundHook
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger used for skip and fault transitions
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver sets the observer notified of every pipeline step
func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) {
		if observer != nil {
			d.observer = observer
		}
	}
}

// Compile binds and orders the patches attached to an original and returns
// the dispatcher that replaces it. Transpilers are applied to body first, in
// priority order. Binding failures of all patches are returned together.
func Compile(original *contracts.MethodRef, body contracts.Body, fields contracts.FieldResolver, patches []Patch, opts ...Option) (*Dispatcher, error) {
	if original == nil {
		return nil, fmt.Errorf("original cannot be nil")
	}
	if body == nil {
		return nil, fmt.Errorf("original %s has no body", original.Key())
	}

	d := &Dispatcher{
		original: original,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}

	byRole := make(map[contracts.PatchType][]Patch)
	for _, p := range patches {
		byRole[p.Role] = append(byRole[p.Role], p)
	}

	var errs []error
	bindAll := func(ps []Patch) []*boundHook {
		bound := make([]*boundHook, 0, len(ps))
		for _, p := range ps {
			bh, err := bind(original, fields, p)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			bound = append(bound, bh)
		}
		return bound
	}

	transpilers := bindAll(SortPatches(byRole[contracts.Transpiler]))
	d.prefixes = bindAll(SortPatches(byRole[contracts.Prefix]))
	d.postfixes = bindAll(SortPatches(byRole[contracts.Postfix]))
	d.finalizers = bindAll(SortByAttachment(byRole[contracts.Finalizer]))

	for role, ps := range byRole {
		if _, ok := permitted[role]; !ok {
			for _, p := range ps {
				errs = append(errs, &contracts.BindingError{
					Original: original.Key(),
					Role:     role,
					Hook:     p.Hook.Name,
					Reason:   fmt.Sprintf("role %s cannot be attached", role),
				})
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	d.body = body
	for _, t := range transpilers {
		next := toTranspiler(t.Hook.Fn)(d.body)
		if next == nil {
			return nil, &contracts.BindingError{
				Original: original.Key(),
				Role:     contracts.Transpiler,
				Hook:     t.Hook.Name,
				Reason:   "transpiler returned a nil body",
			}
		}
		d.body = next
	}

	return d, nil
}

// Original returns the method this dispatcher replaces
func (d *Dispatcher) Original() *contracts.MethodRef {
	return d.original
}

// Invoke runs one intercepted call. It has the signature of contracts.Body so
// it can be installed in place of the original.
func (d *Dispatcher) Invoke(instance any, args []any) (any, error) {
	st := newExecutionState(d.original, instance, args)

	d.runPrefixes(st)
	d.runOriginal(st)
	d.runPostfixes(st)
	d.runFinalizers(st)

	return d.done(st)
}

func (d *Dispatcher) runPrefixes(st *ExecutionState) {
	for _, h := range d.prefixes {
		frame := &Frame{st: st, hook: h}

		if h.kind == kindGate {
			gate := toGate(h.Hook.Fn)
			var proceed bool
			err := capture(func() error {
				var err error
				proceed, err = gate(frame)
				return err
			})
			if err != nil {
				d.prefixFault(st, h, err)
				return
			}
			d.observer.Observe(Event{Original: d.original, Stage: StagePrefix, Hook: h.Hook.Name})
			if !proceed {
				st.runOriginal = false
				d.logger.Debug("prefix skipped original",
					"method", d.original.Key(),
					"hook", h.Hook.Name,
				)
				return
			}
			continue
		}

		if err := capture(func() error { return toAction(h.Hook.Fn)(frame) }); err != nil {
			d.prefixFault(st, h, err)
			return
		}
		d.observer.Observe(Event{Original: d.original, Stage: StagePrefix, Hook: h.Hook.Name})
	}
}

// prefixFault records a prefix exception: it stops the remaining prefixes and the original
func (d *Dispatcher) prefixFault(st *ExecutionState, h *boundHook, err error) {
	st.exception = err
	st.runOriginal = false
	d.logger.Debug("prefix threw",
		"method", d.original.Key(),
		"hook", h.Hook.Name,
		"error", err,
	)
	d.observer.Observe(Event{Original: d.original, Stage: StagePrefix, Hook: h.Hook.Name, Err: err})
}

func (d *Dispatcher) runOriginal(st *ExecutionState) {
	if !st.runOriginal {
		d.observer.Observe(Event{Original: d.original, Stage: StageOriginal, Skipped: true, Err: st.exception})
		return
	}

	var result any
	err := capture(func() error {
		var err error
		result, err = d.body(st.instance, st.args)
		return err
	})
	if err != nil {
		st.exception = err
	} else if !d.original.IsVoid() {
		st.setResult(result)
	}
	d.observer.Observe(Event{Original: d.original, Stage: StageOriginal, Err: st.exception})
}

func (d *Dispatcher) runPostfixes(st *ExecutionState) {
	for _, h := range d.postfixes {
		if st.exception != nil && !h.faultAware {
			d.observer.Observe(Event{Original: d.original, Stage: StagePostfix, Hook: h.Hook.Name, Skipped: true, Err: st.exception})
			continue
		}

		frame := &Frame{st: st, hook: h}
		if err := capture(func() error { return toAction(h.Hook.Fn)(frame) }); err != nil {
			st.exception = err
			d.logger.Debug("postfix threw",
				"method", d.original.Key(),
				"hook", h.Hook.Name,
				"error", err,
			)
			d.observer.Observe(Event{Original: d.original, Stage: StagePostfix, Hook: h.Hook.Name, Err: err})
			return
		}
		d.observer.Observe(Event{Original: d.original, Stage: StagePostfix, Hook: h.Hook.Name, Err: st.exception})
	}
}

func (d *Dispatcher) runFinalizers(st *ExecutionState) {
	for _, h := range d.finalizers {
		frame := &Frame{st: st, hook: h}
		before := st.exception

		switch h.kind {
		case kindReplacer:
			replace := toReplacer(h.Hook.Fn)
			st.exception = capture(func() error { return replace(frame) })
		default:
			if err := capture(func() error { return toAction(h.Hook.Fn)(frame) }); err != nil {
				st.exception = err
			}
		}

		d.logger.Debug("finalizer ran",
			"method", d.original.Key(),
			"hook", h.Hook.Name,
			"before", before,
			"after", st.exception,
		)
		d.observer.Observe(Event{Original: d.original, Stage: StageFinalizer, Hook: h.Hook.Name, Err: st.exception})
	}
}

func (d *Dispatcher) done(st *ExecutionState) (any, error) {
	d.observer.Observe(Event{Original: d.original, Stage: StageDone, Err: st.exception})

	if st.exception != nil {
		if pe, ok := st.exception.(*contracts.PanicError); ok {
			panic(pe.Value)
		}
		return nil, st.exception
	}

	if d.original.IsVoid() {
		return nil, nil
	}
	return st.result, nil
}

// capture runs fn and turns a panic into a *contracts.PanicError
func capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &contracts.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func toAction(fn any) Action {
	switch fn := fn.(type) {
	case Action:
		return fn
	case func(*Frame) error:
		return fn
	}
	return nil
}

func toGate(fn any) Gate {
	switch fn := fn.(type) {
	case Gate:
		return fn
	case func(*Frame) (bool, error):
		return fn
	}
	return nil
}

func toReplacer(fn any) Replacer {
	if r, ok := fn.(Replacer); ok {
		return r
	}
	return nil
}

func toTranspiler(fn any) Transpiler {
	switch fn := fn.(type) {
	case Transpiler:
		return fn
	case func(contracts.Body) contracts.Body:
		return fn
	}
	return nil
}
