package interceptors

import (
	"sync"
	"testing"

	"github.com/glimte/detour-go/contracts"
	"github.com/stretchr/testify/require"
)

func stringParam(name string) contracts.Param {
	return contracts.Param{Name: name, Type: "string"}
}

func newMethod(returns string, params ...contracts.Param) *contracts.MethodRef {
	return &contracts.MethodRef{Owner: "Widget", Name: "Run", Params: params, Returns: returns}
}

func staticMethod(returns string, params ...contracts.Param) *contracts.MethodRef {
	m := newMethod(returns, params...)
	m.Static = true
	return m
}

// fieldTable resolves fields keyed by "Owner.name"
type fieldTable map[string]contracts.Field

func (t fieldTable) Field(owner, name string) (contracts.Field, bool) {
	f, ok := t[owner+"."+name]
	return f, ok
}

// trace collects the steps of a call in order
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, step)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

func step(tr *trace, name string) Action {
	return func(f *Frame) error {
		tr.add(name)
		return nil
	}
}

func hook(name string, priority contracts.Priority, fn any, inputs ...Input) Hook {
	return Hook{Name: name, Priority: priority, Inputs: inputs, Fn: fn}
}

// attach numbers patches in the order given
func attach(patches ...Patch) []Patch {
	for i := range patches {
		patches[i].Index = i
	}
	return patches
}

func prefix(h Hook) Patch     { return Patch{Role: contracts.Prefix, Owner: "test", Hook: h} }
func postfix(h Hook) Patch    { return Patch{Role: contracts.Postfix, Owner: "test", Hook: h} }
func finalizer(h Hook) Patch  { return Patch{Role: contracts.Finalizer, Owner: "test", Hook: h} }
func transpiler(h Hook) Patch { return Patch{Role: contracts.Transpiler, Owner: "test", Hook: h} }

func mustCompile(t *testing.T, original *contracts.MethodRef, body contracts.Body, fields contracts.FieldResolver, patches ...Patch) *Dispatcher {
	t.Helper()
	d, err := Compile(original, body, fields, attach(patches...))
	require.NoError(t, err)
	return d
}
