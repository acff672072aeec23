package interceptors

import (
	"errors"
	"testing"

	"github.com/glimte/detour-go/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(f *Frame) error { return nil }

func TestBindFailures(t *testing.T) {
	fields := fieldTable{
		"Widget.count": {Get: func(any) any { return 0 }, Set: func(any, any) {}},
		"Widget.name":  {Get: func(any) any { return "" }},
	}
	withResult := newMethod("string", stringParam("val"))
	void := newMethod("", stringParam("val"))
	static := staticMethod("string", stringParam("val"))

	tests := []struct {
		name     string
		original *contracts.MethodRef
		patch    Patch
		input    string
	}{
		{
			name:     "unknown input",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(noop), In("missing"))),
			input:    "missing",
		},
		{
			name:     "duplicate input",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(noop), In("val"), Ref("val"))),
			input:    "val",
		},
		{
			name:     "result on void method",
			original: void,
			patch:    postfix(hook("p", 0, Action(noop), Ref(ResultInput))),
			input:    ResultInput,
		},
		{
			name:     "exception on prefix",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(noop), In(ExceptionInput))),
			input:    ExceptionInput,
		},
		{
			name:     "exception declared mutable",
			original: withResult,
			patch:    postfix(hook("p", 0, Action(noop), Ref(ExceptionInput))),
			input:    ExceptionInput,
		},
		{
			name:     "run original declared mutable",
			original: withResult,
			patch:    postfix(hook("p", 0, Action(noop), Ref(RunOriginalInput))),
			input:    RunOriginalInput,
		},
		{
			name:     "instance on static method",
			original: static,
			patch:    prefix(hook("p", 0, Action(noop), In(InstanceInput))),
			input:    InstanceInput,
		},
		{
			name:     "field on static method",
			original: static,
			patch:    prefix(hook("p", 0, Action(noop), In("___count"))),
			input:    "___count",
		},
		{
			name:     "unknown field",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(noop), In("___missing"))),
			input:    "___missing",
		},
		{
			name:     "read-only field declared mutable",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(noop), Ref("___name"))),
			input:    "___name",
		},
		{
			name:     "alias for undeclared input",
			original: withResult,
			patch: prefix(Hook{
				Name:    "p",
				Inputs:  []Input{In("val")},
				Aliases: map[string]string{"other": "val"},
				Fn:      Action(noop),
			}),
			input: "other",
		},
		{
			name:     "alias to unknown parameter",
			original: withResult,
			patch: prefix(Hook{
				Name:    "p",
				Inputs:  []Input{In("value")},
				Aliases: map[string]string{"value": "nope"},
				Fn:      Action(noop),
			}),
			input: "value",
		},
		{
			name:     "transpiler with inputs",
			original: withResult,
			patch: transpiler(hook("t", 0, Transpiler(func(next contracts.Body) contracts.Body { return next }),
				In("val"))),
			input: "val",
		},
		{
			name:     "nil function",
			original: withResult,
			patch:    prefix(hook("p", 0, nil)),
		},
		{
			name:     "typed nil function",
			original: withResult,
			patch:    prefix(hook("p", 0, Action(nil))),
		},
		{
			name:     "unsupported function shape",
			original: withResult,
			patch:    prefix(hook("p", 0, func() {})),
		},
		{
			name:     "gate as postfix",
			original: withResult,
			patch:    postfix(hook("p", 0, Gate(func(*Frame) (bool, error) { return true, nil }))),
		},
		{
			name:     "replacer as prefix",
			original: withResult,
			patch:    prefix(hook("p", 0, Replacer(noop))),
		},
		{
			name:     "action as transpiler",
			original: withResult,
			patch:    transpiler(hook("t", 0, Action(noop))),
		},
		{
			name:     "role all",
			original: withResult,
			patch:    Patch{Role: contracts.All, Hook: hook("p", 0, Action(noop))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bind(tt.original, fields, tt.patch)
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrBinding)

			var be *contracts.BindingError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.original.Key(), be.Original)
			assert.Equal(t, tt.patch.Hook.Name, be.Hook)
			assert.Equal(t, tt.input, be.Input)
		})
	}
}

func TestBindResolvesInputs(t *testing.T) {
	fields := fieldTable{
		"Widget.count": {Get: func(any) any { return 0 }, Set: func(any, any) {}},
	}
	original := newMethod("string", stringParam("a"), stringParam("b"))

	bh, err := bind(original, fields, postfix(Hook{
		Name: "p",
		Inputs: []Input{
			In("b"),
			Ref("first"),
			Ref("___count"),
			Ref(ResultInput),
			In(ExceptionInput),
			In(StateInput),
			In(InstanceInput),
		},
		Aliases: map[string]string{"first": "a"},
		Fn:      Action(noop),
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, bh.args["b"].index)
	assert.False(t, bh.args["b"].mutable)
	assert.Equal(t, 0, bh.args["first"].index)
	assert.True(t, bh.args["first"].mutable)
	assert.True(t, bh.fields["___count"].mutable)
	assert.True(t, bh.tokens[bindResult].mutable)
	assert.Contains(t, bh.tokens, bindState)
	assert.Contains(t, bh.tokens, bindInstance)
	assert.True(t, bh.faultAware)
}

func TestBindUnnamedFunctionShapes(t *testing.T) {
	original := newMethod("string")

	bh, err := bind(original, nil, prefix(hook("p", 0, func(*Frame) error { return nil })))
	require.NoError(t, err)
	assert.Equal(t, kindAction, bh.kind)

	bh, err = bind(original, nil, prefix(hook("g", 0, func(*Frame) (bool, error) { return true, nil })))
	require.NoError(t, err)
	assert.Equal(t, kindGate, bh.kind)

	bh, err = bind(original, nil, finalizer(hook("r", 0, Replacer(noop))))
	require.NoError(t, err)
	assert.Equal(t, kindReplacer, bh.kind)
}

func TestCompileJoinsBindingErrors(t *testing.T) {
	original := newMethod("", stringParam("val"))
	body := func(any, []any) (any, error) { return nil, nil }

	_, err := Compile(original, body, nil, attach(
		prefix(hook("bad-prefix", 0, Action(noop), In("missing"))),
		postfix(hook("good", 0, Action(noop), In("val"))),
		postfix(hook("bad-postfix", 0, Action(noop), In(ResultInput))),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrBinding)
	assert.Contains(t, err.Error(), "bad-prefix")
	assert.Contains(t, err.Error(), "bad-postfix")
	assert.NotContains(t, err.Error(), `"good"`)
}

func TestCompileRejectsNilTranspiledBody(t *testing.T) {
	original := newMethod("string")
	body := func(any, []any) (any, error) { return "ok", nil }

	_, err := Compile(original, body, nil, attach(
		transpiler(hook("broken", 0, Transpiler(func(contracts.Body) contracts.Body { return nil }))),
	))

	var be *contracts.BindingError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, contracts.Transpiler, be.Role)
	assert.Equal(t, "broken", be.Hook)
}

func TestCompileRequiresOriginalAndBody(t *testing.T) {
	_, err := Compile(nil, func(any, []any) (any, error) { return nil, nil }, nil, nil)
	assert.Error(t, err)

	_, err = Compile(newMethod(""), nil, nil, nil)
	assert.Error(t, err)
}
