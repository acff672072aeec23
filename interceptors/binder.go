package interceptors

import (
	"fmt"
	"strings"

	"github.com/glimte/detour-go/contracts"
)

type bindingKind int

const (
	bindArg bindingKind = iota
	bindResult
	bindException
	bindInstance
	bindState
	bindOriginal
	bindArgs
	bindRunOriginal
	bindField
)

var tokenKinds = map[string]bindingKind{
	ResultInput:      bindResult,
	ExceptionInput:   bindException,
	InstanceInput:    bindInstance,
	StateInput:       bindState,
	OriginalInput:    bindOriginal,
	ArgsInput:        bindArgs,
	RunOriginalInput: bindRunOriginal,
}

// readOnlyTokens cannot be declared with Ref
var readOnlyTokens = map[bindingKind]bool{
	bindException:   true,
	bindOriginal:    true,
	bindArgs:        true,
	bindRunOriginal: true,
}

// binding is the resolved source of one declared input
type binding struct {
	kind    bindingKind
	name    string
	index   int
	field   contracts.Field
	mutable bool
}

// boundHook is a patch whose inputs have all been resolved
type boundHook struct {
	Patch
	kind       hookKind
	args       map[string]binding
	fields     map[string]binding
	tokens     map[bindingKind]binding
	faultAware bool
}

// bind resolves every declared input of a patch against the original.
// It fails with a *contracts.BindingError on the first input it cannot
// resolve.
func bind(original *contracts.MethodRef, fields contracts.FieldResolver, p Patch) (*boundHook, error) {
	fail := func(input, format string, args ...any) error {
		return &contracts.BindingError{
			Original: original.Key(),
			Role:     p.Role,
			Hook:     p.Hook.Name,
			Input:    input,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	kinds, ok := permitted[p.Role]
	if !ok {
		return nil, fail("", "role %s cannot be attached", p.Role)
	}

	kind, ok := kindOf(p.Hook.Fn)
	if !ok {
		return nil, fail("", "unsupported or nil hook function %T", p.Hook.Fn)
	}
	if !containsKind(kinds, kind) {
		return nil, fail("", "hook function %T cannot be used as a %s", p.Hook.Fn, p.Role)
	}

	bh := &boundHook{
		Patch:  p,
		kind:   kind,
		args:   make(map[string]binding),
		fields: make(map[string]binding),
		tokens: make(map[bindingKind]binding),
	}

	if kind == kindTranspiler {
		if len(p.Hook.Inputs) > 0 {
			return nil, fail(p.Hook.Inputs[0].Name, "transpilers take no inputs")
		}
		return bh, nil
	}

	declared := make(map[string]bool, len(p.Hook.Inputs))
	for _, in := range p.Hook.Inputs {
		if in.Name == "" {
			return nil, fail("", "input with empty name")
		}
		if declared[in.Name] {
			return nil, fail(in.Name, "declared twice")
		}
		declared[in.Name] = true
	}
	for alias := range p.Hook.Aliases {
		if !declared[alias] {
			return nil, fail(alias, "alias for an input that is not declared")
		}
	}

	for _, in := range p.Hook.Inputs {
		target := in.Name
		if aliased, ok := p.Hook.Aliases[in.Name]; ok {
			target = aliased
		}

		if tk, ok := tokenKinds[target]; ok {
			switch {
			case in.Mutable && readOnlyTokens[tk]:
				return nil, fail(in.Name, "%s is read-only", target)
			case tk == bindResult && original.IsVoid():
				return nil, fail(in.Name, "void method has no result")
			case tk == bindException && p.Role == contracts.Prefix:
				return nil, fail(in.Name, "prefixes run before any exception can exist")
			case tk == bindInstance && original.Static:
				return nil, fail(in.Name, "static method has no instance")
			}
			bh.tokens[tk] = binding{kind: tk, name: in.Name, mutable: in.Mutable}
			if tk == bindException {
				bh.faultAware = true
			}
			continue
		}

		if strings.HasPrefix(target, FieldPrefix) {
			fieldName := strings.TrimPrefix(target, FieldPrefix)
			if original.Static {
				return nil, fail(in.Name, "static method has no instance fields")
			}
			if fields == nil {
				return nil, fail(in.Name, "no field table available")
			}
			f, ok := fields.Field(original.Owner, fieldName)
			if !ok {
				return nil, fail(in.Name, "%s has no field %s", original.Owner, fieldName)
			}
			if in.Mutable && f.ReadOnly() {
				return nil, fail(in.Name, "field %s is read-only", fieldName)
			}
			bh.fields[in.Name] = binding{kind: bindField, name: in.Name, field: f, mutable: in.Mutable}
			continue
		}

		idx := original.ParamIndex(target)
		if idx < 0 {
			return nil, fail(in.Name, "no parameter, field or reserved input named %s", target)
		}
		bh.args[in.Name] = binding{kind: bindArg, name: in.Name, index: idx, mutable: in.Mutable}
	}

	return bh, nil
}

func containsKind(kinds []hookKind, k hookKind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}
