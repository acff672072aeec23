package interceptors

import (
	"github.com/glimte/detour-go/contracts"
)

// Reserved input names an interceptor may declare besides original parameters
const (
	ResultInput      = "__result"
	ExceptionInput   = "__exception"
	InstanceInput    = "__instance"
	StateInput       = "__state"
	OriginalInput    = "__originalMethod"
	ArgsInput        = "__args"
	RunOriginalInput = "__runOriginal"

	// FieldPrefix introduces a private-field back-reference, e.g. "___count"
	FieldPrefix = "___"
)

// Action is a prefix, postfix or finalizer body. A non-nil error is a fault
// thrown by the interceptor. As a finalizer, returning nil leaves the
// in-flight exception untouched.
type Action func(f *Frame) error

// Gate is a prefix that decides whether the remaining prefixes and the
// original run. Returning false skips them.
type Gate func(f *Frame) (bool, error)

// Replacer is a finalizer whose return value becomes the in-flight exception.
// Returning nil clears whatever was in flight.
type Replacer func(f *Frame) error

// Transpiler rewrites the original body before it is wrapped by the pipeline
type Transpiler func(next contracts.Body) contracts.Body

// Input declares one value an interceptor reads, or writes when Mutable
type Input struct {
	Name    string
	Mutable bool
}

// In declares a read-only input
func In(name string) Input {
	return Input{Name: name}
}

// Ref declares a read-write input
func Ref(name string) Input {
	return Input{Name: name, Mutable: true}
}

// Hook is an interceptor: its identity, ordering rank, declared inputs and body.
//
// Hooks sharing a Name share one __state slot per invocation, which is how a
// prefix hands state to a postfix or finalizer. Aliases maps a declared input
// name to the original parameter (or reserved input) it stands for.
type Hook struct {
	Name     string
	Priority contracts.Priority
	Inputs   []Input
	Aliases  map[string]string
	Fn       any
}

// Patch is one hook attached to an original in a given role
type Patch struct {
	Role  contracts.PatchType
	Owner string
	Index int
	Hook  Hook
}

// hookKind is the capability derived from a hook's Fn at compile time
type hookKind int

const (
	kindAction hookKind = iota
	kindGate
	kindReplacer
	kindTranspiler
)

func kindOf(fn any) (hookKind, bool) {
	switch fn := fn.(type) {
	case Replacer:
		return kindReplacer, fn != nil
	case Action:
		return kindAction, fn != nil
	case func(*Frame) error:
		return kindAction, fn != nil
	case Gate:
		return kindGate, fn != nil
	case func(*Frame) (bool, error):
		return kindGate, fn != nil
	case Transpiler:
		return kindTranspiler, fn != nil
	case func(contracts.Body) contracts.Body:
		return kindTranspiler, fn != nil
	default:
		return 0, false
	}
}

// permitted lists the hook kinds each role accepts
var permitted = map[contracts.PatchType][]hookKind{
	contracts.Prefix:     {kindAction, kindGate},
	contracts.Postfix:    {kindAction},
	contracts.Finalizer:  {kindAction, kindReplacer},
	contracts.Transpiler: {kindTranspiler},
}
