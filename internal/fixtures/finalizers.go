package fixtures

import (
	"context"
	"errors"
	"fmt"

	"github.com/glimte/detour-go/contracts"
	"github.com/glimte/detour-go/interceptors"
	"github.com/glimte/detour-go/patching"
	"github.com/glimte/detour-go/registry"
)

// OriginalError is the fault thrown by the throwing originals
type OriginalError struct{}

func (*OriginalError) Error() string { return "original exception" }

// ReplacedError is the fault returned by the replacing finalizers
type ReplacedError struct{}

func (*ReplacedError) Error() string { return "replaced exception" }

const (
	originalResult    = "OriginalResult"
	replacementResult = "ReplacementResult"
)

// OriginalKind selects the original a finalizer scenario patches
type OriginalKind int

const (
	NoThrowingVoidMethod OriginalKind = iota
	ThrowingVoidMethod
	NoThrowingStringReturningMethod
	ThrowingStringReturningMethod
)

func (k OriginalKind) String() string {
	switch k {
	case NoThrowingVoidMethod:
		return "NoThrowingVoidMethod"
	case ThrowingVoidMethod:
		return "ThrowingVoidMethod"
	case NoThrowingStringReturningMethod:
		return "NoThrowingStringReturningMethod"
	case ThrowingStringReturningMethod:
		return "ThrowingStringReturningMethod"
	default:
		return fmt.Sprintf("OriginalKind(%d)", int(k))
	}
}

func (k OriginalKind) ref() *contracts.MethodRef {
	ref := &contracts.MethodRef{Owner: "FinalizerPatches", Name: k.String(), Static: true}
	if k == NoThrowingStringReturningMethod || k == ThrowingStringReturningMethod {
		ref.Returns = "string"
	}
	return ref
}

func (k OriginalKind) body() contracts.Body {
	return func(any, []any) (any, error) {
		switch k {
		case ThrowingVoidMethod, ThrowingStringReturningMethod:
			return nil, &OriginalError{}
		case NoThrowingStringReturningMethod:
			return originalResult, nil
		default:
			return nil, nil
		}
	}
}

// FinalizerKind selects the finalizer a scenario attaches
type FinalizerKind int

const (
	EmptyFinalizer FinalizerKind = iota
	EmptyFinalizerWithExceptionArg
	FinalizerReturningNull
	FinalizerReturningException
	FinalizerReturningNullAndChangingResult
	FinalizerReturningExceptionAndChangingResult
)

func (k FinalizerKind) String() string {
	switch k {
	case EmptyFinalizer:
		return "EmptyFinalizer"
	case EmptyFinalizerWithExceptionArg:
		return "EmptyFinalizerWithExceptionArg"
	case FinalizerReturningNull:
		return "FinalizerReturningNull"
	case FinalizerReturningException:
		return "FinalizerReturningException"
	case FinalizerReturningNullAndChangingResult:
		return "FinalizerReturningNullAndChangingResult"
	case FinalizerReturningExceptionAndChangingResult:
		return "FinalizerReturningExceptionAndChangingResult"
	default:
		return fmt.Sprintf("FinalizerKind(%d)", int(k))
	}
}

func (k FinalizerKind) hook(obs *Observation) interceptors.Hook {
	h := interceptors.Hook{Name: k.String()}
	seeException := func(f *interceptors.Frame) {
		obs.ExceptionSeen = true
		obs.ExceptionInput = f.Exception()
	}

	switch k {
	case EmptyFinalizer:
		h.Fn = interceptors.Action(func(*interceptors.Frame) error {
			obs.Finalized = true
			return nil
		})
	case EmptyFinalizerWithExceptionArg:
		h.Inputs = []interceptors.Input{interceptors.In(interceptors.ExceptionInput)}
		h.Fn = interceptors.Action(func(f *interceptors.Frame) error {
			obs.Finalized = true
			seeException(f)
			return nil
		})
	case FinalizerReturningNull:
		h.Fn = interceptors.Replacer(func(*interceptors.Frame) error {
			obs.Finalized = true
			return nil
		})
	case FinalizerReturningException:
		h.Inputs = []interceptors.Input{interceptors.In(interceptors.ExceptionInput)}
		h.Fn = interceptors.Replacer(func(f *interceptors.Frame) error {
			obs.Finalized = true
			seeException(f)
			return &ReplacedError{}
		})
	case FinalizerReturningNullAndChangingResult:
		h.Inputs = []interceptors.Input{interceptors.Ref(interceptors.ResultInput)}
		h.Fn = interceptors.Replacer(func(f *interceptors.Frame) error {
			obs.Finalized = true
			f.SetResult(replacementResult)
			return nil
		})
	case FinalizerReturningExceptionAndChangingResult:
		h.Inputs = []interceptors.Input{interceptors.Ref(interceptors.ResultInput)}
		h.Fn = interceptors.Replacer(func(f *interceptors.Frame) error {
			obs.Finalized = true
			f.SetResult(replacementResult)
			return &ReplacedError{}
		})
	}
	return h
}

// Fault is the exception a caller should see
type Fault int

const (
	NoFault Fault = iota
	OriginalFault
	ReplacedFault
)

// InputKind is what a finalizer should see through __exception
type InputKind int

const (
	// NotDeclared means the finalizer does not read __exception
	NotDeclared InputKind = iota
	NullInput
	OriginalInput
)

// ResultKind is what a caller should get back
type ResultKind int

const (
	NoResult ResultKind = iota
	NullResult
	OriginalResult
	ReplacementResult
)

// Expectation is the outcome a scenario must produce
type Expectation struct {
	Thrown Fault
	Input  InputKind
	Result ResultKind
}

// Observation is what actually happened during one scenario run
type Observation struct {
	Finalized      bool
	Thrown         error
	Result         any
	HasResult      bool
	ExceptionSeen  bool
	ExceptionInput error
}

// Scenario is one original and finalizer combination
type Scenario struct {
	Original  OriginalKind
	Finalizer FinalizerKind
	Want      Expectation
}

// Name returns "<original>/<finalizer>"
func (s Scenario) Name() string {
	return s.Original.String() + "/" + s.Finalizer.String()
}

// FinalizerScenarios is the full matrix. Result-changing finalizers only apply
// to string-returning originals.
var FinalizerScenarios = []Scenario{
	{NoThrowingVoidMethod, EmptyFinalizer, Expectation{NoFault, NotDeclared, NoResult}},
	{NoThrowingVoidMethod, EmptyFinalizerWithExceptionArg, Expectation{NoFault, NullInput, NoResult}},
	{NoThrowingVoidMethod, FinalizerReturningNull, Expectation{NoFault, NotDeclared, NoResult}},
	{NoThrowingVoidMethod, FinalizerReturningException, Expectation{ReplacedFault, NullInput, NoResult}},

	{ThrowingVoidMethod, EmptyFinalizer, Expectation{OriginalFault, NotDeclared, NoResult}},
	{ThrowingVoidMethod, EmptyFinalizerWithExceptionArg, Expectation{OriginalFault, OriginalInput, NoResult}},
	{ThrowingVoidMethod, FinalizerReturningNull, Expectation{NoFault, NotDeclared, NoResult}},
	{ThrowingVoidMethod, FinalizerReturningException, Expectation{ReplacedFault, OriginalInput, NoResult}},

	{NoThrowingStringReturningMethod, EmptyFinalizer, Expectation{NoFault, NotDeclared, OriginalResult}},
	{NoThrowingStringReturningMethod, EmptyFinalizerWithExceptionArg, Expectation{NoFault, NullInput, OriginalResult}},
	{NoThrowingStringReturningMethod, FinalizerReturningNull, Expectation{NoFault, NotDeclared, OriginalResult}},
	{NoThrowingStringReturningMethod, FinalizerReturningException, Expectation{ReplacedFault, NullInput, NoResult}},
	{NoThrowingStringReturningMethod, FinalizerReturningNullAndChangingResult, Expectation{NoFault, NotDeclared, ReplacementResult}},
	{NoThrowingStringReturningMethod, FinalizerReturningExceptionAndChangingResult, Expectation{ReplacedFault, NotDeclared, NoResult}},

	{ThrowingStringReturningMethod, EmptyFinalizer, Expectation{OriginalFault, NotDeclared, NoResult}},
	{ThrowingStringReturningMethod, EmptyFinalizerWithExceptionArg, Expectation{OriginalFault, OriginalInput, NoResult}},
	{ThrowingStringReturningMethod, FinalizerReturningNull, Expectation{NoFault, NotDeclared, NullResult}},
	{ThrowingStringReturningMethod, FinalizerReturningException, Expectation{ReplacedFault, OriginalInput, NoResult}},
	{ThrowingStringReturningMethod, FinalizerReturningNullAndChangingResult, Expectation{NoFault, NotDeclared, ReplacementResult}},
	{ThrowingStringReturningMethod, FinalizerReturningExceptionAndChangingResult, Expectation{ReplacedFault, NotDeclared, NoResult}},
}

// RunScenario patches a fresh original with the scenario's finalizer, calls it
// once and unpatches it again
func RunScenario(ctx context.Context, s Scenario, opts ...patching.StoreOption) (Observation, error) {
	var obs Observation

	methods := registry.New()
	ref, err := methods.RegisterMethod(s.Original.ref(), s.Original.body())
	if err != nil {
		return obs, err
	}

	store := patching.NewStore(methods, opts...)
	processor := patching.NewProcessor(store, "test", ref).AddFinalizer(s.Finalizer.hook(&obs))
	if _, err := processor.Patch(ctx); err != nil {
		return obs, fmt.Errorf("failed to patch %s: %w", s.Name(), err)
	}

	result, thrown := methods.Invoke(ref, nil)
	obs.Thrown = thrown
	if thrown == nil && !ref.IsVoid() {
		obs.HasResult = true
		obs.Result = result
	}

	if _, err := store.RemoveOwner(ctx, "test"); err != nil {
		return obs, fmt.Errorf("failed to unpatch %s: %w", s.Name(), err)
	}
	return obs, nil
}

// Check compares an observation with the scenario's expectation
func (s Scenario) Check(obs Observation) error {
	var errs []error
	if !obs.Finalized {
		errs = append(errs, errors.New("finalizer did not run"))
	}

	var original *OriginalError
	var replaced *ReplacedError
	switch s.Want.Thrown {
	case NoFault:
		if obs.Thrown != nil {
			errs = append(errs, fmt.Errorf("unexpected exception: %v", obs.Thrown))
		}
	case OriginalFault:
		if !errors.As(obs.Thrown, &original) {
			errs = append(errs, fmt.Errorf("want the original exception, got %v", obs.Thrown))
		}
	case ReplacedFault:
		if !errors.As(obs.Thrown, &replaced) {
			errs = append(errs, fmt.Errorf("want the replaced exception, got %v", obs.Thrown))
		}
	}

	switch s.Want.Input {
	case NotDeclared:
		if obs.ExceptionSeen {
			errs = append(errs, errors.New("finalizer read __exception without declaring it"))
		}
	case NullInput:
		if !obs.ExceptionSeen || obs.ExceptionInput != nil {
			errs = append(errs, fmt.Errorf("want a nil __exception, got %v", obs.ExceptionInput))
		}
	case OriginalInput:
		if !obs.ExceptionSeen || !errors.As(obs.ExceptionInput, &original) {
			errs = append(errs, fmt.Errorf("want the original __exception, got %v", obs.ExceptionInput))
		}
	}

	switch s.Want.Result {
	case NoResult:
		if obs.HasResult {
			errs = append(errs, fmt.Errorf("unexpected result %v", obs.Result))
		}
	case NullResult:
		if !obs.HasResult || obs.Result != nil {
			errs = append(errs, fmt.Errorf("want a nil result, got %v", obs.Result))
		}
	case OriginalResult:
		if !obs.HasResult || obs.Result != originalResult {
			errs = append(errs, fmt.Errorf("want %q, got %v", originalResult, obs.Result))
		}
	case ReplacementResult:
		if !obs.HasResult || obs.Result != replacementResult {
			errs = append(errs, fmt.Errorf("want %q, got %v", replacementResult, obs.Result))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", s.Name(), errors.Join(errs...))
	}
	return nil
}

func (f Fault) String() string {
	switch f {
	case NoFault:
		return "none"
	case OriginalFault:
		return "original"
	case ReplacedFault:
		return "replaced"
	default:
		return fmt.Sprintf("Fault(%d)", int(f))
	}
}

func (k InputKind) String() string {
	switch k {
	case NotDeclared:
		return "-"
	case NullInput:
		return "nil"
	case OriginalInput:
		return "original"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

func (k ResultKind) String() string {
	switch k {
	case NoResult:
		return "-"
	case NullResult:
		return "nil"
	case OriginalResult:
		return originalResult
	case ReplacementResult:
		return replacementResult
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}
