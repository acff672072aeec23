package contracts

import (
	"errors"
	"fmt"
)

var (
	// Registry errors
	ErrMethodNotFound    = errors.New("registry: method not found")
	ErrAmbiguousMethod   = errors.New("registry: ambiguous method")
	ErrTypeNotFound      = errors.New("registry: type not found")
	ErrAlreadyRegistered = errors.New("registry: already registered")
	ErrArgumentCount     = errors.New("registry: wrong number of arguments")
	ErrNotPatched        = errors.New("registry: method is not patched")

	// ErrBinding matches every *BindingError
	ErrBinding = errors.New("binding failed")
)

// BindingError reports an interceptor input that cannot be resolved against
// the original it is attached to. It is raised when the patch is applied,
// never while the patched method runs.
type BindingError struct {
	Original string
	Role     PatchType
	Hook     string
	Input    string
	Reason   string
}

func (e *BindingError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("binding failed: %s %q on %s: input %q: %s",
			e.Role, e.Hook, e.Original, e.Input, e.Reason)
	}
	return fmt.Sprintf("binding failed: %s %q on %s: %s", e.Role, e.Hook, e.Original, e.Reason)
}

// Is lets errors.Is(err, ErrBinding) match
func (e *BindingError) Is(target error) bool {
	return target == ErrBinding
}

// PanicError carries a panic recovered from an original or an interceptor
// while it travels through the pipeline as the in-flight fault.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
