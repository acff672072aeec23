package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/glimte/detour-go/contracts"
)

// TypeInfo describes an owner type and the private fields interceptors may bind to
type TypeInfo struct {
	Name   string
	Fields map[string]contracts.Field
}

// installed is the body a slot currently dispatches to
type installed struct {
	body    contracts.Body
	patched bool
}

type slot struct {
	ref      *contracts.MethodRef
	original contracts.Body
	active   atomic.Pointer[installed]
}

// Registry maps method keys to originals and their installed bodies
type Registry struct {
	types   map[string]*TypeInfo
	methods map[string]*slot
	byName  map[string][]*slot
	mu      sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		types:   make(map[string]*TypeInfo),
		methods: make(map[string]*slot),
		byName:  make(map[string][]*slot),
	}
}

// RegisterType registers an owner type with its field accessors
func (r *Registry) RegisterType(info TypeInfo) error {
	if info.Name == "" {
		return fmt.Errorf("type name cannot be empty")
	}

	for name, f := range info.Fields {
		if f.Get == nil {
			return fmt.Errorf("field %s.%s has no getter", info.Name, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[info.Name]; exists {
		return fmt.Errorf("%w: type %s", contracts.ErrAlreadyRegistered, info.Name)
	}

	fields := make(map[string]contracts.Field, len(info.Fields))
	for name, f := range info.Fields {
		fields[name] = f
	}
	r.types[info.Name] = &TypeInfo{Name: info.Name, Fields: fields}

	return nil
}

// RegisterMethod registers an original method body. The owner type is created
// implicitly when it has not been registered. The returned MethodRef is the
// registry's own copy and is the handle to patch against.
func (r *Registry) RegisterMethod(ref *contracts.MethodRef, body contracts.Body) (*contracts.MethodRef, error) {
	if ref == nil {
		return nil, fmt.Errorf("method reference cannot be nil")
	}
	if ref.Owner == "" || ref.Name == "" {
		return nil, fmt.Errorf("method reference needs an owner and a name")
	}
	if body == nil {
		return nil, fmt.Errorf("method %s has no body", ref.Key())
	}

	seen := make(map[string]bool, len(ref.Params))
	for _, p := range ref.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("method %s has an unnamed parameter", ref.Key())
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("method %s declares parameter %s twice", ref.Key(), p.Name)
		}
		seen[p.Name] = true
	}

	own := ref.Clone()
	key := own.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.methods[key]; exists {
		return nil, fmt.Errorf("%w: method %s", contracts.ErrAlreadyRegistered, key)
	}

	if _, exists := r.types[own.Owner]; !exists {
		r.types[own.Owner] = &TypeInfo{Name: own.Owner, Fields: map[string]contracts.Field{}}
	}

	s := &slot{ref: own, original: body}
	s.active.Store(&installed{body: body})

	r.methods[key] = s
	nameKey := own.Owner + "." + own.Name
	r.byName[nameKey] = append(r.byName[nameKey], s)

	return own, nil
}

// Resolve finds a registered method. A nil params slice leaves the signature
// unspecified and requires exactly one overload; a non-nil slice must match
// the parameter types exactly.
func (r *Registry) Resolve(owner, name string, params []string) (*contracts.MethodRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overloads := r.byName[owner+"."+name]
	if len(overloads) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", contracts.ErrMethodNotFound, owner, name)
	}

	if params == nil {
		if len(overloads) > 1 {
			return nil, fmt.Errorf("%w: %s.%s has %d overloads", contracts.ErrAmbiguousMethod, owner, name, len(overloads))
		}
		return overloads[0].ref, nil
	}

	for _, s := range overloads {
		if s.ref.Matches(params) {
			return s.ref, nil
		}
	}

	return nil, fmt.Errorf("%w: %s.%s with signature (%v)", contracts.ErrMethodNotFound, owner, name, params)
}

// Type returns the registered owner type
func (r *Registry) Type(name string) (*TypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.types[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contracts.ErrTypeNotFound, name)
	}
	return t, nil
}

// Field implements contracts.FieldResolver
func (r *Registry) Field(owner, name string) (contracts.Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.types[owner]
	if !exists {
		return contracts.Field{}, false
	}
	f, ok := t.Fields[name]
	return f, ok
}

// Original returns the unpatched body of a method
func (r *Registry) Original(ref *contracts.MethodRef) (contracts.Body, error) {
	s, err := r.slot(ref)
	if err != nil {
		return nil, err
	}
	return s.original, nil
}

// Install replaces the body a method dispatches to
func (r *Registry) Install(ref *contracts.MethodRef, body contracts.Body) error {
	if body == nil {
		return fmt.Errorf("cannot install a nil body for %s", ref)
	}
	s, err := r.slot(ref)
	if err != nil {
		return err
	}
	s.active.Store(&installed{body: body, patched: true})
	return nil
}

// Revert restores the original body of a method
func (r *Registry) Revert(ref *contracts.MethodRef) error {
	s, err := r.slot(ref)
	if err != nil {
		return err
	}
	if !s.active.Load().patched {
		return fmt.Errorf("%w: %s", contracts.ErrNotPatched, ref.Key())
	}
	s.active.Store(&installed{body: s.original})
	return nil
}

// IsPatched reports whether a synthesized body is installed for the method
func (r *Registry) IsPatched(ref *contracts.MethodRef) bool {
	s, err := r.slot(ref)
	if err != nil {
		return false
	}
	return s.active.Load().patched
}

// Invoke calls the body currently installed for the method
func (r *Registry) Invoke(ref *contracts.MethodRef, instance any, args ...any) (any, error) {
	m, err := r.Method(ref)
	if err != nil {
		return nil, err
	}
	return m.Call(instance, args...)
}

// Method returns a call handle for a registered method. Calls through the
// handle always reach the currently installed body without locking.
func (r *Registry) Method(ref *contracts.MethodRef) (*Method, error) {
	s, err := r.slot(ref)
	if err != nil {
		return nil, err
	}
	return &Method{s: s}, nil
}

// Method is a resolved call handle
type Method struct {
	s *slot
}

// Ref returns the registered method reference
func (m *Method) Ref() *contracts.MethodRef {
	return m.s.ref
}

// Call invokes the installed body
func (m *Method) Call(instance any, args ...any) (any, error) {
	if len(args) != len(m.s.ref.Params) {
		return nil, fmt.Errorf("%w: %s expects %d, got %d",
			contracts.ErrArgumentCount, m.s.ref.Key(), len(m.s.ref.Params), len(args))
	}
	return m.s.active.Load().body(instance, args)
}

// Methods returns every registered method ordered by key
func (r *Registry) Methods() []*contracts.MethodRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]*contracts.MethodRef, 0, len(r.methods))
	for _, s := range r.methods {
		refs = append(refs, s.ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Key() < refs[j].Key()
	})
	return refs
}

func (r *Registry) slot(ref *contracts.MethodRef) (*slot, error) {
	if ref == nil {
		return nil, fmt.Errorf("method reference cannot be nil")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.methods[ref.Key()]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contracts.ErrMethodNotFound, ref.Key())
	}
	return s, nil
}
