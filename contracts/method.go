package contracts

import (
	"fmt"
	"strings"
)

// Body is the executable form of a method. It receives the receiver (nil for
// static methods) and the positional arguments, and returns the result (nil for
// void methods) or the fault it raised.
type Body func(instance any, args []any) (any, error)

// Param is a named, typed parameter of a method signature
type Param struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// MethodRef identifies an original method by owner, name and parameter types.
// A MethodRef is immutable once it has been registered.
type MethodRef struct {
	Owner   string  `json:"owner" yaml:"owner"`
	Name    string  `json:"name" yaml:"name"`
	Params  []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Returns string  `json:"returns,omitempty" yaml:"returns,omitempty"`
	Static  bool    `json:"static,omitempty" yaml:"static,omitempty"`
}

// Key returns the stable registration key, e.g. "Class14.Test(string,pair)"
func (m *MethodRef) Key() string {
	return fmt.Sprintf("%s.%s(%s)", m.Owner, m.Name, strings.Join(m.Signature(), ","))
}

// String implements fmt.Stringer
func (m *MethodRef) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Key()
}

// Signature returns the parameter types in declaration order
func (m *MethodRef) Signature() []string {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	return types
}

// IsVoid reports whether the method produces no result
func (m *MethodRef) IsVoid() bool {
	return m.Returns == ""
}

// ParamIndex returns the position of the named parameter, or -1
func (m *MethodRef) ParamIndex(name string) int {
	for i, p := range m.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Matches reports whether the parameter types equal the given signature
func (m *MethodRef) Matches(signature []string) bool {
	if len(signature) != len(m.Params) {
		return false
	}
	for i, p := range m.Params {
		if p.Type != signature[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (m *MethodRef) Clone() *MethodRef {
	c := *m
	c.Params = append([]Param(nil), m.Params...)
	return &c
}

// Field gives read and optionally write access to a private field of an owner
// type. A nil Set marks the field read-only.
type Field struct {
	Get func(instance any) any
	Set func(instance any, value any)
}

// ReadOnly reports whether the field cannot be written
func (f Field) ReadOnly() bool {
	return f.Set == nil
}

// FieldResolver looks up registered fields by owner type and field name
type FieldResolver interface {
	Field(owner, name string) (Field, bool)
}
