package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodRef(t *testing.T) {
	m := &MethodRef{
		Owner:   "Class14",
		Name:    "Test",
		Params:  []Param{{Name: "s", Type: "string"}, {Name: "p", Type: "pair"}},
		Returns: "bool",
	}

	assert.Equal(t, "Class14.Test(string,pair)", m.Key())
	assert.Equal(t, m.Key(), m.String())
	assert.Equal(t, []string{"string", "pair"}, m.Signature())
	assert.False(t, m.IsVoid())
	assert.Equal(t, 1, m.ParamIndex("p"))
	assert.Equal(t, -1, m.ParamIndex("missing"))
	assert.True(t, m.Matches([]string{"string", "pair"}))
	assert.False(t, m.Matches([]string{"string"}))
	assert.False(t, m.Matches([]string{"pair", "string"}))

	c := m.Clone()
	c.Params[0].Type = "int"
	assert.Equal(t, "string", m.Params[0].Type)

	var nilRef *MethodRef
	assert.Equal(t, "<nil>", nilRef.String())
	assert.True(t, (&MethodRef{Owner: "A", Name: "B"}).IsVoid())
}

func TestBindingError(t *testing.T) {
	err := &BindingError{Original: "Class1.Method1()", Role: Postfix, Hook: "audit", Input: "__result", Reason: "void method has no result"}
	assert.Equal(t, `binding failed: postfix "audit" on Class1.Method1(): input "__result": void method has no result`, err.Error())
	assert.ErrorIs(t, err, ErrBinding)

	wrapped := fmt.Errorf("apply: %w", err)
	var be *BindingError
	require.True(t, errors.As(wrapped, &be))
	assert.Equal(t, "audit", be.Hook)

	noInput := &BindingError{Original: "X.Y()", Role: Prefix, Hook: "h", Reason: "nil hook"}
	assert.Equal(t, `binding failed: prefix "h" on X.Y(): nil hook`, noInput.Error())
}

func TestPanicError(t *testing.T) {
	cause := errors.New("cause")
	pe := &PanicError{Value: cause}
	assert.Equal(t, "panic: cause", pe.Error())
	assert.ErrorIs(t, pe, cause)

	assert.Nil(t, (&PanicError{Value: "text"}).Unwrap())
}
