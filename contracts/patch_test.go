package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchTypeString(t *testing.T) {
	assert.Equal(t, "all", All.String())
	assert.Equal(t, "prefix", Prefix.String())
	assert.Equal(t, "postfix", Postfix.String())
	assert.Equal(t, "transpiler", Transpiler.String())
	assert.Equal(t, "finalizer", Finalizer.String())
	assert.Equal(t, "unknown(9)", PatchType(9).String())
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		in       Priority
		expected Priority
	}{
		{0, Normal},
		{-5, Normal},
		{99, Normal},
		{901, Normal},
		{Last, Last},
		{First, First},
		{450, 450},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizePriority(tt.in), "priority %d", tt.in)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in       string
		expected Priority
		ok       bool
	}{
		{"", Normal, true},
		{"high", High, true},
		{"  High ", High, true},
		{"very-high", VeryHigh, true},
		{"HigherThanNormal", HigherThanNormal, true},
		{"lower_than_normal", LowerThanNormal, true},
		{"first", First, true},
		{"last", Last, true},
		{"650", 650, true},
		{"0", Normal, false},
		{"10000", Normal, false},
		{"urgent", Normal, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, ok := ParsePriority(tt.in)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "very-high", VeryHigh.String())
	assert.Equal(t, "normal", Normal.String())
	assert.Equal(t, "650", Priority(650).String())

	for _, p := range []Priority{Last, VeryLow, Low, LowerThanNormal, Normal, HigherThanNormal, High, VeryHigh, First} {
		parsed, ok := ParsePriority(p.String())
		assert.True(t, ok, p.String())
		assert.Equal(t, p, parsed)
	}
}
