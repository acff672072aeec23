package contracts

import (
	"strconv"
	"strings"
)

// PatchType is the role an interceptor plays for an original
type PatchType int

const (
	// All matches every role; only meaningful when removing patches
	All PatchType = iota
	Prefix
	Postfix
	Transpiler
	Finalizer
)

func (t PatchType) String() string {
	switch t {
	case All:
		return "all"
	case Prefix:
		return "prefix"
	case Postfix:
		return "postfix"
	case Transpiler:
		return "transpiler"
	case Finalizer:
		return "finalizer"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Priority ranks interceptors that share a role. Higher runs first.
type Priority int

const (
	Last             Priority = 100
	VeryLow          Priority = 200
	Low              Priority = 300
	LowerThanNormal  Priority = 400
	Normal           Priority = 500
	HigherThanNormal Priority = 600
	High             Priority = 700
	VeryHigh         Priority = 800
	First            Priority = 900
)

var priorityNames = map[string]Priority{
	"last":             Last,
	"verylow":          VeryLow,
	"low":              Low,
	"lowerthannormal":  LowerThanNormal,
	"normal":           Normal,
	"higherthannormal": HigherThanNormal,
	"high":             High,
	"veryhigh":         VeryHigh,
	"first":            First,
}

// String returns the level name, or the number for priorities between levels
func (p Priority) String() string {
	switch p {
	case Last:
		return "last"
	case VeryLow:
		return "very-low"
	case Low:
		return "low"
	case LowerThanNormal:
		return "lower-than-normal"
	case Normal:
		return "normal"
	case HigherThanNormal:
		return "higher-than-normal"
	case High:
		return "high"
	case VeryHigh:
		return "very-high"
	case First:
		return "first"
	default:
		return strconv.Itoa(int(p))
	}
}

// Valid reports whether p lies within [Last, First]
func (p Priority) Valid() bool {
	return p >= Last && p <= First
}

// NormalizePriority maps malformed priorities, including the zero value, to Normal
func NormalizePriority(p Priority) Priority {
	if !p.Valid() {
		return Normal
	}
	return p
}

// ParsePriority accepts a level name ("high", "very-high", "HigherThanNormal")
// or an integer. Malformed input yields Normal and ok=false.
func ParsePriority(s string) (Priority, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Normal, true
	}

	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		return NormalizePriority(p), p.Valid()
	}

	key := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	if p, ok := priorityNames[key]; ok {
		return p, true
	}
	return Normal, false
}
