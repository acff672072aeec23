package interceptors

import (
	"github.com/glimte/detour-go/contracts"
)

// Stage is a pipeline phase
type Stage int

const (
	StagePrefix Stage = iota
	StageOriginal
	StagePostfix
	StageFinalizer
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePrefix:
		return "prefix"
	case StageOriginal:
		return "original"
	case StagePostfix:
		return "postfix"
	case StageFinalizer:
		return "finalizer"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event reports one step of an invocation. Err is the exception in flight
// after the step.
type Event struct {
	Original *contracts.MethodRef
	Stage    Stage
	Hook     string
	Skipped  bool
	Err      error
}

// Observer receives pipeline events. It is called synchronously on the
// invoking goroutine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc is a function adapter for Observer
type ObserverFunc func(ev Event)

// Observe implements Observer
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
