package interceptors

import (
	"fmt"
	"strings"
	"sync"

	"github.com/glimte/detour-go/contracts"
)

// ShortCircuitFunc decides from a copy of the live arguments whether a call is answered
// without running the original. ok=true supplies result as the return value.
type ShortCircuitFunc func(args []any) (result any, ok bool, err error)

// ShortCircuit builds a gate prefix that answers calls itself when fn says so.
// The original must return a value.
func ShortCircuit(name string, priority contracts.Priority, fn ShortCircuitFunc) Hook {
	return Hook{
		Name:     name,
		Priority: priority,
		Inputs:   []Input{In(ArgsInput), Ref(ResultInput)},
		Fn: Gate(func(f *Frame) (bool, error) {
			result, ok, err := fn(f.Args())
			if err != nil {
				return false, err
			}
			if ok {
				f.SetResult(result)
				return false, nil
			}
			return true, nil
		}),
	}
}

// ResultCache stores results of intercepted calls by key
type ResultCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// KeyFunc derives a cache key from a copy of the live arguments
type KeyFunc func(args []any) string

// ArgsKey joins the formatted arguments
func ArgsKey(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%#v", a)
	}
	return strings.Join(parts, "|")
}

// Caching builds a prefix and a postfix that memoize the original. The prefix
// answers from the cache on a hit; the postfix stores the raw result of calls
// that actually ran the original and did not fault, before any other postfix
// sees it, so hits and misses pass through the same postfixes.
func Caching(name string, cache ResultCache, key KeyFunc) (prefix, postfix Hook) {
	if key == nil {
		key = ArgsKey
	}

	prefix = Hook{
		Name:     name,
		Priority: contracts.First,
		Inputs:   []Input{In(ArgsInput), Ref(ResultInput), In(StateInput)},
		Fn: Gate(func(f *Frame) (bool, error) {
			k := key(f.Args())
			if v, ok := cache.Get(k); ok {
				f.SetResult(v)
				return false, nil
			}
			f.SetState(k)
			return true, nil
		}),
	}

	postfix = Hook{
		Name:     name,
		Priority: contracts.First,
		Inputs:   []Input{In(ResultInput), In(StateInput), In(RunOriginalInput)},
		Fn: Action(func(f *Frame) error {
			k, ok := f.State().(string)
			if ok && f.RunOriginal() {
				cache.Set(k, f.Result())
			}
			return nil
		}),
	}

	return prefix, postfix
}

// MapCache is a concurrency-safe in-memory ResultCache
type MapCache struct {
	entries sync.Map
}

// NewMapCache creates an empty cache
func NewMapCache() *MapCache {
	return &MapCache{}
}

// Get implements ResultCache
func (c *MapCache) Get(key string) (any, bool) {
	return c.entries.Load(key)
}

// Set implements ResultCache
func (c *MapCache) Set(key string, value any) {
	c.entries.Store(key, value)
}
