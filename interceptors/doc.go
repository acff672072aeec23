// Package interceptors is the interception-composition engine.
//
// Given an original method body and the hooks attached to it, Compile binds
// every hook's declared inputs, orders the hooks and returns a Dispatcher
// whose Invoke replaces the original. Each call runs through:
//   - Prefixing: prefixes by priority; a Gate returning false, or any prefix
//     fault, skips the remaining prefixes and the original
//   - Original: the (possibly transpiled) body with the live arguments
//   - Postfixing: postfixes by priority; skipped while a fault is in flight
//     unless they declare __exception
//   - Finalizing: every finalizer in attachment order, unconditionally
//   - Done: the in-flight exception is returned unchanged, otherwise the result
//
// Faults are not unwound: a fault becomes the in-flight exception and is
// threaded through the remaining stages, where finalizers may observe, clear
// or replace it.
//
// Example usage:
//
//	prefix := interceptors.Hook{
//		Name:     "audit",
//		Priority: contracts.High,
//		Inputs:   []interceptors.Input{interceptors.Ref("val")},
//		Fn: interceptors.Action(func(f *interceptors.Frame) error {
//			f.SetArg("val", f.Arg("val").(string)+",audited")
//			return nil
//		}),
//	}
//
//	d, err := interceptors.Compile(original, body, fields, []interceptors.Patch{
//		{Role: contracts.Prefix, Index: 0, Hook: prefix},
//	})
//	result, err := d.Invoke(instance, []any{"test"})
//
// Finalizers come in two shapes. An Action finalizer has no opinion about
// the exception unless it returns one of its own. A Replacer finalizer's
// return value becomes the in-flight exception, so returning nil suppresses
// whatever was in flight.
//
// Ready-made hooks cover common uses: ShortCircuit and Caching answer calls
// without the original, Retry and CircuitBreaker guard it, and When makes any
// hook conditional on the arguments. LoggingObserver and MetricsObserver
// report pipeline steps through WithObserver.
package interceptors
