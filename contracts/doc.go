// Package contracts provides the shared vocabulary of the detour interception engine.
//
// This package defines the types every other package agrees on:
//   - MethodRef: Stable, signature-keyed reference to an original method
//   - Body: The executable form of an original or a rewritten method
//   - Field: Load-time accessor for a private field of an owner type
//   - PatchType: The role an interceptor plays (prefix, postfix, transpiler, finalizer)
//   - Priority: Ordering rank for interceptors sharing a role
//
// Faults are plain Go errors. An original or interceptor "throws" by returning a
// non-nil error; the engine threads that error through the remaining pipeline
// stages and hands the caller whatever is in flight at the end, unchanged.
package contracts
