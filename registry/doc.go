// Package registry is the load-time registration table for original methods.
//
// Originals, owner types and their private fields are registered by stable
// string keys instead of being discovered through reflection. The registry
// also holds the currently installed body of every method: installing or
// reverting a patched body is an atomic swap, so invocations never lock.
package registry
