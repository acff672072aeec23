// Package fixtures is the interception test corpus: originals registered in a
// registry, the hooks that patch them, and the finalizer scenario matrix.
//
// Fixture code never writes to package state. Everything a fixture observes
// goes to an injected Recorder, so corpora can run in parallel.
package fixtures
