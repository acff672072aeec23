// Package patching owns the patch descriptors of every patched original.
//
// A Store attaches hooks to originals registered in a registry.Registry,
// compiles them into an interceptors.Dispatcher and installs it in place of
// the original. Administrative operations (apply, remove, revert) are
// serialized by a single lock; calls to patched methods never take it.
//
// Hooks can be attached with a Processor:
//
//	_, err := patching.NewProcessor(store, "my.owner", original).
//		AddPrefix(prefix).
//		AddFinalizer(finalizer).
//		Patch(ctx)
//
// or declared in a YAML manifest that names hooks from a Catalog:
//
//	owner: my.owner
//	patches:
//	  - target: {type: MultiplePatches1, method: TestMethod, params: [string]}
//	    prefix:
//	      - hook: MultiplePatches1Patch.Fix2
//	        priority: high
//
// Every operation is recorded in an in-memory journal and, when an EventSink
// is configured, published as a LifecycleEvent.
package patching
