// Package caliper is the central runtime of a performance-annotation
// library: an embeddable, process-wide registry that associates
// per-execution-context key/value annotations ("attributes") with the
// call sites and program regions in which they are active.
//
// Other collaborators - samplers, tracers, metadata writers - attach
// through the event hub (Coordinator.Events) and the traversal surface
// (Coordinator.Unpack, Coordinator.ForEachNode, Coordinator.ForEachAttribute)
// to snapshot or traverse that state at any moment, including from
// asynchronous interrupt handlers via TryInstance.
//
// Core Components:
//   - Coordinator: process-wide singleton tying everything together.
//   - AttributeRegistry: interned attribute descriptors.
//   - NodeTree: append-only DAG of annotation nodes.
//   - ContextStore: per-environment active-context map with a global overlay.
//   - EventHub: synchronous fan-out of begin/end/set/query notifications.
//
// Basic Usage:
//
//	co := caliper.Instance()
//	phase := co.CreateAttribute("phase", caliper.TypeString, 0)
//
//	env := co.CurrentEnvironment()
//	co.Begin(env, phase, []byte("init"))
//	defer co.End(env, phase)
//
// Thread Safety:
//
// Coordinator is safe for concurrent use by multiple goroutines.
// TryInstance, GetContext, and accessors on already-created attributes
// and nodes are additionally safe to call from an asynchronous signal
// handler: they never block indefinitely. TryInstance never allocates;
// GetContext does, since it copies the environment and global-overlay
// maps (and the query-hook list, when hooks are registered) before
// encoding.
//
// Resource Cleanup:
//
// The coordinator is a process singleton; there is no explicit
// destructor. Individual components (NodeTree, ContextStore) release
// their memory only at process exit.
package caliper
