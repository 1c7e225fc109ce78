// Package graph provides the owning context of one live media graph.
//
// # Why Graph Package Exists
//
// Link resolution runs on the control plane while pad-added and format events
// arrive on engine goroutines. Both sides read and write the same state: the
// node registry, the table of links waiting for a pad, the dynamic routes and
// the terminators attached to unclaimed outputs. The Graph owns all of it
// behind one mutex, so several graphs can coexist without package globals.
//
// # Responsibilities
//
//   - **Registry:** CreateNode instantiates on the engine and registers the
//     node under the lock, so an event never observes a half-built node.
//   - **Pending links:** AddPending / ClaimPending keep links keyed by
//     (producer, pattern) in insertion order; the first match wins.
//   - **Dynamic routes:** AddRoute / ClaimRoute hand runtime outputs to the
//     chain splicer.
//   - **Diagnostics:** Emit forwards non-fatal events to the configured sink
//     and keeps recent ones for Diagnostics().
//
// # Lifecycle
//
//  1. **Created** by the flow builder with an engine and diagnostics sink.
//  2. **Populated** while blocks are compiled and links resolved.
//  3. **Mutated** at runtime by pad-added and format callbacks.
//  4. **Torn down** by Teardown, which stops the pipeline and discards pending
//     links without error.
package graph
