// Package registry provides the central "glue" for the block system.
//
// The Registry stores the mapping between the block type names used in flow
// files (e.g., "audiorouter") and the compiled Go code that turns a block's
// parameters into a topology. Modules register themselves at startup; a
// duplicate registration is a programming error and panics.
//
// Compile is the single entry point for turning parameters into a topology:
// it decodes the parameters, runs the block compiler, inserts distributors
// for multi-consumer sources, and rejects topologies with cycles, so a
// compiled topology is always ready to be instantiated.
package registry
