// Package memengine provides a thread-safe, in-memory implementation of the
// engine.Engine interface. It moves no media. Nodes, pads and properties
// follow the catalog, and runtime events are injected with EmitPad and
// NegotiateFormat, so the topology core can be exercised without a real
// media framework.
package memengine
