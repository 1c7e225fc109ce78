// Package diag carries the non-fatal conditions of a running graph: links
// still waiting for their pad, terminators attached to unclaimed outputs,
// splice outcomes. None of them abort a graph; they are recorded so an
// operator can see why a pad carries no data.
package diag
