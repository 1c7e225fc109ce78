/*
Package linker turns symbolic links into engine connections.

Resolve handles one link after both of its nodes exist. Each endpoint is
matched against the node's pads in order: an existing pad with the exact
name, a request template that accepts the name, then a request template
whose prefix fits the name (the engine picks the concrete name). An empty
pad name means the node's sole default pad, except that a link into an
aggregator always requests a fresh sink pad.

An output that only appears at runtime (a Sometimes template) is not an
error: the link is parked in the graph's pending table and completed by
HandlePadAdded when the producer emits a matching pad. A new pad that no
pending link or dynamic route claims, and that has no peer, is connected to a
non-blocking discarding terminator so the producer is never back-pressured.

Resolution and dispatch are serialized by one mutex, so a pad that appears
while its link is being deferred is never mistaken for an orphan.
*/
package linker
