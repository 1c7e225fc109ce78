/*
Package engine declares the media execution engine as the topology core
consumes it. The engine owns nodes and pads, performs the actual media work
and reports two kinds of runtime events:

  - pad-added, when a node starts producing a Sometimes output;
  - format, when the data format flowing through a pad becomes known.

Both may be delivered on any goroutine, concurrently across nodes, and are
never delivered synchronously from inside RequestPad or Connect. Handlers
must run to completion quickly and must not block.

The in-memory implementation in package memengine exercises this contract in
tests and in dry runs.
*/
package engine
