// Package fanout rewrites a link list so that no pad reference feeds more
// than one link. Every multi-consumer source gets one distributor node and
// each original consumer is fed from its own distributor output.
package fanout
