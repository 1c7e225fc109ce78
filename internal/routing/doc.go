// Package routing analyses a routing matrix that maps source channels onto
// destination channels and decides, per destination, whether it is fed
// directly, needs an aggregator, or needs a filler, and, per source, whether
// it needs a distributor.
//
// The analysis is a pure function of the layout and the matrix. The
// topology compiler consumes the resulting Plan to decide which aggregator,
// distributor and filler nodes to emit.
package routing
