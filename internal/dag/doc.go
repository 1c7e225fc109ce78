// Package dag holds a small concurrency-safe directed graph of element IDs.
// The flow builder uses it to reject cyclic media links and to instantiate
// elements upstream-first.
package dag
