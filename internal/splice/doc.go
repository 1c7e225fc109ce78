/*
Package splice inserts format-specific adapter chains behind outputs whose
format is only known once data flows.

A Splicer watches the format events of outputs claimed by a dynamic route.
The first event decides: its caps are classified into a Format, the rule for
that format and the route's target encoding names the adapter kinds, and the
chain is built between the producer and the route's consumer. Every later
event for the same output is ignored. Formats without a rule leave the output
on a discarding terminator.
*/
package splice
