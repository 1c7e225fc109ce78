/*
Package pad is the shared vocabulary of the topology core: nodes, the pads
they expose, references to those pads, and the symbolic links that join them.

A pad is described by a Descriptor. Its NamePattern is either a literal name
("sink") or a template with one numeric placeholder ("src_%u"). Presence says
when a pad exists:

  - Always pads exist as soon as the node is created.
  - Request pads are minted on demand from a template.
  - Sometimes pads appear only once the node starts producing that output,
    which may be long after the graph is running.

A Ref addresses a pad as "node.pad", or only "node" when the resolver should
pick a default pad or request one automatically. Links are declared between
Refs at compile time and resolved later against a live engine.
*/
package pad
