// Package topology is the compiled form of one block instance: its nodes,
// the symbolic links between them, and the pads it exposes to other blocks.
//
// Block compilers build a Topology with a Builder. Builder collects
// structural mistakes (duplicate ids, links to undeclared nodes) and reports
// them all from Build, so a compiler can be written as straight-line code.
package topology
