// Package ctyconv converts between native Go values and cty values and parses
// HCL type expressions such as "number" or "list(string)". Flow files and the
// element catalog both describe typed values through it.
package ctyconv
