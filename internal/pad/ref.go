package pad

import (
	"fmt"
	"regexp"
	"strings"
)

// Ref addresses a pad on a node. An empty Pad means "no pad given": the
// resolver picks the node's default pad or requests one automatically.
type Ref struct {
	Node string
	Pad  string
}

// NodeRef returns a Ref with no pad.
func NodeRef(node string) Ref {
	return Ref{Node: node}
}

// PadRef returns a Ref to a named pad.
func PadRef(node, pad string) Ref {
	return Ref{Node: node, Pad: pad}
}

// HasPad reports whether a pad name was given.
func (r Ref) HasPad() bool {
	return r.Pad != ""
}

// String serializes the ref as "node.pad" or "node".
func (r Ref) String() string {
	if r.Pad == "" {
		return r.Node
	}
	return r.Node + "." + r.Pad
}

// WithNode returns a copy of the ref pointing at another node.
func (r Ref) WithNode(node string) Ref {
	r.Node = node
	return r
}

// nodeSegment matches node identifiers; "/" separates a block instance from
// the node it owns ("router/in0_queue").
var (
	nodeSegment = regexp.MustCompile(`^[A-Za-z0-9_-]+(?:/[A-Za-z0-9_-]+)*$`)
	padSegment  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ParseRef parses "node" or "node.pad". The last dot separates the pad.
func ParseRef(raw string) (Ref, error) {
	if raw == "" {
		return Ref{}, fmt.Errorf("pad reference cannot be empty")
	}

	node, padName, hasPad := raw, "", false
	if i := strings.LastIndex(raw, "."); i >= 0 {
		node, padName, hasPad = raw[:i], raw[i+1:], true
	}

	if !nodeSegment.MatchString(node) {
		return Ref{}, fmt.Errorf("invalid node identifier %q in pad reference %q", node, raw)
	}
	if hasPad && !padSegment.MatchString(padName) {
		return Ref{}, fmt.Errorf("invalid pad name %q in pad reference %q", padName, raw)
	}
	return Ref{Node: node, Pad: padName}, nil
}

// MustParseRef is ParseRef for literals known to be valid.
func MustParseRef(raw string) Ref {
	ref, err := ParseRef(raw)
	if err != nil {
		panic(err)
	}
	return ref
}

// ValidNodeID reports whether id is usable as a node identifier.
func ValidNodeID(id string) bool {
	return nodeSegment.MatchString(id)
}
