package pad

import (
	"strconv"
	"strings"
)

// Descriptor declares one pad, or one family of pads when NamePattern is a
// template such as "src_%u".
type Descriptor struct {
	NamePattern string
	Direction   Direction
	Presence    Presence
}

// placeholders recognised inside a name pattern.
var placeholders = []string{"%u", "%d"}

// IsTemplate reports whether the pattern contains a numeric placeholder.
func (d Descriptor) IsTemplate() bool {
	_, _, ok := d.split()
	return ok
}

// split returns the fixed text before and after the placeholder.
func (d Descriptor) split() (prefix, suffix string, ok bool) {
	for _, ph := range placeholders {
		if i := strings.Index(d.NamePattern, ph); i >= 0 {
			return d.NamePattern[:i], d.NamePattern[i+len(ph):], true
		}
	}
	return d.NamePattern, "", false
}

// Prefix returns the fixed prefix of a template ("src_" for "src_%u"), or
// the literal name itself.
func (d Descriptor) Prefix() string {
	prefix, _, _ := d.split()
	return prefix
}

// BaseName is the prefix without its trailing separator ("src" for
// "src_%u"). It is the pattern used to wait for any pad of the family.
func (d Descriptor) BaseName() string {
	return strings.TrimRight(d.Prefix(), "_")
}

// Accepts reports whether a concrete pad name belongs to this descriptor.
// Literal descriptors accept only their own name. Templates accept their
// fixed prefix and suffix around a non-empty run of digits, so "output_0"
// is accepted by "output_%u" while "output_x" is not.
func (d Descriptor) Accepts(name string) bool {
	prefix, suffix, ok := d.split()
	if !ok {
		return name == d.NamePattern
	}
	if len(name) <= len(prefix)+len(suffix) {
		return false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return false
	}
	return allDigits(name[len(prefix) : len(name)-len(suffix)])
}

// Format renders a concrete name for the given index ("src_3").
func (d Descriptor) Format(index int) string {
	prefix, suffix, ok := d.split()
	if !ok {
		return d.NamePattern
	}
	return prefix + strconv.Itoa(index) + suffix
}

// MatchesPattern implements the pending-link pattern rule: the pad name is
// equal to the pattern, or it is the pattern followed by "_" and a
// non-empty run of digits. Pattern "output" matches "output" and
// "output_12", but not "outputx", "output_x" or "other_output_0".
func MatchesPattern(pattern, name string) bool {
	if name == pattern {
		return true
	}
	rest, ok := strings.CutPrefix(name, pattern+"_")
	return ok && allDigits(rest)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
