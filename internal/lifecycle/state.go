// Package lifecycle defines the execution states a media graph moves through
// and a compact set type used to declare in which states something is allowed.
package lifecycle

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a pipeline or of a single node inside it.
type State int32

const (
	// Stopped means no resources are allocated.
	Stopped State = iota
	// Ready means resources are allocated but no data flows.
	Ready
	// Paused means the graph is prerolled and holding data.
	Paused
	// Running means data is flowing.
	Running
)

var stateNames = [...]string{"stopped", "ready", "paused", "running"}

// String returns the lowercase name of the state.
func (s State) String() string {
	if s < Stopped || s > Running {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// Valid reports whether s is one of the four known states.
func (s State) Valid() bool {
	return s >= Stopped && s <= Running
}

// ParseState converts a state name (case-insensitive) into a State.
func ParseState(raw string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(raw, name) {
			return State(i), nil
		}
	}
	return Stopped, fmt.Errorf("unknown lifecycle state %q", raw)
}

// StateSet is a set of lifecycle states.
type StateSet uint8

// SetOf builds a StateSet containing the given states.
func SetOf(states ...State) StateSet {
	var set StateSet
	return set.With(states...)
}

// With returns a copy of the set with the given states added.
func (s StateSet) With(states ...State) StateSet {
	for _, st := range states {
		if st.Valid() {
			s |= 1 << uint(st)
		}
	}
	return s
}

// Has reports whether st is a member of the set.
func (s StateSet) Has(st State) bool {
	if !st.Valid() {
		return false
	}
	return s&(1<<uint(st)) != 0
}

// Empty reports whether the set has no members.
func (s StateSet) Empty() bool {
	return s == 0
}

// States returns the members of the set in lifecycle order.
func (s StateSet) States() []State {
	var out []State
	for st := Stopped; st <= Running; st++ {
		if s.Has(st) {
			out = append(out, st)
		}
	}
	return out
}

// String renders the set as "ready|paused".
func (s StateSet) String() string {
	states := s.States()
	if len(states) == 0 {
		return "none"
	}
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return strings.Join(names, "|")
}
