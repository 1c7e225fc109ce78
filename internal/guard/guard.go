// Package guard decides whether a property update is legal given the
// property's declared mutability and the current lifecycle state of the
// graph. It authorizes writes; it never applies them.
package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
)

// Class is the mutability class declared for a property.
type Class int

const (
	// ReadOnly properties cannot be written at all.
	ReadOnly Class = iota
	// ConstructOnly properties can only be given when the node is created.
	ConstructOnly
	// StateScoped properties are writable only in the declared states.
	StateScoped
	// Controllable properties are writable in every state.
	Controllable
)

// String returns the catalog spelling of the class.
func (c Class) String() string {
	switch c {
	case ReadOnly:
		return "readonly"
	case ConstructOnly:
		return "construct-only"
	case StateScoped:
		return "state-scoped"
	case Controllable:
		return "controllable"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Mutability is the declared mutability of one property.
type Mutability struct {
	Class Class
	// States lists the states in which a StateScoped property may change.
	States lifecycle.StateSet
}

// Writable reports whether the property can be written after construction
// in at least one state.
func (m Mutability) Writable() bool {
	return m.Class == Controllable || (m.Class == StateScoped && !m.States.Empty())
}

// String renders the mutability the way the catalog declares it.
func (m Mutability) String() string {
	if m.Class == StateScoped {
		return "mutable-in(" + m.States.String() + ")"
	}
	return m.Class.String()
}

// MutableIn declares a state-scoped property.
func MutableIn(states ...lifecycle.State) Mutability {
	return Mutability{Class: StateScoped, States: lifecycle.SetOf(states...)}
}

// ParseMutability parses the catalog notation: "readonly", "construct-only",
// "controllable", or a list of state names ("ready", "paused|running").
func ParseMutability(raw string) (Mutability, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "readonly", "read-only":
		return Mutability{Class: ReadOnly}, nil
	case "construct-only", "construct":
		return Mutability{Class: ConstructOnly}, nil
	case "controllable":
		return Mutability{Class: Controllable}, nil
	case "":
		return Mutability{}, fmt.Errorf("empty mutability declaration")
	}

	var states lifecycle.StateSet
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		st, err := lifecycle.ParseState(part)
		if err != nil {
			return Mutability{}, fmt.Errorf("invalid mutability %q: %w", raw, err)
		}
		states = states.With(st)
	}
	return Mutability{Class: StateScoped, States: states}, nil
}

// Reason classifies a rejected update.
type Reason int

const (
	// NotWritable means the property is not declared writable at all.
	NotWritable Reason = iota
	// ConstructOnlyViolation means the property can only be set at construction.
	ConstructOnlyViolation
	// WrongState means the current lifecycle state is not in the allowed set.
	WrongState
)

// String returns a short reason name.
func (r Reason) String() string {
	switch r {
	case NotWritable:
		return "not_writable"
	case ConstructOnlyViolation:
		return "construct_only"
	case WrongState:
		return "wrong_state"
	default:
		return "unknown"
	}
}

var (
	// ErrNotWritable is matched by errors.Is for NotWritable rejections.
	ErrNotWritable = errors.New("property is not writable")
	// ErrConstructOnly is matched by errors.Is for ConstructOnly rejections.
	ErrConstructOnly = errors.New("property is construct-only")
	// ErrWrongState is matched by errors.Is for WrongState rejections.
	ErrWrongState = errors.New("property cannot change in the current state")
)

// Error is a rejected property update.
type Error struct {
	Reason   Reason
	Target   string
	Property string
	State    lifecycle.State
	Allowed  lifecycle.StateSet
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Reason {
	case WrongState:
		return fmt.Sprintf("property %q on %s cannot change while %s (allowed: %s)", e.Property, e.Target, e.State, e.Allowed)
	case ConstructOnlyViolation:
		return fmt.Sprintf("property %q on %s is construct-only", e.Property, e.Target)
	default:
		return fmt.Sprintf("property %q on %s is not writable", e.Property, e.Target)
	}
}

// Is maps the reason onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotWritable:
		return e.Reason == NotWritable
	case ErrConstructOnly:
		return e.Reason == ConstructOnlyViolation
	case ErrWrongState:
		return e.Reason == WrongState
	}
	return false
}

// Check authorizes an update of property on target while the graph is in
// state. The requested value is not inspected: type coercion belongs to
// the caller that owns the property's type.
func Check(target, property string, m Mutability, _ any, state lifecycle.State) error {
	switch m.Class {
	case Controllable:
		return nil
	case ConstructOnly:
		return &Error{Reason: ConstructOnlyViolation, Target: target, Property: property, State: state}
	case StateScoped:
		if m.States.Empty() {
			return &Error{Reason: NotWritable, Target: target, Property: property, State: state}
		}
		if !m.States.Has(state) {
			return &Error{Reason: WrongState, Target: target, Property: property, State: state, Allowed: m.States}
		}
		return nil
	default:
		return &Error{Reason: NotWritable, Target: target, Property: property, State: state}
	}
}
