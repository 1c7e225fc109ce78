package linker

import (
	"errors"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Kind classifies a link failure.
type Kind int

const (
	// ElementNotFound means a node referenced by the link does not exist.
	ElementNotFound Kind = iota
	// PadUnavailable means the output pad does not exist yet. Resolve never
	// returns it; such links are deferred.
	PadUnavailable
	// TemplateNotFound means no pad or template of the node fits the name.
	TemplateNotFound
	// LinkIncompatible means the engine refused the connection.
	LinkIncompatible
)

var (
	// ErrElementNotFound matches a *LinkError of kind ElementNotFound.
	ErrElementNotFound = errors.New("element not found")
	// ErrPadUnavailable matches a *LinkError of kind PadUnavailable.
	ErrPadUnavailable = errors.New("pad unavailable")
	// ErrTemplateNotFound matches a *LinkError of kind TemplateNotFound.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrLinkIncompatible matches a *LinkError of kind LinkIncompatible.
	ErrLinkIncompatible = errors.New("link incompatible")
)

func (k Kind) sentinel() error {
	switch k {
	case ElementNotFound:
		return ErrElementNotFound
	case PadUnavailable:
		return ErrPadUnavailable
	case TemplateNotFound:
		return ErrTemplateNotFound
	default:
		return ErrLinkIncompatible
	}
}

// String returns the kind's sentinel message.
func (k Kind) String() string { return k.sentinel().Error() }

// LinkError carries enough context to locate a misconfigured link.
type LinkError struct {
	Kind      Kind
	Link      pad.Link
	Node      string
	Pad       string
	Direction pad.Direction
	Err       error
}

// Error renders the link, the kind and the offending node and pad.
func (e *LinkError) Error() string {
	msg := fmt.Sprintf("link %s: %s: node %q", e.Link, e.Kind, e.Node)
	if e.Pad != "" {
		msg += fmt.Sprintf(", %s pad %q", e.Direction, e.Pad)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel of the error's kind.
func (e *LinkError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Unwrap returns the engine error behind the failure, if any.
func (e *LinkError) Unwrap() error { return e.Err }

func elementNotFound(l pad.Link, node string, dir pad.Direction) *LinkError {
	return &LinkError{Kind: ElementNotFound, Link: l, Node: node, Direction: dir}
}
