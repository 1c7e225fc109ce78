package graph

import (
	"errors"
	"time"

	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

var (
	// ErrClosed is returned by operations on a torn down graph.
	ErrClosed = errors.New("graph is torn down")
	// ErrDuplicateNode is returned when a node id is already registered.
	ErrDuplicateNode = errors.New("node already registered")
)

// Pending is a link whose output pad does not exist yet.
type Pending struct {
	Producer string
	// Pattern matches the expected pad name exactly or as Pattern_<digits>.
	Pattern string
	Link    pad.Link
	Since   time.Time
}

// Route sends a runtime output of Producer matching Pattern through an
// adapter chain chosen by format, ending at Consumer.
type Route struct {
	Name     string
	Producer string
	Pattern  string
	Consumer pad.Ref
	// Encoding is the target encoding the adapter chain must produce. Empty
	// means the chain's default.
	Encoding string
	// Pad is the concrete producer pad once the route is claimed.
	Pad string
}

// Terminator records a discarding sink attached to an unclaimed output.
type Terminator struct {
	Node     string
	Producer pad.Ref
	Time     time.Time
}

// Diagnostics is a snapshot of the non-fatal state of a graph.
type Diagnostics struct {
	Graph       string       `json:"graph"`
	Closed      bool         `json:"closed"`
	Nodes       int          `json:"nodes"`
	Pending     []Pending    `json:"pending"`
	Routes      []Route      `json:"routes"`
	Terminators []Terminator `json:"terminators"`
	Events      []diag.Event `json:"events"`
}
