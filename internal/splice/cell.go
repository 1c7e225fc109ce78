package splice

import "sync/atomic"

// State is the splice state of one output.
type State int32

const (
	Waiting State = iota
	Spliced
	Unsupported
)

func (s State) String() string {
	switch s {
	case Spliced:
		return "spliced"
	case Unsupported:
		return "unsupported"
	default:
		return "waiting"
	}
}

// Cell is the one-shot decision of one output. Only the caller that wins
// Claim may call Finish.
type Cell struct {
	claimed atomic.Bool
	state   atomic.Int32
	format  atomic.Int32
}

// Claim reports whether the caller is the first to claim the cell.
func (c *Cell) Claim() bool {
	return c.claimed.CompareAndSwap(false, true)
}

// Finish records the terminal outcome.
func (c *Cell) Finish(s State, f Format) {
	c.format.Store(int32(f))
	c.state.Store(int32(s))
}

func (c *Cell) State() State   { return State(c.state.Load()) }
func (c *Cell) Format() Format { return Format(c.format.Load()) }
