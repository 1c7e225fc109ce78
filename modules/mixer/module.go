// Package mixer compiles the mixing console block: per-channel strips routed
// onto a main bus, auxiliary buses and subgroups, with every route gated so
// it can be toggled while the graph runs.
package mixer

import (
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
)

// BlockType is the name flow files use for this block.
const BlockType = "mixer"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the block compiler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBlock(BlockType, registry.Block[Params]{Defaults: DefaultParams, Fn: Compile})
}
