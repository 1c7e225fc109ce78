// Package audiorouter compiles the channel router block: N multichannel
// inputs split into mono channels, routed by a matrix onto M multichannel
// outputs.
package audiorouter

import (
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
)

// BlockType is the name flow files use for this block.
const BlockType = "audiorouter"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the block compiler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBlock(BlockType, registry.Block[Params]{Defaults: DefaultParams, Fn: Compile})
}
