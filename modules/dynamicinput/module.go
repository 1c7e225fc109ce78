// Package dynamicinput compiles the dynamic input block: a demultiplexer whose
// outputs appear at runtime, each spliced through a format adapter chain into
// a fixed output.
package dynamicinput

import (
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
)

// BlockType is the name flow files use for this block.
const BlockType = "dynamicinput"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the block compiler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBlock(BlockType, registry.Block[Params]{Defaults: DefaultParams, Fn: Compile})
}
