// This file contains the logic for translating HCL schema structs into the
// format-agnostic flow model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/eyevinn-osaas/strom-sub001/internal/config"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

// translateElement converts an HCL element block into the agnostic model.
func (l *Loader) translateElement(ctx context.Context, e *ElementBlock) (*config.Element, error) {
	logger := ctxlog.FromContext(ctx).With("element_kind", e.Kind, "element_id", e.ID)
	logger.Debug("Translating HCL element to internal config model.")

	props, err := evalAttributes(ctxlog.WithLogger(ctx, logger), e.Body)
	if err != nil {
		return nil, fmt.Errorf("element %q %q: %w", e.Kind, e.ID, err)
	}
	return &config.Element{Kind: e.Kind, ID: e.ID, Properties: props}, nil
}

// translateBlock converts an HCL block instance into the agnostic model.
func (l *Loader) translateBlock(ctx context.Context, b *BlockBlock) (*config.Block, error) {
	logger := ctxlog.FromContext(ctx).With("block_type", b.Type, "block_name", b.Name)
	logger.Debug("Translating HCL block to internal config model.")

	params, err := evalAttributes(ctxlog.WithLogger(ctx, logger), b.Body)
	if err != nil {
		return nil, fmt.Errorf("block %q %q: %w", b.Type, b.Name, err)
	}
	return &config.Block{Type: b.Type, Name: b.Name, Params: params}, nil
}
