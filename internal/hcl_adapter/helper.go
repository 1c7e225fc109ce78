package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the source
// code. A real attribute occupies bytes in the file, while a placeholder for
// an omitted optional attribute has a zero-width range.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte
	if !isDefined {
		ctxlog.FromContext(ctx).Debug("Attribute has an empty source range, treating as undefined.",
			"attribute", attrName, "hcl_range", exprRange.String())
	}
	return isDefined
}

// evalAttributes evaluates every attribute of a block body. Flow files have
// no variables, so expressions are evaluated without an evaluation context.
// Nested blocks are rejected.
func evalAttributes(ctx context.Context, body hcl.Body) (map[string]cty.Value, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	out := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		if !isExprDefined(ctx, attr.Expr, name) {
			continue
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		out[name] = val
	}
	return out, nil
}
