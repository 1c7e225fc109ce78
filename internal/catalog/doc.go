/*
Package catalog describes the node kinds the topology core can instantiate:
their pads (static, request and sometimes templates) and their properties
with type, default value and mutability class.

The catalog is data. A default catalog is embedded in the binary and may be
extended or overridden by a YAML file:

	elements:
	  volume:
	    pads:
	      - { name: sink, direction: in }
	      - { name: src, direction: out }
	    properties:
	      volume: { type: number, default: 1.0, mutability: controllable }

Roles flag kinds the resolver treats specially: aggregators accept an
unbounded number of request sink pads, distributors fan one input out, and
terminators discard data.
*/
package catalog
