package routing

import (
	"errors"
	"fmt"
	"sort"
)

// Options tunes Resolve.
type Options struct {
	// Strict rejects declared source channels that feed nothing instead of
	// reporting them in Plan.Unrouted.
	Strict bool
}

// Resolve analyses matrix against layout. Out-of-range keys and duplicate
// destinations are rejected before any decision is made, so a caller never
// builds a partial graph from an invalid matrix.
func Resolve(layout Layout, matrix Matrix, opts Options) (*Plan, error) {
	if err := validate(layout, matrix); err != nil {
		return nil, err
	}

	sourceKeys := make([]Key, 0, len(matrix))
	for k := range matrix {
		sourceKeys = append(sourceKeys, k)
	}
	sort.Slice(sourceKeys, func(i, j int) bool { return sourceKeys[i].less(sourceKeys[j]) })

	incoming := make(map[Key][]Key)
	plan := &Plan{}
	for _, src := range sourceKeys {
		targets := append([]Key(nil), matrix[src]...)
		plan.Sources = append(plan.Sources, Source{Key: src, Targets: targets})
		for _, dst := range targets {
			incoming[dst] = append(incoming[dst], src)
		}
	}

	for stream, channels := range layout.Outputs {
		// A destination stream with no channels is skipped entirely.
		for ch := 0; ch < channels; ch++ {
			key := Key{Stream: stream, Channel: ch}
			sources := incoming[key]
			d := Destination{Key: key, Sources: sources}
			switch {
			case len(sources) > 1:
				d.Decision = Aggregate
			case len(sources) == 1:
				d.Decision = Direct
			default:
				d.Decision = Filler
			}
			plan.Destinations = append(plan.Destinations, d)
		}
	}

	for stream, channels := range layout.Inputs {
		for ch := 0; ch < channels; ch++ {
			key := Key{Stream: stream, Channel: ch}
			if len(matrix[key]) == 0 {
				plan.Unrouted = append(plan.Unrouted, key)
			}
		}
	}

	if opts.Strict && len(plan.Unrouted) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnroutedSource, plan.Unrouted)
	}
	return plan, nil
}

func validate(layout Layout, matrix Matrix) error {
	var errs []error
	for i, n := range layout.Inputs {
		if n < 0 {
			errs = append(errs, fmt.Errorf("input stream %d has negative channel count %d", i, n))
		}
	}
	for i, n := range layout.Outputs {
		if n < 0 {
			errs = append(errs, fmt.Errorf("output stream %d has negative channel count %d", i, n))
		}
	}
	for src, dsts := range matrix {
		if !layout.validInput(src) {
			errs = append(errs, fmt.Errorf("%w: source %s", ErrOutOfRange, src))
		}
		seen := make(map[Key]struct{}, len(dsts))
		for _, dst := range dsts {
			if !layout.validOutput(dst) {
				errs = append(errs, fmt.Errorf("%w: destination %s of source %s", ErrOutOfRange, dst, src))
			}
			if _, dup := seen[dst]; dup {
				errs = append(errs, fmt.Errorf("%w: %s listed twice for source %s", ErrDuplicateDestination, dst, src))
			}
			seen[dst] = struct{}{}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sortErrors(errs)
	return errors.Join(errs...)
}

// sortErrors keeps the joined message stable despite map iteration order.
func sortErrors(errs []error) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
}
