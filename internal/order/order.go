// Package order computes fractional sort keys for board issues.
package order

import "boardcore/pkg/domain"

// Constants parameterize the fractional key computation.
type Constants struct {
	// Baseline is the order given to an issue with no neighbours.
	Baseline float64
	// BeforeShift is subtracted from the before bound when the current order
	// does not already sort ahead of it.
	BeforeShift float64
	// AfterShift is added to the after bound when the current order does not
	// already sort behind it.
	AfterShift float64
}

// DefaultConstants are the historical values; existing boards depend on them.
var DefaultConstants = Constants{
	Baseline:    709876.54321,
	BeforeShift: 78567.92142,
	AfterShift:  78567.12345,
}

var (
	beforeTypes = map[domain.LinkType]bool{
		domain.LinkRequiredBy: true,
		domain.LinkCloses:     true,
		domain.LinkChildOf:    true,
	}
	afterTypes = map[domain.LinkType]bool{
		domain.LinkDependsOn: true,
		domain.LinkClosedBy:  true,
		domain.LinkParentOf:  true,
	}
)

// Engine computes orders using a fixed set of constants.
type Engine struct {
	c Constants
}

// NewEngine returns an engine. Zero-valued constants fall back to DefaultConstants.
func NewEngine(c Constants) *Engine {
	if c.Baseline == 0 {
		c.Baseline = DefaultConstants.Baseline
	}
	if c.BeforeShift == 0 {
		c.BeforeShift = DefaultConstants.BeforeShift
	}
	if c.AfterShift == 0 {
		c.AfterShift = DefaultConstants.AfterShift
	}
	return &Engine{c: c}
}

// Constants returns the constants in use.
func (e *Engine) Constants() Constants { return e.c }

// Compute places an issue relative to optional neighbour orders. before is
// the order of the issue that must follow, after the order of the issue that
// must precede. current is kept whenever it already satisfies the bounds.
func (e *Engine) Compute(before, after, current *float64) float64 {
	switch {
	case before != nil && after != nil:
		if current != nil && *current < *before && *current > *after {
			return *current
		}
		return (*before + *after) / 2
	case before != nil:
		if current != nil && *current < *before {
			return *current
		}
		return *before - e.c.BeforeShift
	case after != nil:
		if current != nil && *current > *after {
			return *current
		}
		return *after + e.c.AfterShift
	default:
		return e.c.Baseline
	}
}

// Input is the state consulted by Semantic.
type Input struct {
	// Issue is the candidate state, with its column already resolved.
	Issue domain.Issue
	// Current is the committed state, nil for issues not yet on the board.
	Current *domain.Issue
	// Links are the issue's outgoing links merged with its inverse links.
	Links []domain.Link
	// First is the board's current first issue, if any.
	First *domain.Issue
	// Sorting reports whether Issue.Column orders by links.
	Sorting bool
	// Lookup resolves link targets against committed state.
	Lookup func(id string) (domain.Issue, bool)
}

// Semantic derives an order from link neighbours sharing the issue's column.
// Without neighbours an issue that stays in its column keeps its order; any
// other issue is placed ahead of First.
func (e *Engine) Semantic(in Input) float64 {
	var before, after *domain.Issue
	if in.Sorting && in.Lookup != nil {
		for _, link := range in.Links {
			target, ok := in.Lookup(link.TargetID)
			if !ok || target.Column != in.Issue.Column {
				continue
			}
			t := target
			if beforeTypes[link.Type] && (before == nil || t.Order <= before.Order) {
				before = &t
			}
			if afterTypes[link.Type] && (after == nil || t.Order >= after.Order) {
				after = &t
			}
		}
	}

	var current *float64
	if in.Current != nil {
		o := in.Current.Order
		current = &o
	}

	if before == nil && after == nil {
		if in.Current != nil && in.Current.Column == in.Issue.Column {
			return in.Current.Order
		}
		before = in.First
	}
	return e.Compute(orderOf(before), orderOf(after), current)
}

func orderOf(issue *domain.Issue) *float64 {
	if issue == nil {
		return nil
	}
	o := issue.Order
	return &o
}
