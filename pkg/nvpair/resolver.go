package nvpair

import (
	"time"

	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/metrics"
	"github.com/cuemby/cibcore/pkg/rules"
	"github.com/cuemby/cibcore/pkg/types"
	"github.com/rs/zerolog"
)

// RuleEvaluator is the part of rules.Evaluator the resolver needs
type RuleEvaluator interface {
	Evaluate(rule *types.Rule, input types.RuleInput) (rules.Result, error)
}

// Resolver merges name/value blocks into an attribute table. It keeps no
// state between calls and is safe for concurrent use.
type Resolver struct {
	evaluator       RuleEvaluator
	inactiveChanges bool
	logger          zerolog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithEvaluator replaces the default rule evaluator
func WithEvaluator(e RuleEvaluator) Option {
	return func(r *Resolver) {
		r.evaluator = e
	}
}

// WithInactiveChanges makes blocks whose rule does not currently apply still
// contribute their next-change time, so callers re-resolve when such a block
// becomes active.
func WithInactiveChanges() Option {
	return func(r *Resolver) {
		r.inactiveChanges = true
	}
}

// NewResolver creates a resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		evaluator: rules.NewEvaluator(),
		logger:    log.WithComponent("nvpair"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve merges blocks in process order: special blocks first, then
// ordinary blocks, each partition keeping its source order. Blocks are never
// modified and the returned table belongs to the caller.
func (r *Resolver) Resolve(blocks []*types.NVPairBlock, input types.RuleInput) types.AttributeTable {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ResolveDuration)

	table := types.AttributeTable{Values: make(map[string]string)}

	for _, block := range processOrder(blocks) {
		if block.Rule != nil {
			res, err := r.evaluator.Evaluate(block.Rule, input)
			if err != nil {
				metrics.RuleEvaluationErrors.Inc()
				r.logger.Warn().
					Err(err).
					Str("block", block.ID).
					Msg("Ignoring name/value block with unusable rule")
				table.Warnings = append(table.Warnings, types.BlockWarning{BlockID: block.ID, Err: err})
				continue
			}
			if !res.Applies {
				if r.inactiveChanges {
					table.NextChange = earliest(table.NextChange, res.NextChange)
				}
				continue
			}
			table.NextChange = earliest(table.NextChange, res.NextChange)
		}

		unpackBlock(block, table.Values)
	}

	return table
}

// processOrder partitions blocks into special and ordinary ones, preserving
// relative order within each partition. Nil blocks are dropped.
func processOrder(blocks []*types.NVPairBlock) []*types.NVPairBlock {
	ordered := make([]*types.NVPairBlock, 0, len(blocks))
	for _, b := range blocks {
		if b != nil && b.Special {
			ordered = append(ordered, b)
		}
	}
	for _, b := range blocks {
		if b != nil && !b.Special {
			ordered = append(ordered, b)
		}
	}
	return ordered
}

func unpackBlock(block *types.NVPairBlock, values map[string]string) {
	for _, pair := range block.Pairs {
		if pair.Name == "" || pair.IsDefault() {
			continue
		}
		if _, exists := values[pair.Name]; exists && !block.Overwrite {
			continue
		}
		values[pair.Name] = *pair.Value
	}
}

func earliest(cur, candidate *time.Time) *time.Time {
	if candidate == nil {
		return cur
	}
	if cur == nil || candidate.Before(*cur) {
		t := *candidate
		return &t
	}
	return cur
}
