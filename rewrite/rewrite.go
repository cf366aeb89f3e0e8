// Package rewrite runs schema-preserving simplification rules over a tree
// until a fixed point.
package rewrite

import (
	"github.com/pkg/errors"

	"github.com/heronql/heron/ir"
)

// Rule is one local simplification. Apply inspects a single node and either
// returns a replacement with the exact same schema, or reports that it
// doesn't fire.
type Rule struct {
	Name  string
	Apply func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error)
}

// DefaultMaxPasses bounds full bottom-up passes over the tree. Rules are
// written to strictly shrink or reorder in one direction, so well-behaved
// rule sets converge in a handful of passes; the cap turns a buggy rule pair
// into an error instead of a hang.
const DefaultMaxPasses = 64

type Engine struct {
	Rules []Rule
	// MaxPasses overrides DefaultMaxPasses when positive.
	MaxPasses int
}

func NewEngine(rules ...Rule) *Engine {
	return &Engine{Rules: rules}
}

// Rewrite applies the engine's rules bottom-up until no rule fires anywhere.
// The result always has the same schema as the input.
func (e *Engine) Rewrite(b *ir.Builder, root *ir.Node) (*ir.Node, error) {
	maxPasses := e.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		out, err := b.Transform(root, func(node *ir.Node) (*ir.Node, error) {
			current := node
			for iteration := 0; ; iteration++ {
				if iteration >= maxPasses {
					return nil, errors.Errorf("rewriting a single %s node did not converge after %d iterations", node.NodeType, maxPasses)
				}
				fired := false
				for _, rule := range e.Rules {
					next, ok, err := rule.Apply(b, current)
					if err != nil {
						return nil, errors.Wrapf(err, "couldn't apply rule %s", rule.Name)
					}
					if !ok {
						continue
					}
					if !next.Schema.Equal(current.Schema) {
						return nil, errors.Errorf("rule %s changed the schema from %s to %s", rule.Name, current.Schema, next.Schema)
					}
					current = next
					fired = true
					changed = true
				}
				if !fired {
					return current, nil
				}
			}
		})
		if err != nil {
			return nil, err
		}
		if !changed {
			return out, nil
		}
		root = out
	}
	return nil, errors.Errorf("rewriting did not converge after %d passes", maxPasses)
}
