package rewrite

import (
	"github.com/heronql/heron/ir"
)

// DefaultRules is the standard simplification set. Every rule preserves the
// schema and the row semantics of the node it replaces.
func DefaultRules() []Rule {
	return []Rule{
		MergeFilters,
		PushFilterThroughProject,
		MergeProjects,
		DropIdentityProject,
		DropShadowedSort,
		DropRedundantDistinct,
	}
}

// MergeFilters collapses stacked filters into one conjunction.
var MergeFilters = Rule{
	Name: "merge_filters",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeFilter {
			return nil, false, nil
		}
		inner := node.Filter.Source
		if inner.NodeType != ir.NodeTypeFilter {
			return nil, false, nil
		}
		outerPredicate, err := b.RebindExpr(node.Filter.Predicate, map[*ir.Node]*ir.Node{inner: inner.Filter.Source})
		if err != nil {
			return nil, false, err
		}
		merged, err := b.And(inner.Filter.Predicate, outerPredicate)
		if err != nil {
			return nil, false, err
		}
		out, err := b.Filter(inner.Filter.Source, merged)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	},
}

// PushFilterThroughProject moves a filter below the projection it reads
// through, inlining the projected expressions into the predicate.
var PushFilterThroughProject = Rule{
	Name: "push_filter_through_project",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeFilter {
			return nil, false, nil
		}
		project := node.Filter.Source
		if project.NodeType != ir.NodeTypeProject {
			return nil, false, nil
		}
		predicate, err := substituteProjected(b, node.Filter.Predicate, project)
		if err != nil {
			return nil, false, err
		}
		filtered, err := b.Filter(project.Project.Source, predicate)
		if err != nil {
			return nil, false, err
		}
		columns := make([]ir.NamedExpr, len(project.Project.Exprs))
		mapping := map[*ir.Node]*ir.Node{project.Project.Source: filtered}
		for i, expr := range project.Project.Exprs {
			rebound, err := b.RebindExpr(expr, mapping)
			if err != nil {
				return nil, false, err
			}
			columns[i] = ir.Named(project.Project.Names[i], rebound)
		}
		out, err := b.Project(filtered, columns...)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	},
}

// MergeProjects collapses stacked projections when inlining the inner
// expressions cannot duplicate non-trivial work.
var MergeProjects = Rule{
	Name: "merge_projects",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeProject {
			return nil, false, nil
		}
		inner := node.Project.Source
		if inner.NodeType != ir.NodeTypeProject {
			return nil, false, nil
		}

		uses := make(map[string]int)
		for _, expr := range node.Project.Exprs {
			countColumnUses(expr, inner, uses)
		}
		for i, name := range inner.Project.Names {
			if isTrivial(inner.Project.Exprs[i]) || uses[name] <= 1 {
				continue
			}
			return nil, false, nil
		}

		columns := make([]ir.NamedExpr, len(node.Project.Exprs))
		for i, expr := range node.Project.Exprs {
			inlined, err := substituteProjected(b, expr, inner)
			if err != nil {
				return nil, false, err
			}
			columns[i] = ir.Named(node.Project.Names[i], inlined)
		}
		out, err := b.Project(inner.Project.Source, columns...)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	},
}

// DropIdentityProject removes projections that reproduce their source
// unchanged.
var DropIdentityProject = Rule{
	Name: "drop_identity_project",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeProject {
			return nil, false, nil
		}
		source := node.Project.Source
		if len(node.Project.Exprs) != len(source.Schema.Fields) {
			return nil, false, nil
		}
		for i, expr := range node.Project.Exprs {
			if expr.ExpressionType != ir.ExpressionTypeColumnRef {
				return nil, false, nil
			}
			ref := expr.ColumnRef
			if ref.Relation != source || ref.Index != i || node.Project.Names[i] != source.Schema.Fields[i].Name {
				return nil, false, nil
			}
		}
		return source, true, nil
	},
}

// DropShadowedSort removes an ordering that a later sort fully replaces.
var DropShadowedSort = Rule{
	Name: "drop_shadowed_sort",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeSort {
			return nil, false, nil
		}
		inner := node.Sort.Source
		if inner.NodeType != ir.NodeTypeSort {
			return nil, false, nil
		}
		mapping := map[*ir.Node]*ir.Node{inner: inner.Sort.Source}
		keys := make([]*ir.Expression, len(node.Sort.Keys))
		for i, key := range node.Sort.Keys {
			rebound, err := b.RebindExpr(key, mapping)
			if err != nil {
				return nil, false, err
			}
			keys[i] = rebound
		}
		out, err := b.Sort(inner.Sort.Source, keys, node.Sort.Directions)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	},
}

// DropRedundantDistinct collapses stacked distincts.
var DropRedundantDistinct = Rule{
	Name: "drop_redundant_distinct",
	Apply: func(b *ir.Builder, node *ir.Node) (*ir.Node, bool, error) {
		if node.NodeType != ir.NodeTypeDistinct {
			return nil, false, nil
		}
		if node.Distinct.Source.NodeType != ir.NodeTypeDistinct {
			return nil, false, nil
		}
		return node.Distinct.Source, true, nil
	},
}

// substituteProjected replaces references to a projection's output columns
// with the projected expressions themselves, which reference the projection's
// source.
func substituteProjected(b *ir.Builder, expr *ir.Expression, project *ir.Node) (*ir.Expression, error) {
	return b.RewriteExpr(expr, func(e *ir.Expression) (*ir.Expression, bool, error) {
		if e.ExpressionType != ir.ExpressionTypeColumnRef || e.ColumnRef.Relation != project {
			return nil, false, nil
		}
		return project.Project.Exprs[e.ColumnRef.Index], true, nil
	})
}

func countColumnUses(expr *ir.Expression, relation *ir.Node, uses map[string]int) {
	ir.WalkExpr(expr, func(e *ir.Expression) {
		if e.ExpressionType == ir.ExpressionTypeColumnRef && e.ColumnRef.Relation == relation {
			uses[e.ColumnRef.Name]++
		}
	})
}

func isTrivial(expr *ir.Expression) bool {
	return expr.ExpressionType == ir.ExpressionTypeColumnRef ||
		expr.ExpressionType == ir.ExpressionTypeLiteral
}
