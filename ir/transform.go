package ir

import (
	"github.com/pkg/errors"
)

// Transform rebuilds the tree bottom-up through the Builder, applying fn to
// every node after its children have been transformed. fn must return a node
// (possibly its argument unchanged). Rebuilding goes through the regular
// constructors, so replacements are re-validated and column references are
// rebound to the rebuilt children. Shared nodes are transformed once.
func (b *Builder) Transform(root *Node, fn func(*Node) (*Node, error)) (*Node, error) {
	t := &nodeTransform{
		b:     b,
		fn:    fn,
		cache: make(map[*Node]*Node),
	}
	return t.transform(root)
}

type nodeTransform struct {
	b     *Builder
	fn    func(*Node) (*Node, error)
	cache map[*Node]*Node
}

func (t *nodeTransform) transform(node *Node) (*Node, error) {
	if out, ok := t.cache[node]; ok {
		return out, nil
	}
	rebuilt, err := t.rebuild(node)
	if err != nil {
		return nil, err
	}
	out := rebuilt
	if t.fn != nil {
		out, err = t.fn(rebuilt)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.New("transform callback returned a nil node")
		}
	}
	t.cache[node] = out
	return out, nil
}

func (t *nodeTransform) rebuild(node *Node) (*Node, error) {
	b := t.b
	switch node.NodeType {
	case NodeTypeTable, NodeTypeOpaqueQuery:
		return node, nil

	case NodeTypeProject:
		source, mapping, err := t.child(node.Project.Source)
		if err != nil {
			return nil, err
		}
		columns := make([]NamedExpr, len(node.Project.Exprs))
		for i, expr := range node.Project.Exprs {
			rebound, err := b.RebindExpr(expr, mapping)
			if err != nil {
				return nil, err
			}
			columns[i] = Named(node.Project.Names[i], rebound)
		}
		return b.Project(source, columns...)

	case NodeTypeFilter:
		source, mapping, err := t.child(node.Filter.Source)
		if err != nil {
			return nil, err
		}
		predicate, err := b.RebindExpr(node.Filter.Predicate, mapping)
		if err != nil {
			return nil, err
		}
		return b.Filter(source, predicate)

	case NodeTypeAggregate:
		source, mapping, err := t.child(node.Aggregate.Source)
		if err != nil {
			return nil, err
		}
		groupBy := make([]NamedExpr, len(node.Aggregate.GroupBy))
		for i, expr := range node.Aggregate.GroupBy {
			rebound, err := b.RebindExpr(expr, mapping)
			if err != nil {
				return nil, err
			}
			groupBy[i] = Named(node.Aggregate.GroupNames[i], rebound)
		}
		aggregates := make([]NamedExpr, len(node.Aggregate.Aggregates))
		for i, expr := range node.Aggregate.Aggregates {
			rebound, err := b.RebindExpr(expr, mapping)
			if err != nil {
				return nil, err
			}
			aggregates[i] = Named(node.Aggregate.AggNames[i], rebound)
		}
		return b.Aggregate(source, groupBy, aggregates)

	case NodeTypeJoin:
		left, err := t.transform(node.Join.Left)
		if err != nil {
			return nil, err
		}
		right, err := t.transform(node.Join.Right)
		if err != nil {
			return nil, err
		}
		mapping := map[*Node]*Node{node.Join.Left: left, node.Join.Right: right}
		on, err := b.RebindExpr(node.Join.On, mapping)
		if err != nil {
			return nil, err
		}
		return b.Join(left, right, node.Join.Kind, on)

	case NodeTypeWindow:
		source, mapping, err := t.child(node.Window.Source)
		if err != nil {
			return nil, err
		}
		function, err := b.RebindExpr(node.Window.Function, mapping)
		if err != nil {
			return nil, err
		}
		partitionBy, err := b.rebindAll(node.Window.PartitionBy, mapping)
		if err != nil {
			return nil, err
		}
		orderBy, err := b.rebindAll(node.Window.OrderBy, mapping)
		if err != nil {
			return nil, err
		}
		return b.Window(source, node.Window.Name, function, partitionBy, orderBy, node.Window.Directions, node.Window.Frame)

	case NodeTypeSort:
		source, mapping, err := t.child(node.Sort.Source)
		if err != nil {
			return nil, err
		}
		keys, err := b.rebindAll(node.Sort.Keys, mapping)
		if err != nil {
			return nil, err
		}
		return b.Sort(source, keys, node.Sort.Directions)

	case NodeTypeLimit:
		source, _, err := t.child(node.Limit.Source)
		if err != nil {
			return nil, err
		}
		return b.Limit(source, node.Limit.Count, node.Limit.Offset)

	case NodeTypeDistinct:
		source, _, err := t.child(node.Distinct.Source)
		if err != nil {
			return nil, err
		}
		return b.Distinct(source)

	case NodeTypeSetOp:
		left, err := t.transform(node.SetOp.Left)
		if err != nil {
			return nil, err
		}
		right, err := t.transform(node.SetOp.Right)
		if err != nil {
			return nil, err
		}
		return b.setOp(left, right, node.SetOp.Kind, node.SetOp.All)

	case NodeTypeOpaqueRelation:
		source, _, err := t.child(node.OpaqueRelation.Source)
		if err != nil {
			return nil, err
		}
		if source == node.OpaqueRelation.Source {
			return node, nil
		}
		// The query text and its described schema don't change when the
		// upstream tree is rewritten.
		return b.internNode(&Node{
			Schema:         node.Schema,
			NodeType:       NodeTypeOpaqueRelation,
			OpaqueRelation: &OpaqueRelation{Source: source, Dialect: node.OpaqueRelation.Dialect, Query: node.OpaqueRelation.Query},
		}), nil

	default:
		panic("unexhaustive node type match")
	}
}

func (t *nodeTransform) child(source *Node) (*Node, map[*Node]*Node, error) {
	out, err := t.transform(source)
	if err != nil {
		return nil, nil, err
	}
	return out, map[*Node]*Node{source: out}, nil
}

func (b *Builder) rebindAll(exprs []*Expression, mapping map[*Node]*Node) ([]*Expression, error) {
	out := make([]*Expression, len(exprs))
	for i, expr := range exprs {
		rebound, err := b.RebindExpr(expr, mapping)
		if err != nil {
			return nil, err
		}
		out[i] = rebound
	}
	return out, nil
}

// RebindExpr remaps column references from old relations to their rebuilt
// counterparts, resolving each by name against the new relation's schema.
func (b *Builder) RebindExpr(expr *Expression, mapping map[*Node]*Node) (*Expression, error) {
	return b.RewriteExpr(expr, func(e *Expression) (*Expression, bool, error) {
		if e.ExpressionType != ExpressionTypeColumnRef {
			return nil, false, nil
		}
		rebuilt, ok := mapping[e.ColumnRef.Relation]
		if !ok || rebuilt == e.ColumnRef.Relation {
			return nil, false, nil
		}
		out, err := b.Column(rebuilt, e.ColumnRef.Name)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
}

// RewriteExpr walks an expression top-down. When replace fires for a subtree
// the replacement is taken whole; otherwise the children are rewritten and
// the expression is rebuilt through the regular constructors.
func (b *Builder) RewriteExpr(expr *Expression, replace func(*Expression) (*Expression, bool, error)) (*Expression, error) {
	if replace != nil {
		out, ok, err := replace(expr)
		if err != nil {
			return nil, err
		}
		if ok {
			return out, nil
		}
	}

	switch expr.ExpressionType {
	case ExpressionTypeColumnRef, ExpressionTypeLiteral:
		return expr, nil

	case ExpressionTypeArithmetic:
		left, err := b.RewriteExpr(expr.Arithmetic.Left, replace)
		if err != nil {
			return nil, err
		}
		right, err := b.RewriteExpr(expr.Arithmetic.Right, replace)
		if err != nil {
			return nil, err
		}
		if left == expr.Arithmetic.Left && right == expr.Arithmetic.Right {
			return expr, nil
		}
		return b.arith(expr.Arithmetic.Op, left, right)

	case ExpressionTypeCompare:
		left, err := b.RewriteExpr(expr.Compare.Left, replace)
		if err != nil {
			return nil, err
		}
		right, err := b.RewriteExpr(expr.Compare.Right, replace)
		if err != nil {
			return nil, err
		}
		if left == expr.Compare.Left && right == expr.Compare.Right {
			return expr, nil
		}
		return b.compare(expr.Compare.Op, left, right)

	case ExpressionTypeAnd:
		args, changed, err := b.rewriteAll(expr.And.Arguments, replace)
		if err != nil {
			return nil, err
		}
		if !changed {
			return expr, nil
		}
		return b.And(args...)

	case ExpressionTypeOr:
		args, changed, err := b.rewriteAll(expr.Or.Arguments, replace)
		if err != nil {
			return nil, err
		}
		if !changed {
			return expr, nil
		}
		return b.Or(args...)

	case ExpressionTypeNot:
		arg, err := b.RewriteExpr(expr.Not.Argument, replace)
		if err != nil {
			return nil, err
		}
		if arg == expr.Not.Argument {
			return expr, nil
		}
		return b.Not(arg)

	case ExpressionTypeFunctionCall:
		args, changed, err := b.rewriteAll(expr.FunctionCall.Arguments, replace)
		if err != nil {
			return nil, err
		}
		if !changed {
			return expr, nil
		}
		if IsWindowFunction(expr.FunctionCall.Name) {
			return b.WindowFunc(expr.FunctionCall.Name, args...)
		}
		return b.Call(expr.FunctionCall.Name, args...)

	case ExpressionTypeAggregateCall:
		if expr.AggregateCall.Argument == nil {
			return expr, nil
		}
		arg, err := b.RewriteExpr(expr.AggregateCall.Argument, replace)
		if err != nil {
			return nil, err
		}
		if arg == expr.AggregateCall.Argument {
			return expr, nil
		}
		return b.aggCall(expr.AggregateCall.Name, arg, expr.AggregateCall.Distinct)

	case ExpressionTypeCast:
		arg, err := b.RewriteExpr(expr.Cast.Argument, replace)
		if err != nil {
			return nil, err
		}
		if arg == expr.Cast.Argument {
			return expr, nil
		}
		return b.Cast(arg, expr.Cast.Target)

	default:
		panic("unexhaustive expression type match")
	}
}

func (b *Builder) rewriteAll(exprs []*Expression, replace func(*Expression) (*Expression, bool, error)) ([]*Expression, bool, error) {
	out := make([]*Expression, len(exprs))
	changed := false
	for i, expr := range exprs {
		rewritten, err := b.RewriteExpr(expr, replace)
		if err != nil {
			return nil, false, err
		}
		out[i] = rewritten
		changed = changed || rewritten != expr
	}
	return out, changed, nil
}
