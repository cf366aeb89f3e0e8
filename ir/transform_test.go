package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heronql/heron"
	"github.com/heronql/heron/ir"
)

func TestTransformIdentity(t *testing.T) {
	b := ir.NewBuilder()
	filtered := adultsFilter(t, b)
	narrowed, err := b.Select(filtered, "id", "name")
	require.NoError(t, err)

	out, err := b.Transform(narrowed, nil)
	require.NoError(t, err)
	require.Same(t, narrowed, out)

	out, err = b.Transform(narrowed, func(node *ir.Node) (*ir.Node, error) {
		return node, nil
	})
	require.NoError(t, err)
	require.Same(t, narrowed, out)
}

func TestTransformSwapsTableAndRebinds(t *testing.T) {
	b := ir.NewBuilder()
	filtered := adultsFilter(t, b)

	archived, err := b.Table("archived_users", usersSchema(t))
	require.NoError(t, err)

	out, err := b.Transform(filtered, func(node *ir.Node) (*ir.Node, error) {
		if node.NodeType == ir.NodeTypeTable && node.Table.Name == "users" {
			return archived, nil
		}
		return node, nil
	})
	require.NoError(t, err)
	require.NotSame(t, filtered, out)
	require.Equal(t, ir.NodeTypeFilter, out.NodeType)
	require.Same(t, archived, out.Filter.Source)

	// The predicate's column references must follow the new source.
	var refs []*ir.ColumnRef
	ir.WalkExpr(out.Filter.Predicate, func(e *ir.Expression) {
		if e.ExpressionType == ir.ExpressionTypeColumnRef {
			refs = append(refs, e.ColumnRef)
		}
	})
	require.Len(t, refs, 1)
	require.Same(t, archived, refs[0].Relation)
	require.Equal(t, "age", refs[0].Name)

	require.True(t, filtered.Schema.Equal(out.Schema))
}

func TestTransformVisitsSharedNodesOnce(t *testing.T) {
	b := ir.NewBuilder()
	filtered := adultsFilter(t, b)

	leftIDs, err := b.Project(filtered, ir.Named("uid", mustColumn(t, b, filtered, "id")))
	require.NoError(t, err)
	rightIDs, err := b.Select(filtered, "id")
	require.NoError(t, err)
	require.NotSame(t, leftIDs, rightIDs)

	filterVisits := 0
	out, err := b.Transform(leftIDs, func(node *ir.Node) (*ir.Node, error) {
		if node.NodeType == ir.NodeTypeFilter {
			filterVisits++
		}
		return node, nil
	})
	require.NoError(t, err)
	require.Same(t, leftIDs, out)
	require.Equal(t, 1, filterVisits)

	// A diamond shares the filter below both set operation sides.
	diamond, err := b.Union(leftIDs, rightIDs, true)
	require.NoError(t, err)
	filterVisits = 0
	_, err = b.Transform(diamond, func(node *ir.Node) (*ir.Node, error) {
		if node.NodeType == ir.NodeTypeFilter {
			filterVisits++
		}
		return node, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, filterVisits)
}

func TestRewriteExprReplacesSubtrees(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age := mustColumn(t, b, users, "age")
	id := mustColumn(t, b, users, "id")

	adult, err := b.Greater(age, b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	positive, err := b.Greater(id, b.Literal(heron.NewInt64(0)))
	require.NoError(t, err)
	both, err := b.And(adult, positive)
	require.NoError(t, err)

	replacement, err := b.GreaterEqual(age, b.Literal(heron.NewInt32(21)))
	require.NoError(t, err)

	out, err := b.RewriteExpr(both, func(e *ir.Expression) (*ir.Expression, bool, error) {
		if e == adult {
			return replacement, true, nil
		}
		return nil, false, nil
	})
	require.NoError(t, err)
	require.Equal(t, ir.ExpressionTypeAnd, out.ExpressionType)
	require.Same(t, replacement, out.And.Arguments[0])
	require.Same(t, positive, out.And.Arguments[1])

	// No replacement keeps the interned pointer.
	same, err := b.RewriteExpr(both, nil)
	require.NoError(t, err)
	require.Same(t, both, same)
}

func mustColumn(t *testing.T, b *ir.Builder, relation *ir.Node, name string) *ir.Expression {
	t.Helper()
	out, err := b.Column(relation, name)
	require.NoError(t, err)
	return out
}
