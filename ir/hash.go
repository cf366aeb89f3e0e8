package ir

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Content fingerprints drive the interning tables. Children contribute their
// own fingerprints, so hashing any node is O(node), not O(subtree). Buckets
// are scanned with full structural comparison, so hash collisions cost
// performance, never correctness.

type hasher struct {
	d *xxhash.Digest
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}

func (h *hasher) writeTag(tag byte) {
	h.d.Write([]byte{tag})
}

func (h *hasher) writeInt(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.d.Write(buf[:])
}

func (h *hasher) writeUint(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.d.Write(buf[:])
}

func (h *hasher) writeString(s string) {
	h.writeInt(int64(len(s)))
	h.d.WriteString(s)
}

func (h *hasher) writeBool(v bool) {
	if v {
		h.writeTag(1)
	} else {
		h.writeTag(0)
	}
}

func nodeHash(node *Node) uint64 {
	h := newHasher()
	h.writeTag(byte(node.NodeType))
	switch node.NodeType {
	case NodeTypeTable:
		h.writeString(node.Table.Name)
		h.writeString(node.Schema.String())
	case NodeTypeProject:
		h.writeUint(node.Project.Source.hash)
		h.writeInt(int64(len(node.Project.Names)))
		for i := range node.Project.Names {
			h.writeString(node.Project.Names[i])
			h.writeUint(node.Project.Exprs[i].hash)
		}
	case NodeTypeFilter:
		h.writeUint(node.Filter.Source.hash)
		h.writeUint(node.Filter.Predicate.hash)
	case NodeTypeAggregate:
		h.writeUint(node.Aggregate.Source.hash)
		h.writeInt(int64(len(node.Aggregate.GroupNames)))
		for i := range node.Aggregate.GroupNames {
			h.writeString(node.Aggregate.GroupNames[i])
			h.writeUint(node.Aggregate.GroupBy[i].hash)
		}
		h.writeInt(int64(len(node.Aggregate.AggNames)))
		for i := range node.Aggregate.AggNames {
			h.writeString(node.Aggregate.AggNames[i])
			h.writeUint(node.Aggregate.Aggregates[i].hash)
		}
	case NodeTypeJoin:
		h.writeTag(byte(node.Join.Kind))
		h.writeUint(node.Join.Left.hash)
		h.writeUint(node.Join.Right.hash)
		h.writeUint(node.Join.On.hash)
	case NodeTypeWindow:
		h.writeUint(node.Window.Source.hash)
		h.writeString(node.Window.Name)
		h.writeUint(node.Window.Function.hash)
		h.writeInt(int64(len(node.Window.PartitionBy)))
		for _, expr := range node.Window.PartitionBy {
			h.writeUint(expr.hash)
		}
		h.writeInt(int64(len(node.Window.OrderBy)))
		for i, expr := range node.Window.OrderBy {
			h.writeUint(expr.hash)
			h.writeTag(byte(node.Window.Directions[i]))
		}
		if node.Window.Frame != nil {
			h.writeTag(byte(node.Window.Frame.Kind))
			h.writeTag(byte(node.Window.Frame.Start.Kind))
			h.writeInt(node.Window.Frame.Start.Offset)
			h.writeTag(byte(node.Window.Frame.End.Kind))
			h.writeInt(node.Window.Frame.End.Offset)
		}
	case NodeTypeSort:
		h.writeUint(node.Sort.Source.hash)
		h.writeInt(int64(len(node.Sort.Keys)))
		for i := range node.Sort.Keys {
			h.writeUint(node.Sort.Keys[i].hash)
			h.writeTag(byte(node.Sort.Directions[i]))
		}
	case NodeTypeLimit:
		h.writeUint(node.Limit.Source.hash)
		h.writeInt(node.Limit.Count)
		h.writeInt(node.Limit.Offset)
	case NodeTypeDistinct:
		h.writeUint(node.Distinct.Source.hash)
	case NodeTypeSetOp:
		h.writeTag(byte(node.SetOp.Kind))
		h.writeBool(node.SetOp.All)
		h.writeUint(node.SetOp.Left.hash)
		h.writeUint(node.SetOp.Right.hash)
	case NodeTypeOpaqueRelation:
		h.writeUint(node.OpaqueRelation.Source.hash)
		h.writeString(node.OpaqueRelation.Dialect)
		h.writeString(node.OpaqueRelation.Query)
	case NodeTypeOpaqueQuery:
		h.writeString(node.OpaqueQuery.Dialect)
		h.writeString(node.OpaqueQuery.Query)
	default:
		panic("unexhaustive node type match")
	}
	return h.sum()
}

func nodeEqual(a, b *Node) bool {
	if a.NodeType != b.NodeType {
		return false
	}
	switch a.NodeType {
	case NodeTypeTable:
		return a.Table.Name == b.Table.Name && a.Schema.Equal(b.Schema)
	case NodeTypeProject:
		if a.Project.Source != b.Project.Source || len(a.Project.Names) != len(b.Project.Names) {
			return false
		}
		for i := range a.Project.Names {
			if a.Project.Names[i] != b.Project.Names[i] || a.Project.Exprs[i] != b.Project.Exprs[i] {
				return false
			}
		}
		return true
	case NodeTypeFilter:
		return a.Filter.Source == b.Filter.Source && a.Filter.Predicate == b.Filter.Predicate
	case NodeTypeAggregate:
		if a.Aggregate.Source != b.Aggregate.Source {
			return false
		}
		if len(a.Aggregate.GroupNames) != len(b.Aggregate.GroupNames) || len(a.Aggregate.AggNames) != len(b.Aggregate.AggNames) {
			return false
		}
		for i := range a.Aggregate.GroupNames {
			if a.Aggregate.GroupNames[i] != b.Aggregate.GroupNames[i] || a.Aggregate.GroupBy[i] != b.Aggregate.GroupBy[i] {
				return false
			}
		}
		for i := range a.Aggregate.AggNames {
			if a.Aggregate.AggNames[i] != b.Aggregate.AggNames[i] || a.Aggregate.Aggregates[i] != b.Aggregate.Aggregates[i] {
				return false
			}
		}
		return true
	case NodeTypeJoin:
		return a.Join.Kind == b.Join.Kind && a.Join.Left == b.Join.Left &&
			a.Join.Right == b.Join.Right && a.Join.On == b.Join.On
	case NodeTypeWindow:
		if a.Window.Source != b.Window.Source || a.Window.Name != b.Window.Name || a.Window.Function != b.Window.Function {
			return false
		}
		if len(a.Window.PartitionBy) != len(b.Window.PartitionBy) || len(a.Window.OrderBy) != len(b.Window.OrderBy) {
			return false
		}
		for i := range a.Window.PartitionBy {
			if a.Window.PartitionBy[i] != b.Window.PartitionBy[i] {
				return false
			}
		}
		for i := range a.Window.OrderBy {
			if a.Window.OrderBy[i] != b.Window.OrderBy[i] || a.Window.Directions[i] != b.Window.Directions[i] {
				return false
			}
		}
		if (a.Window.Frame == nil) != (b.Window.Frame == nil) {
			return false
		}
		return a.Window.Frame == nil || *a.Window.Frame == *b.Window.Frame
	case NodeTypeSort:
		if a.Sort.Source != b.Sort.Source || len(a.Sort.Keys) != len(b.Sort.Keys) {
			return false
		}
		for i := range a.Sort.Keys {
			if a.Sort.Keys[i] != b.Sort.Keys[i] || a.Sort.Directions[i] != b.Sort.Directions[i] {
				return false
			}
		}
		return true
	case NodeTypeLimit:
		return a.Limit.Source == b.Limit.Source && a.Limit.Count == b.Limit.Count && a.Limit.Offset == b.Limit.Offset
	case NodeTypeDistinct:
		return a.Distinct.Source == b.Distinct.Source
	case NodeTypeSetOp:
		return a.SetOp.Kind == b.SetOp.Kind && a.SetOp.All == b.SetOp.All &&
			a.SetOp.Left == b.SetOp.Left && a.SetOp.Right == b.SetOp.Right
	case NodeTypeOpaqueRelation:
		return a.OpaqueRelation.Source == b.OpaqueRelation.Source &&
			a.OpaqueRelation.Dialect == b.OpaqueRelation.Dialect &&
			a.OpaqueRelation.Query == b.OpaqueRelation.Query
	case NodeTypeOpaqueQuery:
		return a.OpaqueQuery.Dialect == b.OpaqueQuery.Dialect && a.OpaqueQuery.Query == b.OpaqueQuery.Query
	default:
		panic("unexhaustive node type match")
	}
}

func exprHash(expr *Expression) uint64 {
	h := newHasher()
	h.writeTag(byte(expr.ExpressionType))
	switch expr.ExpressionType {
	case ExpressionTypeColumnRef:
		h.writeUint(expr.ColumnRef.Relation.hash)
		h.writeString(expr.ColumnRef.Name)
	case ExpressionTypeLiteral:
		h.writeString(expr.Literal.Value.Type.String())
		h.writeString(expr.Literal.Value.String())
	case ExpressionTypeArithmetic:
		h.writeTag(byte(expr.Arithmetic.Op))
		h.writeUint(expr.Arithmetic.Left.hash)
		h.writeUint(expr.Arithmetic.Right.hash)
	case ExpressionTypeCompare:
		h.writeTag(byte(expr.Compare.Op))
		h.writeUint(expr.Compare.Left.hash)
		h.writeUint(expr.Compare.Right.hash)
	case ExpressionTypeAnd:
		h.writeInt(int64(len(expr.And.Arguments)))
		for _, arg := range expr.And.Arguments {
			h.writeUint(arg.hash)
		}
	case ExpressionTypeOr:
		h.writeInt(int64(len(expr.Or.Arguments)))
		for _, arg := range expr.Or.Arguments {
			h.writeUint(arg.hash)
		}
	case ExpressionTypeNot:
		h.writeUint(expr.Not.Argument.hash)
	case ExpressionTypeFunctionCall:
		h.writeString(expr.FunctionCall.Name)
		h.writeInt(int64(len(expr.FunctionCall.Arguments)))
		for _, arg := range expr.FunctionCall.Arguments {
			h.writeUint(arg.hash)
		}
	case ExpressionTypeAggregateCall:
		h.writeString(expr.AggregateCall.Name)
		h.writeBool(expr.AggregateCall.Distinct)
		if expr.AggregateCall.Argument != nil {
			h.writeUint(expr.AggregateCall.Argument.hash)
		}
	case ExpressionTypeCast:
		h.writeUint(expr.Cast.Argument.hash)
		h.writeString(expr.Cast.Target.String())
	default:
		panic("unexhaustive expression type match")
	}
	return h.sum()
}

func exprEqual(a, b *Expression) bool {
	if a.ExpressionType != b.ExpressionType {
		return false
	}
	switch a.ExpressionType {
	case ExpressionTypeColumnRef:
		return a.ColumnRef.Relation == b.ColumnRef.Relation && a.ColumnRef.Name == b.ColumnRef.Name
	case ExpressionTypeLiteral:
		return a.Literal.Value.Equal(b.Literal.Value)
	case ExpressionTypeArithmetic:
		return a.Arithmetic.Op == b.Arithmetic.Op && a.Arithmetic.Left == b.Arithmetic.Left &&
			a.Arithmetic.Right == b.Arithmetic.Right
	case ExpressionTypeCompare:
		return a.Compare.Op == b.Compare.Op && a.Compare.Left == b.Compare.Left &&
			a.Compare.Right == b.Compare.Right
	case ExpressionTypeAnd:
		return exprSlicesEqual(a.And.Arguments, b.And.Arguments)
	case ExpressionTypeOr:
		return exprSlicesEqual(a.Or.Arguments, b.Or.Arguments)
	case ExpressionTypeNot:
		return a.Not.Argument == b.Not.Argument
	case ExpressionTypeFunctionCall:
		return a.FunctionCall.Name == b.FunctionCall.Name &&
			exprSlicesEqual(a.FunctionCall.Arguments, b.FunctionCall.Arguments)
	case ExpressionTypeAggregateCall:
		return a.AggregateCall.Name == b.AggregateCall.Name &&
			a.AggregateCall.Distinct == b.AggregateCall.Distinct &&
			a.AggregateCall.Argument == b.AggregateCall.Argument
	case ExpressionTypeCast:
		return a.Cast.Argument == b.Cast.Argument && a.Cast.Target.Equal(b.Cast.Target)
	default:
		panic("unexhaustive expression type match")
	}
}

func exprSlicesEqual(a, b []*Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
