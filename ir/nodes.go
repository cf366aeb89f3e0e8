package ir

import (
	"github.com/heronql/heron"
)

// Node is one immutable relational operation. Nodes are built through a
// Builder, which interns them: two nodes built from equal inputs and the same
// operation kind are the same pointer, so identity comparisons are pointer
// comparisons.
type Node struct {
	Schema heron.Schema

	NodeType NodeType
	// Only one of the below may be non-nil.
	Table          *Table
	Project        *Project
	Filter         *Filter
	Aggregate      *Aggregate
	Join           *Join
	Window         *Window
	Sort           *Sort
	Limit          *Limit
	Distinct       *Distinct
	SetOp          *SetOp
	OpaqueRelation *OpaqueRelation
	OpaqueQuery    *OpaqueQuery

	hash uint64
}

// Fingerprint is the structural content hash of the node. Stable across
// builders for structurally equal trees.
func (node *Node) Fingerprint() uint64 {
	return node.hash
}

type NodeType int

const (
	NodeTypeTable NodeType = iota
	NodeTypeProject
	NodeTypeFilter
	NodeTypeAggregate
	NodeTypeJoin
	NodeTypeWindow
	NodeTypeSort
	NodeTypeLimit
	NodeTypeDistinct
	NodeTypeSetOp
	NodeTypeOpaqueRelation
	NodeTypeOpaqueQuery
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeTable:
		return "table"
	case NodeTypeProject:
		return "project"
	case NodeTypeFilter:
		return "filter"
	case NodeTypeAggregate:
		return "aggregate"
	case NodeTypeJoin:
		return "join"
	case NodeTypeWindow:
		return "window"
	case NodeTypeSort:
		return "sort"
	case NodeTypeLimit:
		return "limit"
	case NodeTypeDistinct:
		return "distinct"
	case NodeTypeSetOp:
		return "set_op"
	case NodeTypeOpaqueRelation:
		return "opaque_relation"
	case NodeTypeOpaqueQuery:
		return "opaque_query"
	}
	return "unknown"
}

// Table is a named relation backed by the target engine. Its schema is
// declared, not inferred.
type Table struct {
	Name string
}

type Project struct {
	Source *Node
	// Names and Exprs are parallel; Names drive the output schema.
	Names []string
	Exprs []*Expression
}

type Filter struct {
	Source    *Node
	Predicate *Expression
}

type Aggregate struct {
	Source     *Node
	GroupNames []string
	GroupBy    []*Expression
	AggNames   []string
	Aggregates []*Expression
}

type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinOuter
	JoinSemi
	JoinAnti
)

func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "inner"
	case JoinLeft:
		return "left"
	case JoinRight:
		return "right"
	case JoinOuter:
		return "outer"
	case JoinSemi:
		return "semi"
	case JoinAnti:
		return "anti"
	}
	return "unknown"
}

type Join struct {
	Left, Right *Node
	Kind        JoinKind
	On          *Expression
}

type OrderDirection int

const (
	Ascending OrderDirection = iota
	Descending
)

func (d OrderDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

type FrameKind int

const (
	FrameRows FrameKind = iota
	FrameRange
	FrameGroups
)

func (k FrameKind) String() string {
	switch k {
	case FrameRows:
		return "rows"
	case FrameRange:
		return "range"
	case FrameGroups:
		return "groups"
	}
	return "unknown"
}

type FrameBoundKind int

const (
	BoundUnboundedPreceding FrameBoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

type FrameBound struct {
	Kind FrameBoundKind
	// Offset is meaningful for BoundPreceding and BoundFollowing only.
	Offset int64
}

type Frame struct {
	Kind  FrameKind
	Start FrameBound
	End   FrameBound
}

// Window appends one computed column evaluated over a partitioned, ordered
// window of the source. The window explicitly captures the source relation;
// partition keys, order keys and function arguments resolve against it.
type Window struct {
	Source      *Node
	Name        string
	Function    *Expression
	PartitionBy []*Expression
	OrderBy     []*Expression
	Directions  []OrderDirection
	Frame       *Frame
}

type Sort struct {
	Source     *Node
	Keys       []*Expression
	Directions []OrderDirection
}

type Limit struct {
	Source *Node
	// Count is -1 when only an offset is applied.
	Count  int64
	Offset int64
}

type Distinct struct {
	Source *Node
}

type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpIntersect
	SetOpExcept
)

func (k SetOpKind) String() string {
	switch k {
	case SetOpUnion:
		return "union"
	case SetOpIntersect:
		return "intersect"
	case SetOpExcept:
		return "except"
	}
	return "unknown"
}

type SetOp struct {
	Left, Right *Node
	Kind        SetOpKind
	All         bool
}

// OpaqueRelation wraps literal query text over a prior relation. The schema
// comes from engine introspection; the text is never parsed.
type OpaqueRelation struct {
	Source  *Node
	Dialect string
	Query   string
}

// OpaqueQuery is literal query text with no reference back into the tree.
type OpaqueQuery struct {
	Dialect string
	Query   string
}
