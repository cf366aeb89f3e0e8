package ir

import (
	"github.com/heronql/heron"
)

// Expression is one immutable value-level operation, carrying its validated
// type and shape. Like Node, expressions are interned by the Builder.
type Expression struct {
	Type  heron.Type
	Shape heron.Shape

	ExpressionType ExpressionType
	// Only one of the below may be non-nil.
	ColumnRef     *ColumnRef
	Literal       *Literal
	Arithmetic    *Arithmetic
	Compare       *Compare
	And           *And
	Or            *Or
	Not           *Not
	FunctionCall  *FunctionCall
	AggregateCall *AggregateCall
	Cast          *Cast

	hash uint64
}

func (expr *Expression) Fingerprint() uint64 {
	return expr.hash
}

type ExpressionType int

const (
	ExpressionTypeColumnRef ExpressionType = iota
	ExpressionTypeLiteral
	ExpressionTypeArithmetic
	ExpressionTypeCompare
	ExpressionTypeAnd
	ExpressionTypeOr
	ExpressionTypeNot
	ExpressionTypeFunctionCall
	ExpressionTypeAggregateCall
	ExpressionTypeCast
)

func (t ExpressionType) String() string {
	switch t {
	case ExpressionTypeColumnRef:
		return "column_ref"
	case ExpressionTypeLiteral:
		return "literal"
	case ExpressionTypeArithmetic:
		return "arithmetic"
	case ExpressionTypeCompare:
		return "compare"
	case ExpressionTypeAnd:
		return "and"
	case ExpressionTypeOr:
		return "or"
	case ExpressionTypeNot:
		return "not"
	case ExpressionTypeFunctionCall:
		return "function_call"
	case ExpressionTypeAggregateCall:
		return "aggregate_call"
	case ExpressionTypeCast:
		return "cast"
	}
	return "unknown"
}

// ColumnRef resolves a column by name within exactly one relation. There is
// no implicit access to outer scopes.
type ColumnRef struct {
	Relation *Node
	Name     string
	Index    int
}

type Literal struct {
	Value heron.Value
}

type ArithmeticOp int

const (
	OpAdd ArithmeticOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

func (op ArithmeticOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	}
	return "?"
}

type Arithmetic struct {
	Op          ArithmeticOp
	Left, Right *Expression
}

type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	}
	return "?"
}

type Compare struct {
	Op          CompareOp
	Left, Right *Expression
}

type And struct {
	Arguments []*Expression
}

type Or struct {
	Arguments []*Expression
}

type Not struct {
	Argument *Expression
}

type FunctionCall struct {
	Name      string
	Arguments []*Expression
}

// AggregateCall reduces a column to one scalar per group. Argument is nil for
// count(*).
type AggregateCall struct {
	Name     string
	Argument *Expression
	Distinct bool
}

type Cast struct {
	Argument *Expression
	Target   heron.Type
}
