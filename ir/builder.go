package ir

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/heronql/heron"
)

// Describer asks the target engine for the column list of literal query text.
// It is the only place the core touches an engine, and only opaque nodes use
// it.
type Describer interface {
	DescribeColumns(dialect string, query string) (heron.Schema, error)
}

// Builder constructs and interns nodes and expressions. Construction
// validates arity, shapes and types immediately; no partially-typed tree ever
// escapes. The interning tables are the only shared mutable state, guarded by
// a mutex so builders may be shared across goroutines.
type Builder struct {
	mu    sync.Mutex
	nodes map[uint64][]*Node
	exprs map[uint64][]*Expression

	describer Describer
}

type BuilderOption func(*Builder)

// WithDescriber configures the schema introspection callback used by SQL and
// SQLQuery.
func WithDescriber(d Describer) BuilderOption {
	return func(b *Builder) {
		b.describer = d
	}
}

func NewBuilder(options ...BuilderOption) *Builder {
	b := &Builder{
		nodes: make(map[uint64][]*Node),
		exprs: make(map[uint64][]*Expression),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *Builder) internNode(node *Node) *Node {
	node.hash = nodeHash(node)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, candidate := range b.nodes[node.hash] {
		if nodeEqual(candidate, node) {
			return candidate
		}
	}
	b.nodes[node.hash] = append(b.nodes[node.hash], node)
	return node
}

func (b *Builder) internExpr(expr *Expression) *Expression {
	expr.hash = exprHash(expr)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, candidate := range b.exprs[expr.hash] {
		if exprEqual(candidate, expr) {
			return candidate
		}
	}
	b.exprs[expr.hash] = append(b.exprs[expr.hash], expr)
	return expr
}

// NamedExpr pairs a projection output name with its expression. An empty name
// defaults to the column name for plain references.
type NamedExpr struct {
	Name string
	Expr *Expression
}

func Named(name string, expr *Expression) NamedExpr {
	return NamedExpr{Name: name, Expr: expr}
}

func Unnamed(expr *Expression) NamedExpr {
	return NamedExpr{Expr: expr}
}

func outputName(col NamedExpr) (string, error) {
	if col.Name != "" {
		return col.Name, nil
	}
	switch col.Expr.ExpressionType {
	case ExpressionTypeColumnRef:
		return col.Expr.ColumnRef.Name, nil
	case ExpressionTypeAggregateCall:
		return col.Expr.AggregateCall.Name, nil
	default:
		return "", &heron.SchemaError{Reason: "expression output requires an explicit name"}
	}
}

func containsAggregate(expr *Expression) bool {
	found := false
	walkExpr(expr, func(e *Expression) {
		if e.ExpressionType == ExpressionTypeAggregateCall {
			found = true
		}
	})
	return found
}

// foreignRef returns the first column reference in expr that resolves outside
// the allowed relations, or nil.
func foreignRef(expr *Expression, allowed ...*Node) *ColumnRef {
	var out *ColumnRef
	walkExpr(expr, func(e *Expression) {
		if out != nil || e.ExpressionType != ExpressionTypeColumnRef {
			return
		}
		for _, rel := range allowed {
			if e.ColumnRef.Relation == rel {
				return
			}
		}
		out = e.ColumnRef
	})
	return out
}

// WalkExpr calls fn for expr and every expression below it, pre-order.
func WalkExpr(expr *Expression, fn func(*Expression)) {
	walkExpr(expr, fn)
}

func walkExpr(expr *Expression, fn func(*Expression)) {
	fn(expr)
	switch expr.ExpressionType {
	case ExpressionTypeColumnRef, ExpressionTypeLiteral:
	case ExpressionTypeArithmetic:
		walkExpr(expr.Arithmetic.Left, fn)
		walkExpr(expr.Arithmetic.Right, fn)
	case ExpressionTypeCompare:
		walkExpr(expr.Compare.Left, fn)
		walkExpr(expr.Compare.Right, fn)
	case ExpressionTypeAnd:
		for _, arg := range expr.And.Arguments {
			walkExpr(arg, fn)
		}
	case ExpressionTypeOr:
		for _, arg := range expr.Or.Arguments {
			walkExpr(arg, fn)
		}
	case ExpressionTypeNot:
		walkExpr(expr.Not.Argument, fn)
	case ExpressionTypeFunctionCall:
		for _, arg := range expr.FunctionCall.Arguments {
			walkExpr(arg, fn)
		}
	case ExpressionTypeAggregateCall:
		if expr.AggregateCall.Argument != nil {
			walkExpr(expr.AggregateCall.Argument, fn)
		}
	case ExpressionTypeCast:
		walkExpr(expr.Cast.Argument, fn)
	default:
		panic("unexhaustive expression type match")
	}
}

// Table builds a reference to a named relation backed by the target engine.
func (b *Builder) Table(name string, schema heron.Schema) (*Node, error) {
	if name == "" {
		return nil, errors.New("table name must not be empty")
	}
	if len(schema.Fields) == 0 {
		return nil, errors.Errorf("table %q must have at least one column", name)
	}
	seen := make(map[string]bool, len(schema.Fields))
	for _, field := range schema.Fields {
		if seen[field.Name] {
			return nil, &heron.SchemaError{Column: field.Name, Reason: "duplicate column name"}
		}
		seen[field.Name] = true
	}
	return b.internNode(&Node{
		Schema:   schema,
		NodeType: NodeTypeTable,
		Table:    &Table{Name: name},
	}), nil
}

// Project narrows a relation to the given named expressions.
func (b *Builder) Project(source *Node, columns ...NamedExpr) (*Node, error) {
	if len(columns) == 0 {
		return nil, errors.New("projection requires at least one column")
	}
	names := make([]string, len(columns))
	exprs := make([]*Expression, len(columns))
	fields := make([]heron.SchemaField, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		name, err := outputName(col)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't name projection column with index %d", i)
		}
		if seen[name] {
			return nil, &heron.SchemaError{Column: name, Reason: "duplicate output name in projection"}
		}
		seen[name] = true
		if ref := foreignRef(col.Expr, source); ref != nil {
			return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the projected relation"}
		}
		if containsAggregate(col.Expr) {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: col.Expr.Shape, Context: "aggregate call outside aggregation"}
		}
		names[i] = name
		exprs[i] = col.Expr
		fields[i] = heron.SchemaField{Name: name, Type: col.Expr.Type}
	}
	return b.internNode(&Node{
		Schema:   heron.Schema{Fields: fields},
		NodeType: NodeTypeProject,
		Project:  &Project{Source: source, Names: names, Exprs: exprs},
	}), nil
}

// Select is shorthand for projecting plain columns by name.
func (b *Builder) Select(source *Node, names ...string) (*Node, error) {
	columns := make([]NamedExpr, len(names))
	for i, name := range names {
		ref, err := b.Column(source, name)
		if err != nil {
			return nil, err
		}
		columns[i] = Unnamed(ref)
	}
	return b.Project(source, columns...)
}

// Filter keeps the source rows for which the predicate holds.
func (b *Builder) Filter(source *Node, predicate *Expression) (*Node, error) {
	if predicate.Shape != heron.ShapeColumnar {
		return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: predicate.Shape, Context: "filter predicate"}
	}
	if predicate.Type.TypeID != heron.TypeIDBoolean {
		return nil, &heron.TypeMismatchError{Left: predicate.Type, Right: heron.Boolean, Context: "filter predicate"}
	}
	if ref := foreignRef(predicate, source); ref != nil {
		return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the filtered relation"}
	}
	if containsAggregate(predicate) {
		return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: predicate.Shape, Context: "aggregate call outside aggregation"}
	}
	return b.internNode(&Node{
		Schema:   source.Schema,
		NodeType: NodeTypeFilter,
		Filter:   &Filter{Source: source, Predicate: predicate},
	}), nil
}

// Aggregate groups the source by the key expressions and reduces each group
// with the given aggregate calls.
func (b *Builder) Aggregate(source *Node, groupBy []NamedExpr, aggregates []NamedExpr) (*Node, error) {
	if len(aggregates) == 0 {
		return nil, errors.New("aggregation requires at least one reducer")
	}
	groupNames := make([]string, len(groupBy))
	groupExprs := make([]*Expression, len(groupBy))
	aggNames := make([]string, len(aggregates))
	aggExprs := make([]*Expression, len(aggregates))
	fields := make([]heron.SchemaField, 0, len(groupBy)+len(aggregates))
	seen := make(map[string]bool, len(groupBy)+len(aggregates))

	for i, key := range groupBy {
		name, err := outputName(key)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't name group key with index %d", i)
		}
		if seen[name] {
			return nil, &heron.SchemaError{Column: name, Reason: "duplicate output name in aggregation"}
		}
		seen[name] = true
		if key.Expr.Shape != heron.ShapeColumnar {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Expr.Shape, Context: "group key"}
		}
		if ref := foreignRef(key.Expr, source); ref != nil {
			return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the aggregated relation"}
		}
		if containsAggregate(key.Expr) {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Expr.Shape, Context: "aggregate call in group key"}
		}
		groupNames[i] = name
		groupExprs[i] = key.Expr
		fields = append(fields, heron.SchemaField{Name: name, Type: key.Expr.Type})
	}
	for i, agg := range aggregates {
		name, err := outputName(agg)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't name aggregate with index %d", i)
		}
		if seen[name] {
			return nil, &heron.SchemaError{Column: name, Reason: "duplicate output name in aggregation"}
		}
		seen[name] = true
		if agg.Expr.ExpressionType != ExpressionTypeAggregateCall {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeScalar, Got: agg.Expr.Shape, Context: "aggregate reducer must reduce a column to a scalar per group"}
		}
		if ref := foreignRef(agg.Expr, source); ref != nil {
			return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the aggregated relation"}
		}
		aggNames[i] = name
		aggExprs[i] = agg.Expr
		fields = append(fields, heron.SchemaField{Name: name, Type: agg.Expr.Type})
	}

	return b.internNode(&Node{
		Schema:   heron.Schema{Fields: fields},
		NodeType: NodeTypeAggregate,
		Aggregate: &Aggregate{
			Source:     source,
			GroupNames: groupNames,
			GroupBy:    groupExprs,
			AggNames:   aggNames,
			Aggregates: aggExprs,
		},
	}), nil
}

// Join combines two relations. Inner, left, right and outer joins concatenate
// the two schemas; semi and anti joins keep the left schema unchanged.
func (b *Builder) Join(left, right *Node, kind JoinKind, on *Expression) (*Node, error) {
	if on.Shape != heron.ShapeColumnar {
		return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: on.Shape, Context: "join predicate"}
	}
	if on.Type.TypeID != heron.TypeIDBoolean {
		return nil, &heron.TypeMismatchError{Left: on.Type, Right: heron.Boolean, Context: "join predicate"}
	}
	if ref := foreignRef(on, left, right); ref != nil {
		return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to either join side"}
	}
	if containsAggregate(on) {
		return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: on.Shape, Context: "aggregate call outside aggregation"}
	}

	var schema heron.Schema
	switch kind {
	case JoinSemi, JoinAnti:
		schema = left.Schema
	case JoinInner, JoinLeft, JoinRight, JoinOuter:
		fields := make([]heron.SchemaField, 0, len(left.Schema.Fields)+len(right.Schema.Fields))
		seen := make(map[string]bool)
		for _, field := range left.Schema.Fields {
			if kind == JoinRight || kind == JoinOuter {
				field.Type = field.Type.AsNullable()
			}
			seen[field.Name] = true
			fields = append(fields, field)
		}
		for _, field := range right.Schema.Fields {
			if seen[field.Name] {
				return nil, &heron.SchemaError{Column: field.Name, Reason: "duplicate column name in join output; project or rename before joining"}
			}
			if kind == JoinLeft || kind == JoinOuter {
				field.Type = field.Type.AsNullable()
			}
			fields = append(fields, field)
		}
		schema = heron.Schema{Fields: fields}
	default:
		panic("unexhaustive join kind match")
	}

	return b.internNode(&Node{
		Schema:   schema,
		NodeType: NodeTypeJoin,
		Join:     &Join{Left: left, Right: right, Kind: kind, On: on},
	}), nil
}

// Window appends one column computed by a window function over the source.
func (b *Builder) Window(source *Node, name string, function *Expression, partitionBy []*Expression, orderBy []*Expression, directions []OrderDirection, frame *Frame) (*Node, error) {
	switch function.ExpressionType {
	case ExpressionTypeAggregateCall:
	case ExpressionTypeFunctionCall:
		if !IsWindowFunction(function.FunctionCall.Name) {
			return nil, errors.Errorf("function %q cannot be evaluated over a window", function.FunctionCall.Name)
		}
	default:
		return nil, errors.Errorf("%s expression cannot be evaluated over a window", function.ExpressionType)
	}
	if len(orderBy) != len(directions) {
		return nil, errors.New("window order keys and directions must have equal length")
	}
	if function.ExpressionType == ExpressionTypeFunctionCall && requiresOrder(function.FunctionCall.Name) && len(orderBy) == 0 {
		return nil, errors.Errorf("window function %q requires an ordered window", function.FunctionCall.Name)
	}
	for _, expr := range append(append([]*Expression{function}, partitionBy...), orderBy...) {
		if ref := foreignRef(expr, source); ref != nil {
			return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the windowed relation"}
		}
	}
	for _, key := range partitionBy {
		if key.Shape != heron.ShapeColumnar {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Shape, Context: "window partition key"}
		}
	}
	for _, key := range orderBy {
		if key.Shape != heron.ShapeColumnar {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Shape, Context: "window order key"}
		}
	}
	if source.Schema.FieldIndex(name) >= 0 {
		return nil, &heron.SchemaError{Column: name, Reason: "window column shadows an existing column"}
	}

	fields := make([]heron.SchemaField, 0, len(source.Schema.Fields)+1)
	fields = append(fields, source.Schema.Fields...)
	fields = append(fields, heron.SchemaField{Name: name, Type: function.Type})

	return b.internNode(&Node{
		Schema:   heron.Schema{Fields: fields},
		NodeType: NodeTypeWindow,
		Window: &Window{
			Source:      source,
			Name:        name,
			Function:    function,
			PartitionBy: partitionBy,
			OrderBy:     orderBy,
			Directions:  directions,
			Frame:       frame,
		},
	}), nil
}

// Sort orders the source rows by the given keys.
func (b *Builder) Sort(source *Node, keys []*Expression, directions []OrderDirection) (*Node, error) {
	if len(keys) == 0 {
		return nil, errors.New("sort requires at least one key")
	}
	if len(keys) != len(directions) {
		return nil, errors.New("sort keys and directions must have equal length")
	}
	for _, key := range keys {
		if key.Shape != heron.ShapeColumnar {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Shape, Context: "sort key"}
		}
		if ref := foreignRef(key, source); ref != nil {
			return nil, &heron.SchemaError{Column: ref.Name, Reason: "column does not belong to the sorted relation"}
		}
		if containsAggregate(key) {
			return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: key.Shape, Context: "aggregate call in sort key"}
		}
	}
	return b.internNode(&Node{
		Schema:   source.Schema,
		NodeType: NodeTypeSort,
		Sort:     &Sort{Source: source, Keys: keys, Directions: directions},
	}), nil
}

// Limit keeps at most count rows after skipping offset rows. A count of -1
// applies only the offset.
func (b *Builder) Limit(source *Node, count, offset int64) (*Node, error) {
	if count < -1 {
		return nil, errors.Errorf("limit count must be non-negative, got %d", count)
	}
	if offset < 0 {
		return nil, errors.Errorf("limit offset must be non-negative, got %d", offset)
	}
	return b.internNode(&Node{
		Schema:   source.Schema,
		NodeType: NodeTypeLimit,
		Limit:    &Limit{Source: source, Count: count, Offset: offset},
	}), nil
}

// Distinct removes duplicate rows.
func (b *Builder) Distinct(source *Node) (*Node, error) {
	return b.internNode(&Node{
		Schema:   source.Schema,
		NodeType: NodeTypeDistinct,
		Distinct: &Distinct{Source: source},
	}), nil
}

func (b *Builder) Union(left, right *Node, all bool) (*Node, error) {
	return b.setOp(left, right, SetOpUnion, all)
}

func (b *Builder) Intersect(left, right *Node, all bool) (*Node, error) {
	return b.setOp(left, right, SetOpIntersect, all)
}

func (b *Builder) Except(left, right *Node, all bool) (*Node, error) {
	return b.setOp(left, right, SetOpExcept, all)
}

func (b *Builder) setOp(left, right *Node, kind SetOpKind, all bool) (*Node, error) {
	if len(left.Schema.Fields) != len(right.Schema.Fields) {
		return nil, &heron.SchemaError{Reason: "set operation operands have different column counts"}
	}
	fields := make([]heron.SchemaField, len(left.Schema.Fields))
	for i := range left.Schema.Fields {
		promoted, err := heron.Promote(left.Schema.Fields[i].Type, right.Schema.Fields[i].Type)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't promote column %q of %s", left.Schema.Fields[i].Name, kind)
		}
		fields[i] = heron.SchemaField{Name: left.Schema.Fields[i].Name, Type: promoted}
	}
	return b.internNode(&Node{
		Schema:   heron.Schema{Fields: fields},
		NodeType: NodeTypeSetOp,
		SetOp:    &SetOp{Left: left, Right: right, Kind: kind, All: all},
	}), nil
}

// SQL wraps literal query text over a prior relation. The schema comes from
// the configured Describer; the text itself is never parsed.
func (b *Builder) SQL(dialect string, source *Node, query string) (*Node, error) {
	schema, err := b.describe(dialect, query)
	if err != nil {
		return nil, err
	}
	return b.internNode(&Node{
		Schema:         schema,
		NodeType:       NodeTypeOpaqueRelation,
		OpaqueRelation: &OpaqueRelation{Source: source, Dialect: dialect, Query: query},
	}), nil
}

// SQLQuery wraps standalone literal query text with no reference back into
// the tree.
func (b *Builder) SQLQuery(dialect string, query string) (*Node, error) {
	schema, err := b.describe(dialect, query)
	if err != nil {
		return nil, err
	}
	return b.internNode(&Node{
		Schema:      schema,
		NodeType:    NodeTypeOpaqueQuery,
		OpaqueQuery: &OpaqueQuery{Dialect: dialect, Query: query},
	}), nil
}

func (b *Builder) describe(dialect string, query string) (heron.Schema, error) {
	if b.describer == nil {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialect, Query: query, Err: errors.New("no describer configured")}
	}
	schema, err := b.describer.DescribeColumns(dialect, query)
	if err != nil {
		if _, ok := err.(*heron.SchemaIntrospectionError); ok {
			return heron.Schema{}, err
		}
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialect, Query: query, Err: err}
	}
	if len(schema.Fields) == 0 {
		return heron.Schema{}, &heron.SchemaIntrospectionError{Dialect: dialect, Query: query, Err: errors.New("described schema has no columns")}
	}
	return schema, nil
}
