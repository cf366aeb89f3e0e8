package ir

import (
	"github.com/pkg/errors"

	"github.com/heronql/heron"
)

// Column resolves name in the schema of exactly one relation.
func (b *Builder) Column(relation *Node, name string) (*Expression, error) {
	index := relation.Schema.FieldIndex(name)
	if index < 0 {
		return nil, &heron.SchemaError{Column: name, Reason: "no such column in relation"}
	}
	return b.internExpr(&Expression{
		Type:           relation.Schema.Fields[index].Type,
		Shape:          heron.ShapeColumnar,
		ExpressionType: ExpressionTypeColumnRef,
		ColumnRef:      &ColumnRef{Relation: relation, Name: name, Index: index},
	}), nil
}

func (b *Builder) Literal(value heron.Value) *Expression {
	return b.internExpr(&Expression{
		Type:           value.Type,
		Shape:          heron.ShapeScalar,
		ExpressionType: ExpressionTypeLiteral,
		Literal:        &Literal{Value: value},
	})
}

// combineShapes broadcasts scalars: the result is columnar as soon as one
// argument is.
func combineShapes(args ...*Expression) heron.Shape {
	for _, arg := range args {
		if arg.Shape == heron.ShapeColumnar {
			return heron.ShapeColumnar
		}
	}
	return heron.ShapeScalar
}

func (b *Builder) Add(left, right *Expression) (*Expression, error) {
	return b.arith(OpAdd, left, right)
}

func (b *Builder) Subtract(left, right *Expression) (*Expression, error) {
	return b.arith(OpSubtract, left, right)
}

func (b *Builder) Multiply(left, right *Expression) (*Expression, error) {
	return b.arith(OpMultiply, left, right)
}

func (b *Builder) Divide(left, right *Expression) (*Expression, error) {
	return b.arith(OpDivide, left, right)
}

func (b *Builder) Modulo(left, right *Expression) (*Expression, error) {
	return b.arith(OpModulo, left, right)
}

func (b *Builder) arith(op ArithmeticOp, left, right *Expression) (*Expression, error) {
	if !left.Type.IsNumeric() || !right.Type.IsNumeric() {
		return nil, &heron.TypeMismatchError{Left: left.Type, Right: right.Type, Context: "arithmetic operands must be numeric"}
	}
	if op == OpModulo && (!left.Type.IsInteger() || !right.Type.IsInteger()) {
		return nil, &heron.TypeMismatchError{Left: left.Type, Right: right.Type, Context: "modulo operands must be integers"}
	}
	out, err := heron.Promote(left.Type, right.Type)
	if err != nil {
		return nil, err
	}
	// Division is true division regardless of operand types.
	if op == OpDivide && out.TypeID != heron.TypeIDDecimal {
		out = heron.Float64.WithNullable(out.Nullable)
	}
	return b.internExpr(&Expression{
		Type:           out,
		Shape:          combineShapes(left, right),
		ExpressionType: ExpressionTypeArithmetic,
		Arithmetic:     &Arithmetic{Op: op, Left: left, Right: right},
	}), nil
}

func (b *Builder) Equal(left, right *Expression) (*Expression, error) {
	return b.compare(OpEqual, left, right)
}

func (b *Builder) NotEqual(left, right *Expression) (*Expression, error) {
	return b.compare(OpNotEqual, left, right)
}

func (b *Builder) Less(left, right *Expression) (*Expression, error) {
	return b.compare(OpLess, left, right)
}

func (b *Builder) LessEqual(left, right *Expression) (*Expression, error) {
	return b.compare(OpLessEqual, left, right)
}

func (b *Builder) Greater(left, right *Expression) (*Expression, error) {
	return b.compare(OpGreater, left, right)
}

func (b *Builder) GreaterEqual(left, right *Expression) (*Expression, error) {
	return b.compare(OpGreaterEqual, left, right)
}

func (b *Builder) compare(op CompareOp, left, right *Expression) (*Expression, error) {
	common, err := heron.Promote(left.Type, right.Type)
	if err != nil {
		return nil, err
	}
	if op != OpEqual && op != OpNotEqual && !orderable(common) {
		return nil, &heron.TypeMismatchError{Left: left.Type, Right: right.Type, Context: "ordering comparison requires orderable operands"}
	}
	return b.internExpr(&Expression{
		Type:           heron.Boolean.WithNullable(common.Nullable),
		Shape:          combineShapes(left, right),
		ExpressionType: ExpressionTypeCompare,
		Compare:        &Compare{Op: op, Left: left, Right: right},
	}), nil
}

func (b *Builder) And(args ...*Expression) (*Expression, error) {
	return b.connective(ExpressionTypeAnd, args)
}

func (b *Builder) Or(args ...*Expression) (*Expression, error) {
	return b.connective(ExpressionTypeOr, args)
}

func (b *Builder) connective(kind ExpressionType, args []*Expression) (*Expression, error) {
	if len(args) < 2 {
		return nil, errors.Errorf("%s requires at least two arguments", kind)
	}
	nullable := false
	for _, arg := range args {
		if arg.Type.TypeID != heron.TypeIDBoolean {
			return nil, &heron.TypeMismatchError{Left: arg.Type, Right: heron.Boolean, Context: kind.String() + " argument"}
		}
		nullable = nullable || arg.Type.Nullable
	}
	out := &Expression{
		Type:           heron.Boolean.WithNullable(nullable),
		Shape:          combineShapes(args...),
		ExpressionType: kind,
	}
	if kind == ExpressionTypeAnd {
		out.And = &And{Arguments: args}
	} else {
		out.Or = &Or{Arguments: args}
	}
	return b.internExpr(out), nil
}

func (b *Builder) Not(arg *Expression) (*Expression, error) {
	if arg.Type.TypeID != heron.TypeIDBoolean {
		return nil, &heron.TypeMismatchError{Left: arg.Type, Right: heron.Boolean, Context: "not argument"}
	}
	return b.internExpr(&Expression{
		Type:           arg.Type,
		Shape:          arg.Shape,
		ExpressionType: ExpressionTypeNot,
		Not:            &Not{Argument: arg},
	}), nil
}

// Call builds a scalar function call. The function must be known; unknown
// names fail at construction, not at compile time.
func (b *Builder) Call(name string, args ...*Expression) (*Expression, error) {
	signature, ok := scalarFunctions[name]
	if !ok {
		if IsWindowFunction(name) {
			return nil, errors.Errorf("function %q must be evaluated over a window", name)
		}
		return nil, errors.Errorf("unknown function %q", name)
	}
	if err := checkArity(name, signature, len(args)); err != nil {
		return nil, err
	}
	outType, err := signature.typeFn(args)
	if err != nil {
		return nil, err
	}
	return b.internExpr(&Expression{
		Type:           outType,
		Shape:          combineShapes(args...),
		ExpressionType: ExpressionTypeFunctionCall,
		FunctionCall:   &FunctionCall{Name: name, Arguments: args},
	}), nil
}

// WindowFunc builds a window-only function call for use as the function of a
// Window node.
func (b *Builder) WindowFunc(name string, args ...*Expression) (*Expression, error) {
	signature, ok := windowFunctions[name]
	if !ok {
		return nil, errors.Errorf("unknown window function %q", name)
	}
	if err := checkArity(name, signature, len(args)); err != nil {
		return nil, err
	}
	outType, err := signature.typeFn(args)
	if err != nil {
		return nil, err
	}
	return b.internExpr(&Expression{
		Type:           outType,
		Shape:          heron.ShapeColumnar,
		ExpressionType: ExpressionTypeFunctionCall,
		FunctionCall:   &FunctionCall{Name: name, Arguments: args},
	}), nil
}

func checkArity(name string, signature functionSignature, got int) error {
	if got < signature.minArgs {
		return errors.Errorf("function %q takes at least %d arguments, got %d", name, signature.minArgs, got)
	}
	if signature.maxArgs >= 0 && got > signature.maxArgs {
		return errors.Errorf("function %q takes at most %d arguments, got %d", name, signature.maxArgs, got)
	}
	return nil
}

func (b *Builder) Sum(arg *Expression) (*Expression, error) {
	return b.aggCall("sum", arg, false)
}

func (b *Builder) Avg(arg *Expression) (*Expression, error) {
	return b.aggCall("avg", arg, false)
}

func (b *Builder) Min(arg *Expression) (*Expression, error) {
	return b.aggCall("min", arg, false)
}

func (b *Builder) Max(arg *Expression) (*Expression, error) {
	return b.aggCall("max", arg, false)
}

func (b *Builder) Count(arg *Expression) (*Expression, error) {
	return b.aggCall("count", arg, false)
}

func (b *Builder) CountDistinct(arg *Expression) (*Expression, error) {
	return b.aggCall("count", arg, true)
}

// CountStar counts rows, ignoring nulls in no particular column.
func (b *Builder) CountStar() *Expression {
	return b.internExpr(&Expression{
		Type:           heron.Int64,
		Shape:          heron.ShapeScalar,
		ExpressionType: ExpressionTypeAggregateCall,
		AggregateCall:  &AggregateCall{Name: "count"},
	})
}

func (b *Builder) aggCall(name string, arg *Expression, distinct bool) (*Expression, error) {
	if arg.Shape != heron.ShapeColumnar {
		return nil, &heron.ShapeMismatchError{Wanted: heron.ShapeColumnar, Got: arg.Shape, Context: name + " argument"}
	}
	outType, err := aggregateResultType(name, arg)
	if err != nil {
		return nil, err
	}
	return b.internExpr(&Expression{
		Type:           outType,
		Shape:          heron.ShapeScalar,
		ExpressionType: ExpressionTypeAggregateCall,
		AggregateCall:  &AggregateCall{Name: name, Argument: arg, Distinct: distinct},
	}), nil
}

// Cast converts a value to an explicitly named type. Only conversions with a
// defined meaning are allowed.
func (b *Builder) Cast(arg *Expression, target heron.Type) (*Expression, error) {
	if !castable(arg.Type, target) {
		return nil, &heron.TypeMismatchError{Left: arg.Type, Right: target, Context: "cast"}
	}
	outType := target.WithNullable(target.Nullable || arg.Type.Nullable)
	return b.internExpr(&Expression{
		Type:           outType,
		Shape:          arg.Shape,
		ExpressionType: ExpressionTypeCast,
		Cast:           &Cast{Argument: arg, Target: outType},
	}), nil
}

func castable(from, to heron.Type) bool {
	if from.TypeID == to.TypeID {
		return true
	}
	if from.IsNumeric() && to.IsNumeric() {
		return true
	}
	// Strings format and parse against every primitive.
	if from.TypeID == heron.TypeIDString || to.TypeID == heron.TypeIDString {
		switch other := pick(from, to); other.TypeID {
		case heron.TypeIDList, heron.TypeIDMap, heron.TypeIDStruct:
			return false
		default:
			return true
		}
	}
	if from.TypeID == heron.TypeIDBoolean && to.IsInteger() {
		return true
	}
	if from.IsInteger() && to.TypeID == heron.TypeIDBoolean {
		return true
	}
	if from.TypeID == heron.TypeIDDate && to.TypeID == heron.TypeIDTimestamp {
		return true
	}
	if from.TypeID == heron.TypeIDTimestamp && (to.TypeID == heron.TypeIDDate || to.TypeID == heron.TypeIDTime) {
		return true
	}
	return false
}

func pick(from, to heron.Type) heron.Type {
	if from.TypeID == heron.TypeIDString {
		return to
	}
	return from
}
