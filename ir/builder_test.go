package ir_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heronql/heron"
	"github.com/heronql/heron/ir"
)

func usersSchema(t *testing.T) heron.Schema {
	t.Helper()
	schema, err := heron.NewSchema(
		heron.SchemaField{Name: "id", Type: heron.Int64},
		heron.SchemaField{Name: "name", Type: heron.String},
		heron.SchemaField{Name: "age", Type: heron.Int32},
	)
	require.NoError(t, err)
	return schema
}

func ordersSchema(t *testing.T) heron.Schema {
	t.Helper()
	schema, err := heron.NewSchema(
		heron.SchemaField{Name: "order_id", Type: heron.Int64},
		heron.SchemaField{Name: "user_id", Type: heron.Int64},
		heron.SchemaField{Name: "amount", Type: heron.Decimal(10, 2)},
	)
	require.NoError(t, err)
	return schema
}

func adultsFilter(t *testing.T, b *ir.Builder) *ir.Node {
	t.Helper()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)
	adult, err := b.Greater(age, b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	filtered, err := b.Filter(users, adult)
	require.NoError(t, err)
	return filtered
}

func TestInterningIdentity(t *testing.T) {
	b := ir.NewBuilder()

	first := adultsFilter(t, b)
	second := adultsFilter(t, b)
	require.Same(t, first, second)

	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)
	older, err := b.Greater(age, b.Literal(heron.NewInt32(21)))
	require.NoError(t, err)
	different, err := b.Filter(users, older)
	require.NoError(t, err)
	require.NotSame(t, first, different)
}

func TestExpressionInterning(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)

	first, err := b.Column(users, "id")
	require.NoError(t, err)
	second, err := b.Column(users, "id")
	require.NoError(t, err)
	require.Same(t, first, second)

	sum1, err := b.Add(first, b.Literal(heron.NewInt64(1)))
	require.NoError(t, err)
	sum2, err := b.Add(second, b.Literal(heron.NewInt64(1)))
	require.NoError(t, err)
	require.Same(t, sum1, sum2)
}

func TestFingerprintStableAcrossBuilders(t *testing.T) {
	first := adultsFilter(t, ir.NewBuilder())
	second := adultsFilter(t, ir.NewBuilder())
	require.NotSame(t, first, second)
	require.Equal(t, first.Fingerprint(), second.Fingerprint())
}

func TestColumnResolution(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)

	id, err := b.Column(users, "id")
	require.NoError(t, err)
	require.True(t, heron.Int64.Equal(id.Type))
	require.Equal(t, heron.ShapeColumnar, id.Shape)

	_, err = b.Column(users, "missing")
	var schemaErr *heron.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Equal(t, "missing", schemaErr.Column)
}

func TestProjectValidation(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	orders, err := b.Table("orders", ordersSchema(t))
	require.NoError(t, err)

	id, err := b.Column(users, "id")
	require.NoError(t, err)
	amount, err := b.Column(orders, "amount")
	require.NoError(t, err)

	// Reference into a relation that is not the projection source.
	_, err = b.Project(users, ir.Unnamed(amount))
	var schemaErr *heron.SchemaError
	require.True(t, errors.As(err, &schemaErr))

	// Duplicate output names.
	_, err = b.Project(users, ir.Unnamed(id), ir.Named("id", id))
	require.True(t, errors.As(err, &schemaErr))

	// Computed column without a name.
	doubled, err := b.Multiply(id, b.Literal(heron.NewInt64(2)))
	require.NoError(t, err)
	_, err = b.Project(users, ir.Unnamed(doubled))
	require.Error(t, err)

	// Aggregate call outside an aggregation.
	total, err := b.Sum(id)
	require.NoError(t, err)
	_, err = b.Project(users, ir.Named("total", total))
	var shapeErr *heron.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))

	// Projection schema follows the given order and names.
	projected, err := b.Project(users, ir.Named("user_id", id), ir.Named("doubled", doubled))
	require.NoError(t, err)
	require.Equal(t, "{user_id: int64, doubled: int64}", projected.Schema.String())
}

func TestFilterValidation(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)

	age, err := b.Column(users, "age")
	require.NoError(t, err)

	// Non-boolean predicate.
	_, err = b.Filter(users, age)
	var typeErr *heron.TypeMismatchError
	require.True(t, errors.As(err, &typeErr))

	// Scalar predicate.
	_, err = b.Filter(users, b.Literal(heron.NewBoolean(true)))
	var shapeErr *heron.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))

	// Filter preserves the schema.
	adult, err := b.Greater(age, b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	filtered, err := b.Filter(users, adult)
	require.NoError(t, err)
	require.True(t, users.Schema.Equal(filtered.Schema))
}

func TestAggregateValidation(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)
	id, err := b.Column(users, "id")
	require.NoError(t, err)

	// A reducer must be an aggregate call.
	_, err = b.Aggregate(users, nil, []ir.NamedExpr{ir.Named("n", id)})
	var shapeErr *heron.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))

	total, err := b.Sum(id)
	require.NoError(t, err)
	agg, err := b.Aggregate(users,
		[]ir.NamedExpr{ir.Unnamed(age)},
		[]ir.NamedExpr{ir.Named("n", b.CountStar()), ir.Named("total", total)},
	)
	require.NoError(t, err)
	require.Equal(t, "{age: int32, n: int64, total: int64}", agg.Schema.String())
}

func TestAggregateResultTypes(t *testing.T) {
	b := ir.NewBuilder()
	orders, err := b.Table("orders", ordersSchema(t))
	require.NoError(t, err)
	amount, err := b.Column(orders, "amount")
	require.NoError(t, err)
	userID, err := b.Column(orders, "user_id")
	require.NoError(t, err)

	sum, err := b.Sum(amount)
	require.NoError(t, err)
	require.True(t, heron.Decimal(38, 2).Equal(sum.Type))

	avg, err := b.Avg(userID)
	require.NoError(t, err)
	require.True(t, heron.Float64.Equal(avg.Type))

	distinct, err := b.CountDistinct(userID)
	require.NoError(t, err)
	require.True(t, heron.Int64.Equal(distinct.Type))

	least, err := b.Min(amount)
	require.NoError(t, err)
	require.True(t, amount.Type.Equal(least.Type))
}

func TestJoinSchemas(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	orders, err := b.Table("orders", ordersSchema(t))
	require.NoError(t, err)

	userID, err := b.Column(users, "id")
	require.NoError(t, err)
	orderUserID, err := b.Column(orders, "user_id")
	require.NoError(t, err)
	on, err := b.Equal(userID, orderUserID)
	require.NoError(t, err)

	inner, err := b.Join(users, orders, ir.JoinInner, on)
	require.NoError(t, err)
	require.Equal(t, 6, len(inner.Schema.Fields))
	require.False(t, inner.Schema.Fields[3].Type.Nullable)

	left, err := b.Join(users, orders, ir.JoinLeft, on)
	require.NoError(t, err)
	require.False(t, left.Schema.Fields[0].Type.Nullable)
	require.True(t, left.Schema.Fields[3].Type.Nullable)

	outer, err := b.Join(users, orders, ir.JoinOuter, on)
	require.NoError(t, err)
	require.True(t, outer.Schema.Fields[0].Type.Nullable)
	require.True(t, outer.Schema.Fields[5].Type.Nullable)

	semi, err := b.Join(users, orders, ir.JoinSemi, on)
	require.NoError(t, err)
	require.True(t, users.Schema.Equal(semi.Schema))

	anti, err := b.Join(users, orders, ir.JoinAnti, on)
	require.NoError(t, err)
	require.True(t, users.Schema.Equal(anti.Schema))
}

func TestJoinDuplicateColumns(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	others, err := b.Table("other_users", usersSchema(t))
	require.NoError(t, err)

	leftID, err := b.Column(users, "id")
	require.NoError(t, err)
	rightID, err := b.Column(others, "id")
	require.NoError(t, err)
	on, err := b.Equal(leftID, rightID)
	require.NoError(t, err)

	_, err = b.Join(users, others, ir.JoinInner, on)
	var schemaErr *heron.SchemaError
	require.True(t, errors.As(err, &schemaErr))

	// Semi joins keep only the left schema, so name overlap is fine.
	_, err = b.Join(users, others, ir.JoinSemi, on)
	require.NoError(t, err)
}

func TestSetOps(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	orders, err := b.Table("orders", ordersSchema(t))
	require.NoError(t, err)

	narrowUsers, err := b.Select(users, "id")
	require.NoError(t, err)
	_, err = b.Union(narrowUsers, users, false)
	var schemaErr *heron.SchemaError
	require.True(t, errors.As(err, &schemaErr))

	// Types promote pairwise, names come from the left.
	narrowOrders, err := b.Select(orders, "user_id")
	require.NoError(t, err)
	union, err := b.Union(narrowUsers, narrowOrders, true)
	require.NoError(t, err)
	require.Equal(t, "{id: int64}", union.Schema.String())

	// Incompatible column types fail.
	names, err := b.Select(users, "name")
	require.NoError(t, err)
	_, err = b.Union(narrowUsers, names, false)
	require.Error(t, err)
}

type stubDescriber struct {
	schema heron.Schema
	err    error
	calls  int
}

func (d *stubDescriber) DescribeColumns(dialectName string, query string) (heron.Schema, error) {
	d.calls++
	if d.err != nil {
		return heron.Schema{}, d.err
	}
	return d.schema, nil
}

func TestOpaqueNodes(t *testing.T) {
	plain := ir.NewBuilder()
	_, err := plain.SQLQuery("postgres", "SELECT 1 AS x")
	var introspectionErr *heron.SchemaIntrospectionError
	require.True(t, errors.As(err, &introspectionErr))

	schema, err := heron.NewSchema(heron.SchemaField{Name: "x", Type: heron.Int64})
	require.NoError(t, err)
	describer := &stubDescriber{schema: schema}
	b := ir.NewBuilder(ir.WithDescriber(describer))

	query, err := b.SQLQuery("postgres", "SELECT 1 AS x")
	require.NoError(t, err)
	require.True(t, schema.Equal(query.Schema))

	again, err := b.SQLQuery("postgres", "SELECT 1 AS x")
	require.NoError(t, err)
	require.Same(t, query, again)

	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	relation, err := b.SQL("postgres", users, "SELECT count(*) AS x FROM users")
	require.NoError(t, err)
	require.True(t, schema.Equal(relation.Schema))

	failing := ir.NewBuilder(ir.WithDescriber(&stubDescriber{err: errors.New("connection refused")}))
	_, err = failing.SQLQuery("postgres", "SELECT 1")
	require.True(t, errors.As(err, &introspectionErr))
	require.Contains(t, err.Error(), "connection refused")
}

func TestSortWindowLimitValidation(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)

	_, err = b.Sort(users, []*ir.Expression{age}, nil)
	require.Error(t, err)

	_, err = b.Limit(users, -2, 0)
	require.Error(t, err)
	_, err = b.Limit(users, 10, -1)
	require.Error(t, err)

	rowNumber, err := b.WindowFunc("row_number")
	require.NoError(t, err)

	// Ranking functions require an ordered window.
	_, err = b.Window(users, "rn", rowNumber, nil, nil, nil, nil)
	require.Error(t, err)

	id, err := b.Column(users, "id")
	require.NoError(t, err)
	windowed, err := b.Window(users, "rn", rowNumber,
		[]*ir.Expression{age}, []*ir.Expression{id}, []ir.OrderDirection{ir.Ascending}, nil)
	require.NoError(t, err)
	require.Equal(t, "{id: int64, name: string, age: int32, rn: int64}", windowed.Schema.String())

	// The window column must not shadow an existing one.
	_, err = b.Window(users, "age", rowNumber,
		nil, []*ir.Expression{id}, []ir.OrderDirection{ir.Ascending}, nil)
	var schemaErr *heron.SchemaError
	require.True(t, errors.As(err, &schemaErr))
}

func TestCastRules(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)
	name, err := b.Column(users, "name")
	require.NoError(t, err)

	widened, err := b.Cast(age, heron.Int64)
	require.NoError(t, err)
	require.True(t, heron.Int64.Equal(widened.Type))

	asString, err := b.Cast(age, heron.String)
	require.NoError(t, err)
	require.True(t, heron.String.Equal(asString.Type))

	parsed, err := b.Cast(name, heron.Int64)
	require.NoError(t, err)
	require.True(t, heron.Int64.Equal(parsed.Type))

	_, err = b.Cast(name, heron.List(heron.Int64))
	var typeErr *heron.TypeMismatchError
	require.True(t, errors.As(err, &typeErr))
}

func TestDivisionAndModulo(t *testing.T) {
	b := ir.NewBuilder()
	users, err := b.Table("users", usersSchema(t))
	require.NoError(t, err)
	age, err := b.Column(users, "age")
	require.NoError(t, err)
	id, err := b.Column(users, "id")
	require.NoError(t, err)

	ratio, err := b.Divide(id, age)
	require.NoError(t, err)
	require.True(t, heron.Float64.Equal(ratio.Type))

	remainder, err := b.Modulo(id, age)
	require.NoError(t, err)
	require.True(t, heron.Int64.Equal(remainder.Type))

	_, err = b.Modulo(id, b.Literal(heron.NewFloat64(2)))
	require.Error(t, err)
}
