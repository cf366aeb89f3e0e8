package compile_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/heronql/heron"
	"github.com/heronql/heron/compile"
	"github.com/heronql/heron/dialect"
	"github.com/heronql/heron/ir"
)

func usersTable(t *testing.T, b *ir.Builder) *ir.Node {
	t.Helper()
	schema, err := heron.NewSchema(
		heron.SchemaField{Name: "id", Type: heron.Int64},
		heron.SchemaField{Name: "name", Type: heron.String},
		heron.SchemaField{Name: "age", Type: heron.Int32},
	)
	require.NoError(t, err)
	users, err := b.Table("users", schema)
	require.NoError(t, err)
	return users
}

func ordersTable(t *testing.T, b *ir.Builder) *ir.Node {
	t.Helper()
	schema, err := heron.NewSchema(
		heron.SchemaField{Name: "order_id", Type: heron.Int64},
		heron.SchemaField{Name: "user_id", Type: heron.Int64},
		heron.SchemaField{Name: "amount", Type: heron.Decimal(10, 2)},
	)
	require.NoError(t, err)
	orders, err := b.Table("orders", schema)
	require.NoError(t, err)
	return orders
}

func column(t *testing.T, b *ir.Builder, relation *ir.Node, name string) *ir.Expression {
	t.Helper()
	out, err := b.Column(relation, name)
	require.NoError(t, err)
	return out
}

func userOrderJoinOn(t *testing.T, b *ir.Builder, users, orders *ir.Node) *ir.Expression {
	t.Helper()
	on, err := b.Equal(column(t, b, users, "id"), column(t, b, orders, "user_id"))
	require.NoError(t, err)
	return on
}

func render(t *testing.T, b *ir.Builder, root *ir.Node, d *dialect.Dialect) string {
	t.Helper()
	query, err := compile.Compile(b, root, d, compile.Options{})
	require.NoError(t, err)
	return query.Render()
}

func TestCompileFilterProject(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	adult, err := b.Greater(column(t, b, users, "age"), b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	filtered, err := b.Filter(users, adult)
	require.NoError(t, err)
	narrowed, err := b.Select(filtered, "id", "name")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "filter_project_postgres", []byte(render(t, b, narrowed, dialect.Postgres())))
}

func TestCompileAggregate(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	total, err := b.Sum(column(t, b, users, "id"))
	require.NoError(t, err)
	agg, err := b.Aggregate(users,
		[]ir.NamedExpr{ir.Unnamed(column(t, b, users, "age"))},
		[]ir.NamedExpr{ir.Named("n", b.CountStar()), ir.Named("total", total)},
	)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "aggregate_postgres", []byte(render(t, b, agg, dialect.Postgres())))
}

func TestCompileWindow(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	rowNumber, err := b.WindowFunc("row_number")
	require.NoError(t, err)
	windowed, err := b.Window(users, "rn", rowNumber,
		[]*ir.Expression{column(t, b, users, "age")},
		[]*ir.Expression{column(t, b, users, "id")},
		[]ir.OrderDirection{ir.Ascending}, nil)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "window_postgres", []byte(render(t, b, windowed, dialect.Postgres())))

	noWindows := dialect.Postgres()
	noWindows.Name = "nowindows"
	noWindows.Capabilities.WindowFunctions = false
	_, err = compile.Compile(b, windowed, noWindows, compile.Options{})
	var unsupported *heron.UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "window functions", unsupported.Operation)
}

func TestCompileSortLimit(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	sorted, err := b.Sort(users,
		[]*ir.Expression{column(t, b, users, "age")},
		[]ir.OrderDirection{ir.Descending})
	require.NoError(t, err)
	limited, err := b.Limit(sorted, 10, 5)
	require.NoError(t, err)

	require.Equal(t,
		"SELECT * FROM users AS t0 ORDER BY t0.age DESC LIMIT 10 OFFSET 5",
		render(t, b, limited, dialect.Postgres()))
	require.Equal(t,
		"SELECT * FROM users AS t0 ORDER BY t0.age DESC LIMIT 5, 10",
		render(t, b, limited, dialect.MySQL()))

	offsetOnly, err := b.Limit(users, -1, 5)
	require.NoError(t, err)
	require.Equal(t,
		"SELECT * FROM users AS t0 LIMIT -1 OFFSET 5",
		render(t, b, offsetOnly, dialect.SQLite()))
	require.Equal(t,
		"SELECT * FROM users AS t0 OFFSET 5",
		render(t, b, offsetOnly, dialect.Postgres()))
}

func TestCompileDistinct(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	ids, err := b.Select(users, "id")
	require.NoError(t, err)
	distinct, err := b.Distinct(ids)
	require.NoError(t, err)

	require.Equal(t,
		"SELECT DISTINCT t0.id AS id FROM users AS t0",
		render(t, b, distinct, dialect.Postgres()))
}

func TestCompileSemiJoin(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	semi, err := b.Join(users, orders, ir.JoinSemi, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)

	require.Equal(t,
		"SELECT * FROM users AS t0 WHERE EXISTS (SELECT 1 FROM orders AS t1 WHERE (t0.id = t1.user_id))",
		render(t, b, semi, dialect.Postgres()))
	require.Equal(t,
		"SELECT * FROM users AS t0 SEMI JOIN orders AS t1 ON (t0.id = t1.user_id)",
		render(t, b, semi, dialect.DuckDB()))
}

func TestCompileAntiJoin(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	anti, err := b.Join(users, orders, ir.JoinAnti, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "anti_join_postgres", []byte(render(t, b, anti, dialect.Postgres())))
	g.Assert(t, "anti_join_duckdb", []byte(render(t, b, anti, dialect.DuckDB())))
}

func TestCompileRightJoinWithoutNativeSupport(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	right, err := b.Join(users, orders, ir.JoinRight, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)

	require.Equal(t,
		"SELECT * FROM users AS t0 RIGHT JOIN orders AS t1 ON (t0.id = t1.user_id)",
		render(t, b, right, dialect.Postgres()))

	g := goldie.New(t)
	g.Assert(t, "right_join_sqlite", []byte(render(t, b, right, dialect.SQLite())))
}

func TestCompileFullOuterWithoutNativeSupport(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	outer, err := b.Join(users, orders, ir.JoinOuter, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)

	require.Equal(t,
		"SELECT * FROM users AS t0 FULL OUTER JOIN orders AS t1 ON (t0.id = t1.user_id)",
		render(t, b, outer, dialect.Postgres()))

	g := goldie.New(t)
	g.Assert(t, "full_outer_mysql", []byte(render(t, b, outer, dialect.MySQL())))
}

func intersectTables(t *testing.T, b *ir.Builder) (*ir.Node, *ir.Node) {
	t.Helper()
	schema, err := heron.NewSchema(heron.SchemaField{Name: "x", Type: heron.Int64})
	require.NoError(t, err)
	left, err := b.Table("a", schema)
	require.NoError(t, err)
	right, err := b.Table("b", schema)
	require.NoError(t, err)
	return left, right
}

func TestCompileSetOps(t *testing.T) {
	b := ir.NewBuilder()
	left, right := intersectTables(t, b)

	intersect, err := b.Intersect(left, right, false)
	require.NoError(t, err)
	require.Equal(t,
		"SELECT * FROM (SELECT * FROM a AS t0 INTERSECT SELECT * FROM b AS t1) AS t2",
		render(t, b, intersect, dialect.Postgres()))
	require.Equal(t,
		"SELECT DISTINCT t0.x FROM a AS t0 WHERE EXISTS (SELECT 1 FROM b AS t1 WHERE t0.x <=> t1.x)",
		render(t, b, intersect, dialect.MySQL()))

	except, err := b.Except(left, right, false)
	require.NoError(t, err)
	require.Equal(t,
		"SELECT DISTINCT t0.x FROM a AS t0 WHERE NOT EXISTS (SELECT 1 FROM b AS t1 WHERE t0.x <=> t1.x)",
		render(t, b, except, dialect.MySQL()))

	union, err := b.Union(left, right, false)
	require.NoError(t, err)
	require.Equal(t,
		"SELECT * FROM (SELECT * FROM a AS t0 UNION DISTINCT SELECT * FROM b AS t1) AS t2",
		render(t, b, union, dialect.BigQuery()))

	intersectAll, err := b.Intersect(left, right, true)
	require.NoError(t, err)
	_, err = compile.Compile(b, intersectAll, dialect.MySQL(), compile.Options{})
	var notYet *heron.NotYetImplementedError
	require.True(t, errors.As(err, &notYet))
	require.Equal(t, "INTERSECT ALL", notYet.Operation)
}

func TestCompileSharedSubtreeBecomesCTE(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	adult, err := b.Greater(column(t, b, users, "age"), b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	base, err := b.Filter(users, adult)
	require.NoError(t, err)

	left, err := b.Project(base, ir.Named("uid", column(t, b, base, "id")))
	require.NoError(t, err)
	right, err := b.Select(base, "id")
	require.NoError(t, err)
	diamond, err := b.Union(left, right, true)
	require.NoError(t, err)

	query, err := compile.Compile(b, diamond, dialect.Postgres(), compile.Options{})
	require.NoError(t, err)
	require.Len(t, query.CTEs, 1)
	require.Equal(t, "cte0", query.CTEs[0].Name)
	require.Equal(t, 1, query.Stats()[base])

	g := goldie.New(t)
	g.Assert(t, "diamond_cte_postgres", []byte(query.Render()))
}

func TestCompileOpaqueRootPassesThrough(t *testing.T) {
	schema, err := heron.NewSchema(heron.SchemaField{Name: "x", Type: heron.Int64})
	require.NoError(t, err)
	b := ir.NewBuilder(ir.WithDescriber(fixedDescriber{schema: schema}))

	raw, err := b.SQLQuery("postgres", "SELECT 1 AS x")
	require.NoError(t, err)

	query, err := compile.Compile(b, raw, dialect.Postgres(), compile.Options{})
	require.NoError(t, err)
	require.Empty(t, query.CTEs)
	require.Equal(t, "SELECT 1 AS x", query.Render())

	// A filter over opaque text treats the text as a derived table.
	positive, err := b.Greater(column(t, b, raw, "x"), b.Literal(heron.NewInt64(0)))
	require.NoError(t, err)
	filtered, err := b.Filter(raw, positive)
	require.NoError(t, err)
	require.Equal(t,
		"SELECT * FROM (SELECT 1 AS x) AS t0 WHERE (t0.x > 0)",
		render(t, b, filtered, dialect.Postgres()))
}

type fixedDescriber struct {
	schema heron.Schema
}

func (d fixedDescriber) DescribeColumns(dialectName string, query string) (heron.Schema, error) {
	return d.schema, nil
}

func TestCompileForceQuoting(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	ids, err := b.Select(users, "id")
	require.NoError(t, err)

	query, err := compile.Compile(b, ids, dialect.Postgres(), compile.Options{ForceQuoting: true})
	require.NoError(t, err)
	require.Equal(t, `SELECT t0."id" AS "id" FROM "users" AS t0`, query.Render())

	// Reserved words are quoted even without forcing.
	schema, err := heron.NewSchema(heron.SchemaField{Name: "order", Type: heron.Int64})
	require.NoError(t, err)
	keywords, err := b.Table("keywords", schema)
	require.NoError(t, err)
	selected, err := b.Select(keywords, "order")
	require.NoError(t, err)
	require.Equal(t,
		`SELECT t0."order" AS "order" FROM keywords AS t0`,
		render(t, b, selected, dialect.Postgres()))
}

func TestCompileApplyRewrites(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	identity, err := b.Select(users, "id", "name", "age")
	require.NoError(t, err)
	adult, err := b.Greater(column(t, b, identity, "age"), b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	filtered, err := b.Filter(identity, adult)
	require.NoError(t, err)
	named, err := b.NotEqual(column(t, b, filtered, "name"), b.Literal(heron.NewString("")))
	require.NoError(t, err)
	refiltered, err := b.Filter(filtered, named)
	require.NoError(t, err)

	query, err := compile.Compile(b, refiltered, dialect.Postgres(), compile.Options{ApplyRewrites: true})
	require.NoError(t, err)
	require.Equal(t,
		"SELECT * FROM users AS t0 WHERE ((t0.age > 18) AND (t0.name <> ''))",
		query.Render())
}

func TestCompileDeterminism(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	joined, err := b.Join(users, orders, ir.JoinLeft, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)
	total, err := b.Sum(column(t, b, joined, "amount"))
	require.NoError(t, err)
	agg, err := b.Aggregate(joined,
		[]ir.NamedExpr{ir.Unnamed(column(t, b, joined, "name"))},
		[]ir.NamedExpr{ir.Named("total", total)},
	)
	require.NoError(t, err)

	registry := dialect.Default()
	for _, name := range registry.Names() {
		d, err := registry.Get(name)
		require.NoError(t, err)
		first := render(t, b, agg, d)
		second := render(t, b, agg, d)
		require.Equal(t, first, second, "dialect %s", name)
	}
}

func TestCompileJoinThenAggregate(t *testing.T) {
	b := ir.NewBuilder()
	users := usersTable(t, b)
	orders := ordersTable(t, b)
	joined, err := b.Join(users, orders, ir.JoinInner, userOrderJoinOn(t, b, users, orders))
	require.NoError(t, err)
	total, err := b.Sum(column(t, b, joined, "amount"))
	require.NoError(t, err)
	agg, err := b.Aggregate(joined,
		[]ir.NamedExpr{ir.Unnamed(column(t, b, joined, "name"))},
		[]ir.NamedExpr{ir.Named("total", total)},
	)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "join_aggregate_postgres", []byte(render(t, b, agg, dialect.Postgres())))
}

func TestCacheRendered(t *testing.T) {
	cache, err := compile.NewCache(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	b := ir.NewBuilder()
	users := usersTable(t, b)
	adult, err := b.Greater(column(t, b, users, "age"), b.Literal(heron.NewInt32(18)))
	require.NoError(t, err)
	filtered, err := b.Filter(users, adult)
	require.NoError(t, err)

	first, err := cache.Rendered(b, filtered, dialect.Postgres(), compile.Options{})
	require.NoError(t, err)
	second, err := cache.Rendered(b, filtered, dialect.Postgres(), compile.Options{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "SELECT * FROM users AS t0 WHERE (t0.age > 18)", first)

	// A different dialect misses the cache and renders its own text.
	mysql, err := cache.Rendered(b, filtered, dialect.MySQL(), compile.Options{})
	require.NoError(t, err)
	require.Equal(t, "SELECT * FROM users AS t0 WHERE (t0.age > 18)", mysql)
}
