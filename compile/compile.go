// Package compile lowers expression trees to SQL text for a target dialect.
// Compilation is pure: the same tree, dialect and options always render to
// byte-identical text.
package compile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/heronql/heron"
	"github.com/heronql/heron/dialect"
	"github.com/heronql/heron/ir"
	"github.com/heronql/heron/rewrite"
)

type Options struct {
	// ApplyRewrites runs the default simplification rules before lowering.
	ApplyRewrites bool
	// ForceQuoting quotes every identifier instead of only unsafe ones.
	ForceQuoting bool
}

type CTE struct {
	Name string
	SQL  string
}

// Query is a compiled query: the dialect it targets, the CTEs extracted for
// shared subtrees, and the statement body.
type Query struct {
	Dialect *dialect.Dialect
	CTEs    []CTE
	Body    string

	stats map[*ir.Node]int
}

// Render produces the final statement text.
func (q *Query) Render() string {
	if len(q.CTEs) == 0 {
		return q.Body
	}
	var sb strings.Builder
	sb.WriteString("WITH ")
	for i, cte := range q.CTEs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(cte.Name)
		sb.WriteString(" AS (")
		sb.WriteString(cte.SQL)
		sb.WriteString(")")
	}
	sb.WriteString(" ")
	sb.WriteString(q.Body)
	return sb.String()
}

// Stats reports how many times each node was lowered. Shared subtrees lower
// once regardless of how many parents reference them.
func (q *Query) Stats() map[*ir.Node]int {
	return q.stats
}

// Compile lowers root to a Query for the given dialect.
func Compile(b *ir.Builder, root *ir.Node, d *dialect.Dialect, opts Options) (*Query, error) {
	if root == nil {
		return nil, errors.New("nil root node")
	}
	if d == nil {
		return nil, errors.New("nil dialect")
	}
	if opts.ApplyRewrites {
		engine := rewrite.NewEngine(rewrite.DefaultRules()...)
		rewritten, err := engine.Rewrite(b, root)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't rewrite tree before compiling")
		}
		root = rewritten
	}

	c := &compiler{
		b:        b,
		d:        d,
		opts:     opts,
		refcount: make(map[*ir.Node]int),
		memo:     make(map[*ir.Node]cteRef),
		stats:    make(map[*ir.Node]int),
	}
	c.countRefs(root)

	var body string
	if root.NodeType == ir.NodeTypeOpaqueQuery {
		c.stats[root]++
		body = root.OpaqueQuery.Query
	} else {
		box, err := c.lower(root)
		if err != nil {
			return nil, err
		}
		body = box.render()
	}
	return &Query{Dialect: d, CTEs: c.ctes, Body: body, stats: c.stats}, nil
}

type cteRef struct {
	name string
}

type compiler struct {
	b    *ir.Builder
	d    *dialect.Dialect
	opts Options

	aliasCount int
	cteCount   int
	ctes       []CTE
	refcount   map[*ir.Node]int
	memo       map[*ir.Node]cteRef
	stats      map[*ir.Node]int
}

func (c *compiler) nextAlias() string {
	alias := "t" + strconv.Itoa(c.aliasCount)
	c.aliasCount++
	return alias
}

// countRefs counts incoming edges per node. A decomposed full outer join
// lowers each side twice, so those edges count double up front.
func (c *compiler) countRefs(node *ir.Node) {
	c.refcount[node]++
	if c.refcount[node] > 1 {
		return
	}
	switch node.NodeType {
	case ir.NodeTypeTable, ir.NodeTypeOpaqueQuery, ir.NodeTypeOpaqueRelation:
	case ir.NodeTypeProject:
		c.countRefs(node.Project.Source)
	case ir.NodeTypeFilter:
		c.countRefs(node.Filter.Source)
	case ir.NodeTypeAggregate:
		c.countRefs(node.Aggregate.Source)
	case ir.NodeTypeWindow:
		c.countRefs(node.Window.Source)
	case ir.NodeTypeSort:
		c.countRefs(node.Sort.Source)
	case ir.NodeTypeLimit:
		c.countRefs(node.Limit.Source)
	case ir.NodeTypeDistinct:
		c.countRefs(node.Distinct.Source)
	case ir.NodeTypeSetOp:
		c.countRefs(node.SetOp.Left)
		c.countRefs(node.SetOp.Right)
	case ir.NodeTypeJoin:
		c.countRefs(node.Join.Left)
		c.countRefs(node.Join.Right)
		if node.Join.Kind == ir.JoinOuter && !c.d.Capabilities.FullOuterJoin {
			c.countRefs(node.Join.Left)
			c.countRefs(node.Join.Right)
		}
	default:
		panic("unexhaustive node type match")
	}
}

// lower returns a fresh box producing node's rows. Nodes referenced by more
// than one parent are built once and turned into a CTE; later callers get a
// reference to it.
func (c *compiler) lower(node *ir.Node) (*selectBox, error) {
	if ref, ok := c.memo[node]; ok {
		return c.boxFromName(node, ref.name), nil
	}
	if c.refcount[node] > 1 && node.NodeType != ir.NodeTypeTable {
		body, err := c.build(node)
		if err != nil {
			return nil, err
		}
		name := "cte" + strconv.Itoa(c.cteCount)
		c.cteCount++
		c.ctes = append(c.ctes, CTE{Name: name, SQL: body.render()})
		c.memo[node] = cteRef{name: name}
		return c.boxFromName(node, name), nil
	}
	return c.build(node)
}

func (c *compiler) boxFromName(node *ir.Node, name string) *selectBox {
	alias := c.nextAlias()
	box := newBox(c.d, name+" AS "+alias)
	box.scope[node] = scopeEntry{alias: alias}
	return box
}

func (c *compiler) wrapped(box *selectBox, node *ir.Node) *selectBox {
	alias := c.nextAlias()
	out := newBox(c.d, "("+box.render()+") AS "+alias)
	out.scope[node] = scopeEntry{alias: alias}
	return out
}

// open lowers child and guarantees an open box whose scope resolves child's
// columns and which still accepts the clause the caller wants to add.
func (c *compiler) open(child *ir.Node, ok func(*selectBox) bool) (*selectBox, error) {
	box, err := c.lower(child)
	if err != nil {
		return nil, err
	}
	if !ok(box) || !box.inScope(child) {
		box = c.wrapped(box, child)
	}
	return box, nil
}

// asFromItem renders a lowered box as a join operand.
func (c *compiler) asFromItem(box *selectBox, node *ir.Node) (string, string) {
	if box.bare {
		if entry, ok := box.scope[node]; ok && entry.byColumn == nil {
			return box.from, entry.alias
		}
	}
	alias := c.nextAlias()
	return "(" + box.render() + ") AS " + alias, alias
}

func (c *compiler) build(node *ir.Node) (*selectBox, error) {
	c.stats[node]++
	switch node.NodeType {
	case ir.NodeTypeTable:
		alias := c.nextAlias()
		box := newBox(c.d, c.ident(node.Table.Name)+" AS "+alias)
		box.scope[node] = scopeEntry{alias: alias}
		return box, nil

	case ir.NodeTypeOpaqueQuery:
		alias := c.nextAlias()
		box := newBox(c.d, "("+node.OpaqueQuery.Query+") AS "+alias)
		box.scope[node] = scopeEntry{alias: alias}
		return box, nil

	case ir.NodeTypeOpaqueRelation:
		alias := c.nextAlias()
		box := newBox(c.d, "("+node.OpaqueRelation.Query+") AS "+alias)
		box.scope[node] = scopeEntry{alias: alias}
		return box, nil

	case ir.NodeTypeProject:
		box, err := c.open(node.Project.Source, (*selectBox).canSelect)
		if err != nil {
			return nil, err
		}
		list := make([]string, len(node.Project.Exprs))
		for i, expr := range node.Project.Exprs {
			sql, err := c.renderExpr(expr, box.scope)
			if err != nil {
				return nil, err
			}
			list[i] = sql + " AS " + c.ident(node.Project.Names[i])
		}
		box.selectList = list
		box.bare = false
		return box, nil

	case ir.NodeTypeFilter:
		box, err := c.open(node.Filter.Source, (*selectBox).canWhere)
		if err != nil {
			return nil, err
		}
		predicate, err := c.renderExpr(node.Filter.Predicate, box.scope)
		if err != nil {
			return nil, err
		}
		box.where = append(box.where, predicate)
		box.bare = false
		box.scope[node] = box.scope[node.Filter.Source]
		return box, nil

	case ir.NodeTypeAggregate:
		return c.buildAggregate(node)

	case ir.NodeTypeWindow:
		return c.buildWindow(node)

	case ir.NodeTypeSort:
		box, err := c.open(node.Sort.Source, (*selectBox).canOrder)
		if err != nil {
			return nil, err
		}
		keys := make([]string, len(node.Sort.Keys))
		for i, key := range node.Sort.Keys {
			sql, err := c.renderExpr(key, box.scope)
			if err != nil {
				return nil, err
			}
			keys[i] = sql + " " + strings.ToUpper(node.Sort.Directions[i].String())
		}
		box.orderBy = keys
		box.bare = false
		box.scope[node] = box.scope[node.Sort.Source]
		return box, nil

	case ir.NodeTypeLimit:
		box, err := c.lower(node.Limit.Source)
		if err != nil {
			return nil, err
		}
		if box.hasLimit() {
			box = c.wrapped(box, node.Limit.Source)
		}
		box.count = node.Limit.Count
		box.offset = node.Limit.Offset
		box.bare = false
		return box, nil

	case ir.NodeTypeDistinct:
		box, err := c.lower(node.Distinct.Source)
		if err != nil {
			return nil, err
		}
		if !box.canDistinct() {
			box = c.wrapped(box, node.Distinct.Source)
		}
		box.distinct = true
		box.bare = false
		return box, nil

	case ir.NodeTypeSetOp:
		return c.buildSetOp(node)

	case ir.NodeTypeJoin:
		return c.buildJoin(node)

	default:
		panic("unexhaustive node type match")
	}
}

func (c *compiler) buildAggregate(node *ir.Node) (*selectBox, error) {
	agg := node.Aggregate
	box, err := c.open(agg.Source, (*selectBox).canSelect)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(agg.GroupBy)+len(agg.Aggregates))
	groupBy := make([]string, len(agg.GroupBy))
	for i, key := range agg.GroupBy {
		sql, err := c.renderExpr(key, box.scope)
		if err != nil {
			return nil, err
		}
		groupBy[i] = sql
		list = append(list, sql+" AS "+c.ident(agg.GroupNames[i]))
	}
	for i, call := range agg.Aggregates {
		sql, err := c.renderExpr(call, box.scope)
		if err != nil {
			return nil, err
		}
		list = append(list, sql+" AS "+c.ident(agg.AggNames[i]))
	}
	box.selectList = list
	if len(groupBy) > 0 {
		box.groupBy = groupBy
	}
	box.bare = false
	return box, nil
}

func (c *compiler) buildWindow(node *ir.Node) (*selectBox, error) {
	w := node.Window
	caps := c.d.Capabilities
	if !caps.WindowFunctions {
		return nil, &heron.UnsupportedOperationError{Dialect: c.d.Name, Operation: "window functions"}
	}
	if w.Frame != nil {
		switch w.Frame.Kind {
		case ir.FrameRange:
			if !caps.FrameRange {
				return nil, &heron.UnsupportedOperationError{Dialect: c.d.Name, Operation: "RANGE window frames"}
			}
		case ir.FrameGroups:
			if !caps.FrameGroups {
				return nil, &heron.UnsupportedOperationError{Dialect: c.d.Name, Operation: "GROUPS window frames"}
			}
		}
	}

	box, err := c.open(w.Source, (*selectBox).canSelect)
	if err != nil {
		return nil, err
	}
	entry := box.scope[w.Source]
	list := make([]string, 0, len(w.Source.Schema.Fields)+1)
	for _, field := range w.Source.Schema.Fields {
		list = append(list, entry.columnAlias(field.Name)+"."+c.ident(field.Name))
	}

	function, err := c.renderExpr(w.Function, box.scope)
	if err != nil {
		return nil, err
	}
	var overParts []string
	if len(w.PartitionBy) > 0 {
		keys := make([]string, len(w.PartitionBy))
		for i, key := range w.PartitionBy {
			sql, err := c.renderExpr(key, box.scope)
			if err != nil {
				return nil, err
			}
			keys[i] = sql
		}
		overParts = append(overParts, "PARTITION BY "+strings.Join(keys, ", "))
	}
	if len(w.OrderBy) > 0 {
		keys := make([]string, len(w.OrderBy))
		for i, key := range w.OrderBy {
			sql, err := c.renderExpr(key, box.scope)
			if err != nil {
				return nil, err
			}
			keys[i] = sql + " " + strings.ToUpper(w.Directions[i].String())
		}
		overParts = append(overParts, "ORDER BY "+strings.Join(keys, ", "))
	}
	if w.Frame != nil {
		overParts = append(overParts, strings.ToUpper(w.Frame.Kind.String())+
			" BETWEEN "+frameBound(w.Frame.Start)+" AND "+frameBound(w.Frame.End))
	}
	list = append(list, function+" OVER ("+strings.Join(overParts, " ")+") AS "+c.ident(w.Name))

	box.selectList = list
	box.bare = false
	return box, nil
}

func frameBound(bound ir.FrameBound) string {
	switch bound.Kind {
	case ir.BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case ir.BoundPreceding:
		return strconv.FormatInt(bound.Offset, 10) + " PRECEDING"
	case ir.BoundCurrentRow:
		return "CURRENT ROW"
	case ir.BoundFollowing:
		return strconv.FormatInt(bound.Offset, 10) + " FOLLOWING"
	case ir.BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	}
	panic("unexhaustive frame bound match")
}

func (c *compiler) buildSetOp(node *ir.Node) (*selectBox, error) {
	s := node.SetOp
	caps := c.d.Capabilities
	switch s.Kind {
	case ir.SetOpIntersect:
		if !caps.NativeIntersect {
			if s.All {
				return nil, &heron.NotYetImplementedError{Dialect: c.d.Name, Operation: "INTERSECT ALL"}
			}
			return c.buildSetOpCompare(node, true)
		}
	case ir.SetOpExcept:
		if !caps.NativeExcept {
			if s.All {
				return nil, &heron.NotYetImplementedError{Dialect: c.d.Name, Operation: "EXCEPT ALL"}
			}
			return c.buildSetOpCompare(node, false)
		}
	}

	keyword := strings.ToUpper(s.Kind.String())
	if s.All {
		keyword += " ALL"
	} else if c.d.ExplicitDistinctSetOps {
		keyword += " DISTINCT"
	}
	left, err := c.setOperand(s.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.setOperand(s.Right)
	if err != nil {
		return nil, err
	}
	return c.boxFromName(node, "("+left+" "+keyword+" "+right+")"), nil
}

// setOperand renders one side of a set operation as a plain SELECT. Ordered
// or limited sides are wrapped so their clauses don't leak into the compound.
func (c *compiler) setOperand(node *ir.Node) (string, error) {
	box, err := c.lower(node)
	if err != nil {
		return "", err
	}
	if len(box.orderBy) > 0 || box.hasLimit() {
		alias := c.nextAlias()
		return "SELECT * FROM (" + box.render() + ") AS " + alias, nil
	}
	return box.render(), nil
}

// buildSetOpCompare lowers a distinct intersect (keep) or except (!keep) into
// a null-safe row comparison against the right side.
func (c *compiler) buildSetOpCompare(node *ir.Node, keep bool) (*selectBox, error) {
	s := node.SetOp
	leftBox, err := c.lower(s.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, s.Left)
	rightBox, err := c.lower(s.Right)
	if err != nil {
		return nil, err
	}
	rightItem, rightAlias := c.asFromItem(rightBox, s.Right)

	pattern := c.d.NullSafeEqPattern
	if pattern == "" {
		pattern = "%s IS NOT DISTINCT FROM %s"
	}
	conditions := make([]string, len(s.Left.Schema.Fields))
	for i := range s.Left.Schema.Fields {
		leftCol := leftAlias + "." + c.ident(s.Left.Schema.Fields[i].Name)
		rightCol := rightAlias + "." + c.ident(s.Right.Schema.Fields[i].Name)
		conditions[i] = fmt.Sprintf(pattern, leftCol, rightCol)
	}
	exists := "EXISTS (SELECT 1 FROM " + rightItem + " WHERE " + strings.Join(conditions, " AND ") + ")"
	if !keep {
		exists = "NOT " + exists
	}

	box := newBox(c.d, leftItem)
	box.bare = false
	box.distinct = true
	list := make([]string, len(s.Left.Schema.Fields))
	for i, field := range s.Left.Schema.Fields {
		list[i] = leftAlias + "." + c.ident(field.Name)
	}
	box.selectList = list
	box.where = []string{exists}
	return box, nil
}

func (c *compiler) buildJoin(node *ir.Node) (*selectBox, error) {
	caps := c.d.Capabilities
	switch node.Join.Kind {
	case ir.JoinInner:
		return c.buildNativeJoin(node, "INNER JOIN")
	case ir.JoinLeft:
		return c.buildNativeJoin(node, "LEFT JOIN")
	case ir.JoinRight:
		if caps.RightJoin {
			return c.buildNativeJoin(node, "RIGHT JOIN")
		}
		return c.buildSwappedRight(node)
	case ir.JoinOuter:
		if caps.FullOuterJoin {
			return c.buildNativeJoin(node, "FULL OUTER JOIN")
		}
		return c.buildOuterUnion(node)
	case ir.JoinSemi:
		if caps.NativeSemiAnti {
			return c.buildNativeJoin(node, "SEMI JOIN")
		}
		return c.buildSemiExists(node)
	case ir.JoinAnti:
		if caps.NativeSemiAnti {
			return c.buildNativeJoin(node, "ANTI JOIN")
		}
		return c.buildAntiWitness(node)
	default:
		panic("unexhaustive join kind match")
	}
}

func (c *compiler) buildNativeJoin(node *ir.Node, keyword string) (*selectBox, error) {
	j := node.Join
	leftBox, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, j.Left)
	rightBox, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	rightItem, rightAlias := c.asFromItem(rightBox, j.Right)

	scope := map[*ir.Node]scopeEntry{
		j.Left:  {alias: leftAlias},
		j.Right: {alias: rightAlias},
	}
	on, err := c.renderExpr(j.On, scope)
	if err != nil {
		return nil, err
	}

	box := newBox(c.d, leftItem+" "+keyword+" "+rightItem+" ON "+on)
	box.bare = false
	byColumn := make(map[string]string)
	for _, field := range j.Left.Schema.Fields {
		byColumn[field.Name] = leftAlias
	}
	if j.Kind != ir.JoinSemi && j.Kind != ir.JoinAnti {
		for _, field := range j.Right.Schema.Fields {
			byColumn[field.Name] = rightAlias
		}
	}
	box.scope[node] = scopeEntry{byColumn: byColumn}
	box.scope[j.Left] = scopeEntry{alias: leftAlias}
	box.scope[j.Right] = scopeEntry{alias: rightAlias}
	return box, nil
}

func (c *compiler) buildSemiExists(node *ir.Node) (*selectBox, error) {
	j := node.Join
	leftBox, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, j.Left)
	rightBox, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	rightItem, rightAlias := c.asFromItem(rightBox, j.Right)

	scope := map[*ir.Node]scopeEntry{
		j.Left:  {alias: leftAlias},
		j.Right: {alias: rightAlias},
	}
	on, err := c.renderExpr(j.On, scope)
	if err != nil {
		return nil, err
	}

	box := newBox(c.d, leftItem)
	box.bare = false
	box.where = []string{"EXISTS (SELECT 1 FROM " + rightItem + " WHERE " + on + ")"}
	box.scope[node] = scopeEntry{alias: leftAlias}
	box.scope[j.Left] = scopeEntry{alias: leftAlias}
	return box, nil
}

// buildAntiWitness lowers an anti join as a left join against the right side
// extended with an always-true witness column, keeping rows where the witness
// stayed NULL. The witness is immune to nullable right-side columns.
func (c *compiler) buildAntiWitness(node *ir.Node) (*selectBox, error) {
	j := node.Join
	leftBox, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, j.Left)
	rightBox, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	innerAlias := c.nextAlias()
	witnessAlias := c.nextAlias()
	rightItem := "(SELECT " + innerAlias + ".*, " + c.d.TrueLiteral + " AS __match FROM (" +
		rightBox.render() + ") AS " + innerAlias + ") AS " + witnessAlias

	scope := map[*ir.Node]scopeEntry{
		j.Left:  {alias: leftAlias},
		j.Right: {alias: witnessAlias},
	}
	on, err := c.renderExpr(j.On, scope)
	if err != nil {
		return nil, err
	}

	box := newBox(c.d, leftItem+" LEFT JOIN "+rightItem+" ON "+on)
	box.bare = false
	list := make([]string, len(j.Left.Schema.Fields))
	for i, field := range j.Left.Schema.Fields {
		list[i] = leftAlias + "." + c.ident(field.Name)
	}
	box.selectList = list
	box.where = []string{witnessAlias + ".__match IS NULL"}
	return box, nil
}

// buildSwappedRight lowers a right join as a left join with swapped sides,
// re-projecting so the output column order stays left-then-right.
func (c *compiler) buildSwappedRight(node *ir.Node) (*selectBox, error) {
	j := node.Join
	leftBox, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, j.Left)
	rightBox, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	rightItem, rightAlias := c.asFromItem(rightBox, j.Right)

	scope := map[*ir.Node]scopeEntry{
		j.Left:  {alias: leftAlias},
		j.Right: {alias: rightAlias},
	}
	on, err := c.renderExpr(j.On, scope)
	if err != nil {
		return nil, err
	}

	box := newBox(c.d, rightItem+" LEFT JOIN "+leftItem+" ON "+on)
	box.bare = false
	list := make([]string, 0, len(node.Schema.Fields))
	for _, field := range j.Left.Schema.Fields {
		list = append(list, leftAlias+"."+c.ident(field.Name))
	}
	for _, field := range j.Right.Schema.Fields {
		list = append(list, rightAlias+"."+c.ident(field.Name))
	}
	box.selectList = list
	return box, nil
}

// buildOuterUnion lowers a full outer join for engines without one: the left
// join part, then UNION ALL with the right-side rows that found no match,
// NULL-padded on the left columns.
func (c *compiler) buildOuterUnion(node *ir.Node) (*selectBox, error) {
	j := node.Join

	leftBox, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	leftItem, leftAlias := c.asFromItem(leftBox, j.Left)
	rightBox, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	rightItem, rightAlias := c.asFromItem(rightBox, j.Right)
	scope := map[*ir.Node]scopeEntry{
		j.Left:  {alias: leftAlias},
		j.Right: {alias: rightAlias},
	}
	on, err := c.renderExpr(j.On, scope)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(node.Schema.Fields))
	for _, field := range j.Left.Schema.Fields {
		columns = append(columns, leftAlias+"."+c.ident(field.Name))
	}
	for _, field := range j.Right.Schema.Fields {
		columns = append(columns, rightAlias+"."+c.ident(field.Name))
	}
	matched := "SELECT " + strings.Join(columns, ", ") + " FROM " + leftItem + " LEFT JOIN " + rightItem + " ON " + on

	rightBox2, err := c.lower(j.Right)
	if err != nil {
		return nil, err
	}
	rightItem2, rightAlias2 := c.asFromItem(rightBox2, j.Right)
	leftBox2, err := c.lower(j.Left)
	if err != nil {
		return nil, err
	}
	innerAlias := c.nextAlias()
	witnessAlias := c.nextAlias()
	leftWitness := "(SELECT " + innerAlias + ".*, " + c.d.TrueLiteral + " AS __match FROM (" +
		leftBox2.render() + ") AS " + innerAlias + ") AS " + witnessAlias
	scope2 := map[*ir.Node]scopeEntry{
		j.Left:  {alias: witnessAlias},
		j.Right: {alias: rightAlias2},
	}
	on2, err := c.renderExpr(j.On, scope2)
	if err != nil {
		return nil, err
	}
	padded := make([]string, 0, len(node.Schema.Fields))
	for i, field := range j.Left.Schema.Fields {
		typeName, err := c.sqlTypeName(node.Schema.Fields[i].Type)
		if err != nil {
			return nil, err
		}
		padded = append(padded, "CAST(NULL AS "+typeName+") AS "+c.ident(field.Name))
	}
	for _, field := range j.Right.Schema.Fields {
		padded = append(padded, rightAlias2+"."+c.ident(field.Name))
	}
	unmatched := "SELECT " + strings.Join(padded, ", ") + " FROM " + rightItem2 +
		" LEFT JOIN " + leftWitness + " ON " + on2 +
		" WHERE " + witnessAlias + ".__match IS NULL"

	return c.boxFromName(node, "("+matched+" UNION ALL "+unmatched+")"), nil
}
