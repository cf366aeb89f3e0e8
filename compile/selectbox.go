package compile

import (
	"strconv"
	"strings"

	"github.com/heronql/heron/dialect"
	"github.com/heronql/heron/ir"
)

// scopeEntry says how to qualify a column of one relation inside a box. Joins
// spread a relation's columns over two aliases, so they resolve per column.
type scopeEntry struct {
	alias    string
	byColumn map[string]string
}

func (e scopeEntry) columnAlias(name string) string {
	if e.byColumn != nil {
		return e.byColumn[name]
	}
	return e.alias
}

// selectBox is one SELECT statement under assembly. Operators accumulate
// clauses on an open box while the result stays equivalent; once a clause
// slot is taken or evaluation order would change, the box is rendered and
// wrapped as a derived table.
type selectBox struct {
	d *dialect.Dialect

	// bare marks a box that is still just a named or derived from-item with
	// no clauses, usable directly inside a join.
	bare bool
	from string

	scope map[*ir.Node]scopeEntry

	selectList []string
	distinct   bool
	where      []string
	groupBy    []string
	orderBy    []string
	// count is -1 when no row limit applies.
	count  int64
	offset int64
}

func newBox(d *dialect.Dialect, from string) *selectBox {
	return &selectBox{
		d:     d,
		bare:  true,
		from:  from,
		scope: make(map[*ir.Node]scopeEntry),
		count: -1,
	}
}

func (box *selectBox) inScope(node *ir.Node) bool {
	_, ok := box.scope[node]
	return ok
}

func (box *selectBox) hasLimit() bool {
	return box.count >= 0 || box.offset > 0
}

// plain boxes still evaluate as `SELECT * FROM ...` with at most a WHERE.
func (box *selectBox) plain() bool {
	return box.selectList == nil && !box.distinct && box.groupBy == nil &&
		box.orderBy == nil && !box.hasLimit()
}

func (box *selectBox) canWhere() bool {
	return box.plain()
}

func (box *selectBox) canSelect() bool {
	return box.plain()
}

func (box *selectBox) canOrder() bool {
	return box.selectList == nil && !box.distinct && box.orderBy == nil && !box.hasLimit()
}

func (box *selectBox) canDistinct() bool {
	return !box.distinct && box.orderBy == nil && !box.hasLimit()
}

func (box *selectBox) render() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if box.distinct {
		sb.WriteString("DISTINCT ")
	}
	if box.selectList == nil {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(box.selectList, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(box.from)
	if len(box.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(box.where, " AND "))
	}
	if len(box.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(box.groupBy, ", "))
	}
	if len(box.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(box.orderBy, ", "))
	}
	if limit := renderLimit(box.d, box.count, box.offset); limit != "" {
		sb.WriteString(" ")
		sb.WriteString(limit)
	}
	return sb.String()
}

func renderLimit(d *dialect.Dialect, count, offset int64) string {
	if count < 0 && offset == 0 {
		return ""
	}
	switch d.LimitStyle {
	case dialect.LimitComma:
		if count < 0 {
			// MySQL's documented idiom for offset without a limit.
			return "LIMIT " + strconv.FormatInt(offset, 10) + ", 18446744073709551615"
		}
		if offset > 0 {
			return "LIMIT " + strconv.FormatInt(offset, 10) + ", " + strconv.FormatInt(count, 10)
		}
		return "LIMIT " + strconv.FormatInt(count, 10)
	case dialect.OffsetFetch:
		parts := []string{}
		if offset > 0 || count >= 0 {
			parts = append(parts, "OFFSET "+strconv.FormatInt(offset, 10)+" ROWS")
		}
		if count >= 0 {
			parts = append(parts, "FETCH NEXT "+strconv.FormatInt(count, 10)+" ROWS ONLY")
		}
		return strings.Join(parts, " ")
	default:
		var parts []string
		if count >= 0 {
			parts = append(parts, "LIMIT "+strconv.FormatInt(count, 10))
		} else if d.OffsetRequiresLimit {
			parts = append(parts, "LIMIT -1")
		}
		if offset > 0 {
			parts = append(parts, "OFFSET "+strconv.FormatInt(offset, 10))
		}
		return strings.Join(parts, " ")
	}
}
