package compile

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/heronql/heron"
	"github.com/heronql/heron/ir"
)

func (c *compiler) renderExpr(expr *ir.Expression, scope map[*ir.Node]scopeEntry) (string, error) {
	switch expr.ExpressionType {
	case ir.ExpressionTypeColumnRef:
		ref := expr.ColumnRef
		entry, ok := scope[ref.Relation]
		if !ok {
			return "", errors.Errorf("internal: column %q resolves outside the current scope", ref.Name)
		}
		return entry.columnAlias(ref.Name) + "." + c.ident(ref.Name), nil

	case ir.ExpressionTypeLiteral:
		return c.renderLiteral(expr.Literal.Value)

	case ir.ExpressionTypeArithmetic:
		left, err := c.renderExpr(expr.Arithmetic.Left, scope)
		if err != nil {
			return "", err
		}
		right, err := c.renderExpr(expr.Arithmetic.Right, scope)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + expr.Arithmetic.Op.String() + " " + right + ")", nil

	case ir.ExpressionTypeCompare:
		left, err := c.renderExpr(expr.Compare.Left, scope)
		if err != nil {
			return "", err
		}
		right, err := c.renderExpr(expr.Compare.Right, scope)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + expr.Compare.Op.String() + " " + right + ")", nil

	case ir.ExpressionTypeAnd:
		return c.renderConnective(expr.And.Arguments, " AND ", scope)

	case ir.ExpressionTypeOr:
		return c.renderConnective(expr.Or.Arguments, " OR ", scope)

	case ir.ExpressionTypeNot:
		arg, err := c.renderExpr(expr.Not.Argument, scope)
		if err != nil {
			return "", err
		}
		return "(NOT " + arg + ")", nil

	case ir.ExpressionTypeFunctionCall:
		args := make([]string, len(expr.FunctionCall.Arguments))
		for i, argExpr := range expr.FunctionCall.Arguments {
			arg, err := c.renderExpr(argExpr, scope)
			if err != nil {
				return "", err
			}
			args[i] = arg
		}
		return c.d.FunctionName(expr.FunctionCall.Name) + "(" + strings.Join(args, ", ") + ")", nil

	case ir.ExpressionTypeAggregateCall:
		call := expr.AggregateCall
		if call.Argument == nil {
			return c.d.FunctionName(call.Name) + "(*)", nil
		}
		arg, err := c.renderExpr(call.Argument, scope)
		if err != nil {
			return "", err
		}
		if call.Distinct {
			return c.d.FunctionName(call.Name) + "(DISTINCT " + arg + ")", nil
		}
		return c.d.FunctionName(call.Name) + "(" + arg + ")", nil

	case ir.ExpressionTypeCast:
		arg, err := c.renderExpr(expr.Cast.Argument, scope)
		if err != nil {
			return "", err
		}
		target, err := c.sqlTypeName(expr.Cast.Target)
		if err != nil {
			return "", err
		}
		return "CAST(" + arg + " AS " + target + ")", nil

	default:
		panic("unexhaustive expression type match")
	}
}

func (c *compiler) renderConnective(args []*ir.Expression, op string, scope map[*ir.Node]scopeEntry) (string, error) {
	rendered := make([]string, len(args))
	for i, arg := range args {
		out, err := c.renderExpr(arg, scope)
		if err != nil {
			return "", err
		}
		rendered[i] = out
	}
	return "(" + strings.Join(rendered, op) + ")", nil
}

func (c *compiler) renderLiteral(v heron.Value) (string, error) {
	if v.IsNull {
		return "NULL", nil
	}
	switch v.Type.TypeID {
	case heron.TypeIDBoolean:
		if v.Boolean {
			return c.d.TrueLiteral, nil
		}
		return c.d.FalseLiteral, nil
	case heron.TypeIDInt8, heron.TypeIDInt16, heron.TypeIDInt32, heron.TypeIDInt64:
		return strconv.FormatInt(v.Int, 10), nil
	case heron.TypeIDFloat32, heron.TypeIDFloat64:
		out := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(out, ".eE") {
			out += ".0"
		}
		return out, nil
	case heron.TypeIDDecimal:
		return v.Decimal, nil
	case heron.TypeIDString:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'", nil
	case heron.TypeIDBinary:
		return "X'" + hex.EncodeToString(v.Bytes) + "'", nil
	case heron.TypeIDDate:
		return "DATE '" + v.Time.Format("2006-01-02") + "'", nil
	case heron.TypeIDTime:
		return "TIME '" + v.Time.Format("15:04:05") + "'", nil
	case heron.TypeIDTimestamp:
		return "TIMESTAMP '" + v.Time.Format("2006-01-02 15:04:05") + "'", nil
	default:
		return "", &heron.NotYetImplementedError{Dialect: c.d.Name, Operation: "literal of type " + v.Type.String()}
	}
}

func (c *compiler) sqlTypeName(t heron.Type) (string, error) {
	switch t.TypeID {
	case heron.TypeIDBoolean:
		return "BOOLEAN", nil
	case heron.TypeIDInt8, heron.TypeIDInt16:
		return "SMALLINT", nil
	case heron.TypeIDInt32:
		return "INTEGER", nil
	case heron.TypeIDInt64:
		return "BIGINT", nil
	case heron.TypeIDFloat32:
		return "REAL", nil
	case heron.TypeIDFloat64:
		return "DOUBLE PRECISION", nil
	case heron.TypeIDDecimal:
		return "DECIMAL(" + strconv.Itoa(t.Decimal.Precision) + ", " + strconv.Itoa(t.Decimal.Scale) + ")", nil
	case heron.TypeIDString:
		return "VARCHAR", nil
	case heron.TypeIDBinary:
		return "VARBINARY", nil
	case heron.TypeIDDate:
		return "DATE", nil
	case heron.TypeIDTime:
		return "TIME", nil
	case heron.TypeIDTimestamp:
		return "TIMESTAMP", nil
	default:
		return "", &heron.NotYetImplementedError{Dialect: c.d.Name, Operation: "cast to " + t.String()}
	}
}

// reservedIdents is the shared keyword core; anything here or lexically
// unsafe gets quoted.
var reservedIdents = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"by": true, "having": true, "limit": true, "offset": true, "join": true,
	"inner": true, "left": true, "right": true, "full": true, "outer": true,
	"cross": true, "on": true, "using": true, "union": true, "intersect": true,
	"except": true, "all": true, "distinct": true, "as": true, "and": true,
	"or": true, "not": true, "null": true, "true": true, "false": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"exists": true, "in": true, "is": true, "like": true, "between": true,
	"cast": true, "with": true, "table": true, "values": true, "window": true,
	"over": true, "partition": true, "user": true, "default": true,
}

func (c *compiler) ident(name string) string {
	if !c.opts.ForceQuoting && isSafeIdent(name) {
		return name
	}
	quote := string(c.d.QuoteChar)
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

func isSafeIdent(name string) bool {
	if name == "" || reservedIdents[strings.ToLower(name)] {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z'):
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
