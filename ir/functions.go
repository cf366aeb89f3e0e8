package ir

import (
	"github.com/pkg/errors"

	"github.com/heronql/heron"
)

type functionSignature struct {
	minArgs int
	// maxArgs is -1 for variadic functions.
	maxArgs int
	typeFn  func(args []*Expression) (heron.Type, error)
}

var scalarFunctions = map[string]functionSignature{
	"abs":   {1, 1, numericPassthrough("abs")},
	"ceil":  {1, 1, numericPassthrough("ceil")},
	"floor": {1, 1, numericPassthrough("floor")},
	"round": {1, 2, roundType},
	"sqrt":  {1, 1, floatResult("sqrt")},
	"ln":    {1, 1, floatResult("ln")},
	"log10": {1, 1, floatResult("log10")},
	"exp":   {1, 1, floatResult("exp")},
	"lower": {1, 1, stringPassthrough("lower")},
	"upper": {1, 1, stringPassthrough("upper")},
	"trim":  {1, 1, stringPassthrough("trim")},
	"length": {1, 1, func(args []*Expression) (heron.Type, error) {
		if args[0].Type.TypeID != heron.TypeIDString && args[0].Type.TypeID != heron.TypeIDBinary {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.String, Context: "length argument"}
		}
		return heron.Int64.WithNullable(args[0].Type.Nullable), nil
	}},
	"substring": {2, 3, func(args []*Expression) (heron.Type, error) {
		if args[0].Type.TypeID != heron.TypeIDString {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.String, Context: "substring argument"}
		}
		nullable := args[0].Type.Nullable
		for _, arg := range args[1:] {
			if !arg.Type.IsInteger() {
				return heron.Type{}, &heron.TypeMismatchError{Left: arg.Type, Right: heron.Int64, Context: "substring position"}
			}
			nullable = nullable || arg.Type.Nullable
		}
		return heron.String.WithNullable(nullable), nil
	}},
	"concat": {2, -1, func(args []*Expression) (heron.Type, error) {
		nullable := false
		for _, arg := range args {
			if arg.Type.TypeID != heron.TypeIDString {
				return heron.Type{}, &heron.TypeMismatchError{Left: arg.Type, Right: heron.String, Context: "concat argument"}
			}
			nullable = nullable || arg.Type.Nullable
		}
		return heron.String.WithNullable(nullable), nil
	}},
	"coalesce": {2, -1, func(args []*Expression) (heron.Type, error) {
		out := args[0].Type
		for _, arg := range args[1:] {
			promoted, err := heron.Promote(out, arg.Type)
			if err != nil {
				return heron.Type{}, err
			}
			out = promoted
		}
		// Non-null as soon as one branch is.
		for _, arg := range args {
			if !arg.Type.Nullable {
				return out.WithNullable(false), nil
			}
		}
		return out, nil
	}},
}

func numericPassthrough(name string) func(args []*Expression) (heron.Type, error) {
	return func(args []*Expression) (heron.Type, error) {
		if !args[0].Type.IsNumeric() {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.Float64, Context: name + " argument"}
		}
		return args[0].Type, nil
	}
}

func floatResult(name string) func(args []*Expression) (heron.Type, error) {
	return func(args []*Expression) (heron.Type, error) {
		if !args[0].Type.IsNumeric() {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.Float64, Context: name + " argument"}
		}
		return heron.Float64.WithNullable(args[0].Type.Nullable), nil
	}
}

func stringPassthrough(name string) func(args []*Expression) (heron.Type, error) {
	return func(args []*Expression) (heron.Type, error) {
		if args[0].Type.TypeID != heron.TypeIDString {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.String, Context: name + " argument"}
		}
		return args[0].Type, nil
	}
}

func roundType(args []*Expression) (heron.Type, error) {
	if !args[0].Type.IsNumeric() {
		return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.Float64, Context: "round argument"}
	}
	if len(args) == 2 && !args[1].Type.IsInteger() {
		return heron.Type{}, &heron.TypeMismatchError{Left: args[1].Type, Right: heron.Int64, Context: "round digit count"}
	}
	return args[0].Type, nil
}

var windowFunctions = map[string]functionSignature{
	"row_number": {0, 0, constWindowType(heron.Int64)},
	"rank":       {0, 0, constWindowType(heron.Int64)},
	"dense_rank": {0, 0, constWindowType(heron.Int64)},
	"ntile": {1, 1, func(args []*Expression) (heron.Type, error) {
		if !args[0].Type.IsInteger() {
			return heron.Type{}, &heron.TypeMismatchError{Left: args[0].Type, Right: heron.Int64, Context: "ntile bucket count"}
		}
		return heron.Int64, nil
	}},
	"lag":         {1, 3, shiftWindowType},
	"lead":        {1, 3, shiftWindowType},
	"first_value": {1, 1, nullablePassthrough},
	"last_value":  {1, 1, nullablePassthrough},
}

func constWindowType(t heron.Type) func(args []*Expression) (heron.Type, error) {
	return func([]*Expression) (heron.Type, error) {
		return t, nil
	}
}

// Shifted values fall off the partition edge, so the result is nullable even
// when the input is not.
func shiftWindowType(args []*Expression) (heron.Type, error) {
	if len(args) >= 2 && !args[1].Type.IsInteger() {
		return heron.Type{}, &heron.TypeMismatchError{Left: args[1].Type, Right: heron.Int64, Context: "shift offset"}
	}
	if len(args) == 3 {
		if _, err := heron.Promote(args[0].Type, args[2].Type); err != nil {
			return heron.Type{}, err
		}
	}
	return args[0].Type.AsNullable(), nil
}

func nullablePassthrough(args []*Expression) (heron.Type, error) {
	return args[0].Type.AsNullable(), nil
}

// IsWindowFunction reports whether name denotes a pure window function, one
// that only makes sense inside a Window node.
func IsWindowFunction(name string) bool {
	_, ok := windowFunctions[name]
	return ok
}

func requiresOrder(name string) bool {
	switch name {
	case "row_number", "rank", "dense_rank", "ntile", "lag", "lead":
		return true
	}
	return false
}

func aggregateResultType(name string, arg *Expression) (heron.Type, error) {
	switch name {
	case "sum":
		switch {
		case arg.Type.IsInteger():
			return heron.Int64.WithNullable(arg.Type.Nullable), nil
		case arg.Type.IsFloat():
			return heron.Float64.WithNullable(arg.Type.Nullable), nil
		case arg.Type.TypeID == heron.TypeIDDecimal:
			return heron.Decimal(38, arg.Type.Decimal.Scale).WithNullable(arg.Type.Nullable), nil
		default:
			return heron.Type{}, &heron.TypeMismatchError{Left: arg.Type, Right: heron.Float64, Context: "sum argument"}
		}
	case "avg":
		switch {
		case arg.Type.IsInteger() || arg.Type.IsFloat():
			return heron.Float64.WithNullable(arg.Type.Nullable), nil
		case arg.Type.TypeID == heron.TypeIDDecimal:
			return heron.Decimal(38, arg.Type.Decimal.Scale).WithNullable(arg.Type.Nullable), nil
		default:
			return heron.Type{}, &heron.TypeMismatchError{Left: arg.Type, Right: heron.Float64, Context: "avg argument"}
		}
	case "min", "max":
		if !orderable(arg.Type) {
			return heron.Type{}, &heron.TypeMismatchError{Left: arg.Type, Right: heron.String, Context: name + " argument must be orderable"}
		}
		return arg.Type, nil
	case "count":
		return heron.Int64, nil
	default:
		return heron.Type{}, errors.Errorf("unknown aggregate function %q", name)
	}
}

func orderable(t heron.Type) bool {
	switch t.TypeID {
	case heron.TypeIDList, heron.TypeIDMap, heron.TypeIDStruct:
		return false
	}
	return true
}
