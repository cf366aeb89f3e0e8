package heron

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a literal constant carried by the IR.
type Value struct {
	Type Type

	// Only one of the below is meaningful, matching Type.TypeID.
	// Null values carry a type and no payload.
	IsNull  bool
	Boolean bool
	Int     int64
	Float   float64
	Str     string
	Bytes   []byte
	// Decimal literals are kept textual; the target engine owns exact
	// decimal arithmetic.
	Decimal string
	Time    time.Time
}

func NewBoolean(v bool) Value {
	return Value{Type: Boolean, Boolean: v}
}

func NewInt8(v int8) Value   { return Value{Type: Int8, Int: int64(v)} }
func NewInt16(v int16) Value { return Value{Type: Int16, Int: int64(v)} }
func NewInt32(v int32) Value { return Value{Type: Int32, Int: int64(v)} }
func NewInt64(v int64) Value { return Value{Type: Int64, Int: v} }

func NewFloat32(v float32) Value { return Value{Type: Float32, Float: float64(v)} }
func NewFloat64(v float64) Value { return Value{Type: Float64, Float: v} }

func NewString(v string) Value { return Value{Type: String, Str: v} }
func NewBinary(v []byte) Value { return Value{Type: Binary, Bytes: v} }

func NewDecimal(text string, precision, scale int) Value {
	return Value{Type: Decimal(precision, scale), Decimal: text}
}

func NewDate(v time.Time) Value { return Value{Type: Date, Time: v} }

func NewTimestamp(v time.Time, unit TimeUnit, zone string) Value {
	return Value{Type: Timestamp(unit, zone), Time: v}
}

// NewNull is the typed null literal.
func NewNull(t Type) Value {
	return Value{Type: t.AsNullable(), IsNull: true}
}

func (v Value) Equal(other Value) bool {
	if !v.Type.Equal(other.Type) || v.IsNull != other.IsNull {
		return false
	}
	if v.IsNull {
		return true
	}
	switch v.Type.TypeID {
	case TypeIDBoolean:
		return v.Boolean == other.Boolean
	case TypeIDInt8, TypeIDInt16, TypeIDInt32, TypeIDInt64:
		return v.Int == other.Int
	case TypeIDFloat32, TypeIDFloat64:
		return v.Float == other.Float
	case TypeIDString:
		return v.Str == other.Str
	case TypeIDBinary:
		return string(v.Bytes) == string(other.Bytes)
	case TypeIDDecimal:
		return v.Decimal == other.Decimal
	case TypeIDDate, TypeIDTime, TypeIDTimestamp:
		return v.Time.Equal(other.Time)
	}
	return false
}

func (v Value) String() string {
	if v.IsNull {
		return "null"
	}
	switch v.Type.TypeID {
	case TypeIDBoolean:
		return strconv.FormatBool(v.Boolean)
	case TypeIDInt8, TypeIDInt16, TypeIDInt32, TypeIDInt64:
		return strconv.FormatInt(v.Int, 10)
	case TypeIDFloat32, TypeIDFloat64:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeIDString:
		return strconv.Quote(v.Str)
	case TypeIDBinary:
		return fmt.Sprintf("0x%x", v.Bytes)
	case TypeIDDecimal:
		return v.Decimal
	case TypeIDDate:
		return v.Time.Format("2006-01-02")
	case TypeIDTime, TypeIDTimestamp:
		return v.Time.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("<%s>", v.Type)
}
