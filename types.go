package heron

import (
	"fmt"
	"strings"
)

type TypeID int

const (
	TypeIDBoolean TypeID = iota
	TypeIDInt8
	TypeIDInt16
	TypeIDInt32
	TypeIDInt64
	TypeIDFloat32
	TypeIDFloat64
	TypeIDDecimal
	TypeIDString
	TypeIDBinary
	TypeIDDate
	TypeIDTime
	TypeIDTimestamp
	TypeIDInterval
	TypeIDList
	TypeIDMap
	TypeIDStruct
)

// TimeUnit is the resolution of a timestamp, time or interval type.
type TimeUnit string

const (
	UnitSecond      TimeUnit = "s"
	UnitMillisecond TimeUnit = "ms"
	UnitMicrosecond TimeUnit = "us"
	UnitNanosecond  TimeUnit = "ns"
)

var timeUnitRank = map[TimeUnit]int{
	UnitSecond:      0,
	UnitMillisecond: 1,
	UnitMicrosecond: 2,
	UnitNanosecond:  3,
}

func finerUnit(a, b TimeUnit) TimeUnit {
	if timeUnitRank[a] >= timeUnitRank[b] {
		return a
	}
	return b
}

// Type describes the value domain of an expression or schema column.
type Type struct {
	TypeID   TypeID
	Nullable bool
	// Only one of the below may be non-nil, matching the TypeID.
	Decimal   *DecimalType
	Timestamp *TimestampType
	Interval  *IntervalType
	List      *ListType
	Map       *MapType
	Struct    *StructType
}

type DecimalType struct {
	Precision int
	Scale     int
}

type TimestampType struct {
	Unit TimeUnit
	// Zone is empty for zone-less timestamps.
	Zone string
}

type IntervalType struct {
	Unit TimeUnit
}

type ListType struct {
	Element Type
}

type MapType struct {
	Key   Type
	Value Type
}

type StructType struct {
	Fields []StructField
}

type StructField struct {
	Name string
	Type Type
}

var (
	Boolean Type = Type{TypeID: TypeIDBoolean}
	Int8    Type = Type{TypeID: TypeIDInt8}
	Int16   Type = Type{TypeID: TypeIDInt16}
	Int32   Type = Type{TypeID: TypeIDInt32}
	Int64   Type = Type{TypeID: TypeIDInt64}
	Float32 Type = Type{TypeID: TypeIDFloat32}
	Float64 Type = Type{TypeID: TypeIDFloat64}
	String  Type = Type{TypeID: TypeIDString}
	Binary  Type = Type{TypeID: TypeIDBinary}
	Date    Type = Type{TypeID: TypeIDDate}
	Time    Type = Type{TypeID: TypeIDTime}
)

func Decimal(precision, scale int) Type {
	return Type{TypeID: TypeIDDecimal, Decimal: &DecimalType{Precision: precision, Scale: scale}}
}

func Timestamp(unit TimeUnit, zone string) Type {
	return Type{TypeID: TypeIDTimestamp, Timestamp: &TimestampType{Unit: unit, Zone: zone}}
}

func Interval(unit TimeUnit) Type {
	return Type{TypeID: TypeIDInterval, Interval: &IntervalType{Unit: unit}}
}

func List(element Type) Type {
	return Type{TypeID: TypeIDList, List: &ListType{Element: element}}
}

func MapOf(key, value Type) Type {
	return Type{TypeID: TypeIDMap, Map: &MapType{Key: key, Value: value}}
}

func StructOf(fields ...StructField) Type {
	return Type{TypeID: TypeIDStruct, Struct: &StructType{Fields: fields}}
}

// AsNullable returns the same type with the nullability flag set.
func (t Type) AsNullable() Type {
	t.Nullable = true
	return t
}

func (t Type) WithNullable(nullable bool) Type {
	t.Nullable = nullable
	return t
}

func (t Type) IsInteger() bool {
	switch t.TypeID {
	case TypeIDInt8, TypeIDInt16, TypeIDInt32, TypeIDInt64:
		return true
	}
	return false
}

func (t Type) IsFloat() bool {
	return t.TypeID == TypeIDFloat32 || t.TypeID == TypeIDFloat64
}

func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat() || t.TypeID == TypeIDDecimal
}

// Equal compares types structurally, including nullability.
func (t Type) Equal(other Type) bool {
	if t.TypeID != other.TypeID || t.Nullable != other.Nullable {
		return false
	}
	switch t.TypeID {
	case TypeIDDecimal:
		return t.Decimal.Precision == other.Decimal.Precision && t.Decimal.Scale == other.Decimal.Scale
	case TypeIDTimestamp:
		return t.Timestamp.Unit == other.Timestamp.Unit && t.Timestamp.Zone == other.Timestamp.Zone
	case TypeIDInterval:
		return t.Interval.Unit == other.Interval.Unit
	case TypeIDList:
		return t.List.Element.Equal(other.List.Element)
	case TypeIDMap:
		return t.Map.Key.Equal(other.Map.Key) && t.Map.Value.Equal(other.Map.Value)
	case TypeIDStruct:
		if len(t.Struct.Fields) != len(other.Struct.Fields) {
			return false
		}
		for i := range t.Struct.Fields {
			if t.Struct.Fields[i].Name != other.Struct.Fields[i].Name {
				return false
			}
			if !t.Struct.Fields[i].Type.Equal(other.Struct.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return true
}

func (t Type) String() string {
	var out string
	switch t.TypeID {
	case TypeIDBoolean:
		out = "boolean"
	case TypeIDInt8:
		out = "int8"
	case TypeIDInt16:
		out = "int16"
	case TypeIDInt32:
		out = "int32"
	case TypeIDInt64:
		out = "int64"
	case TypeIDFloat32:
		out = "float32"
	case TypeIDFloat64:
		out = "float64"
	case TypeIDDecimal:
		out = fmt.Sprintf("decimal(%d, %d)", t.Decimal.Precision, t.Decimal.Scale)
	case TypeIDString:
		out = "string"
	case TypeIDBinary:
		out = "binary"
	case TypeIDDate:
		out = "date"
	case TypeIDTime:
		out = "time"
	case TypeIDTimestamp:
		if t.Timestamp.Zone != "" {
			out = fmt.Sprintf("timestamp[%s, %s]", t.Timestamp.Unit, t.Timestamp.Zone)
		} else {
			out = fmt.Sprintf("timestamp[%s]", t.Timestamp.Unit)
		}
	case TypeIDInterval:
		out = fmt.Sprintf("interval[%s]", t.Interval.Unit)
	case TypeIDList:
		out = fmt.Sprintf("list<%s>", t.List.Element)
	case TypeIDMap:
		out = fmt.Sprintf("map<%s, %s>", t.Map.Key, t.Map.Value)
	case TypeIDStruct:
		fieldStrings := make([]string, len(t.Struct.Fields))
		for i, field := range t.Struct.Fields {
			fieldStrings[i] = fmt.Sprintf("%s: %s", field.Name, field.Type)
		}
		out = fmt.Sprintf("struct<%s>", strings.Join(fieldStrings, ", "))
	default:
		panic("unexhaustive type id match")
	}
	if t.Nullable {
		out += "?"
	}
	return out
}

var integerDigits = map[TypeID]int{
	TypeIDInt8:  3,
	TypeIDInt16: 5,
	TypeIDInt32: 10,
	TypeIDInt64: 19,
}

var integerRank = map[TypeID]int{
	TypeIDInt8:  0,
	TypeIDInt16: 1,
	TypeIDInt32: 2,
	TypeIDInt64: 3,
}

const maxDecimalPrecision = 38

// Promote returns the smallest common type two operand types implicitly
// convert to. It is total and commutative for numeric pairs and fails with a
// TypeMismatchError across incompatible families. The result is nullable if
// either operand is.
func Promote(a, b Type) (Type, error) {
	nullable := a.Nullable || b.Nullable

	if a.IsNumeric() && b.IsNumeric() {
		return promoteNumeric(a, b).WithNullable(nullable), nil
	}

	if a.TypeID != b.TypeID {
		return Type{}, &TypeMismatchError{Left: a, Right: b}
	}

	switch a.TypeID {
	case TypeIDTimestamp:
		if a.Timestamp.Zone != b.Timestamp.Zone {
			return Type{}, &TypeMismatchError{Left: a, Right: b}
		}
		return Timestamp(finerUnit(a.Timestamp.Unit, b.Timestamp.Unit), a.Timestamp.Zone).WithNullable(nullable), nil
	case TypeIDInterval:
		return Interval(finerUnit(a.Interval.Unit, b.Interval.Unit)).WithNullable(nullable), nil
	case TypeIDList:
		element, err := Promote(a.List.Element, b.List.Element)
		if err != nil {
			return Type{}, &TypeMismatchError{Left: a, Right: b}
		}
		return List(element).WithNullable(nullable), nil
	case TypeIDMap:
		key, err := Promote(a.Map.Key, b.Map.Key)
		if err != nil {
			return Type{}, &TypeMismatchError{Left: a, Right: b}
		}
		value, err := Promote(a.Map.Value, b.Map.Value)
		if err != nil {
			return Type{}, &TypeMismatchError{Left: a, Right: b}
		}
		return MapOf(key, value).WithNullable(nullable), nil
	case TypeIDStruct:
		if len(a.Struct.Fields) != len(b.Struct.Fields) {
			return Type{}, &TypeMismatchError{Left: a, Right: b}
		}
		fields := make([]StructField, len(a.Struct.Fields))
		for i := range a.Struct.Fields {
			if a.Struct.Fields[i].Name != b.Struct.Fields[i].Name {
				return Type{}, &TypeMismatchError{Left: a, Right: b}
			}
			fieldType, err := Promote(a.Struct.Fields[i].Type, b.Struct.Fields[i].Type)
			if err != nil {
				return Type{}, &TypeMismatchError{Left: a, Right: b}
			}
			fields[i] = StructField{Name: a.Struct.Fields[i].Name, Type: fieldType}
		}
		return StructOf(fields...).WithNullable(nullable), nil
	default:
		return a.WithNullable(nullable), nil
	}
}

func promoteNumeric(a, b Type) Type {
	// Mixing floating point with anything floats the result.
	if a.IsFloat() || b.IsFloat() {
		if a.TypeID == TypeIDFloat32 && b.TypeID == TypeIDFloat32 {
			return Float32
		}
		return Float64
	}
	if a.TypeID == TypeIDDecimal || b.TypeID == TypeIDDecimal {
		if a.TypeID == TypeIDDecimal && b.TypeID == TypeIDDecimal {
			intDigits := max(a.Decimal.Precision-a.Decimal.Scale, b.Decimal.Precision-b.Decimal.Scale)
			scale := max(a.Decimal.Scale, b.Decimal.Scale)
			return Decimal(min(intDigits+scale, maxDecimalPrecision), scale)
		}
		dec, integer := a, b
		if b.TypeID == TypeIDDecimal {
			dec, integer = b, a
		}
		intDigits := max(dec.Decimal.Precision-dec.Decimal.Scale, integerDigits[integer.TypeID])
		return Decimal(min(intDigits+dec.Decimal.Scale, maxDecimalPrecision), dec.Decimal.Scale)
	}
	if integerRank[a.TypeID] >= integerRank[b.TypeID] {
		return Type{TypeID: a.TypeID}
	}
	return Type{TypeID: b.TypeID}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
