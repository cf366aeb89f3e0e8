package heron

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseType parses the textual form produced by Type.String, e.g. "int32",
// "decimal(10, 2)", "timestamp[ms, UTC]", "list<int64?>".
func ParseType(s string) (Type, error) {
	p := &typeParser{input: s}
	t, err := p.parse()
	if err != nil {
		return Type{}, errors.Wrapf(err, "couldn't parse type %q", s)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return Type{}, errors.Errorf("couldn't parse type %q: trailing input at offset %d", s, p.pos)
	}
	return t, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpace()
	name := p.readName()

	var out Type
	switch name {
	case "boolean":
		out = Boolean
	case "int8":
		out = Int8
	case "int16":
		out = Int16
	case "int32":
		out = Int32
	case "int64":
		out = Int64
	case "float32":
		out = Float32
	case "float64":
		out = Float64
	case "string":
		out = String
	case "binary":
		out = Binary
	case "date":
		out = Date
	case "time":
		out = Time
	case "decimal":
		precision, scale, err := p.parseDecimalArgs()
		if err != nil {
			return Type{}, err
		}
		out = Decimal(precision, scale)
	case "timestamp":
		unit, zone, err := p.parseUnitArgs(true)
		if err != nil {
			return Type{}, err
		}
		out = Timestamp(unit, zone)
	case "interval":
		unit, _, err := p.parseUnitArgs(false)
		if err != nil {
			return Type{}, err
		}
		out = Interval(unit)
	case "list":
		element, err := p.parseAngleArgs(1)
		if err != nil {
			return Type{}, err
		}
		out = List(element[0])
	case "map":
		args, err := p.parseAngleArgs(2)
		if err != nil {
			return Type{}, err
		}
		out = MapOf(args[0], args[1])
	case "struct":
		fields, err := p.parseStructFields()
		if err != nil {
			return Type{}, err
		}
		out = StructOf(fields...)
	default:
		return Type{}, errors.Errorf("unknown type name %q", name)
	}

	if p.pos < len(p.input) && p.input[p.pos] == '?' {
		p.pos++
		out = out.AsNullable()
	}
	return out, nil
}

func (p *typeParser) readName() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return errors.Errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) parseDecimalArgs() (int, int, error) {
	if err := p.expect('('); err != nil {
		return 0, 0, err
	}
	end := strings.IndexByte(p.input[p.pos:], ')')
	if end < 0 {
		return 0, 0, errors.New("unterminated decimal arguments")
	}
	parts := strings.Split(p.input[p.pos:p.pos+end], ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("decimal requires precision and scale")
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid decimal precision")
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid decimal scale")
	}
	p.pos += end + 1
	return precision, scale, nil
}

func (p *typeParser) parseUnitArgs(allowZone bool) (TimeUnit, string, error) {
	if err := p.expect('['); err != nil {
		return "", "", err
	}
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return "", "", errors.New("unterminated unit arguments")
	}
	parts := strings.Split(p.input[p.pos:p.pos+end], ",")
	unit := TimeUnit(strings.TrimSpace(parts[0]))
	if _, ok := timeUnitRank[unit]; !ok {
		return "", "", errors.Errorf("unknown time unit %q", unit)
	}
	var zone string
	if len(parts) == 2 && allowZone {
		zone = strings.TrimSpace(parts[1])
	} else if len(parts) > 1 {
		return "", "", errors.New("unexpected unit arguments")
	}
	p.pos += end + 1
	return unit, zone, nil
}

func (p *typeParser) parseAngleArgs(count int) ([]Type, error) {
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	out := make([]Type, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *typeParser) parseStructFields() ([]StructField, error) {
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	var out []StructField
	for {
		p.skipSpace()
		name := p.readName()
		if name == "" {
			return nil, errors.Errorf("expected field name at offset %d", p.pos)
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, StructField{Name: name, Type: t})
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect('>'); err != nil {
		return nil, err
	}
	return out, nil
}
