package heron

// Shape classifies a value as a single scalar or a column aligned to a
// relation's rows.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeColumnar
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeColumnar:
		return "columnar"
	}
	return "unknown"
}
