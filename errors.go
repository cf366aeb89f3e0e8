package heron

import "fmt"

// TypeMismatchError reports incompatible types in promotion or in an
// operation's argument position.
type TypeMismatchError struct {
	Left, Right Type
	Context     string
}

func (e *TypeMismatchError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("type mismatch: %s and %s (%s)", e.Left, e.Right, e.Context)
	}
	return fmt.Sprintf("type mismatch: %s and %s", e.Left, e.Right)
}

// ShapeMismatchError reports a scalar used where a column is required, or the
// other way around.
type ShapeMismatchError struct {
	Wanted, Got Shape
	Context     string
}

func (e *ShapeMismatchError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("shape mismatch: wanted %s, got %s (%s)", e.Wanted, e.Got, e.Context)
	}
	return fmt.Sprintf("shape mismatch: wanted %s, got %s", e.Wanted, e.Got)
}

// SchemaError reports an ambiguous, missing or duplicate column name.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

// UnsupportedOperationError means the dialect lacks a capability and no
// decomposition into supported capabilities exists.
type UnsupportedOperationError struct {
	Dialect   string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported by dialect %s", e.Operation, e.Dialect)
}

// NotYetImplementedError marks a gap the compiler could close, as opposed to
// one the target engine fundamentally cannot support.
type NotYetImplementedError struct {
	Dialect   string
	Operation string
}

func (e *NotYetImplementedError) Error() string {
	return fmt.Sprintf("operation %s is not yet implemented for dialect %s", e.Operation, e.Dialect)
}

// SchemaIntrospectionError means the target engine couldn't describe the
// columns of a literal query.
type SchemaIntrospectionError struct {
	Dialect string
	Query   string
	Err     error
}

func (e *SchemaIntrospectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("couldn't introspect schema of query against %s: %s", e.Dialect, e.Err)
	}
	return fmt.Sprintf("couldn't introspect schema of query against %s", e.Dialect)
}

func (e *SchemaIntrospectionError) Unwrap() error {
	return e.Err
}

// UnknownDialectError reports a registry lookup for a name that was never
// registered.
type UnknownDialectError struct {
	Name string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown dialect %q", e.Name)
}
