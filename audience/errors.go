package audience

import "fmt"

// UnknownFieldError is returned when a rule references a field the registry does not declare
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// InvalidOperatorError is returned when an operator is not allowed for a field
type InvalidOperatorError struct {
	Field    string
	Type     ValueType
	Operator Operator
}

func (e *InvalidOperatorError) Error() string {
	return fmt.Sprintf("operator %q is not allowed for %s field %q", e.Operator, e.Type, e.Field)
}

// InvalidConnectorError is returned for connector text other than AND/OR
type InvalidConnectorError struct {
	Connector Connector
}

func (e *InvalidConnectorError) Error() string {
	return fmt.Sprintf("invalid connector %q (must be AND or OR)", e.Connector)
}

// TypeConversionError is returned when a value cannot be coerced to the field type.
// During a filter pass it excludes the record instead of failing the pass.
type TypeConversionError struct {
	Field string
	Type  ValueType
	Value any
	Err   error
}

func (e *TypeConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %v (%T) to %s for field %q: %v", e.Value, e.Value, e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("cannot convert %v (%T) to %s for field %q", e.Value, e.Value, e.Type, e.Field)
}

func (e *TypeConversionError) Unwrap() error {
	return e.Err
}

// ValidationError ties a rule authoring error to the rule's position in the chain
type ValidationError struct {
	Position int
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %d: %v", e.Position, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
