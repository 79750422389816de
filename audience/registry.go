package audience

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/google/cel-go/cel"
)

const (
	maxFields           = 200
	maxIdentifierLength = 100
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// operatorsByType lists the operators each value type supports
var operatorsByType = map[ValueType][]Operator{
	TypeNumber: {OpGreater, OpLess, OpEqual, OpNotEqual},
	TypeDate:   {OpGreater, OpLess, OpEqual, OpNotEqual},
	TypeString: {OpEqual, OpNotEqual, OpContains},
}

// Registry declares the fields rules may reference. It is immutable once built
// and safe for concurrent use.
type Registry struct {
	fields map[string]FieldDescriptor
	order  []string

	celOnce sync.Once
	celEnv  *cel.Env
	celErr  error
}

// NewRegistry validates the descriptors and builds a registry.
// A descriptor with no operators gets every operator legal for its type.
func NewRegistry(descs ...FieldDescriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("registry must declare at least one field")
	}
	if len(descs) > maxFields {
		return nil, fmt.Errorf("registry declares %d fields, maximum allowed is %d", len(descs), maxFields)
	}

	r := &Registry{
		fields: make(map[string]FieldDescriptor, len(descs)),
		order:  make([]string, 0, len(descs)),
	}

	for _, d := range descs {
		if err := validateIdentifier(d.Name); err != nil {
			return nil, fmt.Errorf("invalid field name %q: %w", d.Name, err)
		}
		if _, exists := r.fields[d.Name]; exists {
			return nil, fmt.Errorf("field %q declared more than once", d.Name)
		}

		legal, ok := operatorsByType[d.Type]
		if !ok {
			return nil, fmt.Errorf("field %q has invalid type %q (must be one of: number, string, date)", d.Name, d.Type)
		}

		if len(d.Operators) == 0 {
			d.Operators = append([]Operator(nil), legal...)
		} else {
			d.Operators = append([]Operator(nil), d.Operators...)
			for _, op := range d.Operators {
				if !containsOperator(legal, op) {
					return nil, &InvalidOperatorError{Field: d.Name, Type: d.Type, Operator: op}
				}
			}
		}

		r.fields[d.Name] = d
		r.order = append(r.order, d.Name)
	}

	return r, nil
}

// MustRegistry is NewRegistry that panics on error, for static tables
func MustRegistry(descs ...FieldDescriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultRegistry = MustRegistry(
	FieldDescriptor{Name: "totalSpend", Label: "Total Spend", Type: TypeNumber},
	FieldDescriptor{Name: "visits", Label: "Number of Visits", Type: TypeNumber},
	FieldDescriptor{Name: "lastVisit", Label: "Days Since Last Visit", Type: TypeDate},
	FieldDescriptor{Name: "age", Label: "Age", Type: TypeNumber},
	FieldDescriptor{Name: "city", Label: "City", Type: TypeString},
	FieldDescriptor{Name: "segment", Label: "Customer Segment", Type: TypeString},
)

// Default returns the customer field registry used by the campaign builder
func Default() *Registry {
	return defaultRegistry
}

// Describe returns the descriptor for fieldName
func (r *Registry) Describe(fieldName string) (FieldDescriptor, error) {
	d, ok := r.fields[fieldName]
	if !ok {
		return FieldDescriptor{}, &UnknownFieldError{Field: fieldName}
	}
	return copyDescriptor(d), nil
}

// Fields returns every descriptor in registration order
func (r *Registry) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, copyDescriptor(r.fields[name]))
	}
	return out
}

func copyDescriptor(d FieldDescriptor) FieldDescriptor {
	d.Operators = append([]Operator(nil), d.Operators...)
	return d
}

func containsOperator(ops []Operator, op Operator) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// validateIdentifier checks a field name. Names become CEL variables, so CEL
// reserved words are rejected.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	if reservedKeywords[name] {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

var reservedKeywords = map[string]bool{
	"true":  true,
	"false": true,
	"null":  true,

	"if":       true,
	"else":     true,
	"for":      true,
	"while":    true,
	"break":    true,
	"continue": true,
	"return":   true,

	"var":      true,
	"let":      true,
	"const":    true,
	"function": true,

	"in":        true,
	"as":        true,
	"import":    true,
	"package":   true,
	"namespace": true,
	"loop":      true,
	"void":      true,
}
