package audience

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDefaultRegistryFields checks the customer fields and their order
func TestDefaultRegistryFields(t *testing.T) {
	fields := Default().Fields()

	want := []struct {
		name string
		typ  ValueType
	}{
		{"totalSpend", TypeNumber},
		{"visits", TypeNumber},
		{"lastVisit", TypeDate},
		{"age", TypeNumber},
		{"city", TypeString},
		{"segment", TypeString},
	}

	if len(fields) != len(want) {
		t.Fatalf("Fields() returned %d descriptors, want %d", len(fields), len(want))
	}
	for i, w := range want {
		if fields[i].Name != w.name || fields[i].Type != w.typ {
			t.Errorf("field %d = %s (%s), want %s (%s)", i, fields[i].Name, fields[i].Type, w.name, w.typ)
		}
	}
}

func TestDescribe(t *testing.T) {
	desc, err := Default().Describe("lastVisit")
	if err != nil {
		t.Fatalf("Describe() failed: %v", err)
	}
	if desc.Label != "Days Since Last Visit" {
		t.Errorf("Expected label 'Days Since Last Visit', got %q", desc.Label)
	}
	if !desc.Allows(OpGreater) || desc.Allows(OpContains) {
		t.Errorf("Date field operators wrong: %v", desc.Operators)
	}
}

func TestDescribeUnknownField(t *testing.T) {
	_, err := Default().Describe("favouriteColour")

	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected *UnknownFieldError, got %v", err)
	}
	if unknown.Field != "favouriteColour" {
		t.Errorf("Expected field 'favouriteColour', got %q", unknown.Field)
	}
}

// TestDescribeReturnsCopy checks that callers cannot mutate the registry
func TestDescribeReturnsCopy(t *testing.T) {
	reg := Default()

	desc, _ := reg.Describe("city")
	desc.Operators[0] = OpGreater

	again, _ := reg.Describe("city")
	if again.Operators[0] == OpGreater {
		t.Error("Mutating a described field changed the registry")
	}
}

func TestNewRegistryDefaultsOperators(t *testing.T) {
	reg, err := NewRegistry(
		FieldDescriptor{Name: "name", Type: TypeString},
		FieldDescriptor{Name: "score", Type: TypeNumber},
	)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	name, _ := reg.Describe("name")
	for _, op := range []Operator{OpEqual, OpNotEqual, OpContains} {
		if !name.Allows(op) {
			t.Errorf("String field should allow %q", op)
		}
	}
	if name.Allows(OpLess) {
		t.Error("String field should not allow <")
	}

	score, _ := reg.Describe("score")
	if score.Allows(OpContains) {
		t.Error("Number field should not allow contains")
	}
}

func TestNewRegistryRestrictedOperators(t *testing.T) {
	reg, err := NewRegistry(FieldDescriptor{Name: "tier", Type: TypeString, Operators: []Operator{OpEqual}})
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	err = reg.Validate(Chain{{Field: "tier", Operator: OpContains, Value: "gold"}})
	var invalid *InvalidOperatorError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected *InvalidOperatorError for restricted operator, got %v", err)
	}
}

func TestNewRegistryRejects(t *testing.T) {
	tooMany := make([]FieldDescriptor, 0, maxFields+1)
	for i := 0; i <= maxFields; i++ {
		tooMany = append(tooMany, FieldDescriptor{Name: fmt.Sprintf("field%d", i), Type: TypeNumber})
	}

	testCases := []struct {
		name    string
		descs   []FieldDescriptor
		wantErr string
	}{
		{"no fields", nil, "at least one"},
		{"too many fields", tooMany, "200"},
		{"empty name", []FieldDescriptor{{Name: "", Type: TypeNumber}}, "empty"},
		{"leading digit", []FieldDescriptor{{Name: "1st", Type: TypeNumber}}, "pattern"},
		{"hyphen", []FieldDescriptor{{Name: "total-spend", Type: TypeNumber}}, "pattern"},
		{"too long", []FieldDescriptor{{Name: strings.Repeat("a", 101), Type: TypeNumber}}, "exceeds"},
		{"reserved word", []FieldDescriptor{{Name: "in", Type: TypeNumber}}, "reserved"},
		{"duplicate", []FieldDescriptor{{Name: "age", Type: TypeNumber}, {Name: "age", Type: TypeString}}, "more than once"},
		{"unknown type", []FieldDescriptor{{Name: "flag", Type: "bool"}}, "invalid type"},
		{"illegal operator", []FieldDescriptor{{Name: "city", Type: TypeString, Operators: []Operator{OpGreater}}}, "not allowed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.descs...)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestMustRegistryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRegistry() should panic on invalid descriptors")
		}
	}()
	MustRegistry()
}
