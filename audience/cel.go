package audience

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// celCostLimit bounds the work a compiled chain may do per evaluation
const celCostLimit = 100000

// CELEnv returns a CEL environment declaring every registry field as a typed
// variable: number → double, string → string, date → int (days elapsed).
// The environment is built once per registry.
func (r *Registry) CELEnv() (*cel.Env, error) {
	r.celOnce.Do(func() {
		opts := []cel.EnvOption{ext.Strings(), containsFoldFunction()}
		for _, name := range r.order {
			opts = append(opts, cel.Variable(name, celType(r.fields[name].Type)))
		}
		env, err := cel.NewEnv(opts...)
		if err != nil {
			r.celErr = fmt.Errorf("failed to create CEL environment: %w", err)
			return
		}
		r.celEnv = env
	})
	return r.celEnv, r.celErr
}

// containsFoldFunction declares string.containsFold(string), the compiled
// form of the contains operator. It folds case exactly as the comparator does.
func containsFoldFunction() cel.EnvOption {
	return cel.Function("containsFold",
		cel.MemberOverload("string_contains_fold_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				s, ok := lhs.(types.String)
				if !ok {
					return types.MaybeNoSuchOverloadErr(lhs)
				}
				sub, ok := rhs.(types.String)
				if !ok {
					return types.MaybeNoSuchOverloadErr(rhs)
				}
				return types.Bool(containsFold(string(s), string(sub)))
			})))
}

func celType(t ValueType) *cel.Type {
	switch t {
	case TypeNumber:
		return cel.DoubleType
	case TypeDate:
		return cel.IntType
	default:
		return cel.StringType
	}
}

// Expression renders a validated chain as CEL, nesting to the left so CEL's
// && / || precedence cannot regroup it: [A OR B, AND C] becomes ((A || B) && C).
func (r *Registry) Expression(chain Chain) (string, error) {
	if err := r.Validate(chain); err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "true", nil
	}

	expr := r.renderRule(chain[0])
	for i := 1; i < len(chain); i++ {
		conn, _ := connectorOf(chain[i-1])
		op := "&&"
		if conn == ConnectorOr {
			op = "||"
		}
		expr = fmt.Sprintf("(%s %s %s)", expr, op, r.renderRule(chain[i]))
	}
	return expr, nil
}

func (r *Registry) renderRule(rule Rule) string {
	desc := r.fields[rule.Field]
	want, _ := coerceRuleValue(desc, rule.Value)

	switch desc.Type {
	case TypeNumber:
		return fmt.Sprintf("%s %s %s", desc.Name, celOperator(rule.Operator), doubleLiteral(want.(float64)))
	case TypeDate:
		return fmt.Sprintf("%s %s %d", desc.Name, celOperator(rule.Operator), want.(int))
	}

	if rule.Operator == OpContains {
		return fmt.Sprintf("%s.containsFold(%s)", desc.Name, strconv.Quote(rule.Value))
	}
	return fmt.Sprintf("%s %s %s", desc.Name, celOperator(rule.Operator), strconv.Quote(rule.Value))
}

func celOperator(op Operator) string {
	if op == OpEqual {
		return "=="
	}
	return string(op)
}

func doubleLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Program is a chain compiled to CEL
type Program struct {
	Expression string

	registry *Registry
	fields   []string
	program  cel.Program
}

// Compile validates chain, renders it and compiles it against the registry's CEL environment
func (f *Filter) Compile(chain Chain) (*Program, error) {
	expr, err := f.registry.Expression(chain)
	if err != nil {
		return nil, err
	}

	env, err := f.registry.CELEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	seen := make(map[string]bool, len(chain))
	fields := make([]string, 0, len(chain))
	for _, rule := range chain {
		if !seen[rule.Field] {
			seen[rule.Field] = true
			fields = append(fields, rule.Field)
		}
	}

	return &Program{
		Expression: expr,
		registry:   f.registry,
		fields:     fields,
		program:    prg,
	}, nil
}

// Matches evaluates the compiled chain against rec at instant now.
// A value that cannot be coerced yields a *TypeConversionError.
func (p *Program) Matches(rec Record, now time.Time) (bool, error) {
	vars := make(map[string]any, len(p.fields))
	for _, name := range p.fields {
		v, err := celValue(p.registry.fields[name], rec.Fields[name], now)
		if err != nil {
			return false, err
		}
		vars[name] = v
	}

	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not produce a boolean", p.Expression)
	}
	return matched, nil
}

// Activation coerces every registered field present in rec into the value
// its CEL variable expects. Fields absent from rec are left out.
func (f *Filter) Activation(rec Record, now time.Time) (map[string]any, error) {
	vars := make(map[string]any, len(rec.Fields))
	for _, name := range f.registry.order {
		raw, ok := rec.Fields[name]
		if !ok {
			continue
		}
		v, err := celValue(f.registry.fields[name], raw, now)
		if err != nil {
			return nil, err
		}
		vars[name] = v
	}
	return vars, nil
}

func celValue(desc FieldDescriptor, raw any, now time.Time) (any, error) {
	switch desc.Type {
	case TypeNumber:
		n, err := toNumber(raw)
		if err != nil {
			return nil, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return n, nil
	case TypeDate:
		at, err := toTime(raw)
		if err != nil {
			return nil, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return int64(elapsedDays(at, now)), nil
	default:
		s, err := toText(raw)
		if err != nil {
			return nil, &TypeConversionError{Field: desc.Name, Type: desc.Type, Value: raw, Err: err}
		}
		return s, nil
	}
}
