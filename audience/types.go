package audience

import "encoding/json"

// ValueType is the declared type of a record field
type ValueType string

const (
	TypeNumber ValueType = "number"
	TypeString ValueType = "string"
	// TypeDate fields hold a point in time; rules compare whole days elapsed since it
	TypeDate ValueType = "date"
)

// Operator is a comparison applied between a record value and a rule value
type Operator string

const (
	OpGreater  Operator = ">"
	OpLess     Operator = "<"
	OpEqual    Operator = "="
	OpNotEqual Operator = "!="
	OpContains Operator = "contains"
)

// Connector joins a rule to the rule that follows it
type Connector string

const (
	ConnectorNone Connector = ""
	ConnectorAnd  Connector = "AND"
	ConnectorOr   Connector = "OR"
)

// FieldDescriptor declares a field that rules may reference
type FieldDescriptor struct {
	Name      string     `json:"name"`
	Label     string     `json:"label,omitempty"`
	Type      ValueType  `json:"type"`
	Operators []Operator `json:"operators"`
}

// Allows reports whether op may be used against this field
func (d FieldDescriptor) Allows(op Operator) bool {
	for _, allowed := range d.Operators {
		if allowed == op {
			return true
		}
	}
	return false
}

// Record is one customer's attribute set. Fields are read-only during evaluation.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Rule is a single field comparison. Connector joins it to the next rule in the chain
// and is ignored on the last rule.
type Rule struct {
	Field     string    `json:"field"`
	Operator  Operator  `json:"operator"`
	Value     string    `json:"value"`
	Connector Connector `json:"connector,omitempty"`
}

// Chain is an ordered rule sequence evaluated left to right without grouping
type Chain []Rule

// Diagnostic reports a record that was left out of a match because one of its
// values could not be coerced to the field type
type Diagnostic struct {
	RecordID string `json:"recordId"`
	Position int    `json:"position"`
	Err      error  `json:"-"`
}

// MarshalJSON renders Err as its message
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	msg := ""
	if d.Err != nil {
		msg = d.Err.Error()
	}
	return json.Marshal(struct {
		RecordID string `json:"recordId"`
		Position int    `json:"position"`
		Error    string `json:"error"`
	}{d.RecordID, d.Position, msg})
}

// MatchResult is the outcome of applying a chain to a record collection.
// Count always equals len(Records).
type MatchResult struct {
	Records     []Record     `json:"matchedRecords"`
	Count       int          `json:"count"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
