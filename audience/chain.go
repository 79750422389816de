package audience

// Validate checks a chain at authoring time. The first offending rule is
// reported as a *ValidationError carrying its position.
func (r *Registry) Validate(chain Chain) error {
	for i, rule := range chain {
		desc, ok := r.fields[rule.Field]
		if !ok {
			return &ValidationError{Position: i, Err: &UnknownFieldError{Field: rule.Field}}
		}
		if !desc.Allows(rule.Operator) {
			return &ValidationError{Position: i, Err: &InvalidOperatorError{Field: desc.Name, Type: desc.Type, Operator: rule.Operator}}
		}
		if _, err := coerceRuleValue(desc, rule.Value); err != nil {
			return &ValidationError{Position: i, Err: err}
		}
		if i < len(chain)-1 {
			if _, err := connectorOf(rule); err != nil {
				return &ValidationError{Position: i, Err: err}
			}
		}
	}
	return nil
}

// connectorOf returns the connector joining rule to its successor.
// An empty connector means AND, matching the builder's default for new rules.
func connectorOf(rule Rule) (Connector, error) {
	switch rule.Connector {
	case ConnectorNone, ConnectorAnd:
		return ConnectorAnd, nil
	case ConnectorOr:
		return ConnectorOr, nil
	}
	return ConnectorNone, &InvalidConnectorError{Connector: rule.Connector}
}

// EvaluateChain folds the chain into one boolean for rec, strictly left to
// right with no precedence: [A OR B, AND C] is (A || B) && C.
// An empty chain matches. Every rule is evaluated, so the first failing rule's
// error is always the one returned, wrapped in a *ValidationError with its position.
func (c Comparator) EvaluateChain(rec Record, chain Chain) (bool, error) {
	if len(chain) == 0 {
		return true, nil
	}

	acc, err := c.Evaluate(rec, chain[0])
	if err != nil {
		return false, &ValidationError{Position: 0, Err: err}
	}

	for i := 1; i < len(chain); i++ {
		next, err := c.Evaluate(rec, chain[i])
		if err != nil {
			return false, &ValidationError{Position: i, Err: err}
		}

		conn, err := connectorOf(chain[i-1])
		if err != nil {
			return false, &ValidationError{Position: i - 1, Err: err}
		}

		if conn == ConnectorOr {
			acc = acc || next
		} else {
			acc = acc && next
		}
	}

	return acc, nil
}
