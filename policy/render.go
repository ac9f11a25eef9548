package policy

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// AllResources is the resource a statement renders when it names none.
const AllResources = "*"

// AllActions is the bare wildcard action found in existing policies such as
// AdministratorAccess.
const AllActions = "*"

// Value is a list of strings that renders as a bare string when it holds
// exactly one element, and as an array otherwise.
type Value []string

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

// UnmarshalJSON accepts a string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = Value{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrapf(err, "expected a string or an array of strings, got %s", string(data))
	}
	*v = Value(many)
	return nil
}

// MarshalYAML implements yaml.Marshaler with the same singleton rule as
// MarshalJSON.
func (v Value) MarshalYAML() (interface{}, error) {
	if len(v) == 1 {
		return v[0], nil
	}
	return []string(v), nil
}

// ConditionMap is the rendered Condition element: operator, then condition
// key, then values.
type ConditionMap map[string]map[string]Value

// Rendered is the IAM JSON shape of a statement.
type Rendered struct {
	Sid         string       `json:"Sid,omitempty" yaml:"Sid,omitempty"`
	Effect      Effect       `json:"Effect" yaml:"Effect"`
	Action      Value        `json:"Action,omitempty" yaml:"Action,omitempty"`
	NotAction   Value        `json:"NotAction,omitempty" yaml:"NotAction,omitempty"`
	Resource    Value        `json:"Resource,omitempty" yaml:"Resource,omitempty"`
	NotResource Value        `json:"NotResource,omitempty" yaml:"NotResource,omitempty"`
	Condition   ConditionMap `json:"Condition,omitempty" yaml:"Condition,omitempty"`
}

// Render returns the IAM form of the statement. It does not modify the
// statement, which can keep being built afterwards.
func (s *Statement) Render() Rendered {
	r := Rendered{
		Sid:    s.sid,
		Effect: s.Effect(),
	}

	if s.notActions.len() > 0 {
		r.NotAction = Value(s.notActions.values())
	} else if s.actions.len() > 0 {
		r.Action = Value(s.actions.values())
	}

	switch {
	case s.notResources.len() > 0:
		r.NotResource = Value(s.notResources.values())
	case s.resources.len() > 0:
		r.Resource = Value(s.resources.values())
	default:
		r.Resource = Value{AllResources}
	}

	if len(s.conditions) > 0 {
		r.Condition = ConditionMap{}
		for key, cond := range s.conditions {
			byKey, ok := r.Condition[cond.Operator]
			if !ok {
				byKey = map[string]Value{}
				r.Condition[cond.Operator] = byKey
			}
			byKey[key] = append(Value(nil), cond.Values...)
		}
	}

	return r
}

// MarshalJSON implements json.Marshaler. Map keys are emitted sorted, so
// the same statement always marshals to the same bytes.
func (s *Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Render())
}
