// Package policy accumulates IAM policy statements and renders them to the
// JSON shape IAM expects.
package policy

import (
	"strings"

	"github.com/pkg/errors"
)

// Effect is the effect of a statement.
type Effect string

const (
	// Allow grants the statement's actions.
	Allow Effect = "Allow"
	// Deny refuses the statement's actions.
	Deny Effect = "Deny"
)

var (
	// ErrInvalidAction is returned for an action not shaped "<prefix>:<name>".
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidResource is returned for an empty or unsubstituted resource.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrInvalidCondition is returned for a condition with a missing key,
	// operator or values.
	ErrInvalidCondition = errors.New("invalid condition")
	// ErrInvalidEffect is returned for an effect other than Allow or Deny.
	ErrInvalidEffect = errors.New("invalid effect")
	// ErrMixedElements is returned when Action and NotAction (or Resource
	// and NotResource) are combined in one statement.
	ErrMixedElements = errors.New("mixed statement elements")
	// ErrNoActions is returned by Validate for a statement with neither
	// Action nor NotAction, which IAM rejects.
	ErrNoActions = errors.New("statement has no actions")
)

// Condition is one condition block of a statement: a single operator
// applied to an ordered list of values.
type Condition struct {
	Operator string
	Values   []string
}

// Statement is a mutable builder for a single IAM statement. It is not safe
// for concurrent use.
type Statement struct {
	sid    string
	effect Effect

	actions      *orderedSet
	notActions   *orderedSet
	resources    *orderedSet
	notResources *orderedSet

	conditions map[string]Condition
}

// NewStatement returns an empty statement. The sid is optional.
func NewStatement(sid string) *Statement {
	return &Statement{
		sid:          sid,
		effect:       Allow,
		actions:      newOrderedSet(),
		notActions:   newOrderedSet(),
		resources:    newOrderedSet(),
		notResources: newOrderedSet(),
		conditions:   map[string]Condition{},
	}
}

// Sid returns the statement id given at construction.
func (s *Statement) Sid() string { return s.sid }

// Effect returns the current effect.
func (s *Statement) Effect() Effect {
	if s.effect == "" {
		return Allow
	}
	return s.effect
}

// Actions returns the actions in insertion order.
func (s *Statement) Actions() []string { return s.actions.values() }

// NotActions returns the excluded actions in insertion order.
func (s *Statement) NotActions() []string { return s.notActions.values() }

// Resources returns the resources in insertion order.
func (s *Statement) Resources() []string { return s.resources.values() }

// NotResources returns the excluded resources in insertion order.
func (s *Statement) NotResources() []string { return s.notResources.values() }

// Conditions returns a copy of the condition blocks keyed by condition key.
func (s *Statement) Conditions() map[string]Condition {
	out := make(map[string]Condition, len(s.conditions))
	for key, cond := range s.conditions {
		out[key] = Condition{
			Operator: cond.Operator,
			Values:   append([]string(nil), cond.Values...),
		}
	}
	return out
}

// SetEffect overwrites the effect.
func (s *Statement) SetEffect(effect Effect) error {
	switch effect {
	case Allow, Deny:
		s.effect = effect
		return nil
	default:
		return errors.Wrapf(ErrInvalidEffect, "effect %q must be %q or %q", effect, Allow, Deny)
	}
}

// Allow sets the effect to Allow.
func (s *Statement) Allow() *Statement {
	s.effect = Allow
	return s
}

// Deny sets the effect to Deny.
func (s *Statement) Deny() *Statement {
	s.effect = Deny
	return s
}

// AddAction adds a service-qualified action such as "ec2:StartInstances".
// Adding an action already present is a no-op.
func (s *Statement) AddAction(qualifiedName string) error {
	if err := validateAction(qualifiedName); err != nil {
		return err
	}
	return s.insertAction(qualifiedName)
}

func (s *Statement) insertAction(qualifiedName string) error {
	if s.notActions.len() > 0 {
		return errors.Wrapf(ErrMixedElements, "cannot add action %q to a statement using NotAction", qualifiedName)
	}
	s.actions.add(qualifiedName)
	return nil
}

// AddNotAction adds an action to the statement's NotAction element.
func (s *Statement) AddNotAction(qualifiedName string) error {
	if err := validateAction(qualifiedName); err != nil {
		return err
	}
	return s.insertNotAction(qualifiedName)
}

func (s *Statement) insertNotAction(qualifiedName string) error {
	if s.actions.len() > 0 {
		return errors.Wrapf(ErrMixedElements, "cannot add not-action %q to a statement using Action", qualifiedName)
	}
	s.notActions.add(qualifiedName)
	return nil
}

// AddResource adds a fully substituted ARN. The ARN syntax itself is not
// checked. IAM policy variables such as ${aws:username} are allowed; a bare
// ${Name} left over from an ARN template is not.
func (s *Statement) AddResource(arn string) error {
	if err := validateResource(arn); err != nil {
		return err
	}
	if s.notResources.len() > 0 {
		return errors.Wrapf(ErrMixedElements, "cannot add resource %q to a statement using NotResource", arn)
	}
	s.resources.add(arn)
	return nil
}

// AddNotResource adds an ARN to the statement's NotResource element.
func (s *Statement) AddNotResource(arn string) error {
	if err := validateResource(arn); err != nil {
		return err
	}
	if s.resources.len() > 0 {
		return errors.Wrapf(ErrMixedElements, "cannot add not-resource %q to a statement using Resource", arn)
	}
	s.notResources.add(arn)
	return nil
}

// AddCondition sets the condition block for key. A key that already has a
// block is replaced, operator and values both.
func (s *Statement) AddCondition(key string, values []string, operator string) error {
	if strings.TrimSpace(key) == "" {
		return errors.Wrap(ErrInvalidCondition, "condition key is empty")
	}
	if strings.TrimSpace(operator) == "" {
		return errors.Wrapf(ErrInvalidCondition, "condition %q has no operator", key)
	}
	if len(values) == 0 {
		return errors.Wrapf(ErrInvalidCondition, "condition %q (%s) has no values", key, operator)
	}
	for i, v := range values {
		if v == "" {
			return errors.Wrapf(ErrInvalidCondition, "condition %q (%s) has an empty value at index %d", key, operator, i)
		}
	}

	s.conditions[key] = Condition{
		Operator: operator,
		Values:   append([]string(nil), values...),
	}
	return nil
}

// AddConditionValue is AddCondition for a single value.
func (s *Statement) AddConditionValue(key, value, operator string) error {
	return s.AddCondition(key, []string{value}, operator)
}

// Validate reports statements IAM would reject. Render never fails, so
// callers that emit policies check this first.
func (s *Statement) Validate() error {
	if s.actions.len() == 0 && s.notActions.len() == 0 {
		return ErrNoActions
	}
	return nil
}

// Clone returns a deep copy of the statement.
func (s *Statement) Clone() *Statement {
	return &Statement{
		sid:          s.sid,
		effect:       s.effect,
		actions:      s.actions.clone(),
		notActions:   s.notActions.clone(),
		resources:    s.resources.clone(),
		notResources: s.notResources.clone(),
		conditions:   s.Conditions(),
	}
}

func validateAction(name string) error {
	parts := strings.Split(name, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.Wrapf(ErrInvalidAction, "action %q must be of the form <service>:<action>", name)
	}
	if strings.ContainsAny(name, " \t\n") {
		return errors.Wrapf(ErrInvalidAction, "action %q contains whitespace", name)
	}
	return nil
}

func validateResource(arn string) error {
	if strings.TrimSpace(arn) == "" {
		return errors.Wrap(ErrInvalidResource, "resource is empty")
	}
	rest := arn
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			return nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return errors.Wrapf(ErrInvalidResource, "resource %q has an unterminated ${", arn)
		}
		if name := rest[start+2 : start+end]; !isPolicyVariable(name) {
			return errors.Wrapf(ErrInvalidResource, "resource %q has an unsubstituted placeholder ${%s}", arn, name)
		}
		rest = rest[start+end+1:]
	}
}

// isPolicyVariable reports whether name, the text inside ${...}, is an IAM
// policy variable: a qualified key such as aws:username, optionally with a
// default value, or one of the escapes ${*}, ${?} and ${$}.
func isPolicyVariable(name string) bool {
	switch name {
	case "*", "?", "$":
		return true
	}
	idx := strings.Index(name, ":")
	return idx > 0 && idx < len(name)-1
}

// orderedSet is a string set that remembers insertion order.
type orderedSet struct {
	order []string
	index map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: map[string]struct{}{}}
}

func (o *orderedSet) add(v string) {
	if _, ok := o.index[v]; ok {
		return
	}
	o.index[v] = struct{}{}
	o.order = append(o.order, v)
}

func (o *orderedSet) len() int { return len(o.order) }

func (o *orderedSet) values() []string {
	return append([]string(nil), o.order...)
}

func (o *orderedSet) clone() *orderedSet {
	c := newOrderedSet()
	for _, v := range o.order {
		c.add(v)
	}
	return c
}
