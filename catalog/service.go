package catalog

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ttacon/iamstmt/policy"
)

var (
	// ErrUnknownAction is returned for an action the service does not define.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownResourceType is returned for a resource type the service
	// does not define.
	ErrUnknownResourceType = errors.New("unknown resource type")
	// ErrUnknownConditionKey is returned for a condition key that is neither
	// the service's nor global.
	ErrUnknownConditionKey = errors.New("unknown condition key")
)

// Service is one AWS service's IAM table. Its To, On and If helpers add
// entries to a statement after checking them against the table.
type Service struct {
	Prefix string
	Name   string

	catalog       *Catalog
	actions       map[string]*Action
	actionNames   []string
	resourceTypes map[string]*ResourceType
	conditionKeys map[string]ConditionKey
}

// Action looks up an action by name.
func (s *Service) Action(name string) (*Action, bool) {
	a, ok := s.actions[name]
	return a, ok
}

// Actions returns every action ordered by name.
func (s *Service) Actions() []*Action {
	out := make([]*Action, 0, len(s.actionNames))
	for _, name := range s.actionNames {
		out = append(out, s.actions[name])
	}
	return out
}

// ResourceType looks up a resource type by name.
func (s *Service) ResourceType(name string) (*ResourceType, bool) {
	rt, ok := s.resourceTypes[name]
	return rt, ok
}

// ResourceTypes returns every resource type ordered by name.
func (s *Service) ResourceTypes() []*ResourceType {
	out := make([]*ResourceType, 0, len(s.resourceTypes))
	for _, rt := range s.resourceTypes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ConditionKey looks up a condition key of the service, falling back to
// the catalog's global keys.
func (s *Service) ConditionKey(key string) (ConditionKey, bool) {
	if ck, ok := s.conditionKeys[key]; ok {
		return ck, true
	}
	for _, ck := range s.conditionKeys {
		if ck.matches(key) {
			return ck, true
		}
	}
	if s.catalog != nil {
		return s.catalog.GlobalConditionKey(key)
	}
	return ConditionKey{}, false
}

// Qualify prefixes an action name with the service prefix.
func (s *Service) Qualify(action string) string {
	return s.Prefix + ":" + action
}

// To adds one of the service's actions to st.
func (s *Service) To(st *policy.Statement, action string) error {
	if _, ok := s.actions[action]; !ok {
		return errors.Wrapf(ErrUnknownAction, "%s has no action %q", s.Prefix, action)
	}
	return st.AddAction(s.Qualify(action))
}

// ToAll adds the "<prefix>:*" wildcard to st.
func (s *Service) ToAll(st *policy.Statement) error {
	return st.AddAction(s.Qualify("*"))
}

// ToAccessLevel adds every action of the given access level to st, in name
// order.
func (s *Service) ToAccessLevel(st *policy.Statement, level AccessLevel) error {
	for _, name := range s.actionNames {
		if s.actions[name].AccessLevel != level {
			continue
		}
		if err := st.AddAction(s.Qualify(name)); err != nil {
			return err
		}
	}
	return nil
}

// ToMatching adds every action whose name matches the IAM wildcard
// pattern, for example "Describe*". It fails when nothing matches.
func (s *Service) ToMatching(st *policy.Statement, pattern string) error {
	p, err := CompileActionPattern(pattern)
	if err != nil {
		return err
	}
	var matched []string
	for _, name := range s.actionNames {
		if p.Match(name) {
			matched = append(matched, name)
		}
	}
	if len(matched) == 0 {
		return errors.Wrapf(ErrUnknownAction, "%s has no action matching %q", s.Prefix, pattern)
	}
	for _, name := range matched {
		if err := st.AddAction(s.Qualify(name)); err != nil {
			return err
		}
	}
	return nil
}

// ARN expands the ARN template of a resource type.
func (s *Service) ARN(resourceType string, values map[string]string) (string, error) {
	rt, ok := s.resourceTypes[resourceType]
	if !ok {
		return "", errors.Wrapf(ErrUnknownResourceType, "%s has no resource type %q", s.Prefix, resourceType)
	}
	arn, err := rt.ARN.Expand(values)
	if err != nil {
		return "", errors.Wrapf(err, "%s resource type %q", s.Prefix, resourceType)
	}
	return arn, nil
}

// On adds the ARN of a resource type, expanded with values, to st.
func (s *Service) On(st *policy.Statement, resourceType string, values map[string]string) error {
	arn, err := s.ARN(resourceType, values)
	if err != nil {
		return err
	}
	return st.AddResource(arn)
}

// If adds a condition on one of the service's keys or a global key. An
// empty operator selects the default operator for the key's type.
func (s *Service) If(st *policy.Statement, key string, values []string, operator string) error {
	ck, ok := s.ConditionKey(key)
	if !ok {
		return errors.Wrapf(ErrUnknownConditionKey, "%q is not a condition key of %s", key, s.Prefix)
	}
	if strings.TrimSpace(operator) == "" {
		operator = ck.Type.DefaultOperator()
	}
	return st.AddCondition(key, values, operator)
}

// DependentActions returns the qualified actions that must also be allowed
// for action to succeed.
func (s *Service) DependentActions(action string) ([]string, error) {
	a, ok := s.actions[action]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAction, "%s has no action %q", s.Prefix, action)
	}
	return append([]string(nil), a.DependentActions...), nil
}

// ToWithDependencies adds action and its dependent actions to st.
func (s *Service) ToWithDependencies(st *policy.Statement, action string) error {
	deps, err := s.DependentActions(action)
	if err != nil {
		return err
	}
	if err := st.AddAction(s.Qualify(action)); err != nil {
		return err
	}
	for _, dep := range deps {
		if err := st.AddAction(dep); err != nil {
			return errors.Wrapf(err, "dependent action of %s", s.Qualify(action))
		}
	}
	return nil
}
