package tfscan

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ttacon/iamstmt/catalog"
	"github.com/ttacon/iamstmt/policy"
)

// Actions returns the IAM actions the sources need, sorted and without
// duplicates. Managed resources need their read and write actions, data
// sources only their read actions.
//
// Right now only the top level is considered; resource level constraints
// are not derived.
func (s *Sources) Actions(cat *catalog.Catalog) []string {
	seen := map[string]struct{}{}
	add := func(actions []string) {
		for _, action := range actions {
			seen[action] = struct{}{}
		}
	}

	for resourceType := range s.Resources {
		mapping, ok := cat.TerraformMapping(resourceType)
		if !ok {
			continue
		}
		add(mapping.Read)
		add(mapping.Write)
	}

	for dataType := range s.Data {
		mapping, ok := cat.TerraformMapping(dataType)
		if !ok {
			continue
		}
		add(mapping.Read)
	}

	actions := make([]string, 0, len(seen))
	for action := range seen {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Unmapped returns the resource and data source types the catalog has no
// mapping for, sorted.
func (s *Sources) Unmapped(cat *catalog.Catalog) []string {
	seen := map[string]struct{}{}
	for typ := range s.Resources {
		if _, ok := cat.TerraformMapping(typ); !ok {
			seen[typ] = struct{}{}
		}
	}
	for typ := range s.Data {
		if _, ok := cat.TerraformMapping(typ); !ok {
			seen[typ] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for typ := range seen {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Statement returns an Allow statement holding Actions. It fails when no
// scanned block maps to any action.
func (s *Sources) Statement(cat *catalog.Catalog, sid string) (*policy.Statement, error) {
	st := policy.NewStatement(sid)
	for _, action := range s.Actions(cat) {
		if err := st.AddAction(action); err != nil {
			return nil, errors.Wrap(err, "terraform mapping holds a malformed action")
		}
	}
	if err := st.Validate(); err != nil {
		return nil, errors.Wrapf(err, "none of the types %v has a catalog mapping", s.Unmapped(cat))
	}
	return st, nil
}
