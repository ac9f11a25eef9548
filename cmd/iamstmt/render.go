package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ttacon/iamstmt/catalog"
	"github.com/ttacon/iamstmt/policy"
)

func renderCmd() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Build a statement from flags and print its IAM JSON.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			var cat *catalog.Catalog
			if flags.needsCatalog() {
				var err error
				cat, err = loadCatalog()
				if err != nil {
					return err
				}
			}

			st, err := buildStatement(flags.statementFlags, cat, currentScope())
			if err != nil {
				return err
			}

			if flags.document {
				doc, err := policy.NewDocument(st)
				if err != nil {
					return err
				}
				return printOutput(doc.Render())
			}
			return printOutput(st.Render())
		},
	}

	flags.addFlags(cmd)

	return cmd
}

// buildStatement applies the flags to a new statement in the order actions,
// resources, conditions. cat may be nil when flags.needsCatalog is false.
func buildStatement(flags statementFlags, cat *catalog.Catalog, sc scope) (*policy.Statement, error) {
	st := policy.NewStatement(flags.sid)
	if err := st.SetEffect(policy.Effect(flags.effect)); err != nil {
		return nil, err
	}

	for _, action := range flags.actions {
		if err := addAction(st, flags, cat, action); err != nil {
			return nil, err
		}
	}
	for _, raw := range flags.accessLevels {
		prefix, levelName, err := splitQualified(raw)
		if err != nil {
			return nil, errors.Wrap(err, "access level")
		}
		svc, err := lookupService(cat, prefix)
		if err != nil {
			return nil, err
		}
		level, ok := catalog.ParseAccessLevel(levelName)
		if !ok {
			return nil, errors.Errorf("unknown access level %q", levelName)
		}
		if err := svc.ToAccessLevel(st, level); err != nil {
			return nil, err
		}
	}
	for _, action := range flags.notActions {
		if err := st.AddNotAction(action); err != nil {
			return nil, err
		}
	}

	for _, resource := range flags.resources {
		if err := st.AddResource(resource); err != nil {
			return nil, err
		}
	}
	if len(flags.on) > 0 {
		params, err := parseKeyValues(flags.params)
		if err != nil {
			return nil, errors.Wrap(err, "bad --param")
		}
		values := sc.values(params)
		for _, raw := range flags.on {
			prefix, resourceType, err := splitQualified(raw)
			if err != nil {
				return nil, errors.Wrap(err, "resource type")
			}
			svc, err := lookupService(cat, prefix)
			if err != nil {
				return nil, err
			}
			if err := svc.On(st, resourceType, values); err != nil {
				return nil, err
			}
		}
	}
	for _, resource := range flags.notResources {
		if err := st.AddNotResource(resource); err != nil {
			return nil, err
		}
	}

	for _, raw := range flags.conditions {
		c, err := parseCondition(raw)
		if err != nil {
			return nil, err
		}
		if err := addCondition(st, flags, cat, c); err != nil {
			return nil, err
		}
	}

	if err := st.Validate(); err != nil {
		return nil, errors.Wrap(err, "give at least one --action, --not-action or --access-level")
	}
	return st, nil
}

func addAction(st *policy.Statement, flags statementFlags, cat *catalog.Catalog, action string) error {
	if !flags.validate {
		return st.AddAction(action)
	}

	prefix, name, err := splitQualified(action)
	if err != nil {
		return errors.Wrap(policy.ErrInvalidAction, err.Error())
	}
	svc, err := lookupService(cat, prefix)
	if err != nil {
		return err
	}

	switch {
	case name == "*":
		return svc.ToAll(st)
	case strings.ContainsAny(name, "*?"):
		return svc.ToMatching(st, name)
	case flags.dependencies:
		return svc.ToWithDependencies(st, name)
	default:
		return svc.To(st, name)
	}
}

func addCondition(st *policy.Statement, flags statementFlags, cat *catalog.Catalog, c conditionFlag) error {
	if !flags.validate {
		return st.AddCondition(c.key, c.values, c.operator)
	}

	// Global keys ("aws:...") are known to every service.
	prefix := c.key
	if idx := strings.Index(prefix, ":"); idx > 0 {
		prefix = prefix[:idx]
	}
	if prefix == "aws" {
		ck, ok := cat.GlobalConditionKey(c.key)
		if !ok {
			return errors.Wrapf(catalog.ErrUnknownConditionKey, "%q is not a global condition key", c.key)
		}
		operator := c.operator
		if operator == "" {
			operator = ck.Type.DefaultOperator()
		}
		return st.AddCondition(c.key, c.values, operator)
	}

	svc, err := lookupService(cat, prefix)
	if err != nil {
		return err
	}
	return svc.If(st, c.key, c.values, c.operator)
}

func lookupService(cat *catalog.Catalog, prefix string) (*catalog.Service, error) {
	if cat == nil {
		return nil, errors.New("no catalog loaded")
	}
	svc, ok := cat.Service(prefix)
	if !ok {
		return nil, errors.Errorf("service %q is not in the catalog", prefix)
	}
	return svc, nil
}
