package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type statementFlags struct {
	sid          string
	effect       string
	actions      []string
	notActions   []string
	resources    []string
	notResources []string
	conditions   []string
	on           []string
	params       []string
	accessLevels []string
	validate     bool
	dependencies bool
}

func (flags *statementFlags) addFlags(command *cobra.Command) {
	command.Flags().StringVar(&flags.sid, "sid", "", "The statement id. Omitted from the output when empty.")
	command.Flags().StringVar(&flags.effect, "effect", "Allow", "The statement effect: Allow or Deny.")
	command.Flags().StringArrayVar(&flags.actions, "action", []string{}, "An action such as ec2:StartInstances. With --validate, wildcards such as ec2:Describe* expand through the catalog.")
	command.Flags().StringArrayVar(&flags.notActions, "not-action", []string{}, "An action for the NotAction element.")
	command.Flags().StringArrayVar(&flags.resources, "resource", []string{}, "A resource ARN.")
	command.Flags().StringArrayVar(&flags.notResources, "not-resource", []string{}, "A resource ARN for the NotResource element.")
	command.Flags().StringArrayVar(&flags.conditions, "condition", []string{}, "A condition in the form 'Operator key=v1,v2'. With --validate the operator may be left out.")
	command.Flags().StringArrayVar(&flags.on, "on", []string{}, "A catalog resource type, as service:type, whose ARN is expanded with --param and the global scope.")
	command.Flags().StringArrayVar(&flags.params, "param", []string{}, "An ARN template value in the form Name=value. Use the flag multiple times to set multiple values.")
	command.Flags().StringArrayVar(&flags.accessLevels, "access-level", []string{}, "Add every catalog action of an access level, as service:level, for example s3:Read.")
	command.Flags().BoolVar(&flags.validate, "validate", false, "Check actions and condition keys against the catalog.")
	command.Flags().BoolVar(&flags.dependencies, "with-dependencies", false, "With --validate, also add the dependent actions of each action.")
}

// needsCatalog reports whether building the statement reads the catalog.
func (flags *statementFlags) needsCatalog() bool {
	return flags.validate || len(flags.on) > 0 || len(flags.accessLevels) > 0
}

type renderFlags struct {
	statementFlags
	document bool
}

func (flags *renderFlags) addFlags(command *cobra.Command) {
	flags.statementFlags.addFlags(command)
	command.Flags().BoolVar(&flags.document, "document", false, "Wrap the statement in a policy document.")
}

// conditionFlag is a parsed --condition value.
type conditionFlag struct {
	operator string
	key      string
	values   []string
}

// parseCondition reads "Operator key=v1,v2" or, without an operator,
// "key=v1,v2". Only whitespace before the first '=' separates the operator,
// so values may contain spaces.
func parseCondition(raw string) (conditionFlag, error) {
	var c conditionFlag

	expr := strings.TrimSpace(raw)
	eq := strings.Index(expr, "=")
	if eq < 0 {
		return c, errors.Errorf("condition %q is not in 'Operator key=v1,v2' form", raw)
	}
	if idx := strings.IndexAny(expr[:eq], " \t"); idx >= 0 {
		c.operator = expr[:idx]
		expr = strings.TrimSpace(expr[idx+1:])
		eq = strings.Index(expr, "=")
	}
	if eq <= 0 {
		return c, errors.Errorf("condition %q is not in 'Operator key=v1,v2' form", raw)
	}

	c.key = expr[:eq]
	c.values = strings.Split(expr[eq+1:], ",")
	return c, nil
}

// splitQualified splits "service:name" into its two halves.
func splitQualified(qualified string) (string, string, error) {
	idx := strings.Index(qualified, ":")
	if idx <= 0 || idx == len(qualified)-1 {
		return "", "", errors.Errorf("%q is not in service:name form", qualified)
	}
	return qualified[:idx], qualified[idx+1:], nil
}
