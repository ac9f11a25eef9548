package main

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws/arn"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ttacon/pretty"

	"github.com/ttacon/iamstmt/arntemplate"
)

func arnCmd() *cobra.Command {
	var flags arnFlags

	cmd := &cobra.Command{
		Use:   "arn [TEMPLATE]",
		Short: "Expand an ARN template such as arn:${Partition}:sqs:${Region}:${Account}:${QueueName}.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			tmpl, err := resolveTemplate(flags, args)
			if err != nil {
				return err
			}

			params, err := parseKeyValues(flags.params)
			if err != nil {
				return errors.Wrap(err, "bad --param")
			}
			expanded, err := tmpl.Expand(currentScope().values(params))
			if err != nil {
				return err
			}

			if flags.explain {
				return explainARN(stdout, tmpl, expanded)
			}
			_, err = fmt.Fprintln(stdout, expanded)
			return err
		},
	}

	flags.addFlags(cmd)

	return cmd
}

// resolveTemplate returns the template named by --type or given as the
// only argument. Exactly one of the two must be set.
func resolveTemplate(flags arnFlags, args []string) (*arntemplate.Template, error) {
	if (flags.resourceType == "") == (len(args) == 0) {
		return nil, errors.New("give either a template argument or --type")
	}
	if len(args) == 1 {
		return arntemplate.Parse(args[0])
	}

	prefix, name, err := splitQualified(flags.resourceType)
	if err != nil {
		return nil, errors.Wrap(err, "resource type")
	}
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	svc, err := lookupService(cat, prefix)
	if err != nil {
		return nil, err
	}
	rt, ok := svc.ResourceType(name)
	if !ok {
		return nil, errors.Errorf("%s has no resource type %q", prefix, name)
	}
	return rt.ARN, nil
}

func explainARN(w io.Writer, tmpl *arntemplate.Template, expanded string) error {
	fmt.Fprintf(w, "template:     %s\n", tmpl)
	fmt.Fprintf(w, "placeholders: %v\n", tmpl.Placeholders())
	fmt.Fprintf(w, "required:     %v\n", tmpl.Required())
	fmt.Fprintf(w, "arn:          %s\n", expanded)

	parsed, err := arn.Parse(expanded)
	if err != nil {
		return errors.Wrapf(err, "expanded value %q is not an ARN", expanded)
	}
	_, err = fmt.Fprintf(w, "%# v\n", pretty.Formatter(parsed))
	return err
}
