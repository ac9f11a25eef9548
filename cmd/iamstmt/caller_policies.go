package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ttacon/iamstmt/awsiam"
	"github.com/ttacon/iamstmt/policy"
)

func callerPoliciesCmd() *cobra.Command {
	var table bool

	cmd := &cobra.Command{
		Use:   "caller-policies",
		Short: "List the policies attached to the calling IAM user and its groups.",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			client, err := newAWSClient()
			if err != nil {
				return err
			}
			policies, err := client.UserPolicies(context.Background())
			if err != nil {
				return err
			}

			if table {
				printPolicyTable(policies)
				return nil
			}
			return printOutput(callerPolicyOutputs(policies))
		},
	}

	cmd.Flags().BoolVar(&table, "table", false, "Whether to display the policies in a table or not.")
	cmd.AddCommand(requiredPermissionsCmd())

	return cmd
}

func requiredPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "required-permissions",
		Short: "Print the policy the AWS backed commands need.",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			doc, err := policy.NewDocument(awsiam.RequiredPermissions())
			if err != nil {
				return err
			}
			return printOutput(doc.Render())
		},
	}
}

type callerPolicyOutput struct {
	Name     string                   `json:"Name" yaml:"Name"`
	Source   string                   `json:"Source" yaml:"Source"`
	Document *policy.RenderedDocument `json:"Document,omitempty" yaml:"Document,omitempty"`
	Error    string                   `json:"Error,omitempty" yaml:"Error,omitempty"`
}

func callerPolicyOutputs(policies []awsiam.NamedPolicy) []callerPolicyOutput {
	out := make([]callerPolicyOutput, 0, len(policies))
	for _, p := range policies {
		o := callerPolicyOutput{Name: p.Name, Source: p.Source}
		if p.ParseErr != nil {
			o.Error = p.ParseErr.Error()
		} else {
			rendered := p.Document.Render()
			o.Document = &rendered
		}
		out = append(out, o)
	}
	return out
}

func printPolicyTable(policies []awsiam.NamedPolicy) {
	table := newTable(stdout, "NAME", "SOURCE", "STATEMENTS", "ERROR")
	for _, p := range policies {
		statements, errText := "-", ""
		if p.ParseErr != nil {
			errText = p.ParseErr.Error()
		} else {
			statements = fmt.Sprintf("%d", len(p.Document.Statements()))
		}
		table.Append([]string{p.Name, p.Source, statements, errText})
	}
	table.Render()
}
