package main

import "github.com/spf13/cobra"

type arnFlags struct {
	resourceType string
	params       []string
	explain      bool
}

func (flags *arnFlags) addFlags(command *cobra.Command) {
	command.Flags().StringVar(&flags.resourceType, "type", "", "A catalog resource type, as service:type, to expand instead of a template argument.")
	command.Flags().StringArrayVar(&flags.params, "param", []string{}, "An ARN template value in the form Name=value. Use the flag multiple times to set multiple values.")
	command.Flags().BoolVar(&flags.explain, "explain", false, "Print the template placeholders and the parsed ARN.")
}
