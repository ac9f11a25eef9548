package main

import "github.com/spf13/cobra"

type simulateFlags struct {
	statementFlags
	principal bool
	contexts  []string
}

func (flags *simulateFlags) addFlags(command *cobra.Command) {
	flags.statementFlags.addFlags(command)
	command.Flags().BoolVar(&flags.principal, "principal", false, "Simulate the --action values against the caller's own policies instead of the built statement.")
	command.Flags().StringArrayVar(&flags.contexts, "context", []string{}, "A condition key value passed to the simulator, in the form 'key=v1,v2'.")
}
