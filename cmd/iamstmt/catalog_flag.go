package main

import "github.com/spf13/cobra"

type catalogActionsFlags struct {
	accessLevel string
	match       string
}

func (flags *catalogActionsFlags) addFlags(command *cobra.Command) {
	command.Flags().StringVar(&flags.accessLevel, "access-level", "", "Only list actions of this access level, for example Read or 'Permissions management'.")
	command.Flags().StringVar(&flags.match, "match", "", "Only list actions whose name matches this glob, for example Describe*.")
}
