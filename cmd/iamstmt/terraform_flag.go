package main

import "github.com/spf13/cobra"

type terraformFlags struct {
	path     string
	sid      string
	document bool
}

func (flags *terraformFlags) addFlags(command *cobra.Command) {
	command.Flags().StringVarP(&flags.path, "file", "f", "", "A Terraform file or a directory of .tf files.")
	command.Flags().StringVar(&flags.sid, "sid", "Terraform", "The id of the generated statement.")
	command.Flags().BoolVar(&flags.document, "document", false, "Wrap the statement in a policy document.")

	_ = command.MarkFlagRequired("file")
}
