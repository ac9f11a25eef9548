// Package main is the entry point to the iamstmt CLI, which builds, checks
// and simulates IAM policy statements.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "iamstmt",
		Short: "iamstmt builds IAM policy statements and checks them against AWS.",
		PersistentPreRunE: func(command *cobra.Command, args []string) error {
			return initConfig(command, flags)
		},
		// SilenceErrors allows us to explicitly log the error returned from rootCmd below.
		SilenceErrors: true,
	}

	flags.addFlags(cmd)

	cmd.AddCommand(renderCmd())
	cmd.AddCommand(arnCmd())
	cmd.AddCommand(catalogCmd())
	cmd.AddCommand(terraformCmd())
	cmd.AddCommand(simulateCmd())
	cmd.AddCommand(callerPoliciesCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
