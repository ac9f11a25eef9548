package main

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ttacon/iamstmt/policy"
	"github.com/ttacon/iamstmt/tfscan"
)

func terraformCmd() *cobra.Command {
	var flags terraformFlags

	cmd := &cobra.Command{
		Use:   "terraform",
		Short: "Print the statement a Terraform configuration needs to be applied.",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			sources, err := tfscan.Load(flags.path, logger)
			if err != nil {
				return errors.Wrap(err, "failed to load terraform sources")
			}
			if logger.IsLevelEnabled(log.DebugLevel) {
				logger.Debug("Terraform sources:\n" + sources.Debug())
			}
			for _, resourceType := range sources.Unmapped(cat) {
				logger.WithField("type", resourceType).Warn("No catalog mapping for terraform type; its permissions are not included")
			}

			st, err := sources.Statement(cat, flags.sid)
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
