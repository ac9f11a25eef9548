package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ttacon/iamstmt/awsiam"
	"github.com/ttacon/iamstmt/catalog"
)

func simulateCmd() *cobra.Command {
	var flags simulateFlags

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a statement, or the caller's own policies, through the IAM policy simulator.",
		Args:  cobra.NoArgs,
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

			entries, err := parseContextEntries(flags.contexts)
			if err != nil {
				return err
			}

			client, err := newAWSClient()
			if err != nil {
				return err
			}

			ctx := context.Background()
			var decisions []awsiam.Decision
			if flags.principal {
				decisions, err = client.SimulatePrincipal(ctx, st.Actions())
			} else {
				decisions, err = client.SimulateStatement(ctx, st, entries...)
			}
			if err != nil {
				return err
			}

			denied := printDecisions(stdout, decisions)
			if denied > 0 {
				logger.WithFields(log.Fields{
					"denied":    denied,
					"decisions": len(decisions),
				}).Warn("Simulation denied some calls")
				return errors.Errorf("%d of %d calls denied", denied, len(decisions))
			}
			return nil
		},
	}

	flags.addFlags(cmd)

	return cmd
}

func parseContextEntries(raw []string) ([]awsiam.ContextEntry, error) {
	var entries []awsiam.ContextEntry
	for _, r := range raw {
		c, err := parseCondition(r)
		if err != nil {
			return nil, errors.Wrap(err, "bad --context")
		}
		if c.operator != "" {
			return nil, errors.Errorf("context %q takes no operator", r)
		}
		entries = append(entries, awsiam.ContextEntry{Key: c.key, Values: c.values})
	}
	return entries, nil
}

// printDecisions writes a decision table and returns how many calls were
// not allowed.
func printDecisions(w io.Writer, decisions []awsiam.Decision) int {
	denied := 0
	table := newTable(w, "ACTION", "RESOURCE", "DECISION")
	for _, d := range decisions {
		if !d.Allowed() {
			denied++
		}
		table.Append([]string{d.Action, d.Resource, d.Decision})
	}
	table.Render()
	return denied
}
