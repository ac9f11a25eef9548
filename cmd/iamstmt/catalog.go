package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ttacon/iamstmt/catalog"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the service catalog used to validate statements.",
	}

	cmd.AddCommand(catalogServicesCmd())
	cmd.AddCommand(catalogActionsCmd())

	return cmd
}

func catalogServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the services in the catalog.",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			cat, err := loadCatalog()
			if err != nil {
				return err
			}

			table := newTable(stdout, "PREFIX", "NAME", "ACTIONS", "RESOURCE TYPES")
			for _, svc := range cat.Services() {
				table.Append([]string{
					svc.Prefix,
					svc.Name,
					fmt.Sprintf("%d", len(svc.Actions())),
					fmt.Sprintf("%d", len(svc.ResourceTypes())),
				})
			}
			table.Render()

			return nil
		},
	}

	return cmd
}

func catalogActionsCmd() *cobra.Command {
	var flags catalogActionsFlags

	cmd := &cobra.Command{
		Use:   "actions SERVICE",
		Short: "List the actions of a service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			cat, err := loadCatalog()
			if err != nil {
				return err
			}
			svc, err := lookupService(cat, args[0])
			if err != nil {
				return err
			}

			actions, err := filterActions(svc.Actions(), flags)
			if err != nil {
				return err
			}

			table := newTable(stdout, "ACTION", "ACCESS LEVEL", "RESOURCE TYPES", "CONDITION KEYS")
			for _, action := range actions {
				var resourceTypes []string
				for _, rt := range action.ResourceTypes {
					name := rt.Type
					if rt.Required {
						name += "*"
					}
					resourceTypes = append(resourceTypes, name)
				}
				table.Append([]string{
					svc.Qualify(action.Name),
					string(action.AccessLevel),
					strings.Join(resourceTypes, ", "),
					strings.Join(action.ConditionKeys, ", "),
				})
			}
			table.Render()

			return nil
		},
	}

	flags.addFlags(cmd)

	return cmd
}

func filterActions(actions []*catalog.Action, flags catalogActionsFlags) ([]*catalog.Action, error) {
	var level catalog.AccessLevel
	if flags.accessLevel != "" {
		var ok bool
		level, ok = catalog.ParseAccessLevel(flags.accessLevel)
		if !ok {
			return nil, errors.Errorf("unknown access level %q", flags.accessLevel)
		}
	}

	var pattern *catalog.ActionPattern
	if flags.match != "" {
		var err error
		pattern, err = catalog.CompileActionPattern(flags.match)
		if err != nil {
			return nil, err
		}
	}

	var filtered []*catalog.Action
	for _, action := range actions {
		if level != "" && action.AccessLevel != level {
			continue
		}
		if pattern != nil && !pattern.Match(action.Name) {
			continue
		}
		filtered = append(filtered, action)
	}
	return filtered, nil
}
