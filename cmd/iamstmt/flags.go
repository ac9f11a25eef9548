package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
}

func (flags *globalFlags) addFlags(command *cobra.Command) {
	command.PersistentFlags().StringVar(&flags.configFile, "config", "", "Config file to read. Defaults to ~/.iamstmt.yaml when it exists.")
	command.PersistentFlags().StringSlice("catalog", nil, "Extra catalog files or directories loaded on top of the built-in catalog.")
	command.PersistentFlags().String("log-level", "info", "The log level: trace, debug, info, warn or error.")
	command.PersistentFlags().String("partition", "", "The AWS partition used in ARNs. Derived from --region when unset.")
	command.PersistentFlags().String("region", "", "The AWS region used in ARNs.")
	command.PersistentFlags().String("account", "", "The AWS account ID used in ARNs.")
	command.PersistentFlags().StringP("output", "o", outputJSON, "The output format: json or yaml.")
}

// parseKeyValues turns "k=v" arguments into a map. A value may be empty,
// a key may not.
func parseKeyValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			return nil, errors.Errorf("%q is not in KEY=VALUE form", pair)
		}
		values[pair[:idx]] = pair[idx+1:]
	}
	return values, nil
}
