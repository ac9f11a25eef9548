package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

var stdout io.Writer = os.Stdout

// printOutput writes data to stdout in the configured output format.
func printOutput(data interface{}) error {
	return writeOutput(stdout, viper.GetString("output"), data)
}

func writeOutput(w io.Writer, format string, data interface{}) error {
	switch format {
	case "", outputJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case outputYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal YAML")
		}
		_, err = w.Write(out)
		return err
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}
