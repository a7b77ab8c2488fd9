package cmd

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/leftmike/kvbind/kv"
)

func init() {
	kvbindCmd.AddCommand(
		&cobra.Command{
			Use:   "options",
			Short: "Print the options a database would be opened with",
			Args:  cobra.NoArgs,
			RunE:  optionsRun,
		})
}

func formatParam(p kv.Param) string {
	if !p.Size {
		return p.Value
	}
	n, err := strconv.ParseUint(p.Value, 10, 64)
	if err != nil {
		return p.Value
	}
	return humanize.IBytes(n)
}

func optionsRun(cmd *cobra.Command, args []string) error {
	opts, err := makeOptions(cmd, false)
	if err != nil {
		return err
	}

	def := map[string]string{}
	for _, p := range kv.DefaultOptions().Params() {
		def[p.Name] = p.Value
	}

	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"name", "value", "by"})
	for _, p := range opts.Params() {
		by := "default"
		if p.Value != def[p.Name] {
			by = "set"
		}
		tw.Append([]string{p.Name, formatParam(p), by})
	}
	tw.Render()
	return nil
}
