package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	version = "0.3.0"
)

func init() {
	kvbindCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of kvbind",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "kvbind %s\n", version)
			},
		})
}
