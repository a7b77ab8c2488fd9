package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/leftmike/kvbind/kv"
	"github.com/leftmike/kvbind/repl"
)

var (
	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Run commands against the database from the console",
		Args:  cobra.NoArgs,
		RunE:  replRun,
	}
)

func init() {
	kvbindCmd.AddCommand(replCmd)
}

func replRun(cmd *cobra.Command, args []string) error {
	return withDB(cmd, true,
		func(db *kv.DB) error {
			if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				repl.Interact(db)
			} else {
				repl.Run(db, os.Stdin, cmd.OutOrStdout())
			}
			return nil
		})
}
