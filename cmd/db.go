package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leftmike/kvbind/dump"
	"github.com/leftmike/kvbind/kv"
	"github.com/leftmike/kvbind/repl"
)

func init() {
	kvbindCmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value of a key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd, false,
					func(db *kv.DB) error {
						err := db.Get(kv.DefaultReadOptions(), []byte(args[0]),
							func(val []byte) error {
								fmt.Fprintln(cmd.OutOrStdout(), repl.Format(val))
								return nil
							})
						if err == io.EOF {
							return fmt.Errorf("kvbind: %s: not found", args[0])
						}
						return err
					})
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set the value of a key, creating the database if necessary",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd, true,
					func(db *kv.DB) error {
						return db.Set([]byte(args[0]), []byte(args[1]))
					})
			},
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Delete a key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd, false,
					func(db *kv.DB) error {
						return db.Delete([]byte(args[0]))
					})
			},
		},
		&cobra.Command{
			Use:   "scan [<min-key> [<max-key>]]",
			Short: "Print the keys and values in a range",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd, false,
					func(db *kv.DB) error {
						line := "scan"
						for _, arg := range args {
							line += fmt.Sprintf(" %q", arg)
						}
						return repl.Line(db, line, cmd.OutOrStdout())
					})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print engine statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd, false,
					func(db *kv.DB) error {
						fmt.Fprint(cmd.OutOrStdout(), db.Stats())
						return nil
					})
			},
		},
		&cobra.Command{
			Use:   "dump <file>",
			Short: "Write every key and value to a file; - is standard output",
			Args:  cobra.ExactArgs(1),
			RunE:  dumpRun,
		},
		&cobra.Command{
			Use:   "load <file>",
			Short: "Set the keys and values from a dump file; - is standard input",
			Args:  cobra.ExactArgs(1),
			RunE:  loadRun,
		},
		&cobra.Command{
			Use:   "destroy",
			Short: "Remove the database and all of its files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := makeOptions(cmd, false)
				if err != nil {
					return err
				}
				err = kv.Destroy(opts, dbPath)
				if err != nil {
					return err
				}
				log.WithField("db", dbPath).Info("kvbind: destroyed")
				return nil
			},
		})
}

func dumpRun(cmd *cobra.Command, args []string) error {
	return withDB(cmd, false,
		func(db *kv.DB) error {
			if args[0] == "-" {
				_, err := dump.Write(cmd.OutOrStdout(), db)
				return err
			}

			var buf bytes.Buffer
			cnt, err := dump.Write(&buf, db)
			if err != nil {
				return err
			}
			err = atomic.WriteFile(args[0], &buf)
			if err != nil {
				return fmt.Errorf("kvbind: dump: %s", err)
			}
			log.WithFields(log.Fields{"db": dbPath, "file": args[0], "entries": cnt}).Info(
				"kvbind: dumped")
			return nil
		})
}

func loadRun(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("kvbind: load: %s", err)
		}
		defer f.Close()
		r = f
	}

	return withDB(cmd, true,
		func(db *kv.DB) error {
			cnt, err := dump.Read(r, db)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"db": dbPath, "file": args[0], "entries": cnt}).Info(
				"kvbind: loaded")
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries loaded\n", cnt)
			return nil
		})
}
