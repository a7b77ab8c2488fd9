package repl

import (
	"fmt"
	"os"

	"github.com/peterh/liner"

	"github.com/leftmike/kvbind/kv"
)

const (
	kvbindHistory = ".kvbind_history"
)

// Interact runs the repl on the terminal, with line editing and history.
func Interact(db *kv.DB) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(kvbindHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	replLines(db,
		func() (string, error) {
			s, err := line.Prompt("kvbind: ")
			if err != nil {
				return "", err
			}
			if s != "" {
				line.AppendHistory(s)
			}
			return s, nil
		}, os.Stdout)

	if f, err := os.Create(kvbindHistory); err != nil {
		fmt.Fprintf(os.Stderr, "kvbind: error writing history file, %s: %s\n", kvbindHistory,
			err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}
