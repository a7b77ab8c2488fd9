package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"

	"github.com/leftmike/kvbind/kv"
)

const help = `commands:
    get <key>
    set <key> <value>
    delete <key>
    scan [<min-key> [<max-key>]]
    flush
    stats
    help
    quit
keys and values may be Go quoted strings, such as "a key" or "\x00\x01"
`

var (
	errQuit = errors.New("quit")
)

type command struct {
	minArgs, maxArgs int
	fn               func(db *kv.DB, w io.Writer, args [][]byte) error
}

var commands = map[string]command{
	"get":    {1, 1, getCmd},
	"set":    {2, 2, setCmd},
	"delete": {1, 1, deleteCmd},
	"scan":   {0, 2, scanCmd},
	"flush": {0, 0,
		func(db *kv.DB, w io.Writer, args [][]byte) error {
			return db.Flush()
		}},
	"stats": {0, 0,
		func(db *kv.DB, w io.Writer, args [][]byte) error {
			fmt.Fprint(w, db.Stats())
			return nil
		}},
	"help": {0, 0,
		func(db *kv.DB, w io.Writer, args [][]byte) error {
			fmt.Fprint(w, help)
			return nil
		}},
	"quit": {0, 0,
		func(db *kv.DB, w io.Writer, args [][]byte) error {
			return errQuit
		}},
}

// Format returns b as is if it is printable text without spaces, otherwise as a Go
// quoted string; either way the result can be typed back in as an argument.
func Format(b []byte) string {
	s := string(b)
	if !utf8.ValidString(s) || strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsPrint(r) || unicode.IsSpace(r)
	}) >= 0 || strings.HasPrefix(s, `"`) {

		return strconv.Quote(s)
	}
	return s
}

func splitLine(line string) ([][]byte, error) {
	var args [][]byte
	for {
		line = strings.TrimLeftFunc(line, unicode.IsSpace)
		if line == "" {
			return args, nil
		}

		if line[0] == '"' {
			q, err := strconv.QuotedPrefix(line)
			if err != nil {
				return nil, fmt.Errorf("bad quoted string: %s", line)
			}
			s, err := strconv.Unquote(q)
			if err != nil {
				return nil, err
			}
			args = append(args, []byte(s))
			line = line[len(q):]
		} else {
			n := strings.IndexFunc(line, unicode.IsSpace)
			if n < 0 {
				n = len(line)
			}
			args = append(args, []byte(line[:n]))
			line = line[n:]
		}
	}
}

func getCmd(db *kv.DB, w io.Writer, args [][]byte) error {
	err := db.Get(kv.DefaultReadOptions(), args[0],
		func(val []byte) error {
			fmt.Fprintln(w, Format(val))
			return nil
		})
	if err == io.EOF {
		fmt.Fprintf(w, "%s: not found\n", Format(args[0]))
		return nil
	}
	return err
}

func setCmd(db *kv.DB, w io.Writer, args [][]byte) error {
	return db.Set(args[0], args[1])
}

func deleteCmd(db *kv.DB, w io.Writer, args [][]byte) error {
	return db.Delete(args[0])
}

func scanCmd(db *kv.DB, w io.Writer, args [][]byte) error {
	var minKey, maxKey []byte
	if len(args) > 0 {
		minKey = args[0]
	}
	if len(args) > 1 {
		maxKey = args[1]
	}

	it, err := db.Iterate(kv.DefaultReadOptions(), minKey, maxKey)
	if err != nil {
		return err
	}
	defer it.Close()

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"key", "value"})
	for {
		err = it.Item(
			func(key, val []byte) error {
				tw.Append([]string{Format(key), Format(val)})
				return nil
			})
		if err != nil {
			break
		}
	}
	tw.Render()
	fmt.Fprintf(w, "(%d rows)\n", tw.NumLines())
	if err != io.EOF {
		return err
	}
	return nil
}

// Line runs one command line against db, writing any output to w. It returns io.EOF
// for quit.
func Line(db *kv.DB, line string, w io.Writer) error {
	args, err := splitLine(line)
	if err != nil {
		return err
	} else if len(args) == 0 {
		return nil
	}

	name := string(args[0])
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%s: unknown command; try help", name)
	}
	args = args[1:]
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return fmt.Errorf("%s: wrong number of arguments; try help", name)
	}

	err = cmd.fn(db, w, args)
	if err == errQuit {
		return io.EOF
	}
	return err
}

func replLines(db *kv.DB, readLine func() (string, error), w io.Writer) {
	for {
		line, err := readLine()
		if err != nil {
			return
		}

		err = Line(db, line, w)
		if err == io.EOF {
			return
		} else if err != nil {
			fmt.Fprintln(w, err)
		}
	}
}

// Run reads command lines from r until the end of the input or quit. Errors are
// written to w and do not stop the loop.
func Run(db *kv.DB, r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<20)
	replLines(db,
		func() (string, error) {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			return scanner.Text(), nil
		}, w)
}
