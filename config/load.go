package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"

	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
	"github.com/hashicorp/hcl/hcl/scanner"
	"github.com/hashicorp/hcl/hcl/token"

	"github.com/leftmike/kvbind/kv"
)

// checkAssignments fails if the last assignment in src has no value; the parser
// silently drops such an item.
func checkAssignments(src []byte) error {
	s := scanner.New(src)
	var prev token.Token
	for {
		tok := s.Scan()
		if tok.Type == token.EOF {
			if prev.Type == token.ASSIGN {
				return fmt.Errorf("At %s: expected a value after =", prev.Pos)
			}
			return nil
		} else if tok.Type != token.COMMENT {
			prev = tok
		}
	}
}

// Load reads name = value pairs in HCL from r and sets the options they name. Names
// are option names, such as num_levels or block_cache_size.
func Load(r io.Reader, opts *kv.Options) error {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	f, err := hcl.ParseBytes(b)
	if err != nil {
		return err
	}
	err = checkAssignments(b)
	if err != nil {
		return err
	}

	list, ok := f.Node.(*ast.ObjectList)
	if !ok {
		return fmt.Errorf("config: expected name = value pairs")
	}
	for _, item := range list.Items {
		if len(item.Keys) != 1 {
			return fmt.Errorf("At %s: expected name = value", item.Pos())
		}
		if _, ok := item.Val.(*ast.LiteralType); !ok {
			return fmt.Errorf("At %s: %s: expected a bool, int, or string", item.Val.Pos(),
				item.Keys[0].Token.Text)
		}
	}

	var cfg map[string]interface{}
	err = hcl.DecodeObject(&cfg, f)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch val := cfg[name].(type) {
		case bool, int, string:
			err = opts.SetValue(name, val)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("config: %s: expected a bool, int, or string: %v", name, val)
		}
	}
	return nil
}

func LoadFile(name string, opts *kv.Options) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	err = Load(f, opts)
	if err != nil {
		return fmt.Errorf("config: %s: %s", name, err)
	}
	return nil
}
