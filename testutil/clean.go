package testutil

import (
	"os"
	"path/filepath"
)

// Residue returns the paths, relative to dirname, of every file and directory under
// dirname. It returns nil if dirname does not exist.
func Residue(dirname string) ([]string, error) {
	_, err := os.Stat(dirname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var left []string
	err = filepath.Walk(dirname,
		func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path == dirname {
				return nil
			}
			rel, err := filepath.Rel(dirname, path)
			if err != nil {
				return err
			}
			left = append(left, rel)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return left, nil
}
