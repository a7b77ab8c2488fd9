package testutil

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// FileLineNumber is a source position carried by an entry in a table of test commands,
// so that failures point at the entry rather than at the loop running the table.
type FileLineNumber struct {
	File string
	Line int
}

// String returns "file:line: " for use as a prefix, or "" if the position is unknown.
func (fln FileLineNumber) String() string {
	if fln.File == "" || fln.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d: ", filepath.Base(fln.File), fln.Line)
}

// MakeFileLineNumber returns the position of the caller of the function calling it;
// tests wrap it in a local fln() helper used inside table literals.
func MakeFileLineNumber() FileLineNumber {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return FileLineNumber{}
	}
	return FileLineNumber{file, line}
}
