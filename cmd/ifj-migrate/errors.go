package main

import (
	"fmt"
	"io"
	"os"

	"github.com/toolsplus/ifj-migrate/internal/ui"
)

// stderr receives error and warning output.
var stderr io.Writer = os.Stderr

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
//
// Example:
//
//	if err := executeRoot(); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stderr, "%s "+format+"\n", append([]interface{}{ui.RenderFail("Error:")}, args...)...)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
// Use this for auxiliary output, such as the run report, whose failure
// must not hide the migration's own result.
func WarnError(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stderr, "%s "+format+"\n", append([]interface{}{ui.RenderWarn("Warning:")}, args...)...)
}
