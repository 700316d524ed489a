// Package debug provides verbose/quiet aware output helpers and an optional
// append-only event log for migration runs.
//
// Normal output (progress, summaries) goes to the writer set with SetOutput
// and is dropped in quiet mode. Debug output goes to stderr and only appears
// in verbose mode or when IFJ_DEBUG is set.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("IFJ_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex
	eventLog    string

	output    io.Writer = os.Stdout
	logOutput io.Writer = os.Stderr
)

// Enabled reports whether debug output is on.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput sets where normal output is written. A nil writer restores
// stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	output = w
}

// NormalWriter returns the normal output writer, or io.Discard in quiet mode.
func NormalWriter() io.Writer {
	if quietMode {
		return io.Discard
	}
	return output
}

// Logf writes debug output to stderr when Enabled.
func Logf(format string, args ...interface{}) {
	if Enabled() {
		_, _ = fmt.Fprintf(logOutput, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(NormalWriter(), format, args...)
}

// SetEventLog sets the file LogEvent appends to. An empty path disables
// event logging.
func SetEventLog(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLog = path
}

// LogEvent appends an event line to the configured event log.
// Format: TIMESTAMP|EVENT_CODE|ENTITY|DETAILS
func LogEvent(eventCode, entity, details string) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if eventLog == "" {
		return
	}
	if entity == "" {
		entity = "none"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s\n", timestamp, eventCode, entity, details)

	_ = os.MkdirAll(filepath.Dir(eventLog), 0o755)

	// #nosec G304 -- path comes from the operator's --event-log flag
	file, err := os.OpenFile(eventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		// Silent fail - don't interrupt the migration if logging fails
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}
