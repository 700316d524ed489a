package debug

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withModes sets the package switches for one test.
func withModes(t *testing.T, env, verbose, quiet bool) {
	t.Helper()
	oldEnabled, oldVerbose, oldQuiet := enabled, verboseMode, quietMode
	t.Cleanup(func() {
		enabled, verboseMode, quietMode = oldEnabled, oldVerbose, oldQuiet
	})
	enabled = env
	SetVerbose(verbose)
	SetQuiet(quiet)
}

func captureOutput(t *testing.T) (normal, logs *bytes.Buffer) {
	t.Helper()
	normal, logs = &bytes.Buffer{}, &bytes.Buffer{}
	oldLog := logOutput
	SetOutput(normal)
	logOutput = logs
	t.Cleanup(func() {
		SetOutput(nil)
		logOutput = oldLog
	})
	return normal, logs
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    string
	}{
		{"silent by default", false, false, ""},
		{"IFJ_DEBUG set", true, false, "chunk 1/3 sent\n"},
		{"verbose flag", false, true, "chunk 1/3 sent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withModes(t, tt.env, tt.verbose, false)
			normal, logs := captureOutput(t)

			Logf("chunk %s sent\n", "1/3")

			assert.Equal(t, tt.want, logs.String())
			assert.Empty(t, normal.String())
			assert.Equal(t, tt.want != "", Enabled())
		})
	}
}

func TestPrintNormal(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
		want  string
	}{
		{"prints by default", false, "Found 3 issue mappings\n"},
		{"quiet drops output", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withModes(t, false, false, tt.quiet)
			normal, logs := captureOutput(t)

			PrintNormal("Found %d issue mappings\n", 3)

			assert.Equal(t, tt.want, normal.String())
			assert.Empty(t, logs.String())
			assert.Equal(t, tt.quiet, IsQuiet())
		})
	}
}

func TestNormalWriter(t *testing.T) {
	withModes(t, false, false, false)
	normal, _ := captureOutput(t)
	assert.Same(t, normal, NormalWriter())

	SetQuiet(true)
	assert.Equal(t, io.Discard, NormalWriter())

	SetOutput(nil)
	SetQuiet(false)
	assert.Equal(t, os.Stdout, NormalWriter())
}

func TestLogEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	SetEventLog(path)
	defer SetEventLog("")

	LogEvent("BATCH_COMPLETE", "issue-chunk-1", "100 entities")
	LogEvent("RUN_FAILED", "", "boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "|BATCH_COMPLETE|issue-chunk-1|100 entities"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "|RUN_FAILED|none|boom"), lines[1])
}

func TestLogEventDisabled(t *testing.T) {
	dir := t.TempDir()
	SetEventLog("")
	LogEvent("NOOP", "x", "y")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
