package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolsplus/ifj-migrate/internal/backup"
	"github.com/toolsplus/ifj-migrate/internal/ui"
)

// Report summarises a migration run.
type Report struct {
	Instance        string         `yaml:"instance"`
	EntitiesXMLFile string         `yaml:"entities_xml_file"`
	StartedAt       time.Time      `yaml:"started_at"`
	FinishedAt      time.Time      `yaml:"finished_at"`
	Backup          backup.Summary `yaml:"backup"`
	Issues          IssueReport    `yaml:"issues"`
	Projects        ProjectReport  `yaml:"projects"`
	Error           string         `yaml:"error,omitempty"`
}

// IssueReport counts conversation link issue properties.
type IssueReport struct {
	Reconciled int `yaml:"reconciled"`
	Imported   int `yaml:"imported"`
	Batches    int `yaml:"batches"`
	Polls      int `yaml:"polls"`
}

// ProjectReport counts connection configuration project properties.
type ProjectReport struct {
	Reconciled int `yaml:"reconciled"`
	Imported   int `yaml:"imported"`
}

// WriteFile stores the report as YAML, creating parent directories.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// reporter prints hierarchical progress markers.
type reporter struct {
	w io.Writer
}

func newReporter(w io.Writer) *reporter {
	if w == nil {
		w = io.Discard
	}
	return &reporter{w: w}
}

func (r *reporter) start(depth int, format string, args ...any) {
	_, _ = fmt.Fprintln(r.w, ui.RenderStart(depth, fmt.Sprintf(format, args...)))
}

func (r *reporter) done(depth int, format string, args ...any) {
	_, _ = fmt.Fprintln(r.w, ui.RenderDone(depth, fmt.Sprintf(format, args...)))
}

func (r *reporter) detail(format string, args ...any) {
	_, _ = fmt.Fprintln(r.w, ui.RenderDetail(fmt.Sprintf(format, args...)))
}

// summary prints the backup content counts.
func (r *reporter) summary(s backup.Summary) {
	PrintSummary(r.w, s)
}

// PrintSummary prints what a backup contains.
func PrintSummary(w io.Writer, s backup.Summary) {
	_, _ = fmt.Fprintln(w, ui.RenderCategory("=== App data ==="))
	_, _ = fmt.Fprintf(w, "%sFound %d issue mappings\n", ui.DetailIndent, s.IssueMappings)
	_, _ = fmt.Fprintf(w, "%sFound %d project mappings\n", ui.DetailIndent, s.ProjectMappings)
	_, _ = fmt.Fprintf(w, "%sFound %d issue properties to import\n", ui.DetailIndent, s.IssueProperties)
	_, _ = fmt.Fprintf(w, "%sFound %d project properties to import\n", ui.DetailIndent, s.ProjectProperties)
	_, _ = fmt.Fprintln(w, ui.RenderSeparator())
}
