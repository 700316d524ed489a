// Package migration runs an Intercom for Jira data migration: it reads the
// app data from a DC/Server backup, validates it, reconciles source ids to
// Cloud ids and imports the properties, printing hierarchical progress.
package migration

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/toolsplus/ifj-migrate/internal/backup"
	"github.com/toolsplus/ifj-migrate/internal/chunk"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/importer"
	"github.com/toolsplus/ifj-migrate/internal/jira"
	"github.com/toolsplus/ifj-migrate/internal/payload"
	"github.com/toolsplus/ifj-migrate/internal/reconcile"
	"github.com/toolsplus/ifj-migrate/internal/telemetry"
)

// API is the Jira Cloud surface a migration needs.
type API interface {
	importer.IssueAPI
	importer.ProjectAPI
	ResolveIssueIDs(ctx context.Context, keys []string) (map[string]int64, error)
	SearchProjects(ctx context.Context, keys []string, startAt, maxResults int) ([]jira.Project, error)
}

// Migrator runs migrations against one Cloud instance.
type Migrator struct {
	API API
	Out io.Writer

	// PollInterval and Sleep are passed to the issue importer.
	PollInterval time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error

	// Now stamps the report; defaults to time.Now.
	Now func() time.Time
}

// Payloads are validated app properties keyed by source id.
type Payloads struct {
	ConversationLinks        map[int64]payload.ConversationLinks
	ConnectionConfigurations map[int64]payload.ConnectionConfiguration
}

// Prepared is app data keyed by Cloud id, ready for import.
type Prepared struct {
	Issues   []reconcile.Entry[payload.ConversationLinks]
	Projects []reconcile.Entry[payload.ConnectionConfiguration]
}

// Run migrates the app data in entitiesXMLFile to instance. The returned
// report is never nil and describes how far the run got.
func (m *Migrator) Run(ctx context.Context, instance, entitiesXMLFile string) (report *Report, err error) {
	out := newReporter(m.Out)
	report = &Report{Instance: instance, EntitiesXMLFile: entitiesXMLFile, StartedAt: m.now()}
	defer func() {
		report.FinishedAt = m.now()
		if err != nil {
			report.Error = err.Error()
			debug.LogEvent("RUN_FAILED", instance, err.Error())
		} else {
			debug.LogEvent("RUN_COMPLETE", instance, fmt.Sprintf("%d issues, %d projects", report.Issues.Imported, report.Projects.Imported))
		}
	}()

	ctx, phase := telemetry.StartPhase(ctx, "migration.run", attribute.String("ifj.instance", instance))
	defer func() { phase.End(err) }()

	debug.LogEvent("RUN_START", instance, entitiesXMLFile)
	out.start(1, "Importing Intercom for Jira data from %s to %s...", entitiesXMLFile, instance)

	out.start(2, "Reading app data from backup file...")
	data, err := m.extract(ctx, entitiesXMLFile)
	if err != nil {
		return report, err
	}
	report.Backup = data.Summary()
	out.summary(report.Backup)
	out.done(2, "Successfully read app data from backup file")

	out.start(2, "Preparing app data for import...")
	prepared, err := m.Prepare(ctx, data)
	if err != nil {
		return report, err
	}
	report.Issues.Reconciled = len(prepared.Issues)
	report.Projects.Reconciled = len(prepared.Projects)
	out.done(2, "Successfully prepared app data for import")

	out.start(2, "Importing app data into Jira...")

	out.start(3, "Importing %d conversation link issue properties...", len(prepared.Issues))
	stats, err := m.importIssues(ctx, out, prepared.Issues)
	report.Issues.Imported = stats.Issues
	report.Issues.Batches = stats.Batches
	report.Issues.Polls = stats.Polls
	if err != nil {
		return report, err
	}
	out.done(3, "Successfully imported %d conversation link issue properties", len(prepared.Issues))

	out.start(3, "Importing %d connection configuration properties...", len(prepared.Projects))
	n, err := m.importProjects(ctx, out, prepared.Projects)
	report.Projects.Imported = n
	if err != nil {
		return report, err
	}
	out.done(3, "Successfully imported %d connection configuration properties", len(prepared.Projects))

	out.done(2, "Successfully imported app data into Jira")
	out.done(1, "Intercom for Jira data import is complete")
	return report, nil
}

func (m *Migrator) extract(ctx context.Context, path string) (data *backup.Data, err error) {
	ctx, phase := telemetry.StartPhase(ctx, "migration.extract")
	defer func() { phase.End(err) }()
	return backup.ExtractFile(ctx, path)
}

// ParsePayloads validates every raw property value in data in ascending id
// order, issues first, and reports the first invalid one. It needs no
// network access.
func ParsePayloads(data *backup.Data) (*Payloads, error) {
	p := &Payloads{
		ConversationLinks:        make(map[int64]payload.ConversationLinks, len(data.ConversationLinks)),
		ConnectionConfigurations: make(map[int64]payload.ConnectionConfiguration, len(data.ConnectionConfigurations)),
	}
	for _, id := range slices.Sorted(maps.Keys(data.ConversationLinks)) {
		links, err := payload.ParseConversationLinks(data.ConversationLinks[id])
		if err != nil {
			return nil, fmt.Errorf("conversation link issue property of issue %d: %w", id, err)
		}
		p.ConversationLinks[id] = links
	}
	for _, id := range slices.Sorted(maps.Keys(data.ConnectionConfigurations)) {
		cfg, err := payload.ParseConnectionConfiguration(data.ConnectionConfigurations[id])
		if err != nil {
			return nil, fmt.Errorf("connection configuration project property of project %d: %w", id, err)
		}
		p.ConnectionConfigurations[id] = cfg
	}
	return p, nil
}

// Prepare validates the app data and re-keys it by Cloud id. Issues and
// projects are reconciled in two independent passes.
func (m *Migrator) Prepare(ctx context.Context, data *backup.Data) (prepared *Prepared, err error) {
	ctx, phase := telemetry.StartPhase(ctx, "migration.prepare")
	defer func() { phase.End(err) }()

	payloads, err := ParsePayloads(data)
	if err != nil {
		return nil, err
	}

	issues, err := reconcile.Run(ctx, reconcile.Pass[payload.ConversationLinks]{
		Kind:      "issue",
		ChunkSize: reconcile.IssueKeyChunkSize,
		Resolve:   m.resolveIssues,
	}, payloads.ConversationLinks, data.IssueKeys)
	if err != nil {
		return nil, err
	}

	projects, err := reconcile.Run(ctx, reconcile.Pass[payload.ConnectionConfiguration]{
		Kind:      "project",
		ChunkSize: reconcile.ProjectKeyChunkSize,
		Resolve:   m.resolveProjects,
		Override:  payload.ApplyCloudDefaults,
	}, payloads.ConnectionConfigurations, data.ProjectKeys)
	if err != nil {
		return nil, err
	}

	phase.SetAttributes(attribute.Int("ifj.issues", len(issues)), attribute.Int("ifj.projects", len(projects)))
	return &Prepared{Issues: issues, Projects: projects}, nil
}

func (m *Migrator) resolveIssues(ctx context.Context, keys []string, _ chunk.Position) (map[string]int64, error) {
	return m.API.ResolveIssueIDs(ctx, keys)
}

// resolveProjects looks up one chunk of project keys. A chunk never holds
// more keys than one page returns, so every chunk reads the first page.
func (m *Migrator) resolveProjects(ctx context.Context, keys []string, pos chunk.Position) (map[string]int64, error) {
	projects, err := m.API.SearchProjects(ctx, keys, 0, pos.Size)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(projects))
	for _, p := range projects {
		id, err := jira.ParseEntityID(p.ID)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Key, err)
		}
		out[p.Key] = id
	}
	return out, nil
}

func (m *Migrator) importIssues(ctx context.Context, out *reporter, entries []reconcile.Entry[payload.ConversationLinks]) (importer.IssueStats, error) {
	im := &importer.IssueImporter{
		API:          m.API,
		PollInterval: m.PollInterval,
		Sleep:        m.Sleep,
		OnEvent: func(e importer.Event) {
			if e.Done {
				out.detail("Importing issue property chunk %s complete (%d%%), %d%% of issue properties imported",
					e.Position, e.Task.Progress, e.Position.Percent())
				return
			}
			out.detail("Importing issue property chunk %s (%d%%)...", e.Position, e.Task.Progress)
		},
	}
	return im.Import(ctx, entries)
}

func (m *Migrator) importProjects(ctx context.Context, out *reporter, entries []reconcile.Entry[payload.ConnectionConfiguration]) (int, error) {
	im := &importer.ProjectImporter{
		API: m.API,
		OnProject: func(i, total int, projectID int64) {
			out.detail("Imported connection configuration of project %d (%d/%d)", projectID, i+1, total)
		},
	}
	return im.Import(ctx, entries)
}

func (m *Migrator) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
