// Package backup extracts app data from a Jira DC/Server backup's
// entities.xml.
//
// The export is read line by line; each relevant element sits on a single
// line. Four mappings are collected, each keyed by the source instance's
// numeric id. An id seen twice within one mapping is fatal.
package backup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/toolsplus/ifj-migrate/internal/debug"
)

// Mapping names used in errors and summaries.
const (
	MappingIssueKey          = "issue id to key"
	MappingProjectKey        = "project id to key"
	MappingConversationLinks = "issue id to conversation link issue property"
	MappingConnectionConfig  = "project id to connection configuration project property"
)

var (
	conversationLinksPattern = regexp.MustCompile(`<EntityProperty id="[0-9]+" entityName="IssueProperty" entityId="([0-9]+)" propertyKey="intercom\.conversation\.links" created="[0-9-\s:.]+" updated="[0-9-\s:.]+" value="(.*?)"/>`)
	connectionConfigPattern  = regexp.MustCompile(`<EntityProperty id="[0-9]+" entityName="ProjectProperty" entityId="([0-9]+)" propertyKey="intercom\.connection\.configuration" created="[0-9-\s:.]+" updated="[0-9-\s:.]+" value="(.*?)"/>`)
	issueKeyPattern          = regexp.MustCompile(`<Issue id="([0-9]+)" key="([a-zA-Z0-9-]+)" number="`)
	projectKeyPattern        = regexp.MustCompile(`<Project id="([0-9]+)".+key="([a-zA-Z0-9-]+)"`)
)

// Data holds the raw app data found in a backup. Property values are kept
// exactly as they appear in the export (HTML-entity encoded JSON).
type Data struct {
	IssueKeys                map[int64]string
	ProjectKeys              map[int64]string
	ConversationLinks        map[int64]string
	ConnectionConfigurations map[int64]string
}

// Summary counts what a backup contains.
type Summary struct {
	IssueMappings     int `yaml:"issue_mappings"`
	ProjectMappings   int `yaml:"project_mappings"`
	IssueProperties   int `yaml:"issue_properties"`
	ProjectProperties int `yaml:"project_properties"`
}

// Summary returns the entry count of each mapping.
func (d *Data) Summary() Summary {
	return Summary{
		IssueMappings:     len(d.IssueKeys),
		ProjectMappings:   len(d.ProjectKeys),
		IssueProperties:   len(d.ConversationLinks),
		ProjectProperties: len(d.ConnectionConfigurations),
	}
}

// DuplicateError reports an id that appears twice in one mapping.
type DuplicateError struct {
	Mapping string
	ID      int64
	Line    int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("expected %s mapping in line %d but mapping for id %d already exists", e.Mapping, e.Line, e.ID)
}

// ExtractFile opens path and extracts its app data.
func ExtractFile(ctx context.Context, path string) (*Data, error) {
	// #nosec G304 - path is the operator supplied backup file
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := Extract(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read backup file %s: %w", path, err)
	}
	return data, nil
}

// Extract reads an entities.xml stream.
func Extract(ctx context.Context, r io.Reader) (*Data, error) {
	d := &Data{
		IssueKeys:                make(map[int64]string),
		ProjectKeys:              make(map[int64]string),
		ConversationLinks:        make(map[int64]string),
		ConnectionConfigurations: make(map[int64]string),
	}

	// Property values can make single lines very long, so lines are read
	// without a length limit.
	br := bufio.NewReaderSize(r, 1<<20)
	lineNo := 0
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, readErr)
		}
		if line == "" && readErr != nil {
			break
		}
		lineNo++
		if lineNo%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			debug.Logf("backup: scanned %d lines\n", lineNo)
		}

		if err := d.scanLine(strings.TrimRight(line, "\r\n"), lineNo); err != nil {
			return nil, err
		}
		if readErr != nil {
			break
		}
	}

	debug.Logf("backup: scanned %d lines, %+v\n", lineNo, d.Summary())
	return d, nil
}

func (d *Data) scanLine(line string, lineNo int) error {
	// Cheap prefilter; almost every line of a backup is unrelated.
	if !strings.Contains(line, "<Issue ") && !strings.Contains(line, "<Project ") && !strings.Contains(line, "<EntityProperty ") {
		return nil
	}

	extractors := []struct {
		pattern *regexp.Regexp
		mapping string
		into    map[int64]string
	}{
		{issueKeyPattern, MappingIssueKey, d.IssueKeys},
		{projectKeyPattern, MappingProjectKey, d.ProjectKeys},
		{conversationLinksPattern, MappingConversationLinks, d.ConversationLinks},
		{connectionConfigPattern, MappingConnectionConfig, d.ConnectionConfigurations},
	}
	for _, ex := range extractors {
		m := ex.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid %s id %q: %w", lineNo, ex.mapping, m[1], err)
		}
		if _, exists := ex.into[id]; exists {
			return &DuplicateError{Mapping: ex.mapping, ID: id, Line: lineNo}
		}
		ex.into[id] = m[2]
	}
	return nil
}
