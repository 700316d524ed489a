// Package payload parses and validates the app's property values at the
// point they enter the migration, and shapes them for the target instance.
//
// Property values in a backup export are HTML-entity encoded JSON. They are
// decoded and shape-checked exactly once, here; the rest of the pipeline
// works with the typed values only.
package payload

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// AppKey is the add-on key the properties belong to.
const AppKey = "io.toolsplus.atlassian.connect.jira.intercom"

// Property keys on target entities.
const (
	ConversationLinksPropertyKey       = "intercom.conversation.links"
	ConnectionConfigurationPropertyKey = "intercom.connection.configuration"
	IssueGlanceStatusPropertyKey       = "com.atlassian.jira.issue:" + AppKey + ":issue-glance-intercom-conversation-links:status"
)

// ValidationError reports a value that does not have the expected shape.
type ValidationError struct {
	Kind   string // what was being parsed, e.g. "conversation links"
	Field  string // JSON path of the offending field, empty for the document
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Field, e.Reason)
}

// decodeEncoded unescapes HTML entities and unmarshals the JSON into v. The
// value must be exactly one JSON document.
func decodeEncoded(kind, encoded string, v any) error {
	text := html.UnescapeString(encoded)
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Kind: kind, Reason: "empty value"}
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return &ValidationError{Kind: kind, Reason: err.Error()}
	}
	return nil
}

// stringList dereferences a decoded JSON string array. A null element is a
// validation error, not an empty string.
func stringList(kind, field string, in []*string) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		if s == nil {
			return nil, &ValidationError{Kind: kind, Field: fmt.Sprintf("%s[%d]", field, i), Reason: "expected string, got null"}
		}
		out[i] = *s
	}
	return out, nil
}

// ConversationLinks is the conversation link property stored on an issue.
type ConversationLinks struct {
	ConversationIDs []string
}

type conversationLinksWire struct {
	ConversationIDs *[]*string `json:"conversationIds"`
}

// ParseConversationLinks decodes an encoded conversation link property.
func ParseConversationLinks(encoded string) (ConversationLinks, error) {
	const kind = "conversation links"

	var wire conversationLinksWire
	if err := decodeEncoded(kind, encoded, &wire); err != nil {
		return ConversationLinks{}, err
	}
	if wire.ConversationIDs == nil {
		return ConversationLinks{}, &ValidationError{Kind: kind, Field: "conversationIds", Reason: "required"}
	}
	ids, err := stringList(kind, "conversationIds", *wire.ConversationIDs)
	if err != nil {
		return ConversationLinks{}, err
	}
	return ConversationLinks{ConversationIDs: ids}, nil
}

// ConversationLinksProperty is the target value of the conversation links property.
type ConversationLinksProperty struct {
	Count           int      `json:"count"`
	ConversationIDs []string `json:"conversationIds"`
}

// GlanceStatus is the badge shown on the issue glance.
type GlanceStatus struct {
	Type  string      `json:"type"`
	Value GlanceLabel `json:"value"`
}

// GlanceLabel is the text of a glance badge.
type GlanceLabel struct {
	Label string `json:"label"`
}

// IssueProperties returns the named property values to set on the target
// issue: the links themselves and the glance badge showing the link count.
func (c ConversationLinks) IssueProperties() map[string]any {
	ids := c.ConversationIDs
	if ids == nil {
		ids = []string{}
	}
	count := len(ids)
	return map[string]any{
		ConversationLinksPropertyKey: ConversationLinksProperty{
			Count:           count,
			ConversationIDs: ids,
		},
		IssueGlanceStatusPropertyKey: GlanceStatus{
			Type:  "badge",
			Value: GlanceLabel{Label: fmt.Sprint(count)},
		},
	}
}
