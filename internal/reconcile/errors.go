package reconcile

import "fmt"

// Link identifies which hop of the identifier chain could not be followed.
type Link int

const (
	// LinkKey is the source id to key hop.
	LinkKey Link = iota
	// LinkProperty is the source id to raw property hop.
	LinkProperty
	// LinkTarget is the key to target id hop.
	LinkTarget
	// LinkDuplicateKey means two source ids share one key.
	LinkDuplicateKey
	// LinkDuplicateTarget means two keys resolved to one target id.
	LinkDuplicateTarget
)

// MappingError reports a missing or ambiguous identifier mapping. It is
// always fatal to the run.
type MappingError struct {
	Kind  string // entity space, "issue" or "project"
	Link  Link
	ID    string // the source id, key or target id that could not be mapped
	Other string // the conflicting entities for duplicate links
}

func (e *MappingError) Error() string {
	switch e.Link {
	case LinkKey:
		return fmt.Sprintf("failed to find %s key mapping for %s id %s", e.Kind, e.Kind, e.ID)
	case LinkProperty:
		return fmt.Sprintf("failed to find property mapping for %s id %s", e.Kind, e.ID)
	case LinkTarget:
		return fmt.Sprintf("failed to find target %s id mapping for %s key %s", e.Kind, e.Kind, e.ID)
	case LinkDuplicateKey:
		return fmt.Sprintf("%s key %s is mapped from more than one %s id (%s)", e.Kind, e.ID, e.Kind, e.Other)
	case LinkDuplicateTarget:
		return fmt.Sprintf("target %s id %s resolved for more than one %s key (%s)", e.Kind, e.ID, e.Kind, e.Other)
	default:
		return fmt.Sprintf("unresolved %s mapping for %s", e.Kind, e.ID)
	}
}
