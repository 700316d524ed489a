// Package reconcile translates per-entity data keyed by source instance ids
// into data keyed by target instance ids.
//
// Every entity is identified successively by a numeric source id, a stable
// key and a numeric target id. A reconciliation pass first builds the full
// source id to key table from local data, then resolves the distinct keys to
// target ids through a remote service in chunks. Any missing link aborts the
// pass; there is no best-effort mode.
//
// One pass owns its lookup tables exclusively. Issue and project passes are
// separate calls to Run and never share state.
package reconcile

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/toolsplus/ifj-migrate/internal/chunk"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/telemetry"
)

// Resolution batch limits of the target API.
const (
	IssueKeyChunkSize   = 2000
	ProjectKeyChunkSize = 50
)

// ResolveFunc resolves one chunk of keys to target ids. Keys the service
// cannot resolve are simply absent from the returned map; Run decides that
// absence is fatal.
type ResolveFunc func(ctx context.Context, keys []string, pos chunk.Position) (map[string]int64, error)

// Pass configures one reconciliation run.
type Pass[P any] struct {
	// Kind names the entity space ("issue" or "project") in errors and logs.
	Kind string
	// ChunkSize is the number of keys sent per resolution call.
	ChunkSize int
	// Resolve queries the target instance for a chunk of keys.
	Resolve ResolveFunc
	// Override, when set, replaces each payload before it is emitted.
	Override func(P) P
	// Counters records resolved keys; nil uses the global meter.
	Counters *telemetry.Counters
}

// Entry is one reconciled payload with its full identifier triple.
type Entry[P any] struct {
	SourceID int64
	Key      string
	TargetID int64
	Payload  P
}

// Run re-keys properties from source ids to target ids.
//
// The source id to key table is built completely before the first
// resolution call, so a missing key mapping fails without any network
// traffic. Entries are returned in ascending source id order.
func Run[P any](ctx context.Context, pass Pass[P], properties map[int64]P, keys map[int64]string) ([]Entry[P], error) {
	if pass.Resolve == nil {
		return nil, fmt.Errorf("reconcile %s: no key resolver configured", pass.Kind)
	}

	sourceIDs := slices.Sorted(maps.Keys(properties))

	keyBySourceID := make(map[int64]string, len(sourceIDs))
	sourceIDByKey := make(map[string]int64, len(sourceIDs))
	distinctKeys := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		key, ok := keys[id]
		if !ok || key == "" {
			return nil, &MappingError{Kind: pass.Kind, Link: LinkKey, ID: fmt.Sprint(id)}
		}
		if _, ok := properties[id]; !ok {
			return nil, &MappingError{Kind: pass.Kind, Link: LinkProperty, ID: fmt.Sprint(id)}
		}
		if other, dup := sourceIDByKey[key]; dup {
			return nil, &MappingError{Kind: pass.Kind, Link: LinkDuplicateKey, ID: key, Other: fmt.Sprintf("%d and %d", other, id)}
		}
		keyBySourceID[id] = key
		sourceIDByKey[key] = id
		distinctKeys = append(distinctKeys, key)
	}

	targetIDByKey, err := resolveAll(ctx, pass, distinctKeys)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry[P], 0, len(sourceIDs))
	keyByTargetID := make(map[int64]string, len(sourceIDs))
	for _, id := range sourceIDs {
		key := keyBySourceID[id]
		targetID, ok := targetIDByKey[key]
		if !ok {
			return nil, &MappingError{Kind: pass.Kind, Link: LinkTarget, ID: key}
		}
		if other, dup := keyByTargetID[targetID]; dup {
			return nil, &MappingError{Kind: pass.Kind, Link: LinkDuplicateTarget, ID: fmt.Sprint(targetID), Other: other + " and " + key}
		}
		keyByTargetID[targetID] = key

		payload := properties[id]
		if pass.Override != nil {
			payload = pass.Override(payload)
		}
		entries = append(entries, Entry[P]{SourceID: id, Key: key, TargetID: targetID, Payload: payload})
	}

	return entries, nil
}

func resolveAll[P any](ctx context.Context, pass Pass[P], keys []string) (map[string]int64, error) {
	resolved := make(map[string]int64, len(keys))
	for batch, err := range chunk.Do(ctx, keys, pass.ChunkSize, chunk.Func[string, map[string]int64](pass.Resolve)) {
		if err != nil {
			return nil, fmt.Errorf("resolve %s keys for chunk %s: %w", pass.Kind, batch.Position, err)
		}
		debug.Logf("reconcile: %s key chunk %s resolved %d keys\n", pass.Kind, batch.Position, len(batch.Result))
		pass.Counters.KeysResolved(ctx, pass.Kind, len(batch.Result))
		for key, id := range batch.Result {
			resolved[key] = id
		}
	}
	return resolved, nil
}
