package migration

import (
	"context"
	"errors"
	"fmt"

	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
)

// ErrCorrelation signals that the store returned a record set that cannot
// be matched 1:1 against the chunk's source records: a dropped row, a
// duplicate, or an unknown ID. Sharing or deleting against a wrong
// correlation is a correctness hazard, so the orchestrator aborts the chunk
// before issuing any grant or delete call.
var ErrCorrelation = errors.New("correlation mismatch")

// Resolved ties a source record to its created content version and the
// store-derived document ID the sharing grants need.
type Resolved struct {
	Source     Source
	VersionID  uuid.UUID
	DocumentID uuid.UUID
}

// CorrelationStrategy rebuilds the per-chunk source→target association
// after a bulk create. targetIDs is aligned with sources; how many read
// hops it takes to get from a target ID to a document ID depends on the
// target kind, which is why the strategy is pluggable rather than an
// incidental ordering assumption.
type CorrelationStrategy interface {
	Name() string
	Resolve(ctx context.Context, st registrystore.RecordStore, sources []Source, targetIDs []uuid.UUID) ([]Resolved, error)
}

// PositionalStrategy resolves attachment-kind chunks. The version create
// call is order-preserving, so targetIDs are content version IDs already
// zipped against sources by index; one unordered re-read supplies the
// document IDs.
type PositionalStrategy struct{}

func (PositionalStrategy) Name() string { return "positional" }

func (PositionalStrategy) Resolve(ctx context.Context, st registrystore.RecordStore, sources []Source, targetIDs []uuid.UUID) ([]Resolved, error) {
	if len(targetIDs) != len(sources) {
		return nil, fmt.Errorf("%w: %d sources but %d created versions", ErrCorrelation, len(sources), len(targetIDs))
	}
	versions, err := st.GetContentVersionsByID(ctx, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("read created versions: %w", err)
	}
	if len(versions) != len(sources) {
		return nil, fmt.Errorf("%w: re-read returned %d versions, expected %d", ErrCorrelation, len(versions), len(sources))
	}
	byID := make(map[uuid.UUID]uuid.UUID, len(versions))
	for _, v := range versions {
		byID[v.ID] = v.DocumentID
	}
	resolved := make([]Resolved, len(sources))
	for i, src := range sources {
		documentID, ok := byID[targetIDs[i]]
		if !ok {
			return nil, fmt.Errorf("%w: version %s missing from re-read", ErrCorrelation, targetIDs[i])
		}
		resolved[i] = Resolved{Source: src, VersionID: targetIDs[i], DocumentID: documentID}
	}
	return resolved, nil
}

// IndirectStrategy resolves note-kind chunks. The note kind exposes no
// custom field to stash a correlation key and its reads come back in
// arbitrary order, so resolution takes two hops: re-read the created notes
// by ID to learn each note's latest version ID, then re-read the versions
// by those IDs to learn the document IDs. The intermediate version→source
// mapping is what makes the second read interpretable; collapsing the hops
// would require an ordering guarantee the store does not give.
type IndirectStrategy struct{}

func (IndirectStrategy) Name() string { return "indirect" }

func (IndirectStrategy) Resolve(ctx context.Context, st registrystore.RecordStore, sources []Source, targetIDs []uuid.UUID) ([]Resolved, error) {
	bySource, order, err := versionsBySource(ctx, st, sources, targetIDs)
	if err != nil {
		return nil, err
	}

	versions, err := st.GetContentVersionsByID(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("read note versions: %w", err)
	}
	if len(versions) != len(sources) {
		return nil, fmt.Errorf("%w: version re-read returned %d rows, expected %d", ErrCorrelation, len(versions), len(sources))
	}
	documentByVersion := make(map[uuid.UUID]uuid.UUID, len(versions))
	for _, v := range versions {
		documentByVersion[v.ID] = v.DocumentID
	}

	resolved := make([]Resolved, len(sources))
	for i, src := range sources {
		versionID := bySource[src.ID]
		documentID, ok := documentByVersion[versionID]
		if !ok {
			return nil, fmt.Errorf("%w: version %s missing from re-read", ErrCorrelation, versionID)
		}
		resolved[i] = Resolved{Source: src, VersionID: versionID, DocumentID: documentID}
	}
	return resolved, nil
}

// versionsBySource is the first hop: it maps each source ID to the latest
// version ID of the note created for it. order preserves source order for
// the follow-up read.
func versionsBySource(ctx context.Context, st registrystore.RecordStore, sources []Source, noteIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, []uuid.UUID, error) {
	if len(noteIDs) != len(sources) {
		return nil, nil, fmt.Errorf("%w: %d sources but %d created notes", ErrCorrelation, len(sources), len(noteIDs))
	}
	notes, err := st.GetContentNotesByID(ctx, noteIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("read created notes: %w", err)
	}
	if len(notes) != len(sources) {
		return nil, nil, fmt.Errorf("%w: note re-read returned %d rows, expected %d", ErrCorrelation, len(notes), len(sources))
	}

	versionByNote := make(map[uuid.UUID]uuid.UUID, len(notes))
	for _, n := range notes {
		versionByNote[n.ID] = n.LatestVersionID
	}

	bySource := make(map[uuid.UUID]uuid.UUID, len(sources))
	order := make([]uuid.UUID, len(sources))
	for i, src := range sources {
		versionID, ok := versionByNote[noteIDs[i]]
		if !ok {
			return nil, nil, fmt.Errorf("%w: note %s missing from re-read", ErrCorrelation, noteIDs[i])
		}
		bySource[src.ID] = versionID
		order[i] = versionID
	}
	return bySource, order, nil
}
