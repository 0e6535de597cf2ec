package migration

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/metrics"
	"github.com/docuflow/content-migrator/internal/model"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
)

// Kind is the capability set that makes the attachment and note pipelines
// configuration of one orchestrator instead of two copies of it.
type Kind struct {
	Name model.SourceKind

	// create bulk-creates the chunk's drafts and returns target IDs aligned
	// with sources, rejecting any cardinality mismatch in the create result.
	create func(ctx context.Context, st registrystore.RecordStore, sources []Source) ([]uuid.UUID, error)

	// strategy turns target IDs into (version, document) pairs per source.
	strategy CorrelationStrategy

	// postCreateUpdate applies provenance that could not ride along at
	// create time. Nil when the target kind accepts inline provenance.
	postCreateUpdate func(ctx context.Context, st registrystore.RecordStore, resolved []Resolved) error

	// deleteSources purges the chunk's source records.
	deleteSources func(ctx context.Context, st registrystore.RecordStore, ids []uuid.UUID) error
}

// AttachmentKind converts legacy attachments into content versions.
// The version schema accepts provenance at create time and the create call
// is order-preserving, so correlation is positional.
func AttachmentKind() Kind {
	return Kind{
		Name:     model.SourceKindAttachment,
		create:   createVersions,
		strategy: PositionalStrategy{},
		deleteSources: func(ctx context.Context, st registrystore.RecordStore, ids []uuid.UUID) error {
			return st.DeleteSourceAttachments(ctx, ids)
		},
	}
}

// NoteKind converts legacy notes into content notes. The note schema
// forbids custom fields and gives no ordering guarantee, so correlation is
// indirect and provenance lands in a post-create update.
func NoteKind() Kind {
	return Kind{
		Name:             model.SourceKindNote,
		create:           createNotes,
		strategy:         IndirectStrategy{},
		postCreateUpdate: updateNoteProvenance,
		deleteSources: func(ctx context.Context, st registrystore.RecordStore, ids []uuid.UUID) error {
			return st.DeleteSourceNotes(ctx, ids)
		},
	}
}

func createVersions(ctx context.Context, st registrystore.RecordStore, sources []Source) ([]uuid.UUID, error) {
	drafts := make([]model.ContentVersion, len(sources))
	for i, src := range sources {
		drafts[i] = DraftVersion(src)
	}
	created, err := st.CreateContentVersions(ctx, drafts)
	if err != nil {
		return nil, fmt.Errorf("create content versions: %w", err)
	}
	if len(created) != len(sources) {
		return nil, fmt.Errorf("%w: created %d versions for %d sources", ErrCorrelation, len(created), len(sources))
	}
	ids := make([]uuid.UUID, len(created))
	for i, v := range created {
		ids[i] = v.ID
	}
	return ids, nil
}

func createNotes(ctx context.Context, st registrystore.RecordStore, sources []Source) ([]uuid.UUID, error) {
	// The note create call requires caller-assigned IDs and returns its
	// results in arbitrary order. Assigning IDs here, not in the pure
	// drafter, keeps the draft step deterministic while still giving the
	// chunk a known ID per source.
	drafts := make([]model.ContentNote, len(sources))
	ids := make([]uuid.UUID, len(sources))
	assigned := make(map[uuid.UUID]bool, len(sources))
	for i, src := range sources {
		drafts[i] = DraftNote(src)
		drafts[i].ID = uuid.New()
		ids[i] = drafts[i].ID
		assigned[drafts[i].ID] = true
	}
	created, err := st.CreateContentNotes(ctx, drafts)
	if err != nil {
		return nil, fmt.Errorf("create content notes: %w", err)
	}
	if len(created) != len(sources) {
		return nil, fmt.Errorf("%w: created %d notes for %d sources", ErrCorrelation, len(created), len(sources))
	}
	for _, n := range created {
		if !assigned[n.ID] {
			return nil, fmt.Errorf("%w: create returned unknown note %s", ErrCorrelation, n.ID)
		}
		delete(assigned, n.ID)
	}
	return ids, nil
}

func updateNoteProvenance(ctx context.Context, st registrystore.RecordStore, resolved []Resolved) error {
	updates := make([]registrystore.ProvenanceUpdate, len(resolved))
	for i, r := range resolved {
		updates[i] = registrystore.ProvenanceUpdate{
			VersionID:              r.VersionID,
			OriginalRecordID:       r.Source.ID.String(),
			OriginalRecordParentID: r.Source.ParentID.String(),
		}
	}
	if err := st.UpdateContentVersionProvenance(ctx, updates); err != nil {
		return fmt.Errorf("update note provenance: %w", err)
	}
	return nil
}

// Orchestrator sequences the store calls for one chunk and enforces their
// ordering dependencies. It keeps no state across chunks.
type Orchestrator struct {
	store         registrystore.RecordStore
	kind          Kind
	actorID       string
	deleteSources bool
}

// NewOrchestrator builds a chunk orchestrator for one pipeline kind. The
// acting identity is threaded in explicitly so grant derivation stays
// independent of any ambient session state.
func NewOrchestrator(st registrystore.RecordStore, kind Kind, actorID string, deleteSources bool) *Orchestrator {
	return &Orchestrator{
		store:         st,
		kind:          kind,
		actorID:       actorID,
		deleteSources: deleteSources,
	}
}

// ProcessChunk converts one chunk of source records: create targets,
// re-correlate, create sharing grants, apply deferred provenance, and
// delete the sources when enabled. Deletion comes strictly last so that a
// failure in any earlier step never destroys the only copy of the data. A
// correlation mismatch aborts before any grant or delete call.
func (o *Orchestrator) ProcessChunk(ctx context.Context, sources []Source) error {
	if len(sources) == 0 {
		return nil
	}

	targetIDs, err := o.kind.create(ctx, o.store, sources)
	if err != nil {
		return err
	}

	resolved, err := o.kind.strategy.Resolve(ctx, o.store, sources, targetIDs)
	if err != nil {
		return err
	}

	var grants []model.SharingGrant
	for _, r := range resolved {
		grants = append(grants, DeriveGrants(r.DocumentID, r.Source, o.actorID)...)
	}
	if err := o.store.CreateSharingGrants(ctx, grants); err != nil {
		return fmt.Errorf("create sharing grants: %w", err)
	}
	metrics.GrantsCreated.Add(float64(len(grants)))

	if o.kind.postCreateUpdate != nil {
		if err := o.kind.postCreateUpdate(ctx, o.store, resolved); err != nil {
			return err
		}
	}

	if o.deleteSources {
		ids := make([]uuid.UUID, len(sources))
		for i, src := range sources {
			ids[i] = src.ID
		}
		if err := o.kind.deleteSources(ctx, o.store, ids); err != nil {
			return fmt.Errorf("delete source records: %w", err)
		}
		metrics.SourcesDeleted.WithLabelValues(string(o.kind.Name)).Add(float64(len(ids)))
	}

	metrics.RecordsMigrated.WithLabelValues(string(o.kind.Name)).Add(float64(len(sources)))
	log.Debug("Chunk converted", "kind", o.kind.Name, "records", len(sources), "grants", len(grants), "deleted", o.deleteSources)
	return nil
}
