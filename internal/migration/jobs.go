package migration

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/batch"
	"github.com/docuflow/content-migrator/internal/model"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
)

// Job drives one pipeline kind through the batch contract. It holds no
// correlation or business state; everything per-chunk lives inside the
// orchestrator call, which bounds memory to one chunk regardless of how
// large the source record set is.
type Job struct {
	store     registrystore.RecordStore
	orch      *Orchestrator
	kind      model.SourceKind
	converted int
}

var _ batch.Job[Source] = (*Job)(nil)

// NewAttachmentJob builds the attachment-kind migration job.
func NewAttachmentJob(st registrystore.RecordStore, actorID string, deleteSources bool) *Job {
	return &Job{
		store: st,
		orch:  NewOrchestrator(st, AttachmentKind(), actorID, deleteSources),
		kind:  model.SourceKindAttachment,
	}
}

// NewNoteJob builds the note-kind migration job.
func NewNoteJob(st registrystore.RecordStore, actorID string, deleteSources bool) *Job {
	return &Job{
		store: st,
		orch:  NewOrchestrator(st, NoteKind(), actorID, deleteSources),
		kind:  model.SourceKindNote,
	}
}

func (j *Job) Name() string { return string(j.kind) }

// Open produces a cursor over every unconverted source record of the job's
// kind. The store excludes records already carrying provenance on a content
// version, so re-running after a partial failure does not duplicate them.
func (j *Job) Open(ctx context.Context) (batch.Cursor[Source], error) {
	total, err := j.store.CountSourceRecords(ctx, j.kind)
	if err != nil {
		return nil, err
	}
	log.Info("Migration job opened", "kind", j.kind, "pending", total)
	return &sourceCursor{store: j.store, kind: j.kind}, nil
}

// Process converts one chunk through the orchestrator.
func (j *Job) Process(ctx context.Context, chunk []Source) error {
	if err := j.orch.ProcessChunk(ctx, chunk); err != nil {
		return err
	}
	j.converted += len(chunk)
	return nil
}

// Close logs the completion summary.
func (j *Job) Close(ctx context.Context) error {
	log.Info("Migration job finished", "kind", j.kind, "converted", j.converted)
	return nil
}

// sourceCursor pages source records by ascending ID. Keyset pagination
// keeps the cursor valid while earlier pages are being converted or
// deleted underneath it.
type sourceCursor struct {
	store registrystore.RecordStore
	kind  model.SourceKind
	after *uuid.UUID
}

func (c *sourceCursor) Next(ctx context.Context, limit int) ([]Source, error) {
	var page []Source
	switch c.kind {
	case model.SourceKindNote:
		notes, err := c.store.ListSourceNotes(ctx, c.after, limit)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			page = append(page, NoteSource(n))
		}
	default:
		attachments, err := c.store.ListSourceAttachments(ctx, c.after, limit)
		if err != nil {
			return nil, err
		}
		for _, a := range attachments {
			page = append(page, AttachmentSource(a))
		}
	}
	if len(page) > 0 {
		last := page[len(page)-1].ID
		c.after = &last
	}
	return page, nil
}
