package migration_test

import (
	"context"
	"testing"

	"github.com/docuflow/content-migrator/internal/migration"
	"github.com/docuflow/content-migrator/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const actorID = "migrator"

func seedAttachments(store *memStore, n int, ownerID string) []migration.Source {
	sources := make([]migration.Source, n)
	for i := range sources {
		a := model.SourceAttachment{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			ParentID: uuid.New(),
			Name:     "file.bin",
			Body:     []byte("payload"),
		}
		store.attachments[a.ID] = a
		sources[i] = migration.AttachmentSource(a)
	}
	return sources
}

func seedNotes(store *memStore, n int, ownerID string) []migration.Source {
	sources := make([]migration.Source, n)
	for i := range sources {
		note := model.SourceNote{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			ParentID: uuid.New(),
			Title:    "note",
			Body:     "some text",
		}
		store.notes[note.ID] = note
		sources[i] = migration.NoteSource(note)
	}
	return sources
}

func TestAttachmentChunkWithoutDeletion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedAttachments(store, 3, "owner-1")

	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, false)
	require.NoError(t, orch.ProcessChunk(ctx, sources))

	// Exactly one version per source, resolvable back via provenance.
	for _, src := range sources {
		v, ok := store.versionForSource(src.ID)
		require.True(t, ok, "no version carries provenance for %s", src.ID)
		assert.Equal(t, src.Title, v.Title)
		assert.Equal(t, src.Body, v.Body)
		require.NotNil(t, v.OriginalRecordParentID)
		assert.Equal(t, src.ParentID.String(), *v.OriginalRecordParentID)

		grants, err := store.ListSharingGrantsByDocument(ctx, v.DocumentID)
		require.NoError(t, err)
		require.Len(t, grants, 2)
	}

	// Sources unaffected.
	assert.Len(t, store.attachments, 3)
}

func TestAttachmentChunkWithDeletion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedAttachments(store, 4, "owner-1")

	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, true)
	require.NoError(t, orch.ProcessChunk(ctx, sources))

	assert.Empty(t, store.attachments, "sources must be purged")
	assert.Len(t, store.versions, 4)
	for _, src := range sources {
		_, ok := store.versionForSource(src.ID)
		assert.True(t, ok)
	}
}

func TestAttachmentChunkOwnerIsActor(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedAttachments(store, 1, actorID)

	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, false)
	require.NoError(t, orch.ProcessChunk(ctx, sources))

	v, ok := store.versionForSource(sources[0].ID)
	require.True(t, ok)
	grants, err := store.ListSharingGrantsByDocument(ctx, v.DocumentID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, model.ShareKindView, grants[0].ShareKind)
}

func TestAttachmentChunkAbortsOnCreateMismatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedAttachments(store, 3, "owner-1")
	store.dropVersionCreates = 1

	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, true)
	err := orch.ProcessChunk(ctx, sources)
	require.ErrorIs(t, err, migration.ErrCorrelation)

	assert.Empty(t, store.grants, "no grants after a correlation failure")
	assert.Len(t, store.attachments, 3, "no deletes after a correlation failure")
}

func TestNoteChunkConversion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedNotes(store, 3, "owner-2")

	orch := migration.NewOrchestrator(store, migration.NoteKind(), actorID, false)
	require.NoError(t, orch.ProcessChunk(ctx, sources))

	assert.Len(t, store.contentNotes, 3)
	for _, src := range sources {
		// Provenance lands via the post-create update.
		v, ok := store.versionForSource(src.ID)
		require.True(t, ok, "no version carries provenance for %s", src.ID)
		assert.Equal(t, src.Title, v.Title)
		assert.Equal(t, src.Body, v.Body)

		grants, err := store.ListSharingGrantsByDocument(ctx, v.DocumentID)
		require.NoError(t, err)
		require.Len(t, grants, 2)
	}
	assert.Len(t, store.notes, 3, "sources unaffected without deletion")
}

func TestNoteChunkWithDeletion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedNotes(store, 2, "owner-2")

	orch := migration.NewOrchestrator(store, migration.NoteKind(), actorID, true)
	require.NoError(t, orch.ProcessChunk(ctx, sources))

	assert.Empty(t, store.notes)
	assert.Len(t, store.contentNotes, 2)
	for _, src := range sources {
		_, ok := store.versionForSource(src.ID)
		assert.True(t, ok)
	}
}

func TestNoteChunkAbortsOnShortRead(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedNotes(store, 3, "owner-2")
	store.dropNoteReads = 1

	orch := migration.NewOrchestrator(store, migration.NoteKind(), actorID, true)
	err := orch.ProcessChunk(ctx, sources)
	require.ErrorIs(t, err, migration.ErrCorrelation)

	assert.Empty(t, store.grants)
	assert.Len(t, store.notes, 3, "no deletes after a correlation failure")
}

func TestChunkFailsWhenGrantCreateRejected(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sources := seedAttachments(store, 2, "owner-1")
	store.failGrantCreate = true

	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, true)
	err := orch.ProcessChunk(ctx, sources)
	require.Error(t, err)

	assert.Len(t, store.attachments, 2, "deletion never runs when grant creation failed")
}

func TestEmptyChunkIsANoOp(t *testing.T) {
	store := newMemStore()
	orch := migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, true)
	require.NoError(t, orch.ProcessChunk(context.Background(), nil))
	assert.Empty(t, store.versions)
}

func TestTrackerAndProvenanceAgree(t *testing.T) {
	// Re-deriving the source through the provenance fields must agree with
	// the correlation used during the chunk for both pipeline kinds.
	ctx := context.Background()
	store := newMemStore()
	attachments := seedAttachments(store, 2, "owner-1")
	notes := seedNotes(store, 2, "owner-1")

	require.NoError(t, migration.NewOrchestrator(store, migration.AttachmentKind(), actorID, false).ProcessChunk(ctx, attachments))
	require.NoError(t, migration.NewOrchestrator(store, migration.NoteKind(), actorID, false).ProcessChunk(ctx, notes))

	for _, src := range append(attachments, notes...) {
		v, ok := store.versionForSource(src.ID)
		require.True(t, ok)
		grants, err := store.ListSharingGrantsByDocument(ctx, v.DocumentID)
		require.NoError(t, err)
		// The view grant's linked entity is the parent recorded in provenance.
		require.NotEmpty(t, grants)
		assert.Equal(t, *v.OriginalRecordParentID, grants[0].LinkedEntityID)
	}
}
