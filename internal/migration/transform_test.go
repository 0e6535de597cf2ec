package migration_test

import (
	"testing"

	"github.com/docuflow/content-migrator/internal/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftVersionMapsAllFields(t *testing.T) {
	description := "quarterly report"
	src := migration.Source{
		ID:          uuid.New(),
		OwnerID:     "user-1",
		ParentID:    uuid.New(),
		Title:       "report.pdf",
		Body:        []byte("pdf-bytes"),
		Description: &description,
	}

	draft := migration.DraftVersion(src)

	assert.Equal(t, "report.pdf", draft.Title)
	assert.Equal(t, []byte("pdf-bytes"), draft.Body)
	require.NotNil(t, draft.Description)
	assert.Equal(t, description, *draft.Description)
	require.NotNil(t, draft.OriginalRecordID)
	assert.Equal(t, src.ID.String(), *draft.OriginalRecordID)
	require.NotNil(t, draft.OriginalRecordParentID)
	assert.Equal(t, src.ParentID.String(), *draft.OriginalRecordParentID)
	assert.Equal(t, uuid.Nil, draft.ID, "drafts carry no IDs")
}

func TestDraftVersionMissingDescription(t *testing.T) {
	draft := migration.DraftVersion(migration.Source{ID: uuid.New(), ParentID: uuid.New(), Title: "x"})
	assert.Nil(t, draft.Description)
}

func TestDraftNoteCarriesNoProvenance(t *testing.T) {
	src := migration.Source{ID: uuid.New(), ParentID: uuid.New(), Title: "note", Body: []byte("text")}
	draft := migration.DraftNote(src)
	assert.Equal(t, "note", draft.Title)
	assert.Equal(t, []byte("text"), draft.Body)
	assert.Equal(t, uuid.Nil, draft.ID)
	assert.Equal(t, uuid.Nil, draft.LatestVersionID)
}

func TestDraftsArePure(t *testing.T) {
	src := migration.Source{ID: uuid.New(), OwnerID: "u", ParentID: uuid.New(), Title: "t", Body: []byte("b")}
	assert.Equal(t, migration.DraftVersion(src), migration.DraftVersion(src))
	assert.Equal(t, migration.DraftNote(src), migration.DraftNote(src))
}
