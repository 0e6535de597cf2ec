package migration

import (
	"github.com/docuflow/content-migrator/internal/model"
)

// DraftVersion maps an attachment-kind source to a content version draft.
// The version schema accepts the provenance fields at create time, so they
// ride along in the draft. Pure: no IDs are assigned here.
func DraftVersion(src Source) model.ContentVersion {
	recordID := src.ID.String()
	parentID := src.ParentID.String()
	return model.ContentVersion{
		Title:                  src.Title,
		Body:                   src.Body,
		Description:            src.Description,
		OriginalRecordID:       &recordID,
		OriginalRecordParentID: &parentID,
	}
}

// DraftNote maps a note-kind source to a content note draft. The note
// schema forbids custom fields, so provenance is applied later by the
// orchestrator once the underlying version is resolvable.
func DraftNote(src Source) model.ContentNote {
	return model.ContentNote{
		Title: src.Title,
		Body:  src.Body,
	}
}
