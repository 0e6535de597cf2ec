package migration

import (
	"github.com/docuflow/content-migrator/internal/model"
	"github.com/google/uuid"
)

// Source is the kind-neutral view of a legacy record that the orchestrator,
// transformer and sharing deriver operate on.
type Source struct {
	ID          uuid.UUID
	OwnerID     string
	ParentID    uuid.UUID
	Title       string
	Body        []byte
	Description *string
}

// AttachmentSource adapts a legacy attachment to the neutral view.
func AttachmentSource(a model.SourceAttachment) Source {
	return Source{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		ParentID:    a.ParentID,
		Title:       a.Name,
		Body:        a.Body,
		Description: a.Description,
	}
}

// NoteSource adapts a legacy note to the neutral view.
func NoteSource(n model.SourceNote) Source {
	return Source{
		ID:       n.ID,
		OwnerID:  n.OwnerID,
		ParentID: n.ParentID,
		Title:    n.Title,
		Body:     []byte(n.Body),
	}
}
