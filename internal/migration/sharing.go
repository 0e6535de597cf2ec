package migration

import (
	"github.com/docuflow/content-migrator/internal/model"
	"github.com/google/uuid"
)

// DeriveGrants computes the sharing grants for one converted record.
//
// The parent entity always receives a view grant. The original owner
// receives a collaborate grant unless the owner is the acting identity, in
// which case the store would reject the grant as redundant with the
// creator's implicit access. Deterministic and side-effect free; grant IDs
// are assigned by the store on create.
func DeriveGrants(documentID uuid.UUID, src Source, actorID string) []model.SharingGrant {
	grants := []model.SharingGrant{
		{
			DocumentID:     documentID,
			LinkedEntityID: src.ParentID.String(),
			ShareKind:      model.ShareKindView,
		},
	}
	if src.OwnerID != actorID {
		grants = append(grants, model.SharingGrant{
			DocumentID:     documentID,
			LinkedEntityID: src.OwnerID,
			ShareKind:      model.ShareKindCollaborate,
		})
	}
	return grants
}
