package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies which legacy record family a migration run covers.
type SourceKind string

const (
	SourceKindAttachment SourceKind = "attachment"
	SourceKindNote       SourceKind = "note"
)

// ShareKind is the access level granted by a SharingGrant.
type ShareKind string

const (
	// ShareKindView is granted to the parent entity of every migrated record.
	ShareKindView ShareKind = "view"
	// ShareKindCollaborate is granted to the original owner, unless the owner
	// is the identity running the migration.
	ShareKindCollaborate ShareKind = "collaborate"
)

// SourceAttachment is a legacy file attachment awaiting migration.
// Read-only to the migrator except for the optional delete after conversion.
type SourceAttachment struct {
	ID          uuid.UUID `json:"id"                    gorm:"primaryKey;type:uuid"`
	OwnerID     string    `json:"ownerId"               gorm:"not null"`
	ParentID    uuid.UUID `json:"parentId"              gorm:"not null;type:uuid;index"`
	Name        string    `json:"name"                  gorm:"not null"`
	Body        []byte    `json:"-"                     gorm:"type:bytea;not null"`
	ContentType string    `json:"contentType"           gorm:"not null"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"             gorm:"not null"`
}

func (SourceAttachment) TableName() string { return "source_attachments" }

// SourceNote is a legacy freeform text note awaiting migration.
type SourceNote struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	OwnerID   string    `json:"ownerId"   gorm:"not null"`
	ParentID  uuid.UUID `json:"parentId"  gorm:"not null;type:uuid;index"`
	Title     string    `json:"title"     gorm:"not null"`
	Body      string    `json:"body"      gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (SourceNote) TableName() string { return "source_notes" }

// ContentDocument is the logical document a content version belongs to.
// Created by the store as a side effect of version/note creation; the
// migrator never creates one directly.
type ContentDocument struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	Title     string    `json:"title"     gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (ContentDocument) TableName() string { return "content_documents" }

// ContentVersion is the modern content record a source record converts into.
// DocumentID is derived by the store and is only visible on a follow-up
// read; create calls return versions with the ID populated and DocumentID
// zero. The provenance fields tie a version back to the legacy record and
// its parent entity; for the attachment pipeline they are set at create
// time, for the note pipeline via a later update.
type ContentVersion struct {
	ID                     uuid.UUID `json:"id"                               gorm:"primaryKey;type:uuid"`
	DocumentID             uuid.UUID `json:"documentId"                       gorm:"not null;type:uuid;index"`
	Title                  string    `json:"title"                            gorm:"not null"`
	Body                   []byte    `json:"-"                                gorm:"type:bytea"`
	Description            *string   `json:"description,omitempty"`
	OriginalRecordID       *string   `json:"originalRecordId,omitempty"       gorm:"index"`
	OriginalRecordParentID *string   `json:"originalRecordParentId,omitempty"`
	CreatedAt              time.Time `json:"createdAt"                        gorm:"not null"`
}

func (ContentVersion) TableName() string { return "content_versions" }

// ContentNote is the note-kind create surface. The store forbids custom
// fields on it, so provenance cannot ride along at create time; the pipeline
// reaches the underlying version through LatestVersionID instead.
type ContentNote struct {
	ID              uuid.UUID `json:"id"              gorm:"primaryKey;type:uuid"`
	LatestVersionID uuid.UUID `json:"latestVersionId" gorm:"not null;type:uuid"`
	Title           string    `json:"title"           gorm:"not null"`
	Body            []byte    `json:"-"               gorm:"type:bytea"`
	CreatedAt       time.Time `json:"createdAt"       gorm:"not null"`
}

func (ContentNote) TableName() string { return "content_notes" }

// SharingGrant links a content document to an entity with an access kind.
type SharingGrant struct {
	ID             uuid.UUID `json:"id"             gorm:"primaryKey;type:uuid"`
	DocumentID     uuid.UUID `json:"documentId"     gorm:"not null;type:uuid;index"`
	LinkedEntityID string    `json:"linkedEntityId" gorm:"not null"`
	ShareKind      ShareKind `json:"shareKind"      gorm:"not null"`
	CreatedAt      time.Time `json:"createdAt"      gorm:"not null"`
}

func (SharingGrant) TableName() string { return "sharing_grants" }
