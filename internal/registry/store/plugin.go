package store

import (
	"context"
	"fmt"

	"github.com/docuflow/content-migrator/internal/model"
	"github.com/google/uuid"
)

// ProvenanceUpdate sets the provenance fields on an existing content
// version. Used by the note pipeline, whose target kind cannot carry the
// fields at create time.
type ProvenanceUpdate struct {
	VersionID              uuid.UUID
	OriginalRecordID       string
	OriginalRecordParentID string
}

// RecordStore is the persistence contract the migration pipeline runs
// against.
//
// Ordering contracts, which the correlation strategies depend on:
//   - CreateContentVersions assigns IDs and returns the created versions in
//     input order. DocumentID is derived by the store but NOT returned; it
//     is only visible through GetContentVersionsByID.
//   - CreateContentNotes requires caller-assigned IDs and makes no promise
//     about output order.
//   - All Get*ByID calls return rows in arbitrary order.
type RecordStore interface {
	// Source records.
	CountSourceRecords(ctx context.Context, kind model.SourceKind) (int64, error)
	// ListSourceAttachments pages unconverted attachments by ascending ID.
	// Records already referenced by a content version's originalRecordId are
	// excluded, which is what makes a re-run after a partial failure safe.
	ListSourceAttachments(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceAttachment, error)
	ListSourceNotes(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceNote, error)
	GetSourceAttachmentsByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceAttachment, error)
	GetSourceNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceNote, error)
	DeleteSourceAttachments(ctx context.Context, ids []uuid.UUID) error
	DeleteSourceNotes(ctx context.Context, ids []uuid.UUID) error

	// Target records.
	CreateContentVersions(ctx context.Context, versions []model.ContentVersion) ([]model.ContentVersion, error)
	CreateContentNotes(ctx context.Context, notes []model.ContentNote) ([]model.ContentNote, error)
	GetContentVersionsByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentVersion, error)
	GetContentNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentNote, error)
	UpdateContentVersionProvenance(ctx context.Context, updates []ProvenanceUpdate) error

	// Sharing.
	CreateSharingGrants(ctx context.Context, grants []model.SharingGrant) error
	ListSharingGrantsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.SharingGrant, error)
}

// Loader constructs a RecordStore from configuration carried in ctx.
type Loader func(ctx context.Context) (RecordStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
