package migration_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/docuflow/content-migrator/internal/model"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
)

// memStore is an in-memory RecordStore honoring the contract's ordering
// quirks: version creates are positional, note creates and every read-by-id
// come back in an order unrelated to the request. Fault fields simulate a
// store that silently drops rows, which is what the correlation checks are
// there to catch.
type memStore struct {
	mu sync.Mutex

	attachments  map[uuid.UUID]model.SourceAttachment
	notes        map[uuid.UUID]model.SourceNote
	documents    map[uuid.UUID]model.ContentDocument
	versions     map[uuid.UUID]model.ContentVersion
	contentNotes map[uuid.UUID]model.ContentNote
	grants       []model.SharingGrant

	dropVersionCreates int // drop N rows from the version create result
	dropNoteReads      int // drop N rows from the note re-read result
	failGrantCreate    bool
}

func newMemStore() *memStore {
	return &memStore{
		attachments:  map[uuid.UUID]model.SourceAttachment{},
		notes:        map[uuid.UUID]model.SourceNote{},
		documents:    map[uuid.UUID]model.ContentDocument{},
		versions:     map[uuid.UUID]model.ContentVersion{},
		contentNotes: map[uuid.UUID]model.ContentNote{},
	}
}

var _ registrystore.RecordStore = (*memStore)(nil)

func (s *memStore) converted() map[string]bool {
	ids := map[string]bool{}
	for _, v := range s.versions {
		if v.OriginalRecordID != nil {
			ids[*v.OriginalRecordID] = true
		}
	}
	return ids
}

func (s *memStore) CountSourceRecords(_ context.Context, kind model.SourceKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	converted := s.converted()
	var count int64
	if kind == model.SourceKindNote {
		for id := range s.notes {
			if !converted[id.String()] {
				count++
			}
		}
		return count, nil
	}
	for id := range s.attachments {
		if !converted[id.String()] {
			count++
		}
	}
	return count, nil
}

func (s *memStore) ListSourceAttachments(_ context.Context, afterID *uuid.UUID, limit int) ([]model.SourceAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	converted := s.converted()
	var records []model.SourceAttachment
	for id, a := range s.attachments {
		if converted[id.String()] {
			continue
		}
		if afterID != nil && id.String() <= afterID.String() {
			continue
		}
		records = append(records, a)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID.String() < records[j].ID.String() })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *memStore) ListSourceNotes(_ context.Context, afterID *uuid.UUID, limit int) ([]model.SourceNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	converted := s.converted()
	var records []model.SourceNote
	for id, n := range s.notes {
		if converted[id.String()] {
			continue
		}
		if afterID != nil && id.String() <= afterID.String() {
			continue
		}
		records = append(records, n)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID.String() < records[j].ID.String() })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *memStore) GetSourceAttachmentsByID(_ context.Context, ids []uuid.UUID) ([]model.SourceAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []model.SourceAttachment
	for _, id := range ids {
		if a, ok := s.attachments[id]; ok {
			records = append(records, a)
		}
	}
	return records, nil
}

func (s *memStore) GetSourceNotesByID(_ context.Context, ids []uuid.UUID) ([]model.SourceNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []model.SourceNote
	for _, id := range ids {
		if n, ok := s.notes[id]; ok {
			records = append(records, n)
		}
	}
	return records, nil
}

func (s *memStore) DeleteSourceAttachments(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.attachments, id)
	}
	return nil
}

func (s *memStore) DeleteSourceNotes(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.notes, id)
	}
	return nil
}

func (s *memStore) CreateContentVersions(_ context.Context, versions []model.ContentVersion) ([]model.ContentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]model.ContentVersion, 0, len(versions))
	for _, draft := range versions {
		doc := model.ContentDocument{ID: uuid.New(), Title: draft.Title}
		s.documents[doc.ID] = doc
		draft.ID = uuid.New()
		draft.DocumentID = doc.ID
		s.versions[draft.ID] = draft
		out := draft
		out.DocumentID = uuid.Nil
		created = append(created, out)
	}
	if s.dropVersionCreates > 0 && len(created) >= s.dropVersionCreates {
		created = created[:len(created)-s.dropVersionCreates]
	}
	return created, nil
}

func (s *memStore) CreateContentNotes(_ context.Context, notes []model.ContentNote) ([]model.ContentNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]model.ContentNote, 0, len(notes))
	for _, draft := range notes {
		if draft.ID == uuid.Nil {
			return nil, fmt.Errorf("content note %q requires a caller-assigned id", draft.Title)
		}
		doc := model.ContentDocument{ID: uuid.New(), Title: draft.Title}
		s.documents[doc.ID] = doc
		version := model.ContentVersion{ID: uuid.New(), DocumentID: doc.ID, Title: draft.Title, Body: draft.Body}
		s.versions[version.ID] = version
		draft.LatestVersionID = version.ID
		s.contentNotes[draft.ID] = draft
		created = append(created, model.ContentNote{ID: draft.ID, Title: draft.Title})
	}
	// Output order is unspecified by contract.
	sort.Slice(created, func(i, j int) bool { return created[i].ID.String() < created[j].ID.String() })
	return created, nil
}

func (s *memStore) GetContentVersionsByID(_ context.Context, ids []uuid.UUID) ([]model.ContentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []model.ContentVersion
	// Deliberately reversed relative to the request.
	for i := len(ids) - 1; i >= 0; i-- {
		if v, ok := s.versions[ids[i]]; ok {
			records = append(records, v)
		}
	}
	return records, nil
}

func (s *memStore) GetContentNotesByID(_ context.Context, ids []uuid.UUID) ([]model.ContentNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []model.ContentNote
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := s.contentNotes[ids[i]]; ok {
			records = append(records, n)
		}
	}
	if s.dropNoteReads > 0 && len(records) >= s.dropNoteReads {
		records = records[:len(records)-s.dropNoteReads]
	}
	return records, nil
}

func (s *memStore) UpdateContentVersionProvenance(_ context.Context, updates []registrystore.ProvenanceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		v, ok := s.versions[u.VersionID]
		if !ok {
			return fmt.Errorf("update provenance for %s: version not found", u.VersionID)
		}
		recordID := u.OriginalRecordID
		parentID := u.OriginalRecordParentID
		v.OriginalRecordID = &recordID
		v.OriginalRecordParentID = &parentID
		s.versions[u.VersionID] = v
	}
	return nil
}

func (s *memStore) CreateSharingGrants(_ context.Context, grants []model.SharingGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGrantCreate {
		return fmt.Errorf("grant create rejected")
	}
	for _, g := range grants {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		s.grants = append(s.grants, g)
	}
	return nil
}

func (s *memStore) ListSharingGrantsByDocument(_ context.Context, documentID uuid.UUID) ([]model.SharingGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []model.SharingGrant
	for _, g := range s.grants {
		if g.DocumentID == documentID {
			records = append(records, g)
		}
	}
	return records, nil
}

// versionForSource finds the content version carrying the given source ID
// as provenance.
func (s *memStore) versionForSource(sourceID uuid.UUID) (model.ContentVersion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := sourceID.String()
	for _, v := range s.versions {
		if v.OriginalRecordID != nil && *v.OriginalRecordID == want {
			return v, true
		}
	}
	return model.ContentVersion{}, false
}
