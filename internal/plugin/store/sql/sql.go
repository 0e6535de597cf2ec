package sql

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/config"
	"github.com/docuflow/content-migrator/internal/model"
	registrymigrate "github.com/docuflow/content-migrator/internal/registry/migrate"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name:   "postgres",
		Loader: loader(func(cfg *config.Config) gorm.Dialector { return postgres.Open(cfg.DBURL) }),
	})
	registrystore.Register(registrystore.Plugin{
		Name:   "sqlite",
		Loader: loader(func(cfg *config.Config) gorm.Dialector { return sqlite.Open(cfg.DBURL) }),
	})
	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqlMigrator{}})
}

func loader(dialector func(*config.Config) gorm.Dialector) registrystore.Loader {
	return func(ctx context.Context) (registrystore.RecordStore, error) {
		cfg := config.FromContext(ctx)
		db, err := gorm.Open(dialector(cfg), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying db: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		return New(db), nil
	}
}

type sqlMigrator struct{}

func (m *sqlMigrator) Name() string { return "sql-schema" }

func (m *sqlMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	var dialector gorm.Dialector
	switch cfg.DatastoreType {
	case "postgres":
		dialector = postgres.Open(cfg.DBURL)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBURL)
	default:
		return nil // not a SQL backend
	}
	log.Info("Running migration", "name", m.Name(), "backend", cfg.DatastoreType)
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("migration: failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	log.Info("SQL schema migration complete")
	return nil
}

// AutoMigrate creates or updates the migrator's tables on db. Shared by
// the migrator plugin and tests that bring up their own connection.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.SourceAttachment{},
		&model.SourceNote{},
		&model.ContentDocument{},
		&model.ContentVersion{},
		&model.ContentNote{},
		&model.SharingGrant{},
	)
}

// SQLStore implements RecordStore using GORM against postgres or sqlite.
type SQLStore struct {
	db *gorm.DB
}

// New wraps an open GORM connection.
func New(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// convertedIDs is the set of source record IDs already carried as
// provenance on a content version. Listing excludes them so a re-run after
// a partial failure does not reconvert finished records. The provenance
// column is text while source IDs are uuid; postgres has no uuid = text
// operator, so callers must cast the source ID to text when comparing
// against this subquery.
func (s *SQLStore) convertedIDs() *gorm.DB {
	return s.db.Model(&model.ContentVersion{}).
		Select("original_record_id").
		Where("original_record_id IS NOT NULL")
}

func (s *SQLStore) CountSourceRecords(ctx context.Context, kind model.SourceKind) (int64, error) {
	var count int64
	query := s.db.WithContext(ctx).Where("CAST(id AS TEXT) NOT IN (?)", s.convertedIDs())
	switch kind {
	case model.SourceKindNote:
		query = query.Model(&model.SourceNote{})
	default:
		query = query.Model(&model.SourceAttachment{})
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count source records: %w", err)
	}
	return count, nil
}

func (s *SQLStore) ListSourceAttachments(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceAttachment, error) {
	var records []model.SourceAttachment
	query := s.db.WithContext(ctx).
		Where("CAST(id AS TEXT) NOT IN (?)", s.convertedIDs()).
		Order("id asc").
		Limit(limit)
	if afterID != nil {
		query = query.Where("id > ?", *afterID)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list source attachments: %w", err)
	}
	return records, nil
}

func (s *SQLStore) ListSourceNotes(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceNote, error) {
	var records []model.SourceNote
	query := s.db.WithContext(ctx).
		Where("CAST(id AS TEXT) NOT IN (?)", s.convertedIDs()).
		Order("id asc").
		Limit(limit)
	if afterID != nil {
		query = query.Where("id > ?", *afterID)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list source notes: %w", err)
	}
	return records, nil
}

func (s *SQLStore) GetSourceAttachmentsByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceAttachment, error) {
	var records []model.SourceAttachment
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get source attachments: %w", err)
	}
	return records, nil
}

func (s *SQLStore) GetSourceNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceNote, error) {
	var records []model.SourceNote
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get source notes: %w", err)
	}
	return records, nil
}

func (s *SQLStore) DeleteSourceAttachments(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.SourceAttachment{}).Error; err != nil {
		return fmt.Errorf("delete source attachments: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteSourceNotes(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.SourceNote{}).Error; err != nil {
		return fmt.Errorf("delete source notes: %w", err)
	}
	return nil
}

// CreateContentVersions persists the drafts in input order, deriving a
// content document for each. The returned versions carry store-assigned
// IDs but not document IDs; those are only visible via a follow-up read.
func (s *SQLStore) CreateContentVersions(ctx context.Context, versions []model.ContentVersion) ([]model.ContentVersion, error) {
	if len(versions) == 0 {
		return nil, nil
	}
	created := make([]model.ContentVersion, len(versions))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, draft := range versions {
			doc := model.ContentDocument{ID: uuid.New(), Title: draft.Title}
			if err := tx.Create(&doc).Error; err != nil {
				return fmt.Errorf("create content document: %w", err)
			}
			draft.ID = uuid.New()
			draft.DocumentID = doc.ID
			if err := tx.Create(&draft).Error; err != nil {
				return fmt.Errorf("create content version: %w", err)
			}
			created[i] = draft
			created[i].DocumentID = uuid.Nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateContentNotes persists note drafts, deriving a content document and
// version per note. Drafts must carry caller-assigned IDs. The result rows
// expose only the IDs and come back in no particular order; the latest
// version ID is obtained via GetContentNotesByID.
func (s *SQLStore) CreateContentNotes(ctx context.Context, notes []model.ContentNote) ([]model.ContentNote, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	for _, n := range notes {
		if n.ID == uuid.Nil {
			return nil, fmt.Errorf("content note %q requires a caller-assigned id", n.Title)
		}
	}
	created := make([]model.ContentNote, len(notes))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, draft := range notes {
			doc := model.ContentDocument{ID: uuid.New(), Title: draft.Title}
			if err := tx.Create(&doc).Error; err != nil {
				return fmt.Errorf("create content document: %w", err)
			}
			version := model.ContentVersion{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				Title:      draft.Title,
				Body:       draft.Body,
			}
			if err := tx.Create(&version).Error; err != nil {
				return fmt.Errorf("create note version: %w", err)
			}
			draft.LatestVersionID = version.ID
			if err := tx.Create(&draft).Error; err != nil {
				return fmt.Errorf("create content note: %w", err)
			}
			created[i] = model.ContentNote{ID: draft.ID, Title: draft.Title, CreatedAt: draft.CreatedAt}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The order of the create result is unspecified by contract.
	sort.Slice(created, func(i, j int) bool { return created[i].ID.String() < created[j].ID.String() })
	return created, nil
}

func (s *SQLStore) GetContentVersionsByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentVersion, error) {
	var records []model.ContentVersion
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get content versions: %w", err)
	}
	return records, nil
}

func (s *SQLStore) GetContentNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentNote, error) {
	var records []model.ContentNote
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("get content notes: %w", err)
	}
	return records, nil
}

func (s *SQLStore) UpdateContentVersionProvenance(ctx context.Context, updates []registrystore.ProvenanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			result := tx.Model(&model.ContentVersion{}).
				Where("id = ?", u.VersionID).
				Updates(map[string]interface{}{
					"original_record_id":        u.OriginalRecordID,
					"original_record_parent_id": u.OriginalRecordParentID,
				})
			if result.Error != nil {
				return fmt.Errorf("update provenance for %s: %w", u.VersionID, result.Error)
			}
			if result.RowsAffected != 1 {
				return fmt.Errorf("update provenance for %s: version not found", u.VersionID)
			}
		}
		return nil
	})
}

func (s *SQLStore) CreateSharingGrants(ctx context.Context, grants []model.SharingGrant) error {
	if len(grants) == 0 {
		return nil
	}
	rows := make([]model.SharingGrant, len(grants))
	for i, g := range grants {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		rows[i] = g
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create sharing grants: %w", err)
	}
	return nil
}

func (s *SQLStore) ListSharingGrantsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.SharingGrant, error) {
	var records []model.SharingGrant
	if err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list sharing grants: %w", err)
	}
	return records, nil
}
