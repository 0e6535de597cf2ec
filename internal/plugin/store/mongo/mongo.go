package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/docuflow/content-migrator/internal/config"
	"github.com/docuflow/content-migrator/internal/model"
	registrymigrate "github.com/docuflow/content-migrator/internal/registry/migrate"
	registrystore "github.com/docuflow/content-migrator/internal/registry/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const dbName = "content_migrator"

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.RecordStore, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}
			return &MongoStore{client: client, db: client.Database(dbName)}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 200, Migrator: &mongoMigrator{}})
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }

func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(dbName)
	collections := map[string][]mongo.IndexModel{
		"source_attachments": {
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		"source_notes": {
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		"content_documents": nil,
		"content_versions": {
			{Keys: bson.D{{Key: "document_id", Value: 1}}},
			{Keys: bson.D{{Key: "original_record_id", Value: 1}}},
		},
		"content_notes": nil,
		"sharing_grants": {
			{Keys: bson.D{{Key: "document_id", Value: 1}}},
		},
	}
	for name, indexes := range collections {
		if err := db.CreateCollection(ctx, name); err != nil && !collectionExists(err) {
			return fmt.Errorf("mongo migration: failed to create collection %s: %w", name, err)
		}
		if len(indexes) > 0 {
			if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
				return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
			}
		}
	}

	log.Info("MongoDB schema migration complete")
	return nil
}

// collectionExists reports whether err is the server saying the collection
// is already there, which a migration re-run ignores.
func collectionExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && (cmdErr.Code == 48 || cmdErr.Name == "NamespaceExists")
}

// MongoStore implements RecordStore using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type attachmentDoc struct {
	ID          string    `bson:"_id"`
	OwnerID     string    `bson:"owner_id"`
	ParentID    string    `bson:"parent_id"`
	Name        string    `bson:"name"`
	Body        []byte    `bson:"body"`
	ContentType string    `bson:"content_type"`
	Description *string   `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

type noteDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	ParentID  string    `bson:"parent_id"`
	Title     string    `bson:"title"`
	Body      string    `bson:"body"`
	CreatedAt time.Time `bson:"created_at"`
}

type documentDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	CreatedAt time.Time `bson:"created_at"`
}

type versionDoc struct {
	ID                     string    `bson:"_id"`
	DocumentID             string    `bson:"document_id"`
	Title                  string    `bson:"title"`
	Body                   []byte    `bson:"body,omitempty"`
	Description            *string   `bson:"description,omitempty"`
	OriginalRecordID       *string   `bson:"original_record_id,omitempty"`
	OriginalRecordParentID *string   `bson:"original_record_parent_id,omitempty"`
	CreatedAt              time.Time `bson:"created_at"`
}

type contentNoteDoc struct {
	ID              string    `bson:"_id"`
	LatestVersionID string    `bson:"latest_version_id"`
	Title           string    `bson:"title"`
	CreatedAt       time.Time `bson:"created_at"`
}

type grantDoc struct {
	ID             string    `bson:"_id"`
	DocumentID     string    `bson:"document_id"`
	LinkedEntityID string    `bson:"linked_entity_id"`
	ShareKind      string    `bson:"share_kind"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (s *MongoStore) sourceAttachments() *mongo.Collection { return s.db.Collection("source_attachments") }
func (s *MongoStore) sourceNotes() *mongo.Collection       { return s.db.Collection("source_notes") }
func (s *MongoStore) documents() *mongo.Collection         { return s.db.Collection("content_documents") }
func (s *MongoStore) versions() *mongo.Collection          { return s.db.Collection("content_versions") }
func (s *MongoStore) contentNotes() *mongo.Collection      { return s.db.Collection("content_notes") }
func (s *MongoStore) grants() *mongo.Collection            { return s.db.Collection("sharing_grants") }

// sourcePipeline selects unconverted source records: an optional keyset
// stage on _id, then a $lookup against content_versions on provenance with
// a $match on the empty join result. The anti-join runs server-side, so
// the query stays one page wide no matter how many records earlier runs
// converted.
func sourcePipeline(afterID *uuid.UUID) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if afterID != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"_id": bson.M{"$gt": afterID.String()}}}})
	}
	return append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "content_versions",
			"localField":   "_id",
			"foreignField": "original_record_id",
			"as":           "converted",
		}}},
		bson.D{{Key: "$match", Value: bson.M{"converted": bson.M{"$size": 0}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)
}

func (s *MongoStore) CountSourceRecords(ctx context.Context, kind model.SourceKind) (int64, error) {
	col := s.sourceAttachments()
	if kind == model.SourceKindNote {
		col = s.sourceNotes()
	}
	cursor, err := col.Aggregate(ctx, append(sourcePipeline(nil), bson.D{{Key: "$count", Value: "count"}}))
	if err != nil {
		return 0, fmt.Errorf("count source records: %w", err)
	}
	var out []struct {
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("decode source record count: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Count, nil
}

func (s *MongoStore) ListSourceAttachments(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceAttachment, error) {
	pipeline := append(sourcePipeline(afterID), bson.D{{Key: "$limit", Value: int64(limit)}})
	cursor, err := s.sourceAttachments().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list source attachments: %w", err)
	}
	var docs []attachmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode source attachments: %w", err)
	}
	records := make([]model.SourceAttachment, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) ListSourceNotes(ctx context.Context, afterID *uuid.UUID, limit int) ([]model.SourceNote, error) {
	pipeline := append(sourcePipeline(afterID), bson.D{{Key: "$limit", Value: int64(limit)}})
	cursor, err := s.sourceNotes().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list source notes: %w", err)
	}
	var docs []noteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode source notes: %w", err)
	}
	records := make([]model.SourceNote, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) GetSourceAttachmentsByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceAttachment, error) {
	cursor, err := s.sourceAttachments().Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("get source attachments: %w", err)
	}
	var docs []attachmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode source attachments: %w", err)
	}
	records := make([]model.SourceAttachment, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) GetSourceNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.SourceNote, error) {
	cursor, err := s.sourceNotes().Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("get source notes: %w", err)
	}
	var docs []noteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode source notes: %w", err)
	}
	records := make([]model.SourceNote, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) DeleteSourceAttachments(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.sourceAttachments().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}}); err != nil {
		return fmt.Errorf("delete source attachments: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteSourceNotes(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.sourceNotes().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}}); err != nil {
		return fmt.Errorf("delete source notes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateContentVersions(ctx context.Context, versions []model.ContentVersion) ([]model.ContentVersion, error) {
	if len(versions) == 0 {
		return nil, nil
	}
	now := time.Now()
	created := make([]model.ContentVersion, len(versions))
	for i, draft := range versions {
		doc := documentDoc{ID: uuid.NewString(), Title: draft.Title, CreatedAt: now}
		if _, err := s.documents().InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("create content document: %w", err)
		}
		draft.ID = uuid.New()
		if _, err := s.versions().InsertOne(ctx, versionDoc{
			ID:                     draft.ID.String(),
			DocumentID:             doc.ID,
			Title:                  draft.Title,
			Body:                   draft.Body,
			Description:            draft.Description,
			OriginalRecordID:       draft.OriginalRecordID,
			OriginalRecordParentID: draft.OriginalRecordParentID,
			CreatedAt:              now,
		}); err != nil {
			return nil, fmt.Errorf("create content version: %w", err)
		}
		created[i] = draft
		created[i].DocumentID = uuid.Nil
		created[i].CreatedAt = now
	}
	return created, nil
}

func (s *MongoStore) CreateContentNotes(ctx context.Context, notes []model.ContentNote) ([]model.ContentNote, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	now := time.Now()
	created := make([]model.ContentNote, len(notes))
	for i, draft := range notes {
		if draft.ID == uuid.Nil {
			return nil, fmt.Errorf("content note %q requires a caller-assigned id", draft.Title)
		}
		doc := documentDoc{ID: uuid.NewString(), Title: draft.Title, CreatedAt: now}
		if _, err := s.documents().InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("create content document: %w", err)
		}
		versionID := uuid.NewString()
		if _, err := s.versions().InsertOne(ctx, versionDoc{
			ID:         versionID,
			DocumentID: doc.ID,
			Title:      draft.Title,
			Body:       draft.Body,
			CreatedAt:  now,
		}); err != nil {
			return nil, fmt.Errorf("create note version: %w", err)
		}
		if _, err := s.contentNotes().InsertOne(ctx, contentNoteDoc{
			ID:              draft.ID.String(),
			LatestVersionID: versionID,
			Title:           draft.Title,
			CreatedAt:       now,
		}); err != nil {
			return nil, fmt.Errorf("create content note: %w", err)
		}
		created[i] = model.ContentNote{ID: draft.ID, Title: draft.Title, CreatedAt: now}
	}
	// The order of the create result is unspecified by contract.
	sort.Slice(created, func(i, j int) bool { return created[i].ID.String() < created[j].ID.String() })
	return created, nil
}

func (s *MongoStore) GetContentVersionsByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentVersion, error) {
	cursor, err := s.versions().Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("get content versions: %w", err)
	}
	var docs []versionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode content versions: %w", err)
	}
	records := make([]model.ContentVersion, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) GetContentNotesByID(ctx context.Context, ids []uuid.UUID) ([]model.ContentNote, error) {
	cursor, err := s.contentNotes().Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("get content notes: %w", err)
	}
	var docs []contentNoteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode content notes: %w", err)
	}
	records := make([]model.ContentNote, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *MongoStore) UpdateContentVersionProvenance(ctx context.Context, updates []registrystore.ProvenanceUpdate) error {
	for _, u := range updates {
		result, err := s.versions().UpdateByID(ctx, u.VersionID.String(), bson.M{"$set": bson.M{
			"original_record_id":        u.OriginalRecordID,
			"original_record_parent_id": u.OriginalRecordParentID,
		}})
		if err != nil {
			return fmt.Errorf("update provenance for %s: %w", u.VersionID, err)
		}
		if result.MatchedCount != 1 {
			return fmt.Errorf("update provenance for %s: version not found", u.VersionID)
		}
	}
	return nil
}

func (s *MongoStore) CreateSharingGrants(ctx context.Context, grants []model.SharingGrant) error {
	if len(grants) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(grants))
	for i, g := range grants {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		docs[i] = grantDoc{
			ID:             g.ID.String(),
			DocumentID:     g.DocumentID.String(),
			LinkedEntityID: g.LinkedEntityID,
			ShareKind:      string(g.ShareKind),
			CreatedAt:      now,
		}
	}
	if _, err := s.grants().InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("create sharing grants: %w", err)
	}
	return nil
}

func (s *MongoStore) ListSharingGrantsByDocument(ctx context.Context, documentID uuid.UUID) ([]model.SharingGrant, error) {
	cursor, err := s.grants().Find(ctx, bson.M{"document_id": documentID.String()})
	if err != nil {
		return nil, fmt.Errorf("list sharing grants: %w", err)
	}
	var docs []grantDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sharing grants: %w", err)
	}
	records := make([]model.SharingGrant, 0, len(docs))
	for _, d := range docs {
		record, err := d.asModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// --- doc ↔ model conversions ---

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (d attachmentDoc) asModel() (model.SourceAttachment, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.SourceAttachment{}, fmt.Errorf("invalid attachment id %q: %w", d.ID, err)
	}
	parentID, err := uuid.Parse(d.ParentID)
	if err != nil {
		return model.SourceAttachment{}, fmt.Errorf("invalid parent id %q: %w", d.ParentID, err)
	}
	return model.SourceAttachment{
		ID:          id,
		OwnerID:     d.OwnerID,
		ParentID:    parentID,
		Name:        d.Name,
		Body:        d.Body,
		ContentType: d.ContentType,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func (d noteDoc) asModel() (model.SourceNote, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.SourceNote{}, fmt.Errorf("invalid note id %q: %w", d.ID, err)
	}
	parentID, err := uuid.Parse(d.ParentID)
	if err != nil {
		return model.SourceNote{}, fmt.Errorf("invalid parent id %q: %w", d.ParentID, err)
	}
	return model.SourceNote{
		ID:        id,
		OwnerID:   d.OwnerID,
		ParentID:  parentID,
		Title:     d.Title,
		Body:      d.Body,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (d versionDoc) asModel() (model.ContentVersion, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.ContentVersion{}, fmt.Errorf("invalid version id %q: %w", d.ID, err)
	}
	documentID, err := uuid.Parse(d.DocumentID)
	if err != nil {
		return model.ContentVersion{}, fmt.Errorf("invalid document id %q: %w", d.DocumentID, err)
	}
	return model.ContentVersion{
		ID:                     id,
		DocumentID:             documentID,
		Title:                  d.Title,
		Body:                   d.Body,
		Description:            d.Description,
		OriginalRecordID:       d.OriginalRecordID,
		OriginalRecordParentID: d.OriginalRecordParentID,
		CreatedAt:              d.CreatedAt,
	}, nil
}

func (d contentNoteDoc) asModel() (model.ContentNote, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.ContentNote{}, fmt.Errorf("invalid note id %q: %w", d.ID, err)
	}
	versionID, err := uuid.Parse(d.LatestVersionID)
	if err != nil {
		return model.ContentNote{}, fmt.Errorf("invalid version id %q: %w", d.LatestVersionID, err)
	}
	return model.ContentNote{ID: id, LatestVersionID: versionID, Title: d.Title, CreatedAt: d.CreatedAt}, nil
}

func (d grantDoc) asModel() (model.SharingGrant, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return model.SharingGrant{}, fmt.Errorf("invalid grant id %q: %w", d.ID, err)
	}
	documentID, err := uuid.Parse(d.DocumentID)
	if err != nil {
		return model.SharingGrant{}, fmt.Errorf("invalid document id %q: %w", d.DocumentID, err)
	}
	return model.SharingGrant{
		ID:             id,
		DocumentID:     documentID,
		LinkedEntityID: d.LinkedEntityID,
		ShareKind:      model.ShareKind(d.ShareKind),
		CreatedAt:      d.CreatedAt,
	}, nil
}
